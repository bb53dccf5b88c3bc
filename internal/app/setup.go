// Package app contains the application setup for the storefront admin service.
package app

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nordvik/storefront/internal/config"
	"github.com/nordvik/storefront/internal/flash"
	"github.com/nordvik/storefront/internal/media"
	"github.com/nordvik/storefront/internal/product/service"
	"github.com/nordvik/storefront/internal/product/store"
	"github.com/nordvik/storefront/internal/transport/rest"
	"github.com/nordvik/storefront/pkg/server"
)

type Dependencies struct {
	ProductService service.ProductService
	Flashes        *flash.Store
	Images         *media.Store
	Logger         *slog.Logger
}

func SetupDependencies(dbPool *pgxpool.Pool, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	images, err := media.NewStore(cfg.Media.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to set up media store: %w", err)
	}

	return &Dependencies{
		ProductService: service.NewService(store.NewPgStore(dbPool)),
		Flashes:        flash.NewStore(cfg.Session.Secret, cfg.Session.Name),
		Images:         images,
		Logger:         logger,
	}, nil
}

// SetupHttpHandler initializes the HTTP routes for the admin service.
// Used by E2E tests to set up the HTTP server with the necessary routes and middleware.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	mux := server.NewChiRouter(deps.Logger)
	wireRoutes(mux, deps)
	return mux
}

// wireRoutes sets up the HTTP routes for the admin service.
func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	adminHandler := rest.NewHandler(deps.ProductService, deps.Flashes, deps.Images, deps.Logger)
	adminHandler.RegisterRoutes(mux)
}

// SetupHttpServer creates and configures an HTTP server for the admin service.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {
	mux := SetupHttpHandler(deps)

	httpCfg := server.HTTPConfig{
		Port:           cfg.HTTPServer.Port,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		ReadTimeout:    cfg.HTTPServer.Timeout.Read,
		WriteTimeout:   cfg.HTTPServer.Timeout.Write,
		IdleTimeout:    cfg.HTTPServer.Timeout.Idle,
		ReadHeader:     cfg.HTTPServer.Timeout.ReadHeader,
	}

	return server.NewHTTPServer(httpCfg, mux)
}
