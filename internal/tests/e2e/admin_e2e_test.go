// Package e2e provides end-to-end tests for the storefront admin service.
// The suite leverages `testcontainers-go` to spin up a real PostgreSQL instance in a Docker container,
// ensuring tests run against a production-like environment. It uses `testify/suite` for better structure
// and lifecycle management (`SetupSuite`, `TearDownSuite`, `SetupTest`).
//
// Key features of the test suite:
//   - A PostgreSQL container is started and database migrations are applied before tests run.
//   - The actual application handler is run in an `httptest.Server`.
//   - Every actor (product owner, other user) gets its own HTTP client with a
//     cookie jar, so flash messages travel between requests the way they do in
//     a browser session.
//   - Test coverage includes:
//   - The full add / list / edit / update / delete product lifecycle.
//   - Ownership enforcement: another user's edit and delete attempts bounce
//     with an alert and leave the product untouched.
//   - Flash messages delivered on the next listing and consumed exactly once.
//   - Uploaded image files stored on create and released on delete.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nordvik/storefront/internal/app"
	"github.com/nordvik/storefront/internal/config"
	"github.com/nordvik/storefront/internal/product/service"
	"github.com/nordvik/storefront/pkg/web"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// skipE2ETests is the environment variable that can be set to skip E2E tests.
const skipE2ETests = "STOREFRONT_SKIP_E2E_TESTS"

// adminURL is the base URL for the admin product pages.
const adminURL = "/admin/products"

// AdminE2ESuite is a test suite for end-to-end tests of the storefront admin area.
type AdminE2ESuite struct {
	suite.Suite                             // Embedding testify's suite for structured testing
	pgContainer *postgres.PostgresContainer // PostgreSQL container for E2E tests
	dbPool      *pgxpool.Pool               // PostgreSQL connection pool for E2E tests
	server      *httptest.Server            // HTTP server for the admin application
	mediaDir    string                      // Directory the media store writes uploaded images into
	logger      *slog.Logger                // Logger for the test suite
	ctx         context.Context             // Context for the test suite, used for cancellation and timeouts
}

// testConfig creates a configuration covering only what the handler stack needs.
func testConfig(mediaDir string) *config.Config {
	var cfg config.Config
	cfg.Session.Secret = "0123456789abcdef0123456789abcdef"
	cfg.Session.Name = "storefront_flash_e2e"
	cfg.Media.Dir = mediaDir
	return &cfg
}

// SetupSuite initializes the test suite by setting up the PostgreSQL container, database connection, and application handler.
func (s *AdminE2ESuite) SetupSuite() {
	s.ctx = context.Background()
	var err error
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	dbName := "storefront"
	dbUser := "user"
	dbPassword := "password"

	// 1. Start a PostgreSQL container with the specified configuration. Wait for the container to be ready.
	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:17.5-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		// Wait for a specific log message indicating the database service is ready.
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
		// Ensure the container is ready to accept connections on the default PostgreSQL port.
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("5432/tcp"),
		),
	)
	require.NoError(s.T(), err, "Failed to run PostgreSQL container")

	// 2. Get the connection string from the container
	connStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err, "Failed to get connection string from container")

	// 3. create a new pgxpool instance using the connection string
	s.dbPool, err = pgxpool.New(s.ctx, connStr)
	require.NoError(s.T(), err, "Failed to create pgx pool")

	// 3.1 Ping the database to ensure the connection is established
	for i := range 10 {
		s.logger.Info("Pinging E2E PostgreSQL database", "attempt", i+1)
		err = s.dbPool.Ping(s.ctx)
		if err == nil {
			break
		}
		time.Sleep(time.Second * 2)
	}
	require.NoError(s.T(), err, "Failed to connect to PostgreSQL after retries")

	// 4. Database migration
	// Build path to migrations directory
	wd, _ := os.Getwd()
	migrationsPath := filepath.Join(wd, "..", "..", "..", "migrations")
	sourceURL := "file://" + migrationsPath
	// Create a new migrate instance with the source URL and connection string
	m, err := migrate.New(sourceURL, connStr)
	require.NoError(s.T(), err, "Failed to create migrate instance")
	// Apply all available migrations
	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		_, _ = m.Close()
		require.NoError(s.T(), err, "Failed to apply migrations")
	}
	s.logger.Info("Migrations applied for E2E tests")

	// 5. Wire the real dependency graph against the container database
	s.mediaDir = filepath.Join(s.T().TempDir(), "uploads")
	deps, err := app.SetupDependencies(s.dbPool, testConfig(s.mediaDir), s.logger)
	require.NoError(s.T(), err, "Failed to set up dependencies for E2E")

	s.server = httptest.NewServer(app.SetupHttpHandler(deps))
	s.logger.Info("E2E test server started", "url", s.server.URL)
}

// TearDownSuite cleans up resources after all tests in the suite have run.
func (s *AdminE2ESuite) TearDownSuite() {
	s.logger.Info("Tearing down E2E suite...")
	if s.server != nil {
		s.server.Close()
		s.logger.Info("E2E test server closed.")
	}
	if s.dbPool != nil {
		s.dbPool.Close()
		s.logger.Info("E2E DB pool closed.")
	}
	if s.pgContainer != nil {
		s.logger.Info("Terminating E2E PostgreSQL container...")
		err := s.pgContainer.Terminate(s.ctx)
		if err != nil {
			s.logger.Warn("Failed to terminate E2E PostgreSQL container", "error", err)
		} else {
			s.logger.Info("E2E PostgreSQL container terminated.")
		}
	}
}

// SetupTest prepares the database and media directory for each test.
func (s *AdminE2ESuite) SetupTest() {
	_, err := s.dbPool.Exec(s.ctx, "TRUNCATE TABLE products")
	require.NoError(s.T(), err, "Failed to truncate products table")

	entries, err := os.ReadDir(s.mediaDir)
	require.NoError(s.T(), err, "Failed to read media directory")
	for _, entry := range entries {
		require.NoError(s.T(), os.Remove(filepath.Join(s.mediaDir, entry.Name())))
	}
}

// TestAdminE2E runs the admin area end-to-end tests.
func TestAdminE2E(t *testing.T) {
	// Skip E2E tests if the environment variable is set
	if os.Getenv(skipE2ETests) == "1" {
		t.Skip("Skipping E2E tests based on " + skipE2ETests + " env var")
	}
	// Run the test suite
	suite.Run(t, new(AdminE2ESuite))
}

// --------------------------------------------------------------------------
// ---------- Payload structures and Helper methods for E2E tests -----------
// --------------------------------------------------------------------------

// listPage mirrors the JSON rendering of the product listing.
type listPage struct {
	Products    []service.ProductDto `json:"products"`
	Message     *string              `json:"message"`
	MessageType *string              `json:"message_type"`
}

// formPage mirrors the re-rendered add/edit form on validation failure.
type formPage struct {
	ValidationErrors map[string]string `json:"validation_errors"`
	Product          struct {
		Title       string `json:"title"`
		Price       int64  `json:"price"`
		Description string `json:"description"`
	} `json:"product"`
}

// newSession builds an HTTP client acting as one signed-in user: a cookie jar
// carries the flash session between requests, and redirects are not followed
// so each response's status and Location header can be asserted directly.
func (s *AdminE2ESuite) newSession() *http.Client {
	s.T().Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(s.T(), err, "Failed to create cookie jar")
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// productFormBody builds the multipart add/edit product form.
func (s *AdminE2ESuite) productFormBody(title, price, description string, withImage bool) (*bytes.Buffer, string) {
	s.T().Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(s.T(), mw.WriteField("title", title))
	require.NoError(s.T(), mw.WriteField("price", price))
	require.NoError(s.T(), mw.WriteField("description", description))
	if withImage {
		part, err := mw.CreateFormFile("image", "lamp.png")
		require.NoError(s.T(), err)
		_, err = part.Write([]byte("image bytes"))
		require.NoError(s.T(), err)
	}
	require.NoError(s.T(), mw.Close())
	return body, mw.FormDataContentType()
}

// doRequest makes an HTTP request on behalf of the given user session.
// Returns the response body, status code and Location header.
func (s *AdminE2ESuite) doRequest(client *http.Client, userID uuid.UUID, method, url string, body io.Reader, contentType string) ([]byte, int, string) {
	s.T().Helper()
	req, err := http.NewRequestWithContext(s.ctx, method, url, body)
	require.NoError(s.T(), err, "Failed to create HTTP request")
	req.Header.Set(web.XUserId, userID.String())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := client.Do(req)
	require.NoError(s.T(), err, "HTTP request failed")
	defer func() {
		err := resp.Body.Close()
		require.NoError(s.T(), err, "Failed to close response body")
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	require.NoError(s.T(), err, "Failed to read response body")

	return bodyBytes, resp.StatusCode, resp.Header.Get("Location")
}

// createProduct submits the add-product form and returns status and Location.
func (s *AdminE2ESuite) createProduct(client *http.Client, userID uuid.UUID, title, price, description string, withImage bool) ([]byte, int, string) {
	s.T().Helper()
	body, contentType := s.productFormBody(title, price, description, withImage)
	return s.doRequest(client, userID, http.MethodPost, s.server.URL+adminURL, body, contentType)
}

// listProducts fetches the product listing, consuming any pending flash message.
func (s *AdminE2ESuite) listProducts(client *http.Client, userID uuid.UUID) listPage {
	s.T().Helper()
	bodyBytes, statusCode, _ := s.doRequest(client, userID, http.MethodGet, s.server.URL+adminURL, nil, "")
	require.Equal(s.T(), http.StatusOK, statusCode, "Expected HTTP 200 from product listing")

	var page listPage
	require.NoError(s.T(), json.Unmarshal(bodyBytes, &page), "Failed to decode product listing")
	return page
}

// getForEdit requests the edit form for a product.
func (s *AdminE2ESuite) getForEdit(client *http.Client, userID uuid.UUID, productID string) ([]byte, int, string) {
	s.T().Helper()
	url := s.server.URL + adminURL + "/" + productID + "/edit?edit=true"
	return s.doRequest(client, userID, http.MethodGet, url, nil, "")
}

// updateProduct submits the edit-product form for a product.
func (s *AdminE2ESuite) updateProduct(client *http.Client, userID uuid.UUID, productID, title, price, description string) ([]byte, int, string) {
	s.T().Helper()
	body, contentType := s.productFormBody(title, price, description, true)
	return s.doRequest(client, userID, http.MethodPost, s.server.URL+adminURL+"/"+productID, body, contentType)
}

// deleteProduct submits the delete action for a product.
func (s *AdminE2ESuite) deleteProduct(client *http.Client, userID uuid.UUID, productID string) ([]byte, int, string) {
	s.T().Helper()
	url := s.server.URL + adminURL + "/" + productID + "/delete"
	return s.doRequest(client, userID, http.MethodPost, url, nil, "")
}

// mediaFiles lists the files currently held by the media store.
func (s *AdminE2ESuite) mediaFiles() []string {
	s.T().Helper()
	entries, err := os.ReadDir(s.mediaDir)
	require.NoError(s.T(), err, "Failed to read media directory")
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

// requireFlash asserts the listing carries exactly the given flash message.
func (s *AdminE2ESuite) requireFlash(page listPage, kind, text string) {
	s.T().Helper()
	require.NotNil(s.T(), page.Message, "Expected a flash message on the listing")
	require.NotNil(s.T(), page.MessageType)
	require.Equal(s.T(), text, *page.Message)
	require.Equal(s.T(), kind, *page.MessageType)
}

// --------------------------------------------------------------
// ---------------------- E2E test methods ----------------------
// --------------------------------------------------------------

// TestProductLifecycle_E2E walks the full admin scenario: the owner creates a
// product, another user's edit and delete attempts bounce with alerts while
// the product survives untouched, then the owner updates and finally deletes
// it, releasing the stored image.
func (s *AdminE2ESuite) TestProductLifecycle_E2E() {
	s.SetupTest()
	owner := uuid.New()
	other := uuid.New()
	ownerSession := s.newSession()
	otherSession := s.newSession()

	// the owner creates a product
	_, statusCode, location := s.createProduct(ownerSession, owner, "Lamp", "999", "desk lamp", true)
	require.Equal(s.T(), http.StatusSeeOther, statusCode)
	require.Equal(s.T(), adminURL, location)
	require.Len(s.T(), s.mediaFiles(), 1, "Create must store exactly one image file")

	page := s.listProducts(ownerSession, owner)
	require.Len(s.T(), page.Products, 1)
	require.Equal(s.T(), "Lamp", page.Products[0].Title)
	require.Equal(s.T(), owner.String(), page.Products[0].UserID)
	productID := page.Products[0].ID

	// the other user sees an empty listing of their own
	require.Empty(s.T(), s.listProducts(otherSession, other).Products)

	// the other user's edit attempt bounces with an alert
	_, statusCode, location = s.getForEdit(otherSession, other, productID)
	require.Equal(s.T(), http.StatusSeeOther, statusCode)
	require.Equal(s.T(), adminURL, location)
	s.requireFlash(s.listProducts(otherSession, other), "alert", "You cannot edit this product information.")

	// the other user's update attempt bounces too and changes nothing
	_, statusCode, _ = s.updateProduct(otherSession, other, productID, "Hijacked", "1", "x")
	require.Equal(s.T(), http.StatusSeeOther, statusCode)
	s.requireFlash(s.listProducts(otherSession, other), "alert", "You cannot edit this product information.")
	require.Len(s.T(), s.mediaFiles(), 1, "A declined update must discard its uploaded image")

	// the other user's delete attempt bounces as well
	_, statusCode, _ = s.deleteProduct(otherSession, other, productID)
	require.Equal(s.T(), http.StatusSeeOther, statusCode)
	s.requireFlash(s.listProducts(otherSession, other), "alert", "You cannot delete this product.")

	// the product is still there, unchanged, for the owner
	bodyBytes, statusCode, _ := s.getForEdit(ownerSession, owner, productID)
	require.Equal(s.T(), http.StatusOK, statusCode)
	var fetched service.ProductDto
	require.NoError(s.T(), json.Unmarshal(bodyBytes, &fetched))
	require.Equal(s.T(), "Lamp", fetched.Title)
	require.Equal(s.T(), int64(999), fetched.Price)

	// the owner updates it; the superseded image file is released
	_, statusCode, _ = s.updateProduct(ownerSession, owner, productID, "Lamp v2", "1299", "brighter")
	require.Equal(s.T(), http.StatusSeeOther, statusCode)
	page = s.listProducts(ownerSession, owner)
	s.requireFlash(page, "success", "Product update successful.")
	require.Equal(s.T(), "Lamp v2", page.Products[0].Title)
	require.Equal(s.T(), int64(1299), page.Products[0].Price)
	require.Len(s.T(), s.mediaFiles(), 1, "Update must replace the stored image, not accumulate files")

	// the owner deletes it; the image file goes with it
	_, statusCode, _ = s.deleteProduct(ownerSession, owner, productID)
	require.Equal(s.T(), http.StatusSeeOther, statusCode)
	page = s.listProducts(ownerSession, owner)
	s.requireFlash(page, "success", "Product successfully deleted.")
	require.Empty(s.T(), page.Products)
	require.Empty(s.T(), s.mediaFiles(), "Delete must release the stored image")

	// deleting again is a hard not-found
	_, statusCode, _ = s.deleteProduct(ownerSession, owner, productID)
	require.Equal(s.T(), http.StatusNotFound, statusCode)
}

// TestCreateValidation_E2E checks that invalid add-product forms persist nothing.
func (s *AdminE2ESuite) TestCreateValidation_E2E() {
	testCases := []struct {
		name          string
		title         string
		price         string
		withImage     bool
		expectedField string
	}{
		{
			name:          "Create Product - Empty Title",
			title:         "",
			price:         "999",
			withImage:     true,
			expectedField: "Title",
		},
		{
			name:          "Create Product - Negative Price",
			title:         "Lamp",
			price:         "-1",
			withImage:     true,
			expectedField: "Price",
		},
		{
			name:          "Create Product - Missing Image",
			title:         "Lamp",
			price:         "999",
			withImage:     false,
			expectedField: "image",
		},
	}

	for _, tc := range testCases {
		s.T().Run(tc.name, func(t *testing.T) {
			s.SetupTest()
			owner := uuid.New()
			session := s.newSession()

			// when
			bodyBytes, statusCode, _ := s.createProduct(session, owner, tc.title, tc.price, "desk lamp", tc.withImage)

			// then: rejected with the offending field named, nothing persisted
			require.Equal(t, http.StatusUnprocessableEntity, statusCode)
			var page formPage
			require.NoError(t, json.Unmarshal(bodyBytes, &page))
			require.Contains(t, page.ValidationErrors, tc.expectedField)
			require.Equal(t, tc.title, page.Product.Title)

			require.Empty(t, s.listProducts(session, owner).Products)
			require.Empty(t, s.mediaFiles(), "A rejected create must leave no image file behind")
		})
	}
}

// TestFlashConsumedOnce_E2E checks a flash message is delivered exactly once.
func (s *AdminE2ESuite) TestFlashConsumedOnce_E2E() {
	s.SetupTest()
	owner := uuid.New()
	session := s.newSession()

	_, statusCode, _ := s.createProduct(session, owner, "Lamp", "999", "desk lamp", true)
	require.Equal(s.T(), http.StatusSeeOther, statusCode)

	page := s.listProducts(session, owner)
	productID := page.Products[0].ID

	_, statusCode, _ = s.deleteProduct(session, owner, productID)
	require.Equal(s.T(), http.StatusSeeOther, statusCode)

	// first listing carries the message
	s.requireFlash(s.listProducts(session, owner), "success", "Product successfully deleted.")

	// second listing does not
	page = s.listProducts(session, owner)
	require.Nil(s.T(), page.Message, "A flash message must be consumed exactly once")
	require.Nil(s.T(), page.MessageType)
}
