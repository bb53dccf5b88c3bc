// Package rest provides the HTTP handlers for the storefront admin area.
package rest

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nordvik/storefront/internal/flash"
	"github.com/nordvik/storefront/internal/media"
	perrors "github.com/nordvik/storefront/internal/product/errors"
	"github.com/nordvik/storefront/internal/product/service"
	"github.com/nordvik/storefront/pkg/web"
)

const adminProductsPath = "/admin/products"

// maxUploadBytes caps the multipart form size for product image uploads.
const maxUploadBytes = 10 << 20

type Handler struct {
	service service.ProductService
	flashes *flash.Store
	images  *media.Store
	logger  *slog.Logger
}

// NewHandler creates a new admin handler with the provided collaborators.
func NewHandler(service service.ProductService, flashes *flash.Store, images *media.Store, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		flashes: flashes,
		images:  images,
		logger:  logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the HTTP routes for the admin area.
func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.Route(adminProductsPath, func(r chi.Router) {
		r.Use(web.AuthMiddleware)
		r.Get("/", h.List)
		r.Post("/", h.Create)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/edit", h.GetForEdit)
			r.Post("/", h.Update)
			r.Post("/delete", h.Delete)
		})
	})

	r.Get("/healthz", h.HealthCheck)
	r.NotFound(h.NotFoundPage)
}

// List returns the requester's products together with the pending flash
// message, consumed exactly once.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	userID, ok := web.GetUserID(w, r, mLogger)
	if !ok {
		return
	}

	list, err := h.service.FindByUserID(r.Context(), userID)
	if err != nil {
		mLogger.ErrorContext(r.Context(), "Error retrieving product list", "user_id", userID, "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, "Failed to fetch products")
		return
	}

	payload := map[string]any{
		"products":     list,
		"message":      nil,
		"message_type": nil,
	}
	message, err := h.flashes.Pop(w, r)
	if err != nil {
		mLogger.WarnContext(r.Context(), "Failed to consume flash message", "error", err)
	} else if message != nil {
		payload["message"] = message.Text
		payload["message_type"] = message.Kind
	}

	mLogger.DebugContext(r.Context(), "Successfully retrieved product list", "user_id", userID, "count", len(list))
	web.RespondJSON(w, mLogger, http.StatusOK, payload)
}

// Create handles the multipart add-product form: the image is stored first,
// then the product row referencing it. A validation failure rolls the stored
// image back so no orphan file survives a discarded request.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	userID, ok := web.GetUserID(w, r, mLogger)
	if !ok {
		return
	}

	form, ok := h.parseProductForm(w, r, mLogger)
	if !ok {
		return
	}

	imageRef, ok := h.storeUploadedImage(w, r, mLogger, form)
	if !ok {
		return
	}

	created, err := h.service.Create(r.Context(), userID, service.ProductCreateDto{
		Title:       form.title,
		Price:       form.price,
		Description: form.description,
		ImageURL:    imageRef,
	})
	if err != nil {
		h.discardImage(r, mLogger, imageRef)
		var validationErr *perrors.ValidationError
		if errors.As(err, &validationErr) {
			mLogger.WarnContext(r.Context(), "Validation errors occurred", "errors", validationErr.Fields)
			h.respondUnprocessable(w, mLogger, form, validationErr.Fields)
			return
		}
		mLogger.ErrorContext(r.Context(), "Error creating product", "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, "Failed to create product")
		return
	}

	mLogger.InfoContext(r.Context(), "Product created successfully", "ID", created.ID, "Title", created.Title)
	http.Redirect(w, r, adminProductsPath, http.StatusSeeOther)
}

// GetForEdit fetches a product for the edit form. An ownership mismatch is a
// soft decline: the alert is queued and the client is redirected to the list.
func (h *Handler) GetForEdit(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	userID, ok := web.GetUserID(w, r, mLogger)
	if !ok {
		return
	}
	// The edit form is only reachable in edit mode.
	if r.URL.Query().Get("edit") == "" {
		http.Redirect(w, r, adminProductsPath, http.StatusSeeOther)
		return
	}

	outcome, err := h.service.GetForEdit(r.Context(), id, userID)
	if err != nil {
		mLogger.ErrorContext(r.Context(), "Error retrieving product for edit", "ID", id, "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve product with ID %s", id))
		return
	}

	switch outcome.State {
	case service.EditFound:
		mLogger.DebugContext(r.Context(), "Successfully retrieved product for edit", "ID", id)
		web.RespondJSON(w, mLogger, http.StatusOK, outcome.Product)
	case service.EditForbidden:
		h.addFlash(w, r, mLogger, outcome.Message)
		http.Redirect(w, r, adminProductsPath, http.StatusSeeOther)
	case service.EditNotFound:
		mLogger.WarnContext(r.Context(), "Product not found for edit", "ID", id)
		http.Redirect(w, r, adminProductsPath, http.StatusSeeOther)
	}
}

// Update handles the multipart edit-product form. Ownership mismatch leaves
// the product unchanged and redirects with an alert; the freshly stored image
// is discarded whenever the update does not go through.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	userID, ok := web.GetUserID(w, r, mLogger)
	if !ok {
		return
	}

	form, ok := h.parseProductForm(w, r, mLogger)
	if !ok {
		return
	}

	imageRef, ok := h.storeUploadedImage(w, r, mLogger, form)
	if !ok {
		return
	}

	outcome, err := h.service.Update(r.Context(), userID, service.ProductUpdateDto{
		ID:          id,
		Title:       form.title,
		Price:       form.price,
		Description: form.description,
		ImageURL:    imageRef,
	})
	if err != nil {
		h.discardImage(r, mLogger, imageRef)
		var validationErr *perrors.ValidationError
		if errors.As(err, &validationErr) {
			mLogger.WarnContext(r.Context(), "Validation errors occurred", "errors", validationErr.Fields)
			h.respondUnprocessable(w, mLogger, form, validationErr.Fields)
			return
		}
		if errors.Is(err, perrors.ErrProductNotFound) {
			mLogger.WarnContext(r.Context(), "Product not found for update", "ID", id)
			web.RespondError(w, mLogger, http.StatusNotFound, fmt.Sprintf("Product with ID %s not found", id))
			return
		}
		mLogger.ErrorContext(r.Context(), "Error updating product", "ID", id, "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, fmt.Sprintf("Failed to update product with ID %s", id))
		return
	}

	switch outcome.State {
	case service.Updated:
		// The new image reference is in place; the superseded file is released.
		if outcome.ReplacedImageURL != imageRef {
			h.discardImage(r, mLogger, outcome.ReplacedImageURL)
		}
		mLogger.InfoContext(r.Context(), "Product updated successfully", "ID", id)
		h.addFlash(w, r, mLogger, outcome.Message)
	case service.UpdateForbidden:
		h.discardImage(r, mLogger, imageRef)
		h.addFlash(w, r, mLogger, outcome.Message)
	}
	http.Redirect(w, r, adminProductsPath, http.StatusSeeOther)
}

// Delete removes a product. On success the stored image is released as well.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	userID, ok := web.GetUserID(w, r, mLogger)
	if !ok {
		return
	}

	outcome, err := h.service.Delete(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, perrors.ErrProductNotFound) {
			mLogger.WarnContext(r.Context(), "Product not found for deletion", "ID", id)
			web.RespondError(w, mLogger, http.StatusNotFound, fmt.Sprintf("Product with ID %s not found", id))
			return
		}
		mLogger.ErrorContext(r.Context(), "Error deleting product", "ID", id, "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, fmt.Sprintf("Failed to delete product with ID %s", id))
		return
	}

	switch outcome.State {
	case service.Deleted:
		if err := h.images.Remove(outcome.ImageURL); err != nil {
			// The product row is gone; an undeletable file is an operational
			// concern, not a request failure.
			mLogger.WarnContext(r.Context(), "Failed to release product image", "image", outcome.ImageURL, "error", err)
		}
		mLogger.InfoContext(r.Context(), "Product deleted successfully", "ID", id)
		h.addFlash(w, r, mLogger, outcome.Message)
	case service.DeleteForbidden:
		h.addFlash(w, r, mLogger, outcome.Message)
	}
	http.Redirect(w, r, adminProductsPath, http.StatusSeeOther)
}

// NotFoundPage is the JSON counterpart of the storefront's 404 page.
func (h *Handler) NotFoundPage(w http.ResponseWriter, r *http.Request) {
	web.RespondError(w, h.loggerWithReqID(r), http.StatusNotFound, "Page Not Found")
}

// HealthCheck is a simple health check endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// productForm carries the scalar fields of the add/edit product form.
type productForm struct {
	title       string
	price       int64
	description string
}

// parseProductForm reads the multipart form fields shared by create and update.
func (h *Handler) parseProductForm(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (productForm, bool) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		logger.WarnContext(r.Context(), "Failed to parse multipart form", "error", err)
		web.RespondError(w, logger, http.StatusBadRequest, "Invalid form data")
		return productForm{}, false
	}

	form := productForm{
		title:       r.FormValue("title"),
		description: r.FormValue("description"),
	}

	priceValue := r.FormValue("price")
	price, err := strconv.ParseInt(priceValue, 10, 64)
	if err != nil {
		logger.WarnContext(r.Context(), "Invalid price in form", "price", priceValue)
		h.respondUnprocessable(w, logger, form, map[string]string{"price": "must be a whole number of cents"})
		return productForm{}, false
	}
	form.price = price
	return form, true
}

// storeUploadedImage extracts the image part of the form and writes it to the
// media store. A missing image is rejected before anything is persisted,
// identically for create and update.
func (h *Handler) storeUploadedImage(w http.ResponseWriter, r *http.Request, logger *slog.Logger, form productForm) (string, bool) {
	file, header, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			logger.WarnContext(r.Context(), "Product image missing from form")
			h.respondUnprocessable(w, logger, form, map[string]string{"image": "Product image is not set"})
			return "", false
		}
		logger.WarnContext(r.Context(), "Failed to read image from form", "error", err)
		web.RespondError(w, logger, http.StatusBadRequest, "Invalid form data")
		return "", false
	}
	defer file.Close()

	imageRef, err := h.images.Save(header.Filename, file)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to store uploaded image", "filename", header.Filename, "error", err)
		web.RespondError(w, logger, http.StatusInternalServerError, "Failed to store uploaded image")
		return "", false
	}
	return imageRef, true
}

// respondUnprocessable mirrors the original form re-render: the submitted
// values are echoed back together with the field-level messages.
func (h *Handler) respondUnprocessable(w http.ResponseWriter, logger *slog.Logger, form productForm, fields map[string]string) {
	web.RespondJSON(w, logger, http.StatusUnprocessableEntity, map[string]any{
		"validation_errors": fields,
		"product": map[string]any{
			"title":       form.title,
			"price":       form.price,
			"description": form.description,
		},
	})
}

// discardImage removes an image stored for a request that did not go through.
func (h *Handler) discardImage(r *http.Request, logger *slog.Logger, imageRef string) {
	if imageRef == "" {
		return
	}
	if err := h.images.Remove(imageRef); err != nil {
		logger.WarnContext(r.Context(), "Failed to discard stored image", "image", imageRef, "error", err)
	}
}

// addFlash queues an outcome notice; a failed save is logged, not fatal.
func (h *Handler) addFlash(w http.ResponseWriter, r *http.Request, logger *slog.Logger, notice *service.Notice) {
	if notice == nil {
		return
	}
	if err := h.flashes.Add(w, r, notice.Kind, notice.Text); err != nil {
		logger.WarnContext(r.Context(), "Failed to queue flash message", "error", err)
	}
}

// loggerWithReqID creates a logger with the request ID from the context.
func (h *Handler) loggerWithReqID(r *http.Request) *slog.Logger {
	reqID := middleware.GetReqID(r.Context())
	return h.logger.With("request_id", reqID)
}
