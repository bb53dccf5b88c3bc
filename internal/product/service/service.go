// Package service provides the implementation of product-related business logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	perrors "github.com/nordvik/storefront/internal/product/errors"
	"github.com/nordvik/storefront/internal/product/store"
)

// Notice is a transient, user-facing outcome message. It is never persisted;
// the transport layer queues it as a flash message for exactly one read.
type Notice struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// Notice kinds, matching the classification rendered by the admin views.
const (
	KindSuccess = "success"
	KindAlert   = "alert"
	KindError   = "error"
)

// User-facing message texts.
const (
	msgEditForbidden   = "You cannot edit this product information."
	msgUpdateSuccess   = "Product update successful."
	msgDeleteForbidden = "You cannot delete this product."
	msgDeleteSuccess   = "Product successfully deleted."
)

// EditState enumerates the three-way outcome of GetForEdit.
type EditState int

const (
	EditFound EditState = iota
	EditForbidden
	EditNotFound
)

// EditOutcome is the result of fetching a product for editing.
// Forbidden is deliberately not an error: the product exists but belongs to
// someone else, and the caller redirects with the attached alert Notice.
type EditOutcome struct {
	State   EditState
	Product *ProductDto
	Message *Notice
}

// UpdateState enumerates the outcome of Update.
type UpdateState int

const (
	Updated UpdateState = iota
	UpdateForbidden
)

// UpdateOutcome is the result of an update attempt. On UpdateForbidden the
// product is left unchanged and no error is raised. On Updated,
// ReplacedImageURL holds the previous image reference so the caller can
// release the superseded file.
type UpdateOutcome struct {
	State            UpdateState
	Product          *ProductDto
	Message          *Notice
	ReplacedImageURL string
}

// DeleteState enumerates the outcome of Delete.
type DeleteState int

const (
	Deleted DeleteState = iota
	DeleteForbidden
)

// DeleteOutcome is the result of a delete attempt. On Deleted, ImageURL holds
// the removed product's image reference so the caller can release the stored file.
type DeleteOutcome struct {
	State    DeleteState
	Message  *Notice
	ImageURL string
}

// ProductService defines the methods for managing products.
// It abstracts the underlying business logic and data access.
type ProductService interface {
	// Create adds a new product owned by the given user.
	// Returns a ValidationError (wrapping ErrValidation) if the title is
	// empty, the price is negative, or the image reference is missing;
	// nothing is persisted in that case.
	Create(ctx context.Context, userID uuid.UUID, product ProductCreateDto) (*ProductDto, error)

	// FindByUserID returns all products owned by the given user.
	// Returns an empty slice if the user owns no products.
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]ProductDto, error)

	// GetForEdit fetches a product for editing on behalf of the requester.
	// The outcome is three-way: EditFound with the product, EditForbidden
	// with an alert Notice when the requester is not the owner, or
	// EditNotFound when no such product exists.
	GetForEdit(ctx context.Context, id uuid.UUID, requesterID uuid.UUID) (EditOutcome, error)

	// Update overwrites a product's details on behalf of the requester.
	// Returns a ValidationError for a missing image reference,
	// ErrProductNotFound if the product does not exist, or an
	// UpdateForbidden outcome (not an error) on ownership mismatch.
	Update(ctx context.Context, requesterID uuid.UUID, product ProductUpdateDto) (UpdateOutcome, error)

	// Delete removes a product on behalf of the requester.
	// Returns ErrProductNotFound if the product does not exist. Ownership is
	// enforced inside the delete predicate itself; a zero-row delete yields
	// a DeleteForbidden outcome, never a false success.
	Delete(ctx context.Context, id uuid.UUID, requesterID uuid.UUID) (DeleteOutcome, error)
}

// Service implements ProductService and provides methods to manage products.
type Service struct {
	repository store.ProductStore
	validate   *validator.Validate
}

// NewService creates a new instance of ProductService with the provided repository.
func NewService(repo store.ProductStore) *Service {
	return &Service{
		repository: repo,
		validate:   validator.New(),
	}
}

// ProductCreateDto represents the data transfer object for creating a new product.
type ProductCreateDto struct {
	Title       string `json:"title"       validate:"required,max=200"`
	Price       int64  `json:"price"       validate:"min=0"`
	Description string `json:"description" validate:"max=2000"`
	ImageURL    string `json:"image_url"   validate:"required"`
}

// ProductUpdateDto represents the data transfer object for updating a product.
// The image reference is required on update as well: an edit without a fresh
// image reference is rejected identically to create.
type ProductUpdateDto struct {
	ID          uuid.UUID `json:"id"          validate:"required"`
	Title       string    `json:"title"       validate:"required,max=200"`
	Price       int64     `json:"price"       validate:"min=0"`
	Description string    `json:"description" validate:"max=2000"`
	ImageURL    string    `json:"image_url"   validate:"required"`
}

// ProductDto represents the data transfer object for a product.
type ProductDto struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Price       int64  `json:"price"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	UserID      string `json:"user_id"`
	CreatedAt   string `json:"created_at"`
}

// Create validates and persists a new product owned by userID.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, product ProductCreateDto) (*ProductDto, error) {
	if err := s.checkStruct(product); err != nil {
		return nil, err
	}

	p, err := s.repository.Create(ctx, store.CreateParams{
		Title:       product.Title,
		Price:       product.Price,
		Description: product.Description,
		ImageURL:    product.ImageURL,
		UserID:      userID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	return toDto(p), nil
}

// FindByUserID retrieves the products owned by userID as ProductDtos.
func (s *Service) FindByUserID(ctx context.Context, userID uuid.UUID) ([]ProductDto, error) {
	products, err := s.repository.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products for user %s: %w", userID, err)
	}
	productDTOs := make([]ProductDto, len(products))

	for i, item := range products {
		productDTOs[i] = *toDto(&item)
	}

	return productDTOs, nil
}

// GetForEdit fetches a product for editing, distinguishing absent from foreign-owned.
func (s *Service) GetForEdit(ctx context.Context, id uuid.UUID, requesterID uuid.UUID) (EditOutcome, error) {
	product, err := s.repository.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, perrors.ErrProductNotFound) {
			return EditOutcome{State: EditNotFound}, nil
		}
		return EditOutcome{}, fmt.Errorf("failed to fetch product %s for edit: %w", id, err)
	}
	if product.UserID != requesterID {
		return EditOutcome{
			State:   EditForbidden,
			Message: &Notice{Kind: KindAlert, Text: msgEditForbidden},
		}, nil
	}
	return EditOutcome{State: EditFound, Product: toDto(product)}, nil
}

// Update overwrites title, price, description and image reference of the
// requester's product. Ownership mismatch is a soft decline, not an error.
func (s *Service) Update(ctx context.Context, requesterID uuid.UUID, product ProductUpdateDto) (UpdateOutcome, error) {
	if err := s.checkStruct(product); err != nil {
		return UpdateOutcome{}, err
	}

	current, err := s.repository.FindByID(ctx, product.ID)
	if err != nil {
		if errors.Is(err, perrors.ErrProductNotFound) {
			return UpdateOutcome{}, perrors.ErrProductNotFound
		}
		return UpdateOutcome{}, fmt.Errorf("failed to fetch product %s for update: %w", product.ID, err)
	}
	if current.UserID != requesterID {
		return UpdateOutcome{
			State:   UpdateForbidden,
			Message: &Notice{Kind: KindAlert, Text: msgEditForbidden},
		}, nil
	}

	// The predicate matches owner as well, so a concurrent delete cannot
	// turn this into a write against someone else's product.
	updated, err := s.repository.UpdateOwned(ctx, store.UpdateParams{
		ID:          product.ID,
		UserID:      requesterID,
		Title:       product.Title,
		Price:       product.Price,
		Description: product.Description,
		ImageURL:    product.ImageURL,
	})
	if err != nil {
		if errors.Is(err, perrors.ErrProductNotFound) {
			return UpdateOutcome{}, perrors.ErrProductNotFound
		}
		return UpdateOutcome{}, fmt.Errorf("failed to update product %s: %w", product.ID, err)
	}

	return UpdateOutcome{
		State:            Updated,
		Product:          toDto(updated),
		Message:          &Notice{Kind: KindSuccess, Text: msgUpdateSuccess},
		ReplacedImageURL: current.ImageURL,
	}, nil
}

// Delete removes the requester's product via an owner-constrained delete.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, requesterID uuid.UUID) (DeleteOutcome, error) {
	product, err := s.repository.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, perrors.ErrProductNotFound) {
			return DeleteOutcome{}, perrors.ErrProductNotFound
		}
		return DeleteOutcome{}, fmt.Errorf("failed to fetch product %s for delete: %w", id, err)
	}

	count, err := s.repository.DeleteOwned(ctx, id, requesterID)
	if err != nil {
		return DeleteOutcome{}, fmt.Errorf("failed to delete product %s: %w", id, err)
	}
	if count == 0 {
		return DeleteOutcome{
			State:   DeleteForbidden,
			Message: &Notice{Kind: KindAlert, Text: msgDeleteForbidden},
		}, nil
	}

	return DeleteOutcome{
		State:    Deleted,
		Message:  &Notice{Kind: KindSuccess, Text: msgDeleteSuccess},
		ImageURL: product.ImageURL,
	}, nil
}

// checkStruct runs struct-tag validation and converts failures into a ValidationError.
func (s *Service) checkStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		fields := make(map[string]string, len(validationErrors))
		for _, fieldErr := range validationErrors {
			fields[fieldErr.Field()] = "failed on rule: " + fieldErr.Tag()
		}
		return &perrors.ValidationError{Fields: fields}
	}
	return fmt.Errorf("failed to validate product data: %w", err)
}

// toDto converts a store.Product to a ProductDto.
func toDto(product *store.Product) *ProductDto {
	return &ProductDto{
		ID:          product.ID.String(),
		Title:       product.Title,
		Price:       product.Price,
		Description: product.Description,
		ImageURL:    product.ImageURL,
		UserID:      product.UserID.String(),
		CreatedAt:   product.CreatedAt.Format(time.RFC3339),
	}
}
