// Package store provides an interface for product storage operations.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Product represents a product row in the store.
// UserID is the owning user, recorded at creation and immutable afterwards.
type Product struct {
	ID          uuid.UUID
	Title       string
	Price       int64 // Price in cents
	Description string
	ImageURL    string
	UserID      uuid.UUID
	CreatedAt   time.Time
}

// CreateParams holds the fields required to insert a new product.
type CreateParams struct {
	Title       string
	Price       int64
	Description string
	ImageURL    string
	UserID      uuid.UUID
}

// UpdateParams holds the fields for an owner-constrained product update.
type UpdateParams struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Title       string
	Price       int64
	Description string
	ImageURL    string
}

// ProductStore is an interface for product storage operations.
// It abstracts the underlying data store, allowing for different implementations (e.g., in-memory, database).
//
// Ownership is enforced inside the mutation predicates themselves: UpdateOwned
// and DeleteOwned match on (id, user_id) in a single statement, so a
// check-then-act race between verifying ownership and mutating cannot occur.
type ProductStore interface {
	// FindByID retrieves a single product by its unique identifier.
	// Returns ErrProductNotFound if no product exists with the given ID.
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// FindByUserID returns all products owned by the given user,
	// in store-defined stable order (creation time).
	// Returns an empty slice if the user owns no products.
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]Product, error)

	// Create adds a new product to the system.
	// Returns error if the product cannot be created.
	Create(ctx context.Context, params CreateParams) (*Product, error)

	// UpdateOwned overwrites title, price, description and image reference of
	// the product matching both ID and owning user in a single statement.
	// Returns ErrProductNotFound if no row matches the (id, user_id) pair.
	UpdateOwned(ctx context.Context, params UpdateParams) (*Product, error)

	// DeleteOwned removes the product matching both ID and owning user in a
	// single statement and reports the number of rows affected. Zero rows
	// means the product either does not exist or is owned by someone else.
	DeleteOwned(ctx context.Context, id uuid.UUID, userID uuid.UUID) (int64, error)
}
