package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	perrors "github.com/nordvik/storefront/internal/product/errors"
)

// PgStore implements ProductStore using PostgreSQL as the data store.
type PgStore struct {
	db *pgxpool.Pool
}

// NewPgStore creates a new instance of ProductStore using a PostgreSQL connection pool.
func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{
		db: dbp,
	}
}

const productColumns = "id, title, price, description, image_url, user_id, created_at"

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Title, &p.Price, &p.Description, &p.ImageURL, &p.UserID, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindByID retrieves a product by its unique identifier.
// Returns ErrProductNotFound if no product exists with the given ID.
func (p *PgStore) FindByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	query := fmt.Sprintf("SELECT %s FROM products WHERE id = $1", productColumns)
	product, err := scanProduct(p.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, perrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}
	return product, nil
}

// FindByUserID retrieves all products owned by the given user, oldest first.
// It returns a slice of products, which may be empty if the user owns none.
func (p *PgStore) FindByUserID(ctx context.Context, userID uuid.UUID) ([]Product, error) {
	query := fmt.Sprintf("SELECT %s FROM products WHERE user_id = $1 ORDER BY created_at, id", productColumns)
	rows, err := p.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find products by user ID: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		products = append(products, *product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read product rows: %w", err)
	}
	return products, nil
}

// Create adds a new product to the system.
// Returns an error if the product cannot be created.
func (p *PgStore) Create(ctx context.Context, params CreateParams) (*Product, error) {
	query := fmt.Sprintf(`INSERT INTO products (title, price, description, image_url, user_id)
		VALUES ($1, $2, $3, $4, $5) RETURNING %s`, productColumns)
	product, err := scanProduct(p.db.QueryRow(ctx, query,
		params.Title, params.Price, params.Description, params.ImageURL, params.UserID))
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return product, nil
}

// UpdateOwned overwrites the mutable fields of the product matching both ID
// and owning user. The ownership check is part of the UPDATE predicate.
// Returns ErrProductNotFound if no row matches the (id, user_id) pair.
func (p *PgStore) UpdateOwned(ctx context.Context, params UpdateParams) (*Product, error) {
	query := fmt.Sprintf(`UPDATE products
		SET title = $3, price = $4, description = $5, image_url = $6
		WHERE id = $1 AND user_id = $2 RETURNING %s`, productColumns)
	product, err := scanProduct(p.db.QueryRow(ctx, query,
		params.ID, params.UserID, params.Title, params.Price, params.Description, params.ImageURL))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, perrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return product, nil
}

// DeleteOwned removes the product matching both ID and owning user in a single
// DELETE statement and reports the number of rows affected.
func (p *PgStore) DeleteOwned(ctx context.Context, id uuid.UUID, userID uuid.UUID) (int64, error) {
	tag, err := p.db.Exec(ctx, "DELETE FROM products WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete product: %w", err)
	}
	return tag.RowsAffected(), nil
}
