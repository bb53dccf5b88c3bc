package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	perrors "github.com/nordvik/storefront/internal/product/errors"
)

// inMemory implements ProductStore using an in-memory map.
// The mutex gives mutations the same single-statement atomicity the
// SQL predicates provide, so the ownership-constrained operations keep
// their race-freedom guarantees.
type inMemory struct {
	mu       sync.RWMutex
	products map[uuid.UUID]Product
	order    []uuid.UUID
}

// NewInMemoryStore creates a new instance of ProductStore backed by memory.
func NewInMemoryStore() ProductStore {
	return &inMemory{
		products: make(map[uuid.UUID]Product),
	}
}

// FindByID retrieves a product by its ID.
func (s *inMemory) FindByID(_ context.Context, id uuid.UUID) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, perrors.ErrProductNotFound
	}
	return &p, nil
}

// FindByUserID retrieves all products owned by the given user in insertion order.
func (s *inMemory) FindByUserID(_ context.Context, userID uuid.UUID) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]Product, 0)
	for _, id := range s.order {
		if p, ok := s.products[id]; ok && p.UserID == userID {
			list = append(list, p)
		}
	}
	return list, nil
}

// Create creates a new product and returns it.
func (s *inMemory) Create(_ context.Context, params CreateParams) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product := Product{
		ID:          uuid.New(),
		Title:       params.Title,
		Price:       params.Price,
		Description: params.Description,
		ImageURL:    params.ImageURL,
		UserID:      params.UserID,
		CreatedAt:   time.Now().UTC(),
	}
	s.products[product.ID] = product
	s.order = append(s.order, product.ID)

	return &product, nil
}

// UpdateOwned overwrites the mutable fields of the product matching both ID and owner.
func (s *inMemory) UpdateOwned(_ context.Context, params UpdateParams) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[params.ID]
	if !ok || p.UserID != params.UserID {
		return nil, perrors.ErrProductNotFound
	}
	p.Title = params.Title
	p.Price = params.Price
	p.Description = params.Description
	p.ImageURL = params.ImageURL
	s.products[p.ID] = p

	return &p, nil
}

// DeleteOwned removes the product matching both ID and owner, reporting how many were removed.
func (s *inMemory) DeleteOwned(_ context.Context, id uuid.UUID, userID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok || p.UserID != userID {
		return 0, nil
	}
	delete(s.products, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return 1, nil
}
