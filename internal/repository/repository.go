package repository

import (
	"context"
	"errors"

	"storefront/internal/domain"
)

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrCartNotFound        = errors.New("cart not found")
	ErrCartVersionConflict = errors.New("cart was modified concurrently")
)

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Count(ctx context.Context, filter domain.ProductFilter) (int, error)
	Find(ctx context.Context, filter domain.ProductFilter, sort domain.SortDirection, skip, limit int) ([]*domain.Product, error)
	FindByID(ctx context.Context, id string) (*domain.Product, error)
	// FindByIDs returns the stored products among ids. Unknown and malformed
	// ids are skipped, never reported as errors.
	FindByIDs(ctx context.Context, ids []string) ([]*domain.Product, error)
	Create(ctx context.Context, fields domain.ProductFields) (*domain.Product, error)
	UpdateByID(ctx context.Context, id string, fields domain.ProductFields) (*domain.Product, error)
	DeleteByID(ctx context.Context, id string) error
}

// CartRepository defines the interface for cart data access.
//
// Save replaces the stored line sequence wholesale and bumps the version;
// concurrent saves are last-writer-wins. SaveVersioned only writes when the
// stored version still equals expectedVersion and returns
// ErrCartVersionConflict otherwise.
type CartRepository interface {
	Create(ctx context.Context, lines []domain.CartLineItem) (*domain.Cart, error)
	FindByID(ctx context.Context, id string) (*domain.Cart, error)
	Save(ctx context.Context, cart *domain.Cart) error
	SaveVersioned(ctx context.Context, cart *domain.Cart, expectedVersion int) error
}

// Store bundles the two collaborators behind one storage backend.
type Store struct {
	Products ProductRepository
	Carts    CartRepository
	Health   func(ctx context.Context) map[string]string
	Close    func() error
}
