package file

import (
	"context"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

type cartRecord struct {
	ID        string                `json:"id"`
	Products  []domain.CartLineItem `json:"products"`
	Version   int                   `json:"version"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

func (c cartRecord) toDomain() *domain.Cart {
	return &domain.Cart{
		ID:        c.ID,
		Lines:     domain.CloneLines(c.Products),
		Version:   c.Version,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

type cartRepository struct {
	carts *collection[cartRecord]
}

// NewCartRepository creates a CartRepository stored as a JSON array at path
func NewCartRepository(fs afero.Fs, path string) repository.CartRepository {
	return &cartRepository{carts: newCollection[cartRecord](fs, path)}
}

func (r *cartRepository) Create(ctx context.Context, lines []domain.CartLineItem) (*domain.Cart, error) {
	r.carts.mu.Lock()
	defer r.carts.mu.Unlock()

	all, err := r.carts.read()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record := cartRecord{
		ID:        uuid.New().String(),
		Products:  domain.CloneLines(lines),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := r.carts.write(append(all, record)); err != nil {
		return nil, err
	}
	return record.toDomain(), nil
}

func (r *cartRepository) FindByID(ctx context.Context, id string) (*domain.Cart, error) {
	r.carts.mu.Lock()
	defer r.carts.mu.Unlock()

	all, err := r.carts.read()
	if err != nil {
		return nil, err
	}

	for _, c := range all {
		if domain.SameID(c.ID, id) {
			return c.toDomain(), nil
		}
	}
	return nil, repository.ErrCartNotFound
}

func (r *cartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	return r.save(cart, -1)
}

func (r *cartRepository) SaveVersioned(ctx context.Context, cart *domain.Cart, expectedVersion int) error {
	return r.save(cart, expectedVersion)
}

// save rewrites the cart. A negative expectedVersion skips the version check.
func (r *cartRepository) save(cart *domain.Cart, expectedVersion int) error {
	r.carts.mu.Lock()
	defer r.carts.mu.Unlock()

	all, err := r.carts.read()
	if err != nil {
		return err
	}

	for i := range all {
		if !domain.SameID(all[i].ID, cart.ID) {
			continue
		}
		if expectedVersion >= 0 && all[i].Version != expectedVersion {
			return repository.ErrCartVersionConflict
		}

		now := time.Now().UTC()
		all[i].Products = domain.CloneLines(cart.Lines)
		all[i].Version++
		all[i].UpdatedAt = now
		if err := r.carts.write(all); err != nil {
			return err
		}

		cart.Version = all[i].Version
		cart.UpdatedAt = now
		return nil
	}
	return repository.ErrCartNotFound
}
