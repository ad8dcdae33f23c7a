package file

import (
	"context"
	"sort"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

type productRepository struct {
	products *collection[domain.Product]
}

// NewProductRepository creates a ProductRepository stored as a JSON array at path
func NewProductRepository(fs afero.Fs, path string) repository.ProductRepository {
	return &productRepository{products: newCollection[domain.Product](fs, path)}
}

func (r *productRepository) matching(filter domain.ProductFilter) ([]domain.Product, error) {
	r.products.mu.Lock()
	defer r.products.mu.Unlock()

	all, err := r.products.read()
	if err != nil {
		return nil, err
	}

	matched := make([]domain.Product, 0, len(all))
	for i := range all {
		if filter.Matches(&all[i]) {
			matched = append(matched, all[i])
		}
	}
	return matched, nil
}

func (r *productRepository) Count(ctx context.Context, filter domain.ProductFilter) (int, error) {
	matched, err := r.matching(filter)
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

func (r *productRepository) Find(ctx context.Context, filter domain.ProductFilter, dir domain.SortDirection, skip, limit int) ([]*domain.Product, error) {
	matched, err := r.matching(filter)
	if err != nil {
		return nil, err
	}

	// File order is insertion order; the stable sort keeps it among equal prices.
	switch dir {
	case domain.SortAsc:
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].Price < matched[j].Price })
	case domain.SortDesc:
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].Price > matched[j].Price })
	}

	products := []*domain.Product{}
	if skip >= len(matched) {
		return products, nil
	}
	end := len(matched)
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	for i := skip; i < end; i++ {
		products = append(products, &matched[i])
	}
	return products, nil
}

func (r *productRepository) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	r.products.mu.Lock()
	defer r.products.mu.Unlock()

	all, err := r.products.read()
	if err != nil {
		return nil, err
	}

	for i := range all {
		if domain.SameID(all[i].ID, id) {
			return &all[i], nil
		}
	}
	return nil, repository.ErrProductNotFound
}

func (r *productRepository) FindByIDs(ctx context.Context, ids []string) ([]*domain.Product, error) {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[domain.CanonicalID(id)] = struct{}{}
	}

	r.products.mu.Lock()
	defer r.products.mu.Unlock()

	all, err := r.products.read()
	if err != nil {
		return nil, err
	}

	products := []*domain.Product{}
	for i := range all {
		if _, ok := wanted[domain.CanonicalID(all[i].ID)]; ok {
			products = append(products, &all[i])
		}
	}
	return products, nil
}

func (r *productRepository) Create(ctx context.Context, fields domain.ProductFields) (*domain.Product, error) {
	r.products.mu.Lock()
	defer r.products.mu.Unlock()

	all, err := r.products.read()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	product := domain.Product{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	fields.Apply(&product)

	if err := r.products.write(append(all, product)); err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) UpdateByID(ctx context.Context, id string, fields domain.ProductFields) (*domain.Product, error) {
	r.products.mu.Lock()
	defer r.products.mu.Unlock()

	all, err := r.products.read()
	if err != nil {
		return nil, err
	}

	for i := range all {
		if !domain.SameID(all[i].ID, id) {
			continue
		}
		fields.Apply(&all[i])
		all[i].UpdatedAt = time.Now().UTC()
		if err := r.products.write(all); err != nil {
			return nil, err
		}
		updated := all[i]
		return &updated, nil
	}
	return nil, repository.ErrProductNotFound
}

func (r *productRepository) DeleteByID(ctx context.Context, id string) error {
	r.products.mu.Lock()
	defer r.products.mu.Unlock()

	all, err := r.products.read()
	if err != nil {
		return err
	}

	kept := make([]domain.Product, 0, len(all))
	for _, p := range all {
		if !domain.SameID(p.ID, id) {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(all) {
		return repository.ErrProductNotFound
	}
	return r.products.write(kept)
}
