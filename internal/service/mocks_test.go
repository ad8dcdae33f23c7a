package service

import (
	"context"
	"fmt"
	"sort"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

// Mock repositories for testing
type mockProductRepository struct {
	products []*domain.Product
	err      error
	seq      int
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{}
}

func (m *mockProductRepository) add(fields domain.ProductFields) *domain.Product {
	m.seq++
	p := &domain.Product{ID: fmt.Sprintf("p%03d", m.seq)}
	fields.Apply(p)
	m.products = append(m.products, p)
	return p
}

func (m *mockProductRepository) matching(filter domain.ProductFilter) []*domain.Product {
	out := []*domain.Product{}
	for _, p := range m.products {
		if filter.Matches(p) {
			out = append(out, p)
		}
	}
	return out
}

func (m *mockProductRepository) Count(ctx context.Context, filter domain.ProductFilter) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	return len(m.matching(filter)), nil
}

func (m *mockProductRepository) Find(ctx context.Context, filter domain.ProductFilter, dir domain.SortDirection, skip, limit int) ([]*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	matched := m.matching(filter)
	switch dir {
	case domain.SortAsc:
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].Price < matched[j].Price })
	case domain.SortDesc:
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].Price > matched[j].Price })
	}
	if skip >= len(matched) {
		return []*domain.Product{}, nil
	}
	end := skip + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[skip:end], nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, p := range m.products {
		if domain.SameID(p.ID, id) {
			return p, nil
		}
	}
	return nil, repository.ErrProductNotFound
}

func (m *mockProductRepository) FindByIDs(ctx context.Context, ids []string) ([]*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := []*domain.Product{}
	for _, p := range m.products {
		for _, id := range ids {
			if domain.SameID(p.ID, id) {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}

func (m *mockProductRepository) Create(ctx context.Context, fields domain.ProductFields) (*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.add(fields), nil
}

func (m *mockProductRepository) UpdateByID(ctx context.Context, id string, fields domain.ProductFields) (*domain.Product, error) {
	p, err := m.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	fields.Apply(p)
	return p, nil
}

func (m *mockProductRepository) DeleteByID(ctx context.Context, id string) error {
	for i, p := range m.products {
		if domain.SameID(p.ID, id) {
			m.products = append(m.products[:i], m.products[i+1:]...)
			return nil
		}
	}
	return repository.ErrProductNotFound
}

type mockCartRepository struct {
	carts map[string]*domain.Cart
	saves int
	seq   int

	// beforeSave runs inside Save/SaveVersioned, before the version check
	beforeSave func(id string)
}

func newMockCartRepository() *mockCartRepository {
	return &mockCartRepository{carts: make(map[string]*domain.Cart)}
}

func (m *mockCartRepository) Create(ctx context.Context, lines []domain.CartLineItem) (*domain.Cart, error) {
	m.seq++
	cart := &domain.Cart{ID: fmt.Sprintf("C%03d", m.seq), Lines: domain.CloneLines(lines)}
	m.carts[domain.CanonicalID(cart.ID)] = cart
	return m.copyOf(cart), nil
}

func (m *mockCartRepository) copyOf(c *domain.Cart) *domain.Cart {
	out := *c
	out.Lines = domain.CloneLines(c.Lines)
	return &out
}

func (m *mockCartRepository) FindByID(ctx context.Context, id string) (*domain.Cart, error) {
	cart, ok := m.carts[domain.CanonicalID(id)]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	return m.copyOf(cart), nil
}

func (m *mockCartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	return m.save(cart, -1)
}

func (m *mockCartRepository) SaveVersioned(ctx context.Context, cart *domain.Cart, expectedVersion int) error {
	return m.save(cart, expectedVersion)
}

func (m *mockCartRepository) save(cart *domain.Cart, expectedVersion int) error {
	if m.beforeSave != nil {
		m.beforeSave(cart.ID)
	}
	stored, ok := m.carts[domain.CanonicalID(cart.ID)]
	if !ok {
		return repository.ErrCartNotFound
	}
	if expectedVersion >= 0 && stored.Version != expectedVersion {
		return repository.ErrCartVersionConflict
	}
	m.saves++
	stored.Lines = domain.CloneLines(cart.Lines)
	stored.Version++
	cart.Version = stored.Version
	return nil
}
