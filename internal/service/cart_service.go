package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

// CartService defines the cart reconciliation operations
type CartService interface {
	CreateCart(ctx context.Context) (*domain.Cart, error)
	GetCart(ctx context.Context, cartID string) ([]domain.ResolvedLineItem, error)
	AddProduct(ctx context.Context, cartID, productID string, quantity int) ([]domain.CartLineItem, error)
	ReplaceLines(ctx context.Context, cartID string, lines []domain.CartLineItem) ([]domain.CartLineItem, error)
	SetQuantity(ctx context.Context, cartID, productID string, quantity int) ([]domain.CartLineItem, error)
	RemoveProduct(ctx context.Context, cartID, productID string) ([]domain.CartLineItem, error)
	ClearCart(ctx context.Context, cartID string) error
}

// MaxQuantity is the largest quantity a line may hold; it matches the INTEGER
// quantity column.
const MaxQuantity = math.MaxInt32

func validQuantity(q int) bool {
	return q >= 1 && q <= MaxQuantity
}

// CartServiceOptions tunes how carts are persisted
type CartServiceOptions struct {
	// OptimisticLocking rejects a save when the cart changed since it was read.
	// Without it concurrent edits are last-writer-wins.
	OptimisticLocking bool
}

type cartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	opts     CartServiceOptions
}

// NewCartService creates a new instance of CartService
func NewCartService(carts repository.CartRepository, products repository.ProductRepository, opts CartServiceOptions) CartService {
	return &cartService{
		carts:    carts,
		products: products,
		opts:     opts,
	}
}

func (s *cartService) CreateCart(ctx context.Context) (*domain.Cart, error) {
	cart, err := s.carts.Create(ctx, []domain.CartLineItem{})
	if err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	return cart, nil
}

// GetCart returns the lines with each product reference expanded. A
// reference to a deleted product resolves to nil.
func (s *cartService) GetCart(ctx context.Context, cartID string) ([]domain.ResolvedLineItem, error) {
	cart, err := s.load(ctx, cartID)
	if err != nil {
		return nil, err
	}

	resolved := make([]domain.ResolvedLineItem, 0, len(cart.Lines))
	if len(cart.Lines) == 0 {
		return resolved, nil
	}

	products, err := s.products.FindByIDs(ctx, cart.LineProductIDs())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cart products: %w", err)
	}

	byID := make(map[string]*domain.Product, len(products))
	for _, p := range products {
		byID[domain.CanonicalID(p.ID)] = p
	}

	for _, line := range cart.Lines {
		resolved = append(resolved, domain.ResolvedLineItem{
			Product:  byID[domain.CanonicalID(line.ProductID)],
			Quantity: line.Quantity,
		})
	}
	return resolved, nil
}

// AddProduct increments the line for productID, appending it if absent. The
// product id is not checked against the catalog.
func (s *cartService) AddProduct(ctx context.Context, cartID, productID string, quantity int) ([]domain.CartLineItem, error) {
	if !validQuantity(quantity) {
		return nil, ErrInvalidQuantity
	}

	cart, err := s.load(ctx, cartID)
	if err != nil {
		return nil, err
	}
	readVersion := cart.Version

	if i := cart.FindLine(productID); i >= 0 {
		if cart.Lines[i].Quantity > MaxQuantity-quantity {
			return nil, ErrInvalidQuantity
		}
		cart.Lines[i].Quantity += quantity
	} else {
		cart.Lines = append(cart.Lines, domain.CartLineItem{
			ProductID: domain.CanonicalID(productID),
			Quantity:  quantity,
		})
	}

	if err := s.save(ctx, cart, readVersion); err != nil {
		return nil, err
	}
	return domain.CloneLines(cart.Lines), nil
}

// ReplaceLines swaps the whole line set after checking every product exists.
// Nothing is written when any line is rejected.
func (s *cartService) ReplaceLines(ctx context.Context, cartID string, lines []domain.CartLineItem) ([]domain.CartLineItem, error) {
	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		if !validQuantity(line.Quantity) {
			return nil, ErrInvalidQuantity
		}
		id := domain.CanonicalID(line.ProductID)
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateLine, line.ProductID)
		}
		seen[id] = struct{}{}
	}

	cart, err := s.load(ctx, cartID)
	if err != nil {
		return nil, err
	}
	readVersion := cart.Version

	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}

	existing, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to check products: %w", err)
	}

	found := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		found[domain.CanonicalID(p.ID)] = struct{}{}
	}

	var invalid []domain.CartLineItem
	for _, line := range lines {
		if _, ok := found[domain.CanonicalID(line.ProductID)]; !ok {
			invalid = append(invalid, line)
		}
	}
	if len(invalid) > 0 {
		return nil, &InvalidProductsError{Lines: invalid}
	}

	replacement := make([]domain.CartLineItem, 0, len(lines))
	for _, line := range lines {
		replacement = append(replacement, domain.CartLineItem{
			ProductID: domain.CanonicalID(line.ProductID),
			Quantity:  line.Quantity,
		})
	}
	cart.Lines = replacement

	if err := s.save(ctx, cart, readVersion); err != nil {
		return nil, err
	}
	return domain.CloneLines(cart.Lines), nil
}

// SetQuantity overwrites the quantity of an existing line
func (s *cartService) SetQuantity(ctx context.Context, cartID, productID string, quantity int) ([]domain.CartLineItem, error) {
	if !validQuantity(quantity) {
		return nil, ErrInvalidQuantity
	}

	cart, err := s.load(ctx, cartID)
	if err != nil {
		return nil, err
	}
	readVersion := cart.Version

	i := cart.FindLine(productID)
	if i < 0 {
		return nil, ErrProductNotInCart
	}
	cart.Lines[i].Quantity = quantity

	if err := s.save(ctx, cart, readVersion); err != nil {
		return nil, err
	}
	return domain.CloneLines(cart.Lines), nil
}

// RemoveProduct drops the line for productID
func (s *cartService) RemoveProduct(ctx context.Context, cartID, productID string) ([]domain.CartLineItem, error) {
	cart, err := s.load(ctx, cartID)
	if err != nil {
		return nil, err
	}
	readVersion := cart.Version

	remaining := make([]domain.CartLineItem, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		if !domain.SameID(line.ProductID, productID) {
			remaining = append(remaining, line)
		}
	}
	if len(remaining) == len(cart.Lines) {
		return nil, ErrProductNotInCart
	}
	cart.Lines = remaining

	if err := s.save(ctx, cart, readVersion); err != nil {
		return nil, err
	}
	return domain.CloneLines(cart.Lines), nil
}

// ClearCart empties the line set; the cart itself is kept
func (s *cartService) ClearCart(ctx context.Context, cartID string) error {
	cart, err := s.load(ctx, cartID)
	if err != nil {
		return err
	}
	readVersion := cart.Version

	cart.Lines = []domain.CartLineItem{}
	return s.save(ctx, cart, readVersion)
}

func (s *cartService) load(ctx context.Context, cartID string) (*domain.Cart, error) {
	cart, err := s.carts.FindByID(ctx, cartID)
	if err != nil {
		if errors.Is(err, repository.ErrCartNotFound) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if cart.Lines == nil {
		cart.Lines = []domain.CartLineItem{}
	}
	return cart, nil
}

func (s *cartService) save(ctx context.Context, cart *domain.Cart, readVersion int) error {
	var err error
	if s.opts.OptimisticLocking {
		err = s.carts.SaveVersioned(ctx, cart, readVersion)
	} else {
		err = s.carts.Save(ctx, cart)
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrCartNotFound):
		return ErrCartNotFound
	case errors.Is(err, repository.ErrCartVersionConflict):
		return ErrConcurrentUpdate
	default:
		return fmt.Errorf("failed to save cart: %w", err)
	}
}
