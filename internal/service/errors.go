package service

import (
	"errors"
	"fmt"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

var (
	ErrCartNotFound     = repository.ErrCartNotFound
	ErrProductNotFound  = repository.ErrProductNotFound
	ErrConcurrentUpdate = repository.ErrCartVersionConflict

	ErrProductNotInCart = errors.New("product not found in cart")
	ErrInvalidQuantity  = errors.New("quantity must be between 1 and 2147483647")
	ErrDuplicateLine    = errors.New("product listed more than once")
	ErrInvalidProducts  = errors.New("invalid products")
)

// InvalidProductsError lists the requested lines whose product does not exist.
// It matches ErrInvalidProducts with errors.Is.
type InvalidProductsError struct {
	Lines []domain.CartLineItem
}

func (e *InvalidProductsError) Error() string {
	return fmt.Sprintf("%s: %d line(s) reference unknown products", ErrInvalidProducts, len(e.Lines))
}

func (e *InvalidProductsError) Is(target error) bool {
	return target == ErrInvalidProducts
}
