package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

// ListProductsInput is a coerced listing request
type ListProductsInput struct {
	Query    string
	Sort     domain.SortDirection
	Page     int
	PageSize int
}

// NewListProductsInput coerces raw query-string values into a listing request.
// It never fails.
func NewListProductsInput(query, sort, page, limit string) ListProductsInput {
	return ListProductsInput{
		Query:    query,
		Sort:     domain.ParseSortDirection(sort),
		Page:     ParsePage(page),
		PageSize: ParsePageSize(limit),
	}
}

// ProductPage is one page of the catalog plus navigation metadata
type ProductPage struct {
	Status      string            `json:"status"`
	Payload     []*domain.Product `json:"payload"`
	TotalPages  int               `json:"totalPages"`
	PrevPage    *int              `json:"prevPage"`
	NextPage    *int              `json:"nextPage"`
	Page        int               `json:"page"`
	HasPrevPage bool              `json:"hasPrevPage"`
	HasNextPage bool              `json:"hasNextPage"`
	PrevLink    *string           `json:"prevLink"`
	NextLink    *string           `json:"nextLink"`
}

// CatalogService defines product listing and passthrough CRUD
type CatalogService interface {
	ListProducts(ctx context.Context, in ListProductsInput) (*ProductPage, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, fields domain.ProductFields) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id string, fields domain.ProductFields) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

type catalogService struct {
	products    repository.ProductRepository
	listingPath string
}

// NewCatalogService creates a CatalogService. listingPath is the path the
// prev/next links point at, e.g. "/api/products".
func NewCatalogService(products repository.ProductRepository, listingPath string) CatalogService {
	return &catalogService{
		products:    products,
		listingPath: listingPath,
	}
}

// ListProducts counts the matches, clamps the page, then fetches that window
func (s *catalogService) ListProducts(ctx context.Context, in ListProductsInput) (*ProductPage, error) {
	filter := domain.ProductFilter{Query: in.Query}

	total, err := s.products.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	window := Paginate(total, in.Page, in.PageSize)

	products, err := s.products.Find(ctx, filter, in.Sort, window.Skip, window.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}

	return &ProductPage{
		Status:      "success",
		Payload:     products,
		TotalPages:  window.TotalPages,
		PrevPage:    window.PrevPage,
		NextPage:    window.NextPage,
		Page:        window.Page,
		HasPrevPage: window.HasPrev(),
		HasNextPage: window.HasNext(),
		PrevLink:    pageLink(s.listingPath, window.Limit, window.PrevPage),
		NextLink:    pageLink(s.listingPath, window.Limit, window.NextPage),
	}, nil
}

func (s *catalogService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, fields domain.ProductFields) (*domain.Product, error) {
	product, err := s.products.Create(ctx, fields)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return product, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, id string, fields domain.ProductFields) (*domain.Product, error) {
	product, err := s.products.UpdateByID(ctx, id, fields)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return product, nil
}

func (s *catalogService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.products.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return ErrProductNotFound
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}
