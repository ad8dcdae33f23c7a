package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const productColumns = `id, title, description, code, price, status, stock, category, thumbnails, created_at, updated_at`

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a postgres-backed ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

// likePattern escapes LIKE wildcards so the query is matched literally
func likePattern(query string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(query) + "%"
}

func whereClause(filter domain.ProductFilter) (string, []interface{}) {
	if filter.Query == "" {
		return "", nil
	}
	return "WHERE category ILIKE $1 OR status ILIKE $1", []interface{}{likePattern(filter.Query)}
}

func orderClause(sort domain.SortDirection) string {
	switch sort {
	case domain.SortAsc:
		return "ORDER BY price ASC, created_at ASC, id ASC"
	case domain.SortDesc:
		return "ORDER BY price DESC, created_at ASC, id ASC"
	default:
		return "ORDER BY created_at ASC, id ASC"
	}
}

// Count returns the number of products matching filter
func (r *productRepository) Count(ctx context.Context, filter domain.ProductFilter) (int, error) {
	where, args := whereClause(filter)

	var total int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products "+where, args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}

	return total, nil
}

// Find retrieves one window of products matching filter, ordered by sort
func (r *productRepository) Find(ctx context.Context, filter domain.ProductFilter, sort domain.SortDirection, skip, limit int) ([]*domain.Product, error) {
	where, args := whereClause(filter)
	argIndex := len(args) + 1

	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		%s
		%s
		LIMIT $%d OFFSET $%d
	`, productColumns, where, orderClause(sort), argIndex, argIndex+1)

	args = append(args, limit, skip)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// FindByID retrieves a product by ID
func (r *productRepository) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(pgtype.NewMap(), r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// FindByIDs retrieves every stored product whose id is in ids
func (r *productRepository) FindByIDs(ctx context.Context, ids []string) ([]*domain.Product, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return []*domain.Product{}, nil
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1::uuid[])`

	rows, err := r.db.QueryContext(ctx, query, valid)
	if err != nil {
		return nil, fmt.Errorf("failed to find products by IDs: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// Create inserts a new product and returns it with its assigned id
func (r *productRepository) Create(ctx context.Context, fields domain.ProductFields) (*domain.Product, error) {
	now := time.Now().UTC()
	product := &domain.Product{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	fields.Apply(product)

	query := `
		INSERT INTO products (id, title, description, code, price, status, stock, category, thumbnails, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Title,
		product.Description,
		product.Code,
		product.Price,
		string(product.Status),
		product.Stock,
		product.Category,
		product.Thumbnails,
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	return product, nil
}

// UpdateByID overwrites every mutable field of the product
func (r *productRepository) UpdateByID(ctx context.Context, id string, fields domain.ProductFields) (*domain.Product, error) {
	product := &domain.Product{}
	fields.Apply(product)

	query := `
		UPDATE products
		SET title = $2, description = $3, code = $4, price = $5, status = $6,
		    stock = $7, category = $8, thumbnails = $9, updated_at = $10
		WHERE id = $1
		RETURNING ` + productColumns

	updated, err := scanProduct(pgtype.NewMap(), r.db.QueryRowContext(
		ctx,
		query,
		id,
		product.Title,
		product.Description,
		product.Code,
		product.Price,
		string(product.Status),
		product.Stock,
		product.Category,
		product.Thumbnails,
		time.Now().UTC(),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	return updated, nil
}

// DeleteByID removes a product
func (r *productRepository) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanProduct reads one product row. types is not safe for concurrent use and
// must not be shared between requests.
func scanProduct(types *pgtype.Map, row rowScanner) (*domain.Product, error) {
	product := &domain.Product{}
	var status string
	var thumbnails []string

	err := row.Scan(
		&product.ID,
		&product.Title,
		&product.Description,
		&product.Code,
		&product.Price,
		&status,
		&product.Stock,
		&product.Category,
		types.SQLScanner(&thumbnails),
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	product.Status = domain.ProductStatus(status)
	product.Thumbnails = thumbnails
	if product.Thumbnails == nil {
		product.Thumbnails = []string{}
	}

	return product, nil
}

func scanProducts(rows *sql.Rows) ([]*domain.Product, error) {
	types := pgtype.NewMap()
	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(types, rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}
