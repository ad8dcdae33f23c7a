package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain"

	"github.com/google/uuid"
)

type cartRepository struct {
	db *sql.DB
}

// NewCartRepository creates a postgres-backed CartRepository
func NewCartRepository(db *sql.DB) CartRepository {
	return &cartRepository{db: db}
}

// Create inserts an empty cart header followed by the initial lines
func (r *cartRepository) Create(ctx context.Context, lines []domain.CartLineItem) (*domain.Cart, error) {
	now := time.Now().UTC()
	cart := &domain.Cart{
		ID:        uuid.New().String(),
		Lines:     domain.CloneLines(lines),
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO carts (id, version, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		cart.ID, cart.Version, cart.CreatedAt, cart.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	if err := insertLines(ctx, tx, cart.ID, cart.Lines); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit cart: %w", err)
	}

	return cart, nil
}

// FindByID retrieves a cart and its lines in position order
func (r *cartRepository) FindByID(ctx context.Context, id string) (*domain.Cart, error) {
	cart := &domain.Cart{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, version, created_at, updated_at FROM carts WHERE id = $1`, id,
	).Scan(&cart.ID, &cart.Version, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to find cart by ID: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, quantity
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart items: %w", err)
	}
	defer rows.Close()

	cart.Lines = []domain.CartLineItem{}
	for rows.Next() {
		var line domain.CartLineItem
		if err := rows.Scan(&line.ProductID, &line.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		cart.Lines = append(cart.Lines, line)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}

	return cart, nil
}

// Save replaces the stored lines without checking the version
func (r *cartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	return r.save(ctx, cart, nil)
}

// SaveVersioned replaces the stored lines only if nobody saved since expectedVersion
func (r *cartRepository) SaveVersioned(ctx context.Context, cart *domain.Cart, expectedVersion int) error {
	return r.save(ctx, cart, &expectedVersion)
}

func (r *cartRepository) save(ctx context.Context, cart *domain.Cart, expectedVersion *int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	query := `UPDATE carts SET version = version + 1, updated_at = $2 WHERE id = $1 RETURNING version`
	args := []interface{}{cart.ID, now}
	if expectedVersion != nil {
		query = `UPDATE carts SET version = version + 1, updated_at = $2 WHERE id = $1 AND version = $3 RETURNING version`
		args = append(args, *expectedVersion)
	}

	var version int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if expectedVersion != nil {
				return r.classifyMiss(ctx, cart.ID)
			}
			return ErrCartNotFound
		}
		return fmt.Errorf("failed to update cart: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cart.ID); err != nil {
		return fmt.Errorf("failed to clear cart items: %w", err)
	}

	if err := insertLines(ctx, tx, cart.ID, cart.Lines); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cart: %w", err)
	}

	cart.Version = version
	cart.UpdatedAt = now
	return nil
}

// classifyMiss tells a missing cart apart from a stale version
func (r *cartRepository) classifyMiss(ctx context.Context, id string) error {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM carts WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check cart existence: %w", err)
	}
	if !exists {
		return ErrCartNotFound
	}
	return ErrCartVersionConflict
}

func insertLines(ctx context.Context, tx *sql.Tx, cartID string, lines []domain.CartLineItem) error {
	for i, line := range lines {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO cart_items (cart_id, position, product_id, quantity) VALUES ($1, $2, $3, $4)`,
			cartID, i, line.ProductID, line.Quantity,
		)
		if err != nil {
			return fmt.Errorf("failed to insert cart item: %w", err)
		}
	}
	return nil
}
