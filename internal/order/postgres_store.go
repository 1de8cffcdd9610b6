package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists orders in Postgres.
//
// Schema:
//
//	CREATE TABLE orders (
//	    id            TEXT PRIMARY KEY,
//	    customer_id   TEXT NOT NULL,
//	    status        TEXT NOT NULL,
//	    items         JSONB NOT NULL DEFAULT '[]',
//	    cancel_reason TEXT NOT NULL DEFAULT '',
//	    created_at    TIMESTAMPTZ NOT NULL,
//	    updated_at    TIMESTAMPTZ NOT NULL
//	);
//
//	CREATE TABLE order_products (
//	    id          TEXT PRIMARY KEY,
//	    title       TEXT NOT NULL,
//	    description TEXT NOT NULL DEFAULT ''
//	);
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, o *Order) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO orders (id, customer_id, status, items, cancel_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, o.ID, o.CustomerID, o.Status, o.Items, o.CancelReason, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrOrderExists
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, orderID string) (*Order, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, customer_id, status, items, cancel_reason, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, orderID)

	var o Order
	err := row.Scan(&o.ID, &o.CustomerID, &o.Status, &o.Items, &o.CancelReason, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to query order: %w", err)
	}
	return &o, nil
}

func (s *PostgresStore) Update(ctx context.Context, o *Order) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET status = $2, items = $3, cancel_reason = $4, updated_at = $5
		WHERE id = $1
	`, o.ID, o.Status, o.Items, o.CancelReason, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (s *PostgresStore) UpsertProducts(ctx context.Context, products []ProductShadow) error {
	batch := &pgx.Batch{}
	for _, p := range products {
		batch.Queue(`
			INSERT INTO order_products (id, title, description)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE
			SET title = EXCLUDED.title, description = EXCLUDED.description
		`, p.ProductID, p.Title, p.Description)
	}
	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range products {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert product shadow: %w", err)
		}
	}
	return nil
}
