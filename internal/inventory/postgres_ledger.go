package inventory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TeseySTD/ecommerce-order-saga/internal/event"
)

// PostgresLedger stores stock in Postgres.
//
// Schema:
//
//	CREATE TABLE products (
//	    id          TEXT PRIMARY KEY,
//	    title       TEXT NOT NULL,
//	    description TEXT NOT NULL DEFAULT '',
//	    quantity    INTEGER NOT NULL CHECK (quantity >= 0),
//	    unit_price  NUMERIC(12,2) NOT NULL
//	);
//
//	CREATE TABLE stock_reservations (
//	    order_id    TEXT PRIMARY KEY,
//	    reserved_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PostgresLedger struct {
	pool *pgxpool.Pool
}

func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

func (l *PostgresLedger) BatchGet(ctx context.Context, productIDs []string) ([]StockRecord, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, title, description, quantity, unit_price
		FROM products
		WHERE id = ANY($1)
	`, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var result []StockRecord
	for rows.Next() {
		var r StockRecord
		if err := rows.Scan(&r.ProductID, &r.Title, &r.Description, &r.Quantity, &r.UnitPrice); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read products: %w", err)
	}
	return result, nil
}

// IsReserved checks for the reservation marker row.
func (l *PostgresLedger) IsReserved(ctx context.Context, orderID string) (bool, error) {
	var reserved bool
	err := l.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM stock_reservations WHERE order_id = $1)
	`, orderID).Scan(&reserved)
	if err != nil {
		return false, fmt.Errorf("failed to check reservation for order %s: %w", orderID, err)
	}
	return reserved, nil
}

// Reserve decrements stock for every line inside one transaction. The
// reservation marker insert doubles as the idempotency guard: a replayed
// order id conflicts on the primary key and the transaction rolls back
// without touching quantities.
func (l *PostgresLedger) Reserve(ctx context.Context, orderID string, lines []event.OrderItem) error {
	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO stock_reservations (order_id) VALUES ($1)
		ON CONFLICT (order_id) DO NOTHING
	`, orderID)
	if err != nil {
		return fmt.Errorf("failed to insert reservation marker: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyReserved
	}

	totals := aggregate(lines)
	ids := sortedIDs(totals)

	rows, err := tx.Query(ctx, `
		SELECT id, quantity
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to lock products: %w", err)
	}
	available := make(map[string]int, len(ids))
	for rows.Next() {
		var id string
		var qty int
		if err := rows.Scan(&id, &qty); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan locked product: %w", err)
		}
		available[id] = qty
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read locked products: %w", err)
	}

	var missing, short []string
	for _, id := range ids {
		qty, ok := available[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		if qty < totals[id] {
			short = append(short, id)
		}
	}
	if len(missing) > 0 {
		return &MissingProductsError{ProductIDs: missing}
	}
	if len(short) > 0 {
		return &InsufficientStockError{ProductIDs: short}
	}

	for _, id := range ids {
		if _, err := tx.Exec(ctx, `
			UPDATE products SET quantity = quantity - $2 WHERE id = $1
		`, id, totals[id]); err != nil {
			return fmt.Errorf("failed to decrement stock for product %s: %w", id, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit reservation: %w", err)
	}
	return nil
}
