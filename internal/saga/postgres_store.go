package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TeseySTD/ecommerce-order-saga/internal/event"
)

// PostgresStore implements Store on PostgreSQL.
//
// Schema:
//
//	CREATE TABLE saga_instances (
//	    order_id     TEXT PRIMARY KEY,
//	    customer_id  TEXT NOT NULL,
//	    items        JSONB NOT NULL,
//	    state        TEXT NOT NULL,
//	    created_at   TIMESTAMPTZ NOT NULL,
//	    updated_at   TIMESTAMPTZ NOT NULL,
//	    finalized_at TIMESTAMPTZ
//	);
//	CREATE INDEX idx_saga_instances_stalled ON saga_instances (updated_at) WHERE state <> 'Final';
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed saga store
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// execer is the subset of pgxpool.Pool and pgx.Tx the write paths need.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Save persists a new instance
func (s *PostgresStore) Save(ctx context.Context, inst *Instance) error {
	return s.save(ctx, s.pool, inst)
}

// SaveTx persists a new instance inside the caller's transaction
func (s *PostgresStore) SaveTx(ctx context.Context, tx pgx.Tx, inst *Instance) error {
	return s.save(ctx, tx, inst)
}

func (s *PostgresStore) save(ctx context.Context, db execer, inst *Instance) error {
	itemsJSON, err := json.Marshal(inst.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal items: %w", err)
	}

	query := `
		INSERT INTO saga_instances (order_id, customer_id, items, state, created_at, updated_at, finalized_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = db.Exec(ctx, query,
		inst.OrderID,
		inst.CustomerID,
		itemsJSON,
		string(inst.State),
		inst.CreatedAt,
		inst.UpdatedAt,
		inst.FinalizedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrInstanceExists
		}
		return fmt.Errorf("failed to save saga instance: %w", err)
	}

	return nil
}

// Get retrieves an instance by order id
func (s *PostgresStore) Get(ctx context.Context, orderID string) (*Instance, error) {
	query := `
		SELECT order_id, customer_id, items, state, created_at, updated_at, finalized_at
		FROM saga_instances
		WHERE order_id = $1
	`
	return scanInstance(s.pool.QueryRow(ctx, query, orderID))
}

// Update overwrites an existing instance
func (s *PostgresStore) Update(ctx context.Context, inst *Instance) error {
	return s.update(ctx, s.pool, inst)
}

// UpdateTx overwrites an existing instance inside the caller's transaction
func (s *PostgresStore) UpdateTx(ctx context.Context, tx pgx.Tx, inst *Instance) error {
	return s.update(ctx, tx, inst)
}

func (s *PostgresStore) update(ctx context.Context, db execer, inst *Instance) error {
	itemsJSON, err := json.Marshal(inst.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal items: %w", err)
	}

	query := `
		UPDATE saga_instances
		SET state = $2, updated_at = $3, finalized_at = $4, items = $5
		WHERE order_id = $1
	`

	result, err := db.Exec(ctx, query,
		inst.OrderID,
		string(inst.State),
		time.Now().UTC(),
		inst.FinalizedAt,
		itemsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to update saga instance: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInstanceNotFound
	}

	return nil
}

// ListStalled returns non-final instances not updated since the cutoff
func (s *PostgresStore) ListStalled(ctx context.Context, cutoff time.Time, limit int) ([]*Instance, error) {
	query := `
		SELECT order_id, customer_id, items, state, created_at, updated_at, finalized_at
		FROM saga_instances
		WHERE state <> $1 AND updated_at < $2
		ORDER BY updated_at ASC
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.pool.Query(ctx, query, string(StateFinal), cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stalled sagas: %w", err)
	}
	defer rows.Close()

	var instances []*Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating saga instances: %w", err)
	}

	return instances, nil
}

func scanInstance(row pgx.Row) (*Instance, error) {
	var inst Instance
	var stateStr string
	var itemsJSON []byte

	err := row.Scan(
		&inst.OrderID,
		&inst.CustomerID,
		&itemsJSON,
		&stateStr,
		&inst.CreatedAt,
		&inst.UpdatedAt,
		&inst.FinalizedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInstanceNotFound
		}
		return nil, fmt.Errorf("failed to scan saga instance: %w", err)
	}

	inst.State = State(stateStr)

	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &inst.Items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal items: %w", err)
		}
	} else {
		inst.Items = []event.OrderItem{}
	}

	return &inst, nil
}
