package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository persists outbox messages in Postgres.
//
// Schema:
//
//	CREATE TABLE outbox_messages (
//	    id           TEXT PRIMARY KEY,
//	    order_id     TEXT NOT NULL,
//	    event_type   TEXT NOT NULL,
//	    payload      BYTEA NOT NULL,
//	    topic        TEXT NOT NULL,
//	    status       TEXT NOT NULL DEFAULT 'pending',
//	    retry_count  INTEGER NOT NULL DEFAULT 0,
//	    max_retries  INTEGER NOT NULL DEFAULT 5,
//	    last_error   TEXT NOT NULL DEFAULT '',
//	    created_at   TIMESTAMPTZ NOT NULL,
//	    processed_at TIMESTAMPTZ,
//	    published_at TIMESTAMPTZ
//	);
//	CREATE INDEX idx_outbox_status_created ON outbox_messages (status, created_at);
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const insertMessageSQL = `
	INSERT INTO outbox_messages
		(id, order_id, event_type, payload, topic, status, retry_count, max_retries, last_error, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

func (r *PostgresRepository) Create(ctx context.Context, msg *Message) error {
	_, err := r.pool.Exec(ctx, insertMessageSQL,
		msg.ID, msg.OrderID, msg.EventType, msg.Payload, msg.Topic,
		msg.Status, msg.RetryCount, msg.MaxRetries, msg.LastError, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert outbox message: %w", err)
	}
	return nil
}

// CreateTx enlists the outbox insert in the caller's transaction so the
// message commits or rolls back together with the state change.
func (r *PostgresRepository) CreateTx(ctx context.Context, tx pgx.Tx, msg *Message) error {
	_, err := tx.Exec(ctx, insertMessageSQL,
		msg.ID, msg.OrderID, msg.EventType, msg.Payload, msg.Topic,
		msg.Status, msg.RetryCount, msg.MaxRetries, msg.LastError, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert outbox message: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetPending(ctx context.Context, limit int) ([]*Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, event_type, payload, topic, status,
		       retry_count, max_retries, last_error, created_at, processed_at, published_at
		FROM outbox_messages
		WHERE status = 'pending'
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (r *PostgresRepository) GetRetryable(ctx context.Context, limit int) ([]*Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, event_type, payload, topic, status,
		       retry_count, max_retries, last_error, created_at, processed_at, published_at
		FROM outbox_messages
		WHERE status = 'failed' AND retry_count < max_retries
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query retryable messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (r *PostgresRepository) MarkPublished(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE outbox_messages
		SET status = 'published', published_at = now(), processed_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to mark message published: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// MarkFailed bumps the retry count and parks the message as a dead letter
// once the budget is exhausted.
func (r *PostgresRepository) MarkFailed(ctx context.Context, id string, errMsg string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE outbox_messages
		SET retry_count = retry_count + 1,
		    last_error = $2,
		    processed_at = now(),
		    status = CASE WHEN retry_count + 1 >= max_retries THEN 'dead_letter' ELSE 'failed' END
		WHERE id = $1
	`, id, errMsg)
	if err != nil {
		return fmt.Errorf("failed to mark message failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (r *PostgresRepository) DeletePublished(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM outbox_messages
		WHERE status = 'published' AND published_at < now() - make_interval(secs => $1)
	`, olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to delete published messages: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanMessages(rows pgx.Rows) ([]*Message, error) {
	var result []*Message
	for rows.Next() {
		var m Message
		err := rows.Scan(&m.ID, &m.OrderID, &m.EventType, &m.Payload, &m.Topic, &m.Status,
			&m.RetryCount, &m.MaxRetries, &m.LastError, &m.CreatedAt, &m.ProcessedAt, &m.PublishedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		result = append(result, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read outbox messages: %w", err)
	}
	return result, nil
}
