package outbox

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TeseySTD/ecommerce-order-saga/internal/event"
	"github.com/TeseySTD/ecommerce-order-saga/internal/saga"
)

// SagaRecorder commits a saga transition and its staged outbound message in
// one transaction. A crash can neither persist a state whose message was not
// staged nor stage a message for a state that was not persisted; the worker
// delivers whatever committed.
type SagaRecorder struct {
	pool       *pgxpool.Pool
	store      *saga.PostgresStore
	repo       *PostgresRepository
	maxRetries int
}

var _ saga.Recorder = (*SagaRecorder)(nil)

func NewSagaRecorder(pool *pgxpool.Pool, store *saga.PostgresStore, repo *PostgresRepository, maxRetries int) *SagaRecorder {
	return &SagaRecorder{pool: pool, store: store, repo: repo, maxRetries: maxRetries}
}

func (r *SagaRecorder) Start(ctx context.Context, inst *saga.Instance, outbound event.Message) error {
	return r.record(ctx, outbound, func(tx pgx.Tx) error {
		return r.store.SaveTx(ctx, tx, inst)
	})
}

func (r *SagaRecorder) Advance(ctx context.Context, inst *saga.Instance, outbound event.Message) error {
	return r.record(ctx, outbound, func(tx pgx.Tx) error {
		return r.store.UpdateTx(ctx, tx, inst)
	})
}

// record stages the message and runs the instance write in one transaction.
// The persist error passes through unwrapped so callers can still match
// saga.ErrInstanceExists and saga.ErrInstanceNotFound.
func (r *SagaRecorder) record(ctx context.Context, outbound event.Message, persist func(pgx.Tx) error) error {
	msg, err := NewMessage(outbound, r.maxRetries)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := r.repo.CreateTx(ctx, tx, msg); err != nil {
		return err
	}
	if err := persist(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit saga transition: %w", err)
	}
	return nil
}
