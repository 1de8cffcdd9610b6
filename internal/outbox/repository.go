package outbox

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrMessageNotFound = errors.New("outbox message not found")

// Repository is the outbox table access layer. PostgresRepository
// additionally offers CreateTx for staging inside a caller's transaction.
type Repository interface {
	Create(ctx context.Context, msg *Message) error
	GetPending(ctx context.Context, limit int) ([]*Message, error)
	GetRetryable(ctx context.Context, limit int) ([]*Message, error)
	MarkPublished(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	DeletePublished(ctx context.Context, olderThan time.Duration) (int64, error)
}

// MemoryRepository is an in-memory Repository for tests.
type MemoryRepository struct {
	mu       sync.Mutex
	messages map[string]*Message
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{messages: make(map[string]*Message)}
}

func (r *MemoryRepository) Create(ctx context.Context, msg *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *msg
	r.messages[msg.ID] = &copied
	return nil
}

func (r *MemoryRepository) GetPending(ctx context.Context, limit int) ([]*Message, error) {
	return r.collect(limit, func(m *Message) bool { return m.Status == StatusPending })
}

func (r *MemoryRepository) GetRetryable(ctx context.Context, limit int) ([]*Message, error) {
	return r.collect(limit, func(m *Message) bool { return m.CanRetry() })
}

func (r *MemoryRepository) collect(limit int, match func(*Message) bool) ([]*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*Message
	for _, m := range r.messages {
		if !match(m) {
			continue
		}
		copied := *m
		result = append(result, &copied)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (r *MemoryRepository) MarkPublished(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return ErrMessageNotFound
	}
	m.MarkPublished()
	return nil
}

func (r *MemoryRepository) MarkFailed(ctx context.Context, id string, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return ErrMessageNotFound
	}
	m.MarkFailed(errMsg)
	return nil
}

func (r *MemoryRepository) DeletePublished(ctx context.Context, olderThan time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().UTC().Add(-olderThan)
	var deleted int64
	for id, m := range r.messages {
		if m.Status == StatusPublished && m.PublishedAt != nil && m.PublishedAt.Before(cutoff) {
			delete(r.messages, id)
			deleted++
		}
	}
	return deleted, nil
}

// Get returns a message by id (for testing)
func (r *MemoryRepository) Get(id string) (*Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, false
	}
	copied := *m
	return &copied, true
}
