package outbox

import (
	"context"
	"fmt"

	"github.com/TeseySTD/ecommerce-order-saga/internal/event"
)

// Publisher satisfies the orchestrator's publisher by staging events in the
// outbox table instead of producing directly. The worker delivers them.
type Publisher struct {
	repo       Repository
	maxRetries int
}

func NewPublisher(repo Repository, maxRetries int) *Publisher {
	return &Publisher{repo: repo, maxRetries: maxRetries}
}

func (p *Publisher) Publish(ctx context.Context, msg event.Message) error {
	m, err := NewMessage(msg, p.maxRetries)
	if err != nil {
		return err
	}
	if err := p.repo.Create(ctx, m); err != nil {
		return fmt.Errorf("failed to stage outbox message: %w", err)
	}
	return nil
}
