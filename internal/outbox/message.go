// Package outbox implements the transactional outbox: outbound saga messages
// are written to a table in the same transaction as the state change and a
// polling worker publishes them to the bus afterwards.
package outbox

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/TeseySTD/ecommerce-order-saga/internal/event"
)

// Status represents the publishing status of an outbox message
type Status string

const (
	StatusPending    Status = "pending"
	StatusPublished  Status = "published"
	StatusFailed     Status = "failed"
	StatusDeadLetter Status = "dead_letter"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusPublished, StatusFailed, StatusDeadLetter:
		return true
	}
	return false
}

// Message is one row in the outbox table
type Message struct {
	ID           string     `json:"id"`
	OrderID      string     `json:"order_id"`
	EventType    event.Type `json:"event_type"`
	Payload      []byte     `json:"payload"`
	Topic        string     `json:"topic"`
	Status       Status     `json:"status"`
	RetryCount   int        `json:"retry_count"`
	MaxRetries   int        `json:"max_retries"`
	LastError    string     `json:"last_error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
}

// NewMessage wraps a saga event into a pending outbox row. The order id is
// the partition key so every message of one workflow lands on one partition.
func NewMessage(msg event.Message, maxRetries int) (*Message, error) {
	topic := event.TopicFor(msg.EventType())
	if topic == "" {
		return nil, fmt.Errorf("no topic for message type %q", msg.EventType())
	}
	envelope, err := event.Wrap(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap event: %w", err)
	}
	payload, err := envelope.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}

	return &Message{
		ID:         uuid.New().String(),
		OrderID:    msg.CorrelationID(),
		EventType:  msg.EventType(),
		Payload:    payload,
		Topic:      topic,
		Status:     StatusPending,
		MaxRetries: maxRetries,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// CanRetry reports whether a failed message has retry budget left
func (m *Message) CanRetry() bool {
	return m.Status == StatusFailed && m.RetryCount < m.MaxRetries
}

// MarkPublished records a successful publish
func (m *Message) MarkPublished() {
	now := time.Now().UTC()
	m.Status = StatusPublished
	m.PublishedAt = &now
	m.ProcessedAt = &now
}

// MarkFailed records a publish failure. Once the retry budget is exhausted
// the message is parked as a dead letter for operator inspection.
func (m *Message) MarkFailed(errMsg string) {
	now := time.Now().UTC()
	m.LastError = errMsg
	m.RetryCount++
	m.ProcessedAt = &now
	if m.RetryCount >= m.MaxRetries {
		m.Status = StatusDeadLetter
	} else {
		m.Status = StatusFailed
	}
}
