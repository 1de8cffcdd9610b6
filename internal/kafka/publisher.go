package kafka

import (
	"context"
	"fmt"

	"github.com/TeseySTD/ecommerce-order-saga/internal/event"
)

// EventPublisher frames saga messages and produces them to their topic,
// keyed by order id so one workflow stays on one partition.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a publisher on top of a Producer
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// Publish wraps the message in an envelope and produces it
func (p *EventPublisher) Publish(ctx context.Context, msg event.Message) error {
	topic := event.TopicFor(msg.EventType())
	if topic == "" {
		return fmt.Errorf("no topic for message type %q", msg.EventType())
	}

	env, err := event.Wrap(msg)
	if err != nil {
		return err
	}

	data, err := env.Encode()
	if err != nil {
		return err
	}

	headers := map[string]string{
		"message_id": env.MessageID,
		"order_id":   env.OrderID,
		"type":       env.Type.String(),
	}

	return p.producer.Produce(ctx, topic, env.OrderID, data, headers)
}
