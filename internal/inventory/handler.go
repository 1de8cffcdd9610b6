package inventory

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/TeseySTD/ecommerce-order-saga/internal/event"
)

// Publisher sends reply events back onto the bus.
type Publisher interface {
	Publish(ctx context.Context, msg event.Message) error
}

// CommandHandler adapts consumed records to the reservation service.
type CommandHandler struct {
	service   *Service
	publisher Publisher
	logger    *zap.Logger
}

func NewCommandHandler(service *Service, publisher Publisher, logger *zap.Logger) *CommandHandler {
	return &CommandHandler{service: service, publisher: publisher, logger: logger}
}

// HandleRecord decodes one record, runs the reservation and publishes the
// reply. Malformed records are logged and dropped; infrastructure errors
// propagate so the offset stays uncommitted.
func (h *CommandHandler) HandleRecord(ctx context.Context, record *kgo.Record) error {
	envelope, err := event.DecodeEnvelope(record.Value)
	if err != nil {
		h.logger.Warn("dropping undecodable record",
			zap.String("topic", record.Topic),
			zap.Int64("offset", record.Offset),
			zap.Error(err))
		return nil
	}

	msg, err := envelope.Open()
	if err != nil {
		h.logger.Warn("dropping unparseable event",
			zap.String("message_id", envelope.MessageID),
			zap.String("type", string(envelope.Type)),
			zap.Error(err))
		return nil
	}

	cmd, ok := msg.(event.ReserveProducts)
	if !ok {
		h.logger.Debug("ignoring event of unexpected type",
			zap.String("type", string(envelope.Type)))
		return nil
	}

	reply, err := h.service.Reserve(ctx, cmd)
	if err != nil {
		return fmt.Errorf("reservation failed for order %s: %w", cmd.OrderID, err)
	}

	if err := h.publisher.Publish(ctx, reply); err != nil {
		return fmt.Errorf("failed to publish %s for order %s: %w", reply.EventType(), cmd.OrderID, err)
	}
	return nil
}
