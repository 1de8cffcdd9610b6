package saga

import (
	"context"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/TeseySTD/ecommerce-order-saga/internal/event"
)

// RecordHandler adapts consumed records to the orchestrator.
type RecordHandler struct {
	orchestrator *Orchestrator
	logger       *zap.Logger
}

func NewRecordHandler(orchestrator *Orchestrator, logger *zap.Logger) *RecordHandler {
	return &RecordHandler{orchestrator: orchestrator, logger: logger}
}

// HandleRecord decodes one record and feeds it to the orchestrator.
// Malformed records are logged and dropped; orchestrator errors propagate so
// the offset stays uncommitted and the record is redelivered.
func (h *RecordHandler) HandleRecord(ctx context.Context, record *kgo.Record) error {
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

	return h.orchestrator.Handle(ctx, msg)
}
