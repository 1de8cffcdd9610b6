package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope is the wire frame around every payload. MessageID is unique per
// publication (redeliveries keep the id, re-publications get a fresh one),
// OrderID is the correlation id used for routing.
type Envelope struct {
	MessageID  string          `json:"message_id"`
	OrderID    string          `json:"order_id"`
	Type       Type            `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Wrap frames a payload for publication.
func Wrap(msg Message) (*Envelope, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", msg.EventType(), err)
	}

	return &Envelope{
		MessageID:  uuid.New().String(),
		OrderID:    msg.CorrelationID(),
		Type:       msg.EventType(),
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}, nil
}

// Encode serializes the envelope for the bus.
func (e *Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return data, nil
}

// DecodeEnvelope deserializes an envelope from the bus.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	return &e, nil
}

// Open decodes the framed payload into its concrete message type. The
// dispatch is decided at compile time, one case per contract.
func (e *Envelope) Open() (Message, error) {
	switch e.Type {
	case TypeOrderMade:
		return open[OrderMade](e)
	case TypeCheckCustomer:
		return open[CheckCustomer](e)
	case TypeCustomerChecked:
		return open[CustomerChecked](e)
	case TypeCustomerCheckFailed:
		return open[CustomerCheckFailed](e)
	case TypeReserveProducts:
		return open[ReserveProducts](e)
	case TypeProductsReserved:
		return open[ProductsReserved](e)
	case TypeProductsReservationFailed:
		return open[ProductsReservationFailed](e)
	case TypeOrderApproved:
		return open[OrderApproved](e)
	case TypeOrderCanceled:
		return open[OrderCanceled](e)
	default:
		return nil, fmt.Errorf("unknown message type %q", e.Type)
	}
}

func open[T Message](e *Envelope) (Message, error) {
	var msg T
	if err := json.Unmarshal(e.Payload, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s payload: %w", e.Type, err)
	}
	return msg, nil
}
