package event

import (
	"testing"
)

func TestWrapCarriesCorrelationID(t *testing.T) {
	env, err := Wrap(OrderMade{OrderID: "order-1", CustomerID: "customer-1"})
	if err != nil {
		t.Fatalf("Wrap() error: %v", err)
	}

	if env.OrderID != "order-1" {
		t.Errorf("OrderID = %s, want order-1", env.OrderID)
	}
	if env.Type != TypeOrderMade {
		t.Errorf("Type = %s, want %s", env.Type, TypeOrderMade)
	}
	if env.MessageID == "" {
		t.Error("MessageID is empty")
	}
	if env.OccurredAt.IsZero() {
		t.Error("OccurredAt not stamped")
	}
}

func TestWrapAssignsFreshMessageIDs(t *testing.T) {
	first, err := Wrap(OrderCanceled{OrderID: "order-1", Reason: "x"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := Wrap(OrderCanceled{OrderID: "order-1", Reason: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if first.MessageID == second.MessageID {
		t.Error("re-publication reused a message id")
	}
}

func TestOpenDispatchesConcreteType(t *testing.T) {
	original := ProductsReservationFailed{
		OrderID: "order-1",
		Reason:  "Insufficient quantity for product p1",
	}
	env, err := Wrap(original)
	if err != nil {
		t.Fatal(err)
	}
	data, err := env.Encode()
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := DecodeEnvelope(data)
	if err != nil {
		t.Fatalf("DecodeEnvelope() error: %v", err)
	}
	msg, err := decoded.Open()
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	failed, ok := msg.(ProductsReservationFailed)
	if !ok {
		t.Fatalf("Open() = %T, want ProductsReservationFailed", msg)
	}
	if failed.Reason != original.Reason {
		t.Errorf("Reason = %q, want %q", failed.Reason, original.Reason)
	}
	if failed.CorrelationID() != "order-1" {
		t.Errorf("CorrelationID = %s, want order-1", failed.CorrelationID())
	}
}

func TestOpenUnknownType(t *testing.T) {
	env := &Envelope{Type: "mystery.event", Payload: []byte(`{}`)}
	if _, err := env.Open(); err == nil {
		t.Error("expected error for unknown message type")
	}
}

func TestTopicForCoversEveryType(t *testing.T) {
	types := []Type{
		TypeOrderMade, TypeCheckCustomer, TypeCustomerChecked,
		TypeCustomerCheckFailed, TypeReserveProducts, TypeProductsReserved,
		TypeProductsReservationFailed, TypeOrderApproved, TypeOrderCanceled,
	}
	seen := make(map[string]Type, len(types))
	for _, typ := range types {
		topic := TopicFor(typ)
		if topic == "" {
			t.Errorf("TopicFor(%s) is empty", typ)
			continue
		}
		if prev, dup := seen[topic]; dup {
			t.Errorf("topic %s shared by %s and %s", topic, prev, typ)
		}
		seen[topic] = typ
	}
	if TopicFor("mystery.event") != "" {
		t.Error("TopicFor(unknown) should be empty")
	}
}
