package order

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/TeseySTD/ecommerce-order-saga/internal/event"
)

func placedOrder(t *testing.T, store Store) *Order {
	t.Helper()
	o := New(event.OrderMade{
		OrderID:    "order-1",
		CustomerID: "customer-1",
		Items:      []event.OrderItem{{ProductID: "p1", Quantity: 2}},
	})
	require.NoError(t, store.Create(context.Background(), o))
	return o
}

func approval() event.OrderApproved {
	return event.OrderApproved{
		OrderID: "order-1",
		Items: []event.ReservedItem{
			{ProductID: "p1", Title: "Widget", Description: "A widget", Quantity: 2, UnitPrice: 9.99},
		},
	}
}

func TestApprovalSetsStatusAndItems(t *testing.T) {
	store := NewMemoryStore()
	placedOrder(t, store)
	handler := NewApprovalHandler(store, zap.NewNop())

	require.NoError(t, handler.Handle(context.Background(), approval()))

	o, err := store.Get(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, o.Status)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 9.99, o.Items[0].UnitPrice)
}

func TestApprovalCreatesProductShadows(t *testing.T) {
	store := NewMemoryStore()
	placedOrder(t, store)
	handler := NewApprovalHandler(store, zap.NewNop())

	require.NoError(t, handler.Handle(context.Background(), approval()))

	shadow, ok := store.Product("p1")
	require.True(t, ok, "product shadow not created")
	assert.Equal(t, "Widget", shadow.Title)
	assert.Equal(t, "A widget", shadow.Description)
}

func TestApprovalIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	placedOrder(t, store)
	handler := NewApprovalHandler(store, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, handler.Handle(ctx, approval()))
	require.NoError(t, handler.Handle(ctx, approval()))

	o, err := store.Get(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, o.Status)
	assert.Len(t, o.Items, 1)
}

func TestApprovalWithoutPlacementRecreatesOrder(t *testing.T) {
	store := NewMemoryStore()
	handler := NewApprovalHandler(store, zap.NewNop())

	require.NoError(t, handler.Handle(context.Background(), approval()))

	o, err := store.Get(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, o.Status)
}

func TestCancellationSetsStatusAndReason(t *testing.T) {
	store := NewMemoryStore()
	placedOrder(t, store)
	handler := NewCancellationHandler(store, zap.NewNop())

	err := handler.Handle(context.Background(), event.OrderCanceled{
		OrderID: "order-1",
		Reason:  "Checking customer failed.",
	})
	require.NoError(t, err)

	o, err := store.Get(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, "Checking customer failed.", o.CancelReason)
}

func TestCancellationDoesNotRegressTerminalOrder(t *testing.T) {
	store := NewMemoryStore()
	o := placedOrder(t, store)
	ctx := context.Background()

	o.Status = StatusCompleted
	require.NoError(t, store.Update(ctx, o))

	handler := NewCancellationHandler(store, zap.NewNop())
	require.NoError(t, handler.Handle(ctx, event.OrderCanceled{OrderID: "order-1", Reason: "late"}))

	got, err := store.Get(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Empty(t, got.CancelReason)
}

func TestCancellationIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	placedOrder(t, store)
	handler := NewCancellationHandler(store, zap.NewNop())
	ctx := context.Background()

	canceled := event.OrderCanceled{OrderID: "order-1", Reason: "stock ran out"}
	require.NoError(t, handler.Handle(ctx, canceled))
	require.NoError(t, handler.Handle(ctx, canceled))

	o, err := store.Get(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, "stock ran out", o.CancelReason)
}

func TestCancellationUnknownOrderIsDropped(t *testing.T) {
	store := NewMemoryStore()
	handler := NewCancellationHandler(store, zap.NewNop())

	err := handler.Handle(context.Background(), event.OrderCanceled{OrderID: "ghost", Reason: "x"})
	assert.NoError(t, err)
}

func TestApprovalDoesNotRegressCancelledOrder(t *testing.T) {
	store := NewMemoryStore()
	placedOrder(t, store)
	ctx := context.Background()

	cancel := NewCancellationHandler(store, zap.NewNop())
	require.NoError(t, cancel.Handle(ctx, event.OrderCanceled{OrderID: "order-1", Reason: "rejected"}))

	approve := NewApprovalHandler(store, zap.NewNop())
	require.NoError(t, approve.Handle(ctx, approval()))

	o, err := store.Get(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
}
