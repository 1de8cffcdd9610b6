package inventory

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/TeseySTD/ecommerce-order-saga/internal/event"
	"github.com/TeseySTD/ecommerce-order-saga/internal/telemetry"
)

// Service handles ReserveProducts commands against a Ledger and turns the
// outcome into the reply event. Domain rejections (missing products, short
// stock) are reply values, never returned errors; only infrastructure
// failures surface as errors so the consumer can leave the offset
// uncommitted and retry.
type Service struct {
	ledger Ledger
	logger *zap.Logger
}

func NewService(ledger Ledger, logger *zap.Logger) *Service {
	return &Service{ledger: ledger, logger: logger}
}

// Reserve validates and atomically decrements stock for the order.
//
// It returns exactly one of ProductsReserved or ProductsReservationFailed.
// A replayed command for an order whose stock is already decremented is
// answered with a fresh ProductsReserved snapshot, so a lost reply never
// strands the order.
func (s *Service) Reserve(ctx context.Context, cmd event.ReserveProducts) (event.Message, error) {
	ctx, span := telemetry.StartSpan(ctx, "inventory.reserve")
	defer span.End()
	span.SetAttributes(
		attribute.String("order_id", cmd.OrderID),
		attribute.Int("lines", len(cmd.Items)),
	)

	ids := make([]string, 0, len(cmd.Items))
	for _, item := range cmd.Items {
		ids = append(ids, item.ProductID)
	}

	records, err := s.ledger.BatchGet(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stock for order %s: %w", cmd.OrderID, err)
	}
	byID := make(map[string]StockRecord, len(records))
	for _, r := range records {
		byID[r.ProductID] = r
	}

	// The idempotency check must come before the availability precheck: on a
	// replay the quantities already reflect this order's own decrement, so
	// judging them against the request would fail an order that holds its
	// stock.
	alreadyReserved, err := s.ledger.IsReserved(ctx, cmd.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to check reservation for order %s: %w", cmd.OrderID, err)
	}
	if alreadyReserved {
		s.logger.Info("stock already reserved, re-emitting snapshot",
			zap.String("order_id", cmd.OrderID))
		return s.snapshot(cmd, byID), nil
	}

	if failed, ok := s.precheck(cmd, byID); ok {
		return failed, nil
	}

	err = s.ledger.Reserve(ctx, cmd.OrderID, cmd.Items)
	switch {
	case err == nil:
	case errors.Is(err, ErrAlreadyReserved):
		// Lost a race against a concurrent duplicate delivery.
		s.logger.Info("stock already reserved, re-emitting snapshot",
			zap.String("order_id", cmd.OrderID))
	default:
		var missing *MissingProductsError
		var short *InsufficientStockError
		if errors.As(err, &missing) || errors.As(err, &short) {
			// Lost a race between precheck and decrement.
			return event.ProductsReservationFailed{
				OrderID: cmd.OrderID,
				Reason:  err.Error(),
			}, nil
		}
		return nil, fmt.Errorf("failed to reserve stock for order %s: %w", cmd.OrderID, err)
	}

	return s.snapshot(cmd, byID), nil
}

// snapshot builds the ProductsReserved reply: the requested quantities with
// title, description and unit price as read alongside the reservation.
func (s *Service) snapshot(cmd event.ReserveProducts, byID map[string]StockRecord) event.Message {
	reserved := make([]event.ReservedItem, 0, len(cmd.Items))
	for _, item := range cmd.Items {
		r := byID[item.ProductID]
		reserved = append(reserved, event.ReservedItem{
			ProductID:   item.ProductID,
			Title:       r.Title,
			Description: r.Description,
			Quantity:    item.Quantity,
			UnitPrice:   r.UnitPrice,
		})
	}
	return event.ProductsReserved{OrderID: cmd.OrderID, Items: reserved}
}

// precheck rejects orders that cannot possibly be satisfied before taking
// any locks. Each order line is checked independently, so duplicate product
// ids fail or pass per line; the ledger re-validates their sum atomically.
func (s *Service) precheck(cmd event.ReserveProducts, byID map[string]StockRecord) (event.Message, bool) {
	var missing []string
	seenMissing := make(map[string]bool)
	for _, item := range cmd.Items {
		if _, ok := byID[item.ProductID]; !ok && !seenMissing[item.ProductID] {
			seenMissing[item.ProductID] = true
			missing = append(missing, item.ProductID)
		}
	}
	if len(missing) > 0 {
		reason := (&MissingProductsError{ProductIDs: missing}).Error()
		s.logger.Info("reservation rejected",
			zap.String("order_id", cmd.OrderID),
			zap.String("reason", reason))
		return event.ProductsReservationFailed{OrderID: cmd.OrderID, Reason: reason}, true
	}

	var short []string
	seenShort := make(map[string]bool)
	for _, item := range cmd.Items {
		r := byID[item.ProductID]
		if r.Quantity < item.Quantity && !seenShort[item.ProductID] {
			seenShort[item.ProductID] = true
			short = append(short, item.ProductID)
		}
	}
	if len(short) > 0 {
		reason := (&InsufficientStockError{ProductIDs: short}).Error()
		s.logger.Info("reservation rejected",
			zap.String("order_id", cmd.OrderID),
			zap.String("reason", reason))
		return event.ProductsReservationFailed{OrderID: cmd.OrderID, Reason: reason}, true
	}

	return nil, false
}
