// Package inventory implements the product reservation protocol: the
// atomic, all-or-nothing validate-and-decrement of stock for an order.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/TeseySTD/ecommerce-order-saga/internal/event"
)

// ErrAlreadyReserved is returned by Reserve when stock for the order id was
// already decremented by an earlier delivery.
var ErrAlreadyReserved = errors.New("stock already reserved for order")

// MissingProductsError reports requested product ids that do not exist.
type MissingProductsError struct {
	ProductIDs []string
}

func (e *MissingProductsError) Error() string {
	return "Products not found: " + strings.Join(e.ProductIDs, ", ")
}

// InsufficientStockError reports products whose available quantity cannot
// cover the requested quantity.
type InsufficientStockError struct {
	ProductIDs []string
}

func (e *InsufficientStockError) Error() string {
	phrases := make([]string, len(e.ProductIDs))
	for i, id := range e.ProductIDs {
		phrases[i] = fmt.Sprintf("Insufficient quantity for product %s", id)
	}
	return strings.Join(phrases, "; ")
}

// StockRecord is one product row in the ledger.
type StockRecord struct {
	ProductID   string  `json:"product_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// Ledger is the transactional stock store.
//
// Reserve is atomic and all-or-nothing: either every line is decremented or
// none is. It is idempotent per order id (ErrAlreadyReserved on replay) and
// re-validates existence and quantity under its own lock, returning
// *MissingProductsError or *InsufficientStockError when a check fails.
// Quantity never goes negative; an uncoverable decrement is rejected, not
// clamped.
//
// IsReserved reports whether an earlier Reserve already decremented stock
// for the order. Callers must consult it before re-validating availability:
// a replayed command sees quantities its own first delivery decremented, and
// judging those against the requested amounts would reject an order that in
// fact holds its stock.
type Ledger interface {
	BatchGet(ctx context.Context, productIDs []string) ([]StockRecord, error)
	IsReserved(ctx context.Context, orderID string) (bool, error)
	Reserve(ctx context.Context, orderID string, lines []event.OrderItem) error
}

// aggregate sums requested quantity per product id. Duplicate product ids in
// an order are independent lines, but the atomic decrement must cover their
// sum.
func aggregate(lines []event.OrderItem) map[string]int {
	totals := make(map[string]int, len(lines))
	for _, line := range lines {
		totals[line.ProductID] += line.Quantity
	}
	return totals
}

// sortedIDs returns the keys of the aggregate in deterministic order so
// failure reasons and lock acquisition order are stable.
func sortedIDs(totals map[string]int) []string {
	ids := make([]string, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MemoryLedger is an in-memory Ledger for tests and local runs.
type MemoryLedger struct {
	mu       sync.Mutex
	records  map[string]*StockRecord
	reserved map[string]bool
}

// NewMemoryLedger creates a ledger seeded with the given records
func NewMemoryLedger(records ...StockRecord) *MemoryLedger {
	l := &MemoryLedger{
		records:  make(map[string]*StockRecord, len(records)),
		reserved: make(map[string]bool),
	}
	for i := range records {
		r := records[i]
		l.records[r.ProductID] = &r
	}
	return l
}

// BatchGet returns the records for every id that exists
func (l *MemoryLedger) BatchGet(ctx context.Context, productIDs []string) ([]StockRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	seen := make(map[string]bool, len(productIDs))
	var result []StockRecord
	for _, id := range productIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if r, ok := l.records[id]; ok {
			result = append(result, *r)
		}
	}
	return result, nil
}

// IsReserved reports whether the order already holds its stock
func (l *MemoryLedger) IsReserved(ctx context.Context, orderID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reserved[orderID], nil
}

// Reserve atomically decrements stock for every line, all-or-nothing
func (l *MemoryLedger) Reserve(ctx context.Context, orderID string, lines []event.OrderItem) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.reserved[orderID] {
		return ErrAlreadyReserved
	}

	totals := aggregate(lines)

	var missing, short []string
	for _, id := range sortedIDs(totals) {
		r, ok := l.records[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		if r.Quantity < totals[id] {
			short = append(short, id)
		}
	}
	if len(missing) > 0 {
		return &MissingProductsError{ProductIDs: missing}
	}
	if len(short) > 0 {
		return &InsufficientStockError{ProductIDs: short}
	}

	for id, qty := range totals {
		l.records[id].Quantity -= qty
	}
	l.reserved[orderID] = true
	return nil
}

// Quantity returns the current stock for a product (for testing)
func (l *MemoryLedger) Quantity(productID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok := l.records[productID]; ok {
		return r.Quantity
	}
	return 0
}
