package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrOrderExists   = errors.New("order already exists")
)

// Store persists orders and the product shadow table.
type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, orderID string) (*Order, error)
	Update(ctx context.Context, o *Order) error
	UpsertProducts(ctx context.Context, products []ProductShadow) error
}

// MemoryStore is an in-memory Store for tests and local runs.
type MemoryStore struct {
	mu       sync.RWMutex
	orders   map[string]*Order
	products map[string]ProductShadow
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:   make(map[string]*Order),
		products: make(map[string]ProductShadow),
	}
}

func (s *MemoryStore) Create(ctx context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return ErrOrderExists
	}
	copied, err := deepCopy(o)
	if err != nil {
		return err
	}
	s.orders[o.ID] = copied
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, orderID string) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return deepCopy(o)
}

func (s *MemoryStore) Update(ctx context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; !ok {
		return ErrOrderNotFound
	}
	copied, err := deepCopy(o)
	if err != nil {
		return err
	}
	s.orders[o.ID] = copied
	return nil
}

func (s *MemoryStore) UpsertProducts(ctx context.Context, products []ProductShadow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		s.products[p.ProductID] = p
	}
	return nil
}

// Product returns a shadow record by id (for testing)
func (s *MemoryStore) Product(productID string) (ProductShadow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[productID]
	return p, ok
}

func deepCopy(o *Order) (*Order, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order: %w", err)
	}
	var copied Order
	if err := json.Unmarshal(data, &copied); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order: %w", err)
	}
	return &copied, nil
}
