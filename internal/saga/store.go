package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	// ErrInstanceNotFound is returned when no instance exists for an order id
	ErrInstanceNotFound = errors.New("saga instance not found")
	// ErrInstanceExists is returned when saving a duplicate instance
	ErrInstanceExists = errors.New("saga instance already exists")
)

// Store persists saga instances keyed by order id.
type Store interface {
	// Save persists a new instance; ErrInstanceExists on duplicate order id.
	Save(ctx context.Context, inst *Instance) error
	// Get retrieves an instance by order id; ErrInstanceNotFound when absent.
	Get(ctx context.Context, orderID string) (*Instance, error)
	// Update overwrites an existing instance; ErrInstanceNotFound when absent.
	Update(ctx context.Context, inst *Instance) error
	// ListStalled returns non-final instances not updated since the cutoff,
	// oldest first.
	ListStalled(ctx context.Context, cutoff time.Time, limit int) ([]*Instance, error)
}

// MemoryStore is an in-memory Store used by tests and single-process runs.
type MemoryStore struct {
	mu        sync.RWMutex
	instances map[string]*Instance
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{instances: make(map[string]*Instance)}
}

// Save persists a new instance
func (s *MemoryStore) Save(ctx context.Context, inst *Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.instances[inst.OrderID]; exists {
		return ErrInstanceExists
	}

	copied, err := deepCopy(inst)
	if err != nil {
		return err
	}
	s.instances[inst.OrderID] = copied
	return nil
}

// Get retrieves an instance by order id
func (s *MemoryStore) Get(ctx context.Context, orderID string) (*Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, exists := s.instances[orderID]
	if !exists {
		return nil, ErrInstanceNotFound
	}
	return deepCopy(inst)
}

// Update overwrites an existing instance
func (s *MemoryStore) Update(ctx context.Context, inst *Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.instances[inst.OrderID]; !exists {
		return ErrInstanceNotFound
	}

	copied, err := deepCopy(inst)
	if err != nil {
		return err
	}
	s.instances[inst.OrderID] = copied
	return nil
}

// ListStalled returns non-final instances not updated since the cutoff
func (s *MemoryStore) ListStalled(ctx context.Context, cutoff time.Time, limit int) ([]*Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Instance
	for _, inst := range s.instances {
		if inst.State.IsFinal() || !inst.UpdatedAt.Before(cutoff) {
			continue
		}
		copied, err := deepCopy(inst)
		if err != nil {
			return nil, err
		}
		result = append(result, copied)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.Before(result[j].UpdatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Count returns the number of stored instances (for testing)
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.instances)
}

// deepCopy clones an instance through JSON so callers cannot alias stored state.
func deepCopy(inst *Instance) (*Instance, error) {
	data, err := json.Marshal(inst)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal instance: %w", err)
	}
	var copied Instance
	if err := json.Unmarshal(data, &copied); err != nil {
		return nil, fmt.Errorf("failed to unmarshal instance: %w", err)
	}
	return &copied, nil
}
