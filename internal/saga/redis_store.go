package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on Redis. Instances are JSON values under a
// key prefix, bounded by a TTL, so a leaked workflow eventually expires
// instead of accumulating forever.
type RedisStore struct {
	client     *redis.Client
	keyPrefix  string
	expiration time.Duration
}

// NewRedisStore creates a Redis-backed saga store
func NewRedisStore(client *redis.Client, keyPrefix string, expiration time.Duration) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "saga:order:"
	}
	if expiration == 0 {
		expiration = 24 * time.Hour
	}
	return &RedisStore{
		client:     client,
		keyPrefix:  keyPrefix,
		expiration: expiration,
	}
}

func (s *RedisStore) key(orderID string) string {
	return s.keyPrefix + orderID
}

// Save persists a new instance
func (s *RedisStore) Save(ctx context.Context, inst *Instance) error {
	data, err := json.Marshal(inst)
	if err != nil {
		return fmt.Errorf("failed to marshal saga instance: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.key(inst.OrderID), data, s.expiration).Result()
	if err != nil {
		return fmt.Errorf("failed to save saga instance: %w", err)
	}
	if !ok {
		return ErrInstanceExists
	}
	return nil
}

// Get retrieves an instance by order id
func (s *RedisStore) Get(ctx context.Context, orderID string) (*Instance, error) {
	data, err := s.client.Get(ctx, s.key(orderID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrInstanceNotFound
		}
		return nil, fmt.Errorf("failed to get saga instance: %w", err)
	}

	var inst Instance
	if err := json.Unmarshal([]byte(data), &inst); err != nil {
		return nil, fmt.Errorf("failed to unmarshal saga instance: %w", err)
	}
	return &inst, nil
}

// Update overwrites an existing instance
func (s *RedisStore) Update(ctx context.Context, inst *Instance) error {
	exists, err := s.client.Exists(ctx, s.key(inst.OrderID)).Result()
	if err != nil {
		return fmt.Errorf("failed to check saga instance: %w", err)
	}
	if exists == 0 {
		return ErrInstanceNotFound
	}

	data, err := json.Marshal(inst)
	if err != nil {
		return fmt.Errorf("failed to marshal saga instance: %w", err)
	}
	if err := s.client.Set(ctx, s.key(inst.OrderID), data, s.expiration).Err(); err != nil {
		return fmt.Errorf("failed to update saga instance: %w", err)
	}
	return nil
}

// ListStalled returns non-final instances not updated since the cutoff.
// This walks the keyspace with SCAN and is intended for the low-frequency
// stalled-saga reporter, not the hot path.
func (s *RedisStore) ListStalled(ctx context.Context, cutoff time.Time, limit int) ([]*Instance, error) {
	var result []*Instance

	iter := s.client.Scan(ctx, 0, s.keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Result()
		if err != nil {
			continue
		}

		var inst Instance
		if err := json.Unmarshal([]byte(data), &inst); err != nil {
			continue
		}

		if inst.State.IsFinal() || !inst.UpdatedAt.Before(cutoff) {
			continue
		}

		result = append(result, &inst)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan saga instances: %w", err)
	}

	return result, nil
}
