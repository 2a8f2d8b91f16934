package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iho/custodyledger/internal/infrastructure/metrics"
	"github.com/iho/custodyledger/internal/usecase"
)

// processingMarker holds a key while its first request is in flight.
const processingMarker = "processing"

// IdempotencyStore implements usecase.IdempotencyStore using Redis.
type IdempotencyStore struct {
	client  *redis.Client
	prefix  string
	metrics *metrics.Metrics
}

// NewIdempotencyStore creates a new IdempotencyStore.
func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{
		client: client,
		prefix: "idempotency:",
	}
}

// WithMetrics counts operations and failures.
func (s *IdempotencyStore) WithMetrics(m *metrics.Metrics) *IdempotencyStore {
	s.metrics = m
	return s
}

// CheckAndSet claims key with SETNX. When the key is already taken it
// returns true and the stored value, which is the processing marker while
// the first request has not finished.
func (s *IdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	fullKey := s.prefix + key

	value := response
	if value == nil {
		value = []byte(processingMarker)
	}

	// A key released between SETNX and GET is claimed on the second pass.
	for attempt := 0; attempt < 2; attempt++ {
		set, err := s.client.SetNX(ctx, fullKey, value, ttl).Result()
		observe(s.metrics, "idempotency_claim", err)
		if err != nil {
			return false, nil, err
		}
		if set {
			return false, nil, nil
		}

		existing, err := s.client.Get(ctx, fullKey).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		observe(s.metrics, "idempotency_get", err)
		if err != nil {
			return false, nil, err
		}

		return true, existing, nil
	}

	return true, []byte(processingMarker), nil
}

// Update updates an existing idempotency key with the final response.
func (s *IdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	err := s.client.Set(ctx, s.prefix+key, response, ttl).Err()
	observe(s.metrics, "idempotency_update", err)
	return err
}

// Release deletes key.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	err := s.client.Del(ctx, s.prefix+key).Err()
	observe(s.metrics, "idempotency_release", err)
	return err
}

// IsProcessing reports whether value is the in-flight marker.
func IsProcessing(value []byte) bool {
	return string(value) == processingMarker
}

var _ usecase.IdempotencyStore = (*IdempotencyStore)(nil)
