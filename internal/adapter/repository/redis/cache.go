package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iho/custodyledger/internal/infrastructure/metrics"
	"github.com/iho/custodyledger/internal/usecase"
)

// Cache implements usecase.Cache using Redis.
type Cache struct {
	client  *redis.Client
	prefix  string
	metrics *metrics.Metrics
}

// NewCache creates a new Cache.
func NewCache(client *redis.Client) *Cache {
	return &Cache{
		client: client,
		prefix: "cache:",
	}
}

// WithMetrics counts operations and failures.
func (c *Cache) WithMetrics(m *metrics.Metrics) *Cache {
	c.metrics = m
	return c
}

// Get retrieves a value by key. A missing key yields nil without error.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.observe("cache_get", nil)
		return nil, nil
	}
	c.observe("cache_get", err)
	return val, err
}

// Set stores a value with TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := c.client.Set(ctx, c.prefix+key, value, ttl).Err()
	c.observe("cache_set", err)
	return err
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	err := c.client.Del(ctx, c.prefix+key).Err()
	c.observe("cache_delete", err)
	return err
}

func (c *Cache) observe(operation string, err error) {
	observe(c.metrics, operation, err)
}

func observe(m *metrics.Metrics, operation string, err error) {
	if m == nil {
		return
	}
	m.RedisOperations.WithLabelValues(operation).Inc()
	if err != nil {
		m.RedisErrors.WithLabelValues(operation).Inc()
	}
}

var _ usecase.Cache = (*Cache)(nil)
