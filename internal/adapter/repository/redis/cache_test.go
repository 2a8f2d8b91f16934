package redis

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/iho/custodyledger/internal/infrastructure/metrics"
)

func TestCacheSetAndGet(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	cache := NewCache(client)
	ctx := context.Background()

	if err := cache.Set(ctx, "report", []byte(`{"total":1}`), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	val, err := cache.Get(ctx, "report")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	if string(val) != `{"total":1}` {
		t.Fatalf("unexpected value %s", val)
	}

	if !mr.Exists(cache.prefix + "report") {
		t.Fatalf("expected key to be stored under prefix")
	}
}

func TestCacheMissReturnsNil(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	val, err := NewCache(client).Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("expected no error on miss, got %v", err)
	}
	if val != nil {
		t.Fatalf("expected nil on miss, got %q", val)
	}
}

func TestCacheExpires(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	cache := NewCache(client)
	ctx := context.Background()

	if err := cache.Set(ctx, "short", []byte("v"), time.Second); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	mr.FastForward(2 * time.Second)

	if val, _ := cache.Get(ctx, "short"); val != nil {
		t.Fatalf("expected expired key, got %q", val)
	}
}

func TestCacheDelete(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	cache := NewCache(client)
	ctx := context.Background()

	if err := cache.Set(ctx, "foo", []byte("bar"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	if err := cache.Delete(ctx, "foo"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if val, err := cache.Get(ctx, "foo"); err != nil || val != nil {
		t.Fatalf("expected deleted key to miss, got val=%q err=%v", val, err)
	}
}

func TestCacheCountsErrors(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer client.Close()

	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	cache := NewCache(client).WithMetrics(m)

	mr.Close()
	if _, err := cache.Get(context.Background(), "foo"); err == nil {
		t.Fatalf("expected error with server down")
	}

	if got := testutil.ToFloat64(m.RedisErrors.WithLabelValues("cache_get")); got != 1 {
		t.Fatalf("expected 1 redis error, got %v", got)
	}
	if got := testutil.ToFloat64(m.RedisOperations.WithLabelValues("cache_get")); got != 1 {
		t.Fatalf("expected 1 redis operation, got %v", got)
	}
}
