package api

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"portwarden/config"
)

func TestRedisStore_Incr(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := NewRedisStore(client)
	store.now = func() time.Time { return time.Unix(120, 0) }
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := store.Incr(ctx, "192.0.2.1", time.Minute)
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if got != want {
			t.Fatalf("count = %d want %d", got, want)
		}
	}

	const key = "ratelimit:192.0.2.1:2"
	if ttl := mr.TTL(key); ttl != time.Minute {
		t.Fatalf("ttl of %s = %s, want 1m", key, ttl)
	}

	mr.FastForward(time.Minute)
	if got, _ := store.Incr(ctx, "192.0.2.1", time.Minute); got != 1 {
		t.Fatalf("count after expiry = %d, want 1", got)
	}
	if got, _ := store.Incr(ctx, "198.51.100.7", time.Minute); got != 1 {
		t.Fatalf("clients share a counter")
	}
}

func TestRedisStore_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	mr.Close()

	if _, err := NewRedisStore(client).Incr(context.Background(), "192.0.2.1", time.Minute); err == nil {
		t.Fatalf("expected an error from a stopped redis")
	}
}

func TestMemoryStore_Incr(t *testing.T) {
	now := time.Unix(600, 0)
	store := NewMemoryStore()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	store.Incr(ctx, "a", time.Minute)
	if got, _ := store.Incr(ctx, "a", time.Minute); got != 2 {
		t.Fatalf("count = %d want 2", got)
	}
	if got, _ := store.Incr(ctx, "b", time.Minute); got != 1 {
		t.Fatalf("clients share a counter")
	}

	now = now.Add(time.Minute)
	if got, _ := store.Incr(ctx, "a", time.Minute); got != 1 {
		t.Fatalf("count in the next window = %d want 1", got)
	}
}

func TestNewCounterStore(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()

	store, closeStore, err := NewCounterStore(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	closeStore()
	if _, ok := store.(*MemoryStore); !ok {
		t.Fatalf("got %T, want *MemoryStore", store)
	}

	mr := miniredis.RunT(t)
	cfg.RedisAddr = mr.Addr()
	store, closeStore, err = NewCounterStore(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closeStore()
	if _, ok := store.(*RedisStore); !ok {
		t.Fatalf("got %T, want *RedisStore", store)
	}

	down := miniredis.RunT(t)
	cfg.RedisAddr = down.Addr()
	down.Close()
	if _, _, err := NewCounterStore(ctx, cfg, zap.NewNop()); err == nil {
		t.Fatalf("expected an error for an unreachable redis")
	}
}
