package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CounterStore counts hits per key inside fixed time windows. It backs the rate limiter.
type CounterStore interface {
	// Incr adds one hit for key in the window containing now and returns the window total.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisStore implements CounterStore on Redis so several API instances share one budget.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisStore constructs a Redis-backed counter store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) windowKey(key string, window time.Duration) string {
	slot := s.now().UnixNano() / int64(window)
	return fmt.Sprintf("ratelimit:%s:%d", key, slot)
}

// Incr implements CounterStore with INCR and EXPIRE in one transaction.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	redisKey := s.windowKey(key, window)
	pipe := s.client.TxPipeline()
	counter := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("rate counter %s: %w", redisKey, err)
	}
	return counter.Val(), nil
}

// MemoryStore implements CounterStore in process memory. It is used when no Redis address
// is configured.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
	now      func() time.Time
}

type memoryCounter struct {
	slot  int64
	count int64
}

// NewMemoryStore constructs an in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]*memoryCounter), now: time.Now}
}

// Incr implements CounterStore.
func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	slot := s.now().UnixNano() / int64(window)

	s.mu.Lock()
	defer s.mu.Unlock()

	counter, ok := s.counters[key]
	if !ok || counter.slot != slot {
		if len(s.counters) > 4096 {
			s.prune(slot)
		}
		counter = &memoryCounter{slot: slot}
		s.counters[key] = counter
	}
	counter.count++
	return counter.count, nil
}

// prune drops counters of past windows. Callers hold s.mu.
func (s *MemoryStore) prune(slot int64) {
	for key, counter := range s.counters {
		if counter.slot != slot {
			delete(s.counters, key)
		}
	}
}
