package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter counts failed attempts per key within a fixed window.
type Limiter interface {
	// Allow reports whether another attempt for key is permitted.
	Allow(ctx context.Context, key string) (bool, error)
	// Fail records a failed attempt.
	Fail(ctx context.Context, key string) error
	// Reset clears the counter, e.g. after a successful login.
	Reset(ctx context.Context, key string) error
}

func limitKey(key string) string {
	return "portal:login_fail:" + strings.ToLower(strings.TrimSpace(key))
}

// RedisLimiter keeps counters in Redis with INCR and EXPIRE NX, which
// needs Redis 7 or newer.
type RedisLimiter struct {
	rdb    *redis.Client
	max    int
	window time.Duration
}

// NewRedisLimiter creates a limiter allowing max failures per window.
func NewRedisLimiter(rdb *redis.Client, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, max: max, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	n, err := l.rdb.Get(ctx, limitKey(key)).Int()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading login counter: %w", err)
	}
	return n < l.max, nil
}

func (l *RedisLimiter) Fail(ctx context.Context, key string) error {
	// NX keeps the window anchored at the first failure while still giving
	// a counter that lost its TTL a fresh one.
	pipe := l.rdb.TxPipeline()
	pipe.Incr(ctx, limitKey(key))
	pipe.ExpireNX(ctx, limitKey(key), l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("counting login failure: %w", err)
	}
	return nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.rdb.Del(ctx, limitKey(key)).Err(); err != nil {
		return fmt.Errorf("resetting login counter: %w", err)
	}
	return nil
}

type window struct {
	count   int
	expires time.Time
}

// MemoryLimiter is the in-process Limiter.
type MemoryLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string]window
	now     func() time.Time
}

// NewMemoryLimiter creates a limiter allowing max failures per window.
func NewMemoryLimiter(max int, w time.Duration) *MemoryLimiter {
	return &MemoryLimiter{max: max, window: w, entries: make(map[string]window), now: time.Now}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[limitKey(key)]
	if !ok || l.now().After(e.expires) {
		return true, nil
	}
	return e.count < l.max, nil
}

func (l *MemoryLimiter) Fail(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := limitKey(key)
	e, ok := l.entries[k]
	if !ok || l.now().After(e.expires) {
		e = window{expires: l.now().Add(l.window)}
	}
	e.count++
	l.entries[k] = e
	return nil
}

func (l *MemoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, limitKey(key))
	return nil
}
