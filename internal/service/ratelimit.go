package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// LimitConfig describes one rate-limit window.
type LimitConfig struct {
	Window      time.Duration
	MaxRequests int
}

// Preset limits, keyed by action.
var (
	LimitLogin         = LimitConfig{Window: 15 * time.Minute, MaxRequests: 5}
	LimitPasswordReset = LimitConfig{Window: time.Hour, MaxRequests: 3}
	LimitSignup        = LimitConfig{Window: time.Hour, MaxRequests: 5}
	LimitGeneral       = LimitConfig{Window: time.Minute, MaxRequests: 60}
)

// LimitResult is the outcome of one rate-limit check.
type LimitResult struct {
	Allowed    bool
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// RateLimiter counts requests per key within a rolling window. Counting is
// best-effort: concurrent checks on the same key may both observe a stale
// count. Keys are typically "action:clientIP".
type RateLimiter interface {
	Check(ctx context.Context, identifier string, cfg LimitConfig) (LimitResult, error)
}

type rateLimitCounter struct {
	count     int
	resetTime time.Time
}

// MemoryRateLimiter is the process-local limiter. A background sweep removes
// expired counters to bound memory.
type MemoryRateLimiter struct {
	mu       sync.Mutex
	counters map[string]*rateLimitCounter
	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryRateLimiter creates a process-local limiter and starts its cleanup
// sweep at the given interval.
func NewMemoryRateLimiter(cleanupInterval time.Duration) *MemoryRateLimiter {
	l := &MemoryRateLimiter{
		counters: make(map[string]*rateLimitCounter),
		stop:     make(chan struct{}),
	}
	go l.sweep(cleanupInterval)
	return l
}

func (l *MemoryRateLimiter) Check(_ context.Context, identifier string, cfg LimitConfig) (LimitResult, error) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	counter, ok := l.counters[identifier]
	if !ok || !now.Before(counter.resetTime) {
		counter = &rateLimitCounter{resetTime: now.Add(cfg.Window)}
		l.counters[identifier] = counter
	}

	// The request that exceeds the limit is itself counted.
	counter.count++

	result := LimitResult{
		Allowed:   counter.count <= cfg.MaxRequests,
		Remaining: max(0, cfg.MaxRequests-counter.count),
		ResetTime: counter.resetTime,
	}
	if !result.Allowed {
		result.RetryAfter = counter.resetTime.Sub(now)
	}
	return result, nil
}

// Stop halts the cleanup sweep.
func (l *MemoryRateLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *MemoryRateLimiter) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup(time.Now())
		case <-l.stop:
			return
		}
	}
}

func (l *MemoryRateLimiter) cleanup(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, counter := range l.counters {
		if !now.Before(counter.resetTime) {
			delete(l.counters, key)
		}
	}
}

// RedisRateLimiter shares counters across processes via INCR with an EXPIRE
// set on the first request of each window. Redis being unavailable fails the
// check; callers must not treat that as allowed.
type RedisRateLimiter struct {
	client *redis.Client
}

// NewRedisRateLimiter creates a limiter backed by the given redis client.
func NewRedisRateLimiter(client *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{client: client}
}

func (l *RedisRateLimiter) Check(ctx context.Context, identifier string, cfg LimitConfig) (LimitResult, error) {
	key := "ratelimit:" + identifier

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return LimitResult{}, fmt.Errorf("rate limit store unavailable: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, cfg.Window).Err(); err != nil {
			return LimitResult{}, fmt.Errorf("rate limit store unavailable: %w", err)
		}
	}

	ttl, err := l.client.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = cfg.Window
	}

	result := LimitResult{
		Allowed:   count <= int64(cfg.MaxRequests),
		Remaining: max(0, cfg.MaxRequests-int(count)),
		ResetTime: time.Now().Add(ttl),
	}
	if !result.Allowed {
		result.RetryAfter = ttl
	}
	return result, nil
}
