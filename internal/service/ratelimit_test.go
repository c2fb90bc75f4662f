package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// =============================================================================
// MemoryRateLimiter Tests
// =============================================================================

func TestMemoryRateLimiter_Check(t *testing.T) {
	limiter := NewMemoryRateLimiter(time.Hour)
	defer limiter.Stop()

	cfg := LimitConfig{Window: 15 * time.Minute, MaxRequests: 5}

	for i := 1; i <= 5; i++ {
		result, err := limiter.Check(context.Background(), "login:10.0.0.1", cfg)
		if err != nil {
			t.Fatalf("Check() #%d error = %v", i, err)
		}
		if !result.Allowed {
			t.Fatalf("Check() #%d allowed = false, want true", i)
		}
		if want := 5 - i; result.Remaining != want {
			t.Errorf("Check() #%d remaining = %d, want %d", i, result.Remaining, want)
		}
	}

	// The 6th request within the window is itself counted and rejected.
	result, err := limiter.Check(context.Background(), "login:10.0.0.1", cfg)
	if err != nil {
		t.Fatalf("Check() #6 error = %v", err)
	}
	if result.Allowed {
		t.Error("Check() #6 allowed = true, want false")
	}
	if result.Remaining != 0 {
		t.Errorf("Check() #6 remaining = %d, want 0", result.Remaining)
	}
	if result.RetryAfter <= 0 || result.RetryAfter > cfg.Window {
		t.Errorf("Check() #6 retryAfter = %v, want within (0, %v]", result.RetryAfter, cfg.Window)
	}
}

func TestMemoryRateLimiter_KeysAreIndependent(t *testing.T) {
	limiter := NewMemoryRateLimiter(time.Hour)
	defer limiter.Stop()

	cfg := LimitConfig{Window: time.Minute, MaxRequests: 1}

	if result, _ := limiter.Check(context.Background(), "login:10.0.0.1", cfg); !result.Allowed {
		t.Fatal("first key first request should be allowed")
	}
	if result, _ := limiter.Check(context.Background(), "login:10.0.0.1", cfg); result.Allowed {
		t.Error("first key second request should be blocked")
	}
	if result, _ := limiter.Check(context.Background(), "login:10.0.0.2", cfg); !result.Allowed {
		t.Error("a different key must not share the counter")
	}
	if result, _ := limiter.Check(context.Background(), "signup:10.0.0.1", cfg); !result.Allowed {
		t.Error("a different action must not share the counter")
	}
}

func TestMemoryRateLimiter_WindowReset(t *testing.T) {
	limiter := NewMemoryRateLimiter(time.Hour)
	defer limiter.Stop()

	cfg := LimitConfig{Window: 50 * time.Millisecond, MaxRequests: 2}

	limiter.Check(context.Background(), "k", cfg)
	limiter.Check(context.Background(), "k", cfg)
	if result, _ := limiter.Check(context.Background(), "k", cfg); result.Allowed {
		t.Fatal("3rd request within window should be blocked")
	}

	time.Sleep(60 * time.Millisecond)

	// After the reset time the counter behaves like a fresh first request.
	result, _ := limiter.Check(context.Background(), "k", cfg)
	if !result.Allowed {
		t.Error("request after window reset should be allowed")
	}
	if result.Remaining != 1 {
		t.Errorf("remaining after reset = %d, want 1", result.Remaining)
	}
}

func TestMemoryRateLimiter_Cleanup(t *testing.T) {
	limiter := NewMemoryRateLimiter(time.Hour)
	defer limiter.Stop()

	cfg := LimitConfig{Window: 10 * time.Millisecond, MaxRequests: 5}
	limiter.Check(context.Background(), "stale", cfg)
	limiter.Check(context.Background(), "fresh", LimitConfig{Window: time.Hour, MaxRequests: 5})

	time.Sleep(20 * time.Millisecond)
	limiter.cleanup(time.Now())

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	if _, ok := limiter.counters["stale"]; ok {
		t.Error("expired counter should have been swept")
	}
	if _, ok := limiter.counters["fresh"]; !ok {
		t.Error("live counter should survive the sweep")
	}
}

// =============================================================================
// RedisRateLimiter Tests
// =============================================================================

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	return redis.NewClient(&redis.Options{Addr: mr.Addr()}), mr
}

func TestRedisRateLimiter_Check(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := NewRedisRateLimiter(client)

	cfg := LimitConfig{Window: 15 * time.Minute, MaxRequests: 3}

	for i := 1; i <= 3; i++ {
		result, err := limiter.Check(context.Background(), "reset:10.0.0.9", cfg)
		if err != nil {
			t.Fatalf("Check() #%d error = %v", i, err)
		}
		if !result.Allowed {
			t.Fatalf("Check() #%d allowed = false, want true", i)
		}
	}

	result, err := limiter.Check(context.Background(), "reset:10.0.0.9", cfg)
	if err != nil {
		t.Fatalf("Check() #4 error = %v", err)
	}
	if result.Allowed {
		t.Error("Check() #4 allowed = true, want false")
	}
}

func TestRedisRateLimiter_WindowReset(t *testing.T) {
	client, mr := setupTestRedis(t)
	limiter := NewRedisRateLimiter(client)

	cfg := LimitConfig{Window: time.Minute, MaxRequests: 1}

	limiter.Check(context.Background(), "k", cfg)
	if result, _ := limiter.Check(context.Background(), "k", cfg); result.Allowed {
		t.Fatal("2nd request should be blocked")
	}

	mr.FastForward(2 * time.Minute)

	result, err := limiter.Check(context.Background(), "k", cfg)
	if err != nil {
		t.Fatalf("Check() after expiry error = %v", err)
	}
	if !result.Allowed {
		t.Error("request after key expiry should be allowed")
	}
}

func TestRedisRateLimiter_StoreUnavailable(t *testing.T) {
	client, mr := setupTestRedis(t)
	limiter := NewRedisRateLimiter(client)
	mr.Close()

	if _, err := limiter.Check(context.Background(), "k", LimitLogin); err == nil {
		t.Error("Check() with redis down should return an error, not fail open")
	}
}
