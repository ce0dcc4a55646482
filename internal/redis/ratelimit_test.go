package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func setupTestRateLimiter(t *testing.T, limit int, window time.Duration) (*RateLimiter, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	client := &Client{rdb: rdb, logger: zap.NewNop()}

	limiter := NewRateLimiter(client, zap.NewNop(), RateLimitConfig{
		Limit:  limit,
		Window: window,
	})

	return limiter, mr, func() {
		rdb.Close()
		mr.Close()
	}
}

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	limiter, _, cleanup := setupTestRateLimiter(t, 5, time.Minute)
	defer cleanup()

	ctx := context.Background()

	for i := 0; i < 5; i++ {
		result, err := limiter.Allow(ctx, "user:abc")
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		if !result.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if result.Remaining != 4-i {
			t.Errorf("request %d: expected remaining %d, got %d", i, 4-i, result.Remaining)
		}
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	limiter, _, cleanup := setupTestRateLimiter(t, 3, time.Minute)
	defer cleanup()

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := limiter.Allow(ctx, "user:abc"); err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}

	result, err := limiter.Allow(ctx, "user:abc")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if result.Allowed {
		t.Error("request over the limit should be blocked")
	}
	if result.Remaining != 0 {
		t.Errorf("expected remaining 0, got %d", result.Remaining)
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	limiter, _, cleanup := setupTestRateLimiter(t, 1, time.Minute)
	defer cleanup()

	ctx := context.Background()

	if _, err := limiter.Allow(ctx, "user:abc"); err != nil {
		t.Fatalf("first request failed: %v", err)
	}

	result, err := limiter.Allow(ctx, "user:xyz")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !result.Allowed {
		t.Error("another key must have its own budget")
	}
}
