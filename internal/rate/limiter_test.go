package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, max int, window time.Duration) (*miniredis.Miniredis, *Limiter) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l, err := New(client, Config{Prefix: "t", MaxAttempts: max, Window: window})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return mr, l
}

func TestLimiterBlocksAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	_, l := newTestLimiter(t, 3, time.Minute)

	for i := 0; i < 2; i++ {
		if err := l.Fail(ctx, "a@b.com"); err != nil {
			t.Fatalf("attempt %d: unexpected error %v", i+1, err)
		}
	}
	if err := l.Check(ctx, "a@b.com"); err != nil {
		t.Fatalf("expected attempts left, got %v", err)
	}
	if err := l.Fail(ctx, "a@b.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on last attempt, got %v", err)
	}
	if err := l.Check(ctx, "a@b.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.Check(ctx, "other@b.com"); err != nil {
		t.Fatalf("subjects must be independent, got %v", err)
	}
}

func TestLimiterWindowExpires(t *testing.T) {
	ctx := context.Background()
	mr, l := newTestLimiter(t, 1, time.Minute)

	_ = l.Fail(ctx, "s")
	if ttl := mr.TTL("t:s"); ttl != time.Minute {
		t.Fatalf("expected window ttl, got %v", ttl)
	}
	mr.FastForward(2 * time.Minute)

	if err := l.Check(ctx, "s"); err != nil {
		t.Fatalf("expected fresh window, got %v", err)
	}
}

func TestLimiterReset(t *testing.T) {
	ctx := context.Background()
	_, l := newTestLimiter(t, 5, time.Minute)

	_ = l.Fail(ctx, "s")
	_ = l.Fail(ctx, "s")
	if n, err := l.Attempts(ctx, "s"); err != nil || n != 2 {
		t.Fatalf("expected 2 attempts, got %d (%v)", n, err)
	}
	if err := l.Reset(ctx, "s"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if n, _ := l.Attempts(ctx, "s"); n != 0 {
		t.Fatalf("expected 0 attempts after reset, got %d", n)
	}
}

func TestLimiterRedisDown(t *testing.T) {
	mr, l := newTestLimiter(t, 5, time.Minute)
	mr.Close()

	if err := l.Fail(context.Background(), "s"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
