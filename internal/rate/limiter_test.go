package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/sessionguard/kvstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(kvstore.New(rdb), cfg), mr
}

func TestCheckRefreshFixedWindow(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxRefreshPerWindow: 2, RefreshWindow: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.CheckRefresh(ctx, "sid"); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}
	if err := l.CheckRefresh(ctx, "sid"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.CheckRefresh(ctx, "other"); err != nil {
		t.Fatalf("other session should have its own budget: %v", err)
	}

	mr.FastForward(61 * time.Second)
	if err := l.CheckRefresh(ctx, "sid"); err != nil {
		t.Fatalf("expected new window, got %v", err)
	}
}

func TestCheckResetCountsIP(t *testing.T) {
	l, _ := newTestLimiter(t, Config{MaxResetPerWindow: 1, ResetWindow: time.Minute})
	ctx := context.Background()

	if err := l.CheckReset(ctx, "a@example.com", "1.2.3.4"); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := l.CheckReset(ctx, "b@example.com", "1.2.3.4"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ip budget to be spent, got %v", err)
	}
}

func TestDisabledLimiterAllowsEverything(t *testing.T) {
	l, _ := newTestLimiter(t, Config{})
	for i := 0; i < 10; i++ {
		if err := l.CheckRefresh(context.Background(), "sid"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	var nilLimiter *Limiter
	if err := nilLimiter.CheckReset(context.Background(), "x", "y"); err != nil {
		t.Fatalf("nil limiter: %v", err)
	}
}

func TestLimiterFailsOpen(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxRefreshPerWindow: 1, RefreshWindow: time.Minute})
	mr.Close()

	for i := 0; i < 3; i++ {
		if err := l.CheckRefresh(context.Background(), "sid"); err != nil {
			t.Fatalf("expected fail-open, got %v", err)
		}
	}
}
