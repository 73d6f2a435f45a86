package rate

import (
	"context"
	"time"

	"github.com/MrEthical07/sessionguard/kvstore"
)

// Config holds throttle tuning parameters. A zero limit disables that throttle.
type Config struct {
	MaxRefreshPerWindow int
	RefreshWindow       time.Duration

	MaxResetPerWindow int
	ResetWindow       time.Duration
}

// Limiter enforces fixed-window budgets on top of the key-value store.
type Limiter struct {
	kv     *kvstore.Store
	config Config
}

// New creates a rate [Limiter] backed by kv.
func New(kv *kvstore.Store, cfg Config) *Limiter {
	return &Limiter{kv: kv, config: cfg}
}

// CheckRefresh spends one unit of the per-session refresh budget.
func (l *Limiter) CheckRefresh(ctx context.Context, sessionID string) error {
	if l == nil || l.config.MaxRefreshPerWindow <= 0 {
		return nil
	}
	return l.Allow(ctx, refreshKey(sessionID), l.config.MaxRefreshPerWindow, l.config.RefreshWindow)
}

// CheckReset spends one unit of the per-email and per-IP reset budgets.
func (l *Limiter) CheckReset(ctx context.Context, email, ip string) error {
	if l == nil || l.config.MaxResetPerWindow <= 0 {
		return nil
	}
	if err := l.Allow(ctx, resetKey(email), l.config.MaxResetPerWindow, l.config.ResetWindow); err != nil {
		return err
	}
	if ip == "" {
		return nil
	}
	return l.Allow(ctx, resetIPKey(ip), l.config.MaxResetPerWindow, l.config.ResetWindow)
}

// Allow increments key and returns [ErrRateLimited] once the count passes max.
func (l *Limiter) Allow(ctx context.Context, key string, max int, window time.Duration) error {
	count, err := l.kv.Increment(ctx, key)
	if err != nil {
		l.kv.FailOpen("rate.allow", err)
		return nil
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.kv.Expire(ctx, key, window); err != nil {
			l.kv.FailOpen("rate.expire", err)
		}
	}

	if count > int64(max) {
		return ErrRateLimited
	}
	return nil
}

func refreshKey(sessionID string) string {
	return "throttle:refresh:" + sessionID
}

func resetKey(email string) string {
	return "throttle:reset:" + email
}

func resetIPKey(ip string) string {
	return "throttle:reset_ip:" + ip
}
