package limiters

import (
	"context"
	"strconv"
	"time"

	"github.com/MrEthical07/sessionguard/kvstore"
)

const (
	failedAttemptsPrefix = "failed_attempts:"
	accountLockPrefix    = "account_lock:"

	// DefaultLockoutWindow is the counter and lock lifetime used when the
	// config leaves it unset.
	DefaultLockoutWindow = 15 * time.Minute
)

// LockoutConfig holds the failed-attempt window.
type LockoutConfig struct {
	Window time.Duration
}

// FailedAttemptTracker counts failed logins per identifier and holds the
// companion lock flag. It never decides when to lock; the login flow does.
//
// Reads fail open: a store outage reports zero attempts and no lock, so an
// outage never blocks logins on its own.
type FailedAttemptTracker struct {
	kv     *kvstore.Store
	window time.Duration
}

// NewFailedAttemptTracker creates a tracker on top of kv.
func NewFailedAttemptTracker(kv *kvstore.Store, cfg LockoutConfig) *FailedAttemptTracker {
	if cfg.Window <= 0 {
		cfg.Window = DefaultLockoutWindow
	}
	return &FailedAttemptTracker{kv: kv, window: cfg.Window}
}

// Identifier builds the tracker key component for an email and source IP.
func Identifier(email, ip string) string {
	return email + "|" + ip
}

func counterKey(identifier string) string {
	return failedAttemptsPrefix + identifier
}

func lockKey(identifier string) string {
	return accountLockPrefix + identifier
}

// Window returns the configured lockout window.
func (t *FailedAttemptTracker) Window() time.Duration {
	return t.window
}

// RecordFailure increments the counter and re-arms its TTL, so the window
// rolls from the most recent failure.
//
//	Performance: 2 Redis commands (INCR + EXPIRE).
func (t *FailedAttemptTracker) RecordFailure(ctx context.Context, identifier string) (int, error) {
	key := counterKey(identifier)

	count, err := t.kv.Increment(ctx, key)
	if err != nil {
		return 0, err
	}
	if err := t.kv.Expire(ctx, key, t.window); err != nil {
		return int(count), err
	}
	return int(count), nil
}

// AttemptCount returns the current counter, or 0 when the store is unreachable.
func (t *FailedAttemptTracker) AttemptCount(ctx context.Context, identifier string) int {
	data, ok, err := t.kv.Get(ctx, counterKey(identifier))
	if err != nil {
		return kvstore.Or(t.kv, "attempts.count", 0, err, 0)
	}
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return 0
	}
	return n
}

// Clear deletes the counter. The lock flag is left to expire on its own.
func (t *FailedAttemptTracker) Clear(ctx context.Context, identifier string) error {
	return t.kv.Delete(ctx, counterKey(identifier))
}

// Lock sets the lock flag for one window.
func (t *FailedAttemptTracker) Lock(ctx context.Context, identifier string) error {
	return t.kv.SetWithTTL(ctx, lockKey(identifier), "1", t.window)
}

// IsLocked reports whether the lock flag is present. A store failure reads
// as unlocked.
func (t *FailedAttemptTracker) IsLocked(ctx context.Context, identifier string) bool {
	_, ok, err := t.kv.Get(ctx, lockKey(identifier))
	return kvstore.Or(t.kv, "attempts.is_locked", ok, err, false)
}

// LockRemaining returns how long the lock flag still lives. It returns the
// full window when the flag has no readable TTL.
func (t *FailedAttemptTracker) LockRemaining(ctx context.Context, identifier string) time.Duration {
	ttl, ok, err := t.kv.TTL(ctx, lockKey(identifier))
	if err != nil || !ok || ttl <= 0 {
		return t.window
	}
	return ttl
}
