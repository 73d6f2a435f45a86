package sessionguard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	internalaudit "github.com/MrEthical07/sessionguard/internal/audit"
	"github.com/MrEthical07/sessionguard/internal/flows"
	"github.com/MrEthical07/sessionguard/internal/limiters"
	"github.com/MrEthical07/sessionguard/internal/rate"
	"github.com/MrEthical07/sessionguard/jwt"
	"github.com/MrEthical07/sessionguard/kvstore"
	"github.com/MrEthical07/sessionguard/password"
	"github.com/MrEthical07/sessionguard/refresh"
	"github.com/MrEthical07/sessionguard/session"
	"golang.org/x/sync/singleflight"
)

// Engine coordinates sessions, refresh tokens, devices and lockout for one
// service. Build it with [New]; all methods are safe for concurrent use.
type Engine struct {
	config Config

	kv           *kvstore.Store
	sessionStore *session.Store
	refreshStore *refresh.Store
	tracker      *limiters.FailedAttemptTracker
	throttle     *rate.Limiter
	resetStore   *passwordResetStore

	users UserStore
	mail  MailSender

	hasher     *password.Hasher
	dummyHash  string
	jwtManager *jwt.Manager

	audit   *internalaudit.Dispatcher
	metrics *Metrics
	logger  *slog.Logger

	flows      flows.Deps
	background sync.WaitGroup
	ready      readiness
}

// Close waits for in-flight reset mails and drains the audit dispatcher. The
// injected Redis client is left open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.background.Wait()
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// StoreStats returns fast-store command counters.
func (e *Engine) StoreStats() kvstore.StatsSnapshot {
	if e == nil || e.kv == nil {
		return kvstore.StatsSnapshot{}
	}
	return e.kv.Stats()
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// Ready reports whether the fast store is reachable, reconnecting first if the
// probe fails. Results are reused for Store.ReadyCacheTTL and concurrent
// callers share one probe. A failure matches [ErrDependencyUnavailable].
func (e *Engine) Ready(ctx context.Context) error {
	if e == nil || e.kv == nil {
		return ErrEngineNotReady
	}
	return e.ready.check(ctx, e.config.Store.ReadyCacheTTL, func(ctx context.Context) error {
		if e.kv.IsReady(ctx) {
			return nil
		}
		if err := e.kv.EnsureConnection(ctx); err != nil {
			return dependencyError(err)
		}
		return nil
	})
}

// readiness remembers the last store probe.
type readiness struct {
	group singleflight.Group

	mu      sync.Mutex
	checked time.Time
	err     error
}

func (r *readiness) cached(ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.checked.IsZero() || time.Since(r.checked) >= ttl {
		return false, nil
	}
	return true, r.err
}

func (r *readiness) check(ctx context.Context, ttl time.Duration, probe func(context.Context) error) error {
	if ok, err := r.cached(ttl); ok {
		return err
	}
	_, err, _ := r.group.Do("ready", func() (any, error) {
		err := probe(ctx)
		r.mu.Lock()
		r.checked, r.err = time.Now(), err
		r.mu.Unlock()
		return nil, err
	})
	return err
}

func (e *Engine) metricInc(id MetricID) {
	if e.metrics != nil {
		e.metrics.Inc(id)
	}
}

func (e *Engine) warn(msg string, args ...any) {
	e.logger.Warn(msg, append([]any{"component", "engine"}, args...)...)
}

func (e *Engine) goBackground(fn func()) {
	e.background.Add(1)
	go func() {
		defer e.background.Done()
		fn()
	}()
}

// -------- USER STORE ADAPTERS --------

func (e *Engine) getUserByEmail(ctx context.Context, email string) (*flows.UserRecord, error) {
	u, err := e.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return toUserRecord(u), nil
}

func (e *Engine) getUserByID(ctx context.Context, id string) (*flows.UserRecord, error) {
	u, err := e.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return toUserRecord(u), nil
}

func (e *Engine) saveUser(ctx context.Context, rec *flows.UserRecord) error {
	u := fromUserRecord(rec)
	u.UpdatedAt = time.Now()
	return e.users.SaveUser(ctx, u)
}

// lookupUser resolves a user for the device methods, mapping store errors to
// engine categories.
func (e *Engine) lookupUser(ctx context.Context, userID string) (*User, error) {
	u, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, dependencyError(err)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func toUserRecord(u *User) *flows.UserRecord {
	return &flows.UserRecord{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		IsActive:     u.IsActive,
		LastLogin:    u.LastLogin,
		Devices:      append(u.Devices[:0:0], u.Devices...),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func fromUserRecord(r *flows.UserRecord) *User {
	return &User{
		ID:           r.ID,
		Email:        r.Email,
		Name:         r.Name,
		PasswordHash: r.PasswordHash,
		IsActive:     r.IsActive,
		LastLogin:    r.LastLogin,
		Devices:      r.Devices,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// -------- CREDENTIAL ADAPTERS --------

// hashPassword maps hasher input rejections to [ErrPasswordPolicy].
func (e *Engine) hashPassword(pw string) (string, error) {
	hash, err := e.hasher.Hash(pw)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooShort) || errors.Is(err, password.ErrPasswordTooLong) {
			return "", passwordPolicyError(err)
		}
		return "", err
	}
	return hash, nil
}

func passwordPolicyError(err error) error {
	return fmt.Errorf("%w: %w", ErrPasswordPolicy, err)
}
