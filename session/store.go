package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/sessionguard/kvstore"
)

// ErrRedisUnavailable wraps store failures on the write path.
var ErrRedisUnavailable = errors.New("redis unavailable")

const (
	// DefaultTTL is the sliding session lifetime.
	DefaultTTL = 300 * time.Second
	// DefaultRefreshThrottle bounds how often a session TTL is re-armed.
	DefaultRefreshThrottle = 30 * time.Second
)

// Config holds session lifetimes.
type Config struct {
	TTL             time.Duration
	RefreshThrottle time.Duration
}

// Store persists sessions and the per-user active-session pointer.
type Store struct {
	kv       *kvstore.Store
	ttl      time.Duration
	throttle time.Duration
	now      func() time.Time
}

// NewStore creates a session store on top of kv.
func NewStore(kv *kvstore.Store, cfg Config) *Store {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.RefreshThrottle <= 0 {
		cfg.RefreshThrottle = DefaultRefreshThrottle
	}
	return &Store{
		kv:       kv,
		ttl:      cfg.TTL,
		throttle: cfg.RefreshThrottle,
		now:      time.Now,
	}
}

func key(sessionID string) string {
	return "session:" + sessionID
}

func pointerKey(userID string) string {
	return "active_session:" + userID
}

func markerKey(sessionID string) string {
	return "session_refresh:" + sessionID
}

// TTL returns the configured sliding lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Create writes the session record and then points the user at it. The
// session ID is returned even on failure so callers can log it.
//
//	Performance: 2 Redis commands (SET record, SET pointer).
func (s *Store) Create(ctx context.Context, userID, sessionID string, fields Fields) (string, error) {
	sess := &Session{
		SessionID: sessionID,
		UserID:    userID,
		Email:     fields.Email,
		Name:      fields.Name,
		CreatedAt: s.now().Unix(),
	}
	data, err := Encode(sess)
	if err != nil {
		return sessionID, err
	}

	if err := s.kv.SetWithTTL(ctx, key(sessionID), data, s.ttl); err != nil {
		return sessionID, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if err := s.kv.SetWithTTL(ctx, pointerKey(userID), sessionID, s.ttl); err != nil {
		return sessionID, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return sessionID, nil
}

// Get returns the session or nil when it is absent, undecodable or the store
// is unreachable.
func (s *Store) Get(ctx context.Context, sessionID string) *Session {
	if sessionID == "" {
		return nil
	}
	data, ok, err := s.kv.Get(ctx, key(sessionID))
	if err != nil {
		s.kv.FailOpen("session.get", err)
		return nil
	}
	if !ok {
		return nil
	}
	sess, err := Decode(data)
	if err != nil {
		return nil
	}
	return sess
}

// Refresh slides the session TTL. Without force, a refresh inside the
// throttle window is skipped and still reports success.
//
//	Performance: 1 GET when throttled; otherwise 3 GETs + 1 pipeline, one GET fewer when forced.
func (s *Store) Refresh(ctx context.Context, sessionID string, force bool) bool {
	if !force {
		_, throttled, err := s.kv.Get(ctx, markerKey(sessionID))
		if err != nil {
			s.kv.FailOpen("session.refresh", err)
			return false
		}
		if throttled {
			return true
		}
	}

	sess := s.Get(ctx, sessionID)
	if sess == nil {
		return false
	}

	ops := []kvstore.Op{
		kvstore.ExpireOp(key(sessionID), s.ttl),
		kvstore.SetOp(markerKey(sessionID), s.now().Unix(), s.throttle),
	}
	if s.ActiveSessionID(ctx, sess.UserID) == sessionID {
		ops = append(ops, kvstore.ExpireOp(pointerKey(sess.UserID), s.ttl))
	}
	if err := s.kv.Pipeline(ctx, ops...); err != nil {
		s.kv.FailOpen("session.refresh", err)
		return false
	}
	return true
}

// TimeLeft returns the remaining session lifetime, zero when the session is
// gone or the store is unreachable.
func (s *Store) TimeLeft(ctx context.Context, sessionID string) time.Duration {
	ttl, ok, err := s.kv.TTL(ctx, key(sessionID))
	if err != nil {
		return kvstore.Or(s.kv, "session.time_left", ttl, err, 0)
	}
	if !ok {
		return 0
	}
	return ttl
}

// ActiveSessionID returns the session the user's pointer names, or "".
func (s *Store) ActiveSessionID(ctx context.Context, userID string) string {
	data, ok, err := s.kv.Get(ctx, pointerKey(userID))
	if err != nil {
		return kvstore.Or(s.kv, "session.pointer", "", err, "")
	}
	if !ok {
		return ""
	}
	return string(data)
}

// IsActive reports whether sessionID is the user's current session and its
// record still exists.
func (s *Store) IsActive(ctx context.Context, sessionID, userID string) bool {
	if sessionID == "" || s.ActiveSessionID(ctx, userID) != sessionID {
		return false
	}
	sess := s.Get(ctx, sessionID)
	return sess != nil && sess.UserID == userID
}

// Delete removes one session and its marker, and the pointer when it still
// names this session.
func (s *Store) Delete(ctx context.Context, sessionID, userID string) error {
	keys := []string{key(sessionID), markerKey(sessionID)}
	if userID != "" && s.ActiveSessionID(ctx, userID) == sessionID {
		keys = append(keys, pointerKey(userID))
	}
	if err := s.kv.Pipeline(ctx, kvstore.DeleteOp(keys...)); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// DeleteAllForUser removes the session the pointer names, its throttle marker
// and the pointer. A user without a pointer is a no-op.
//
//	Performance: 1 GET + 1 pipeline.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) error {
	data, ok, err := s.kv.Get(ctx, pointerKey(userID))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if !ok {
		return nil
	}
	sessionID := string(data)

	if err := s.kv.Pipeline(ctx, kvstore.DeleteOp(key(sessionID), markerKey(sessionID), pointerKey(userID))); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
