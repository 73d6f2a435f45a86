package kvstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps every transport-level failure returned by [Store].
var ErrUnavailable = errors.New("kv store unavailable")

const (
	defaultReconnectAttempts = 3
	defaultReconnectBackoff  = 100 * time.Millisecond
	defaultProbeTimeout      = 500 * time.Millisecond
)

// Store wraps an injected Redis client.
type Store struct {
	client redis.UniversalClient
	logger *slog.Logger
	stats  *stats

	reconnectAttempts int
	reconnectBackoff  time.Duration
	probeTimeout      time.Duration
}

// Option customizes a [Store].
type Option func(*Store)

// WithLogger sets the logger used for swallowed fail-open errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithReconnect sets how many PINGs [Store.EnsureConnection] tries and the
// pause between them.
func WithReconnect(attempts int, backoff time.Duration) Option {
	return func(s *Store) {
		if attempts > 0 {
			s.reconnectAttempts = attempts
		}
		if backoff >= 0 {
			s.reconnectBackoff = backoff
		}
	}
}

// WithProbeTimeout bounds a single readiness probe.
func WithProbeTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.probeTimeout = d
		}
	}
}

// New wraps client. The client stays owned by the caller; closing the
// store's users does not close it.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client:            client,
		logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		stats:             &stats{},
		reconnectAttempts: defaultReconnectAttempts,
		reconnectBackoff:  defaultReconnectBackoff,
		probeTimeout:      defaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if client != nil {
		client.AddHook(statsHook{stats: s.stats})
	}
	return s
}

// Client exposes the underlying client to code that needs a primitive the
// adapter does not wrap.
func (s *Store) Client() redis.UniversalClient {
	return s.client
}

// Logger returns the adapter logger.
func (s *Store) Logger() *slog.Logger {
	return s.logger
}

// Stats returns the call counters recorded since construction.
func (s *Store) Stats() StatsSnapshot {
	return s.stats.snapshot()
}

// Get returns the value at key. A missing key yields ok == false and a nil error.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, unavailable(err)
	}
	return data, true, nil
}

// SetWithTTL writes value at key with the given expiry. ttl <= 0 means no expiry.
func (s *Store) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Delete removes keys. Missing keys are ignored.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Increment atomically adds one to key, creating it at 1 when absent.
func (s *Store) Increment(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

// Expire sets key's expiry. It is a no-op for a missing key.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// TTL reports the remaining lifetime of key. ok is false when the key does
// not exist; a key without expiry reports ok == true and a zero duration.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	d, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, false, unavailable(err)
	}
	switch {
	case d == -2:
		return 0, false, nil
	case d < 0:
		return 0, true, nil
	default:
		return d, true, nil
	}
}

// AddToSet adds member to the set at key.
func (s *Store) AddToSet(ctx context.Context, key, member string) error {
	if err := s.client.SAdd(ctx, key, member).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// MembersOf lists the set at key. A missing set is empty.
func (s *Store) MembersOf(ctx context.Context, key string) ([]string, error) {
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, unavailable(err)
	}
	return members, nil
}

// RemoveFromSet removes member from the set at key.
func (s *Store) RemoveFromSet(ctx context.Context, key, member string) error {
	if err := s.client.SRem(ctx, key, member).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Take reads and deletes key in one command. It is the primitive behind
// single-use records.
func (s *Store) Take(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.GetDel(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, unavailable(err)
	}
	return data, true, nil
}

// Pipeline sends ops in a single round trip.
//
//	Performance: 1 round trip regardless of len(ops).
func (s *Store) Pipeline(ctx context.Context, ops ...Op) error {
	if len(ops) == 0 {
		return nil
	}
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, op := range ops {
			op.apply(ctx, pipe)
		}
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// Ping returns a point-in-time availability check and its latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.client.Ping(ctx).Err(); err != nil {
		return time.Since(start), unavailable(err)
	}
	return time.Since(start), nil
}

// IsReady probes the store once with a short deadline.
func (s *Store) IsReady(ctx context.Context) bool {
	if s == nil || s.client == nil {
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()
	_, err := s.Ping(probeCtx)
	return err == nil
}

// EnsureConnection retries a probe until it succeeds, the attempts run out
// or ctx is done. go-redis redials on demand, so a successful PING means the
// pool holds a live connection again.
func (s *Store) EnsureConnection(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("%w: no client", ErrUnavailable)
	}

	var lastErr error
	for attempt := 0; attempt < s.reconnectAttempts; attempt++ {
		if attempt > 0 && s.reconnectBackoff > 0 {
			timer := time.NewTimer(s.reconnectBackoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			case <-timer.C:
			}
		}

		probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeout)
		_, err := s.Ping(probeCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
	}

	s.logger.Warn("kv store reconnect failed",
		"component", "kvstore",
		"attempts", s.reconnectAttempts,
		"error", lastErr,
	)
	return lastErr
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
