//go:build integration
// +build integration

package test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/sessionguard/internal/limiters"
	"github.com/MrEthical07/sessionguard/kvstore"
	"github.com/MrEthical07/sessionguard/refresh"
	"github.com/MrEthical07/sessionguard/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// redisMode describes which Redis backend the compatibility suite is running against.
type redisMode struct {
	name  string
	setup func(t *testing.T) (redis.UniversalClient, func())
}

// redisModes returns the backends to test. miniredis is always available.
// A real standalone server is added when REDIS_ADDR is set, a cluster when
// REDIS_CLUSTER_ADDRS is set.
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{
		{
			name: "miniredis",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				mr, err := miniredis.Run()
				if err != nil {
					t.Fatalf("miniredis: %v", err)
				}
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				return rdb, func() { _ = rdb.Close(); mr.Close() }
			},
		},
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "standalone:" + addr,
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := kvstore.NewClient(kvstore.ClientOptions{Addrs: []string{addr}})
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis at %s: %v", addr, err)
				}
				rdb.FlushDB(context.Background())
				return rdb, func() { rdb.FlushDB(context.Background()); _ = rdb.Close() }
			},
		})
	}

	if addrs := os.Getenv("REDIS_CLUSTER_ADDRS"); addrs != "" {
		modes = append(modes, redisMode{
			name: "cluster",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := kvstore.NewClient(kvstore.ClientOptions{Addrs: splitAddrs(addrs)})
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis cluster: %v", err)
				}
				return rdb, func() { _ = rdb.Close() }
			},
		})
	}

	return modes
}

func splitAddrs(s string) []string {
	var addrs []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	return addrs
}

func TestRedisCompat_SessionLifecycle(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()

			store := session.NewStore(kvstore.New(rdb), session.Config{TTL: time.Minute})
			ctx := context.Background()

			if _, err := store.Create(ctx, "compat-u1", "compat-sid-1", session.Fields{Email: "c@example.com"}); err != nil {
				t.Fatalf("create: %v", err)
			}
			if !store.IsActive(ctx, "compat-sid-1", "compat-u1") {
				t.Fatal("expected session to be active")
			}
			if left := store.TimeLeft(ctx, "compat-sid-1"); left <= 0 || left > time.Minute {
				t.Fatalf("unexpected time left %v", left)
			}

			// A second session for the same user displaces the first.
			if _, err := store.Create(ctx, "compat-u1", "compat-sid-2", session.Fields{}); err != nil {
				t.Fatalf("create second: %v", err)
			}
			if store.IsActive(ctx, "compat-sid-1", "compat-u1") {
				t.Fatal("expected displaced session to be inactive")
			}

			if err := store.DeleteAllForUser(ctx, "compat-u1"); err != nil {
				t.Fatalf("delete all: %v", err)
			}
			if store.ActiveSessionID(ctx, "compat-u1") != "" {
				t.Fatal("expected pointer to be gone")
			}
		})
	}
}

func TestRedisCompat_RefreshTokens(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()

			store := refresh.NewStore(kvstore.New(rdb), time.Hour)
			ctx := context.Background()

			for _, tok := range []string{"compat-tok-1", "compat-tok-2"} {
				if err := store.Store(ctx, tok, "compat-u2", "compat-sid"); err != nil {
					t.Fatalf("store %s: %v", tok, err)
				}
			}
			if rec := store.Get(ctx, "compat-tok-1"); rec == nil || rec.UserID != "compat-u2" {
				t.Fatalf("unexpected record %+v", rec)
			}

			if err := store.DeleteAllForUser(ctx, "compat-u2"); err != nil {
				t.Fatalf("delete all: %v", err)
			}
			if store.Get(ctx, "compat-tok-2") != nil {
				t.Fatal("expected token to be revoked")
			}
			if n := len(store.Tokens(ctx, "compat-u2")); n != 0 {
				t.Fatalf("expected empty token set, got %d", n)
			}
		})
	}
}

func TestRedisCompat_Lockout(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()

			tracker := limiters.NewFailedAttemptTracker(kvstore.New(rdb), limiters.LockoutConfig{Window: time.Minute})
			ctx := context.Background()
			id := limiters.Identifier("compat@example.com", "192.0.2.1")

			for i := 1; i <= 3; i++ {
				n, err := tracker.RecordFailure(ctx, id)
				if err != nil {
					t.Fatalf("record failure: %v", err)
				}
				if n != i {
					t.Fatalf("expected count %d, got %d", i, n)
				}
			}
			if err := tracker.Lock(ctx, id); err != nil {
				t.Fatalf("lock: %v", err)
			}
			if !tracker.IsLocked(ctx, id) {
				t.Fatal("expected identifier to be locked")
			}
			if err := tracker.Clear(ctx, id); err != nil {
				t.Fatalf("clear: %v", err)
			}
			if tracker.AttemptCount(ctx, id) != 0 {
				t.Fatal("expected counter to be cleared")
			}
		})
	}
}
