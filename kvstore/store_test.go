package kvstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, WithReconnect(2, 0)), mr
}

func TestGetMissingKeyIsNotAnError(t *testing.T) {
	store, _ := newTestStore(t)

	data, ok, err := store.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if ok || data != nil {
		t.Fatalf("expected absent key, got ok=%v data=%q", ok, data)
	}
}

func TestSetWithTTLExpires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.SetWithTTL(ctx, "k", "v", 10*time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	data, ok, err := store.Get(ctx, "k")
	if err != nil || !ok || string(data) != "v" {
		t.Fatalf("get after set: data=%q ok=%v err=%v", data, ok, err)
	}

	ttl, ok, err := store.TTL(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("ttl: ok=%v err=%v", ok, err)
	}
	if ttl <= 0 || ttl > 10*time.Second {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	mr.FastForward(11 * time.Second)
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Fatal("expected key to expire")
	}
	if _, ok, _ := store.TTL(ctx, "k"); ok {
		t.Fatal("expected ttl lookup to report missing key")
	}
}

func TestIncrementCreatesAtOne(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := store.Increment(ctx, "counter")
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}
}

func TestSetMembership(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, m := range []string{"a", "b", "c"} {
		if err := store.AddToSet(ctx, "set", m); err != nil {
			t.Fatalf("sadd: %v", err)
		}
	}
	if err := store.RemoveFromSet(ctx, "set", "b"); err != nil {
		t.Fatalf("srem: %v", err)
	}

	members, err := store.MembersOf(ctx, "set")
	if err != nil {
		t.Fatalf("smembers: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %v", members)
	}

	empty, err := store.MembersOf(ctx, "nope")
	if err != nil {
		t.Fatalf("smembers missing: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty set, got %v", empty)
	}
}

func TestTakeIsSingleUse(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.SetWithTTL(ctx, "once", "payload", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	data, ok, err := store.Take(ctx, "once")
	if err != nil || !ok || string(data) != "payload" {
		t.Fatalf("first take: data=%q ok=%v err=%v", data, ok, err)
	}
	if _, ok, err := store.Take(ctx, "once"); ok || err != nil {
		t.Fatalf("second take: ok=%v err=%v", ok, err)
	}
}

func TestPipelineIsOneRoundTrip(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Ping(ctx); err != nil {
		t.Fatalf("warm up: %v", err)
	}
	before := store.Stats()

	err := store.Pipeline(ctx,
		SetOp("a", "1", time.Minute),
		SetOp("b", "2", time.Minute),
		AddToSetOp("idx", "a"),
		AddToSetOp("idx", "b"),
		ExpireOp("idx", time.Minute),
	)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}

	after := store.Stats()
	if got := after.RoundTrips() - before.RoundTrips(); got != 1 {
		t.Fatalf("expected 1 round trip, got %d", got)
	}
	if got := after.PipelinedCommands - before.PipelinedCommands; got != 5 {
		t.Fatalf("expected 5 pipelined commands, got %d", got)
	}

	if v, _ := mr.Get("b"); v != "2" {
		t.Fatalf("expected b=2, got %q", v)
	}
	if ok, _ := mr.IsMember("idx", "b"); !ok {
		t.Fatal("expected idx to contain b")
	}

	if err := store.Pipeline(ctx, DeleteOp("a", "b", "idx")); err != nil {
		t.Fatalf("delete pipeline: %v", err)
	}
	if mr.Exists("a") || mr.Exists("idx") {
		t.Fatal("expected keys deleted")
	}
}

func TestUnreachableStoreWrapsErrUnavailable(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if !store.IsReady(ctx) {
		t.Fatal("expected ready store")
	}

	mr.Close()

	if store.IsReady(ctx) {
		t.Fatal("expected store to report not ready")
	}
	if _, _, err := store.Get(ctx, "k"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from get, got %v", err)
	}
	if err := store.SetWithTTL(ctx, "k", "v", time.Second); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from set, got %v", err)
	}
	if err := store.Pipeline(ctx, SetOp("k", "v", time.Second)); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from pipeline, got %v", err)
	}
	if err := store.EnsureConnection(ctx); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from ensure, got %v", err)
	}
}

func TestEnsureConnectionRecoversAfterRestart(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	mr.Close()
	if store.IsReady(ctx) {
		t.Fatal("expected not ready while stopped")
	}
	if err := mr.Restart(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if err := store.EnsureConnection(ctx); err != nil {
		t.Fatalf("expected reconnect, got %v", err)
	}
}

func TestOrReturnsFallbackOnError(t *testing.T) {
	store, _ := newTestStore(t)

	if got := Or(store, "test", 7, nil, 0); got != 7 {
		t.Fatalf("expected value on success, got %d", got)
	}
	if got := Or(store, "test", 7, ErrUnavailable, 0); got != 0 {
		t.Fatalf("expected fallback on error, got %d", got)
	}
	if got := Or[bool](nil, "test", true, ErrUnavailable, false); got {
		t.Fatal("expected fallback with nil store")
	}
}
