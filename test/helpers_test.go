//go:build integration
// +build integration

package test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/sessionguard"
	"github.com/MrEthical07/sessionguard/kvstore"
	"github.com/MrEthical07/sessionguard/password"
	"github.com/MrEthical07/sessionguard/refresh"
	"github.com/MrEthical07/sessionguard/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	testPassword = "correct-password-123"
	testSecret   = "0123456789abcdef0123456789abcdef"
)

func newIntegrationStores(t *testing.T) (*session.Store, *refresh.Store, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	kv := kvstore.New(rdb)
	sessions := session.NewStore(kv, session.Config{TTL: time.Hour, RefreshThrottle: 30 * time.Second})
	tokens := refresh.NewStore(kv, 24*time.Hour)

	return sessions, tokens, mr, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

// syncUserStore is a UserStore safe for the concurrent engine tests.
type syncUserStore struct {
	mu    sync.Mutex
	users map[string]sessionguard.User
}

func newSyncUserStore() *syncUserStore {
	return &syncUserStore{users: map[string]sessionguard.User{}}
}

func (s *syncUserStore) GetUserByEmail(_ context.Context, email string) (*sessionguard.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			out := u
			out.Devices = append(u.Devices[:0:0], u.Devices...)
			return &out, nil
		}
	}
	return nil, sessionguard.ErrUserNotFound
}

func (s *syncUserStore) GetUserByID(_ context.Context, id string) (*sessionguard.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, sessionguard.ErrUserNotFound
	}
	out := u
	out.Devices = append(u.Devices[:0:0], u.Devices...)
	return &out, nil
}

func (s *syncUserStore) SaveUser(_ context.Context, user *sessionguard.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := *user
	u.Devices = append(user.Devices[:0:0], user.Devices...)
	s.users[u.ID] = u
	return nil
}

func newIntegrationEngine(t *testing.T, rdb redis.UniversalClient) (*sessionguard.Engine, *syncUserStore) {
	t.Helper()

	cfg := sessionguard.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(testSecret)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	hasher, err := password.NewHasher(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	hash, err := hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}

	users := newSyncUserStore()
	users.users["u1"] = sessionguard.User{
		ID:           "u1",
		Email:        "alice@example.com",
		Name:         "Alice",
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}

	engine, err := sessionguard.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(users).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, users
}
