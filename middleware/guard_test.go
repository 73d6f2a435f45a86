package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrEthical07/sessionguard"
	"github.com/MrEthical07/sessionguard/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testPassword = "correct-password-123"

type singleUserStore struct {
	user sessionguard.User
}

func (s *singleUserStore) GetUserByEmail(_ context.Context, email string) (*sessionguard.User, error) {
	if email != s.user.Email {
		return nil, sessionguard.ErrUserNotFound
	}
	u := s.user
	return &u, nil
}

func (s *singleUserStore) GetUserByID(_ context.Context, id string) (*sessionguard.User, error) {
	if id != s.user.ID {
		return nil, sessionguard.ErrUserNotFound
	}
	u := s.user
	return &u, nil
}

func (s *singleUserStore) SaveUser(_ context.Context, u *sessionguard.User) error {
	s.user = *u
	return nil
}

func newGuardEngine(t *testing.T) (*sessionguard.Engine, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1, DialTimeout: 200 * time.Millisecond})

	hasher, err := password.NewHasher(password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	hash, err := hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	users := &singleUserStore{user: sessionguard.User{
		ID:           "u1",
		Email:        "alice@example.com",
		Name:         "Alice",
		PasswordHash: hash,
		IsActive:     true,
	}}

	cfg := sessionguard.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Store.ReconnectAttempts = 1
	cfg.Store.ReconnectBackoff = time.Millisecond

	engine, err := sessionguard.New().WithConfig(cfg).WithRedis(rdb).WithUserStore(users).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return engine, mr
}

func guardedRecorder(engine *sessionguard.Engine, authorization string) (*httptest.ResponseRecorder, *sessionguard.AuthResult) {
	var seen *sessionguard.AuthResult
	h := Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = AuthResultFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, seen
}

func TestGuardAcceptsLiveSession(t *testing.T) {
	engine, _ := newGuardEngine(t)
	res, err := engine.Login(context.Background(), "alice@example.com", testPassword, sessionguard.DeviceInfo{})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	rec, seen := guardedRecorder(engine, "Bearer "+res.AccessToken)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if seen == nil || seen.UserID != "u1" || seen.SessionID == "" {
		t.Fatalf("expected auth result in context, got %+v", seen)
	}
}

func TestGuardRejections(t *testing.T) {
	engine, _ := newGuardEngine(t)

	for name, header := range map[string]string{
		"missing":    "",
		"wrong type": "Basic abc",
		"empty":      "Bearer ",
		"garbage":    "Bearer not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			rec, seen := guardedRecorder(engine, header)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			if seen != nil {
				t.Fatal("handler must not run")
			}
		})
	}
}

func TestGuardRejectsEvictedSession(t *testing.T) {
	engine, _ := newGuardEngine(t)
	first, err := engine.Login(context.Background(), "alice@example.com", testPassword, sessionguard.DeviceInfo{})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := engine.Login(context.Background(), "alice@example.com", testPassword, sessionguard.DeviceInfo{}); err != nil {
		t.Fatalf("second login failed: %v", err)
	}

	rec, _ := guardedRecorder(engine, "Bearer "+first.AccessToken)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for evicted session, got %d", rec.Code)
	}
}

func TestGuardStoreDown(t *testing.T) {
	engine, mr := newGuardEngine(t)
	res, err := engine.Login(context.Background(), "alice@example.com", testPassword, sessionguard.DeviceInfo{})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	mr.Close()

	rec, _ := guardedRecorder(engine, "Bearer "+res.AccessToken)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestGuardNilEngine(t *testing.T) {
	rec, _ := guardedRecorder(nil, "Bearer x")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestClientContext(t *testing.T) {
	var ip, ua string
	h := ClientContext(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip = sessionguard.ClientIPFromContext(r.Context())
		ua = r.UserAgent()
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:5555"
	req.Header.Set("User-Agent", "test-agent")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if ip != "203.0.113.7" {
		t.Fatalf("expected client IP without port, got %q", ip)
	}
	if ua != "test-agent" {
		t.Fatalf("unexpected user agent %q", ua)
	}
}
