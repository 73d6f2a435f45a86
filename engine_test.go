package sessionguard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/sessionguard/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	testPassword = "correct-password-123"
	testSecret   = "0123456789abcdef0123456789abcdef"

	chromeWindowsUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
	safariMacUA     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15"
)

type memoryUserStore struct {
	mu       sync.Mutex
	users    map[string]User
	saves    int
	getErr   error
	saveErr  error
	getCalls int
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{users: map[string]User{}}
}

func (m *memoryUserStore) put(u User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *memoryUserStore) get(id string) User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyUser(m.users[id])
}

func (m *memoryUserStore) GetUserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, u := range m.users {
		if u.Email == email {
			out := copyUser(u)
			return &out, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *memoryUserStore) GetUserByID(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := copyUser(u)
	return &out, nil
}

func (m *memoryUserStore) SaveUser(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.users[user.ID] = copyUser(*user)
	return nil
}

func copyUser(u User) User {
	u.Devices = append(u.Devices[:0:0], u.Devices...)
	return u
}

type recordingMailer struct {
	mu     sync.Mutex
	tokens map[string]string
	err    error
}

func newRecordingMailer() *recordingMailer {
	return &recordingMailer{tokens: map[string]string{}}
}

func (r *recordingMailer) SendPasswordReset(_ context.Context, address, token, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.tokens[address] = token
	return nil
}

func (r *recordingMailer) token(address string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tokens[address]
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = []byte(testSecret)
	cfg.JWT.Issuer = "sessionguard-test"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Store.ReconnectAttempts = 1
	cfg.Store.ReconnectBackoff = time.Millisecond
	return cfg
}

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr:        mr.Addr(),
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	return mr, client
}

type testEnv struct {
	engine *Engine
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	users  *memoryUserStore
	mail   *recordingMailer
}

func newTestEnv(t testing.TB, mutate func(*Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	mr, rdb := newTestRedis(t)
	users := newMemoryUserStore()
	mail := newRecordingMailer()

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(users).
		WithMailSender(mail).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	env := &testEnv{engine: engine, mr: mr, rdb: rdb, users: users, mail: mail}
	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return env
}

// addUser stores an active user with testPassword.
func (env *testEnv) addUser(t testing.TB, id, email string) {
	t.Helper()

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
	env.users.put(User{
		ID:           id,
		Email:        email,
		Name:         "Alice",
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    time.Now(),
	})
}

func ipContext(ip string) context.Context {
	return WithClientIP(context.Background(), ip)
}

func TestBuildRequiresRedisAndUserStore(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).WithUserStore(newMemoryUserStore()).Build(); err == nil {
		t.Fatal("expected build without redis to fail")
	}

	mr, rdb := newTestRedis(t)
	defer mr.Close()

	if _, err := New().WithConfig(testConfig()).WithRedis(rdb).Build(); err == nil {
		t.Fatal("expected build without user store to fail")
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	cfg := testConfig()
	cfg.JWT.PrivateKey = []byte("short")

	_, err := New().WithConfig(cfg).WithRedis(rdb).WithUserStore(newMemoryUserStore()).Build()
	if err == nil {
		t.Fatal("expected short hs256 key to be rejected")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	b := New().WithConfig(testConfig()).WithRedis(rdb).WithUserStore(newMemoryUserStore())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestReadyReportsStoreOutage(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Store.ReadyCacheTTL = 0 })

	if err := env.engine.Ready(context.Background()); err != nil {
		t.Fatalf("expected ready, got %v", err)
	}

	env.mr.Close()

	err := env.engine.Ready(context.Background())
	if !errors.Is(err, ErrDependencyUnavailable) {
		t.Fatalf("expected ErrDependencyUnavailable, got %v", err)
	}
}

func TestReadyReusesRecentResult(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Store.ReadyCacheTTL = time.Hour })

	if err := env.engine.Ready(context.Background()); err != nil {
		t.Fatalf("expected ready, got %v", err)
	}
	env.mr.Close()

	if err := env.engine.Ready(context.Background()); err != nil {
		t.Fatalf("expected cached ready result, got %v", err)
	}
}

func TestReadyOutageSkipsRepeatedReconnects(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.Store.ReadyCacheTTL = time.Hour
		c.Store.ReconnectAttempts = 3
		c.Store.ReconnectBackoff = 100 * time.Millisecond
	})
	env.mr.Close()

	first := env.engine.Ready(context.Background())
	if !errors.Is(first, ErrDependencyUnavailable) {
		t.Fatalf("expected ErrDependencyUnavailable, got %v", first)
	}

	start := time.Now()
	for i := 0; i < 20; i++ {
		if err := env.engine.Ready(context.Background()); !errors.Is(err, ErrDependencyUnavailable) {
			t.Fatalf("expected cached outage, got %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("cached outage took %v; the reconnect loop ran again", elapsed)
	}
}

func TestReadyConcurrentCallersShareCheck(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Store.ReadyCacheTTL = time.Hour })

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := env.engine.Ready(context.Background()); err != nil {
				t.Errorf("Ready: %v", err)
			}
		}()
	}
	wg.Wait()

	after := env.engine.StoreStats().Commands
	for i := 0; i < 10; i++ {
		if err := env.engine.Ready(context.Background()); err != nil {
			t.Fatalf("Ready: %v", err)
		}
	}
	if got := env.engine.StoreStats().Commands; got != after {
		t.Fatalf("cached Ready sent %d more commands", got-after)
	}
}

func TestNilEngineMethodsAreSafe(t *testing.T) {
	var e *Engine

	if _, err := e.Login(context.Background(), "a@b.c", testPassword, DeviceInfo{}); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if e.ExtendSession(context.Background(), "sid") {
		t.Fatal("expected false from nil engine")
	}
	if e.AuditDropped() != 0 {
		t.Fatal("expected zero dropped events")
	}
	if snap := e.MetricsSnapshot(); len(snap.Counters) != 0 {
		t.Fatal("expected empty snapshot")
	}
	e.Close()
}
