package sessionguard

import (
	"errors"
	"io"
	"log/slog"

	"github.com/MrEthical07/sessionguard/internal"
	internalaudit "github.com/MrEthical07/sessionguard/internal/audit"
	"github.com/MrEthical07/sessionguard/internal/limiters"
	"github.com/MrEthical07/sessionguard/internal/rate"
	"github.com/MrEthical07/sessionguard/jwt"
	"github.com/MrEthical07/sessionguard/kvstore"
	"github.com/MrEthical07/sessionguard/password"
	"github.com/MrEthical07/sessionguard/refresh"
	"github.com/MrEthical07/sessionguard/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. A builder can be built once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users     UserStore
	mail      MailSender
	logger    *slog.Logger
	auditSink AuditSink

	built bool
}

// New returns a builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration with a copy of cfg.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis injects the client every fast-store component shares. The engine
// never closes it.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserStore sets the durable user store. Required.
func (b *Builder) WithUserStore(users UserStore) *Builder {
	b.users = users
	return b
}

// WithMailSender sets the reset mail transport. Without one, reset tokens are
// generated and stored but only logged as undeliverable.
func (b *Builder) WithMailSender(sender MailSender) *Builder {
	b.mail = sender
	return b
}

// WithLogger sets the logger for best-effort failures. The default discards.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit destination and enables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the validate latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	// -------- FAST STORE --------
	kv := kvstore.New(b.redis,
		kvstore.WithLogger(logger),
		kvstore.WithProbeTimeout(cfg.Store.ProbeTimeout),
		kvstore.WithReconnect(cfg.Store.ReconnectAttempts, cfg.Store.ReconnectBackoff),
	)

	engine := &Engine{
		config: cloneConfig(cfg),
		kv:     kv,
		sessionStore: session.NewStore(kv, session.Config{
			TTL:             cfg.Session.TTL,
			RefreshThrottle: cfg.Session.RefreshThrottle,
		}),
		refreshStore: refresh.NewStore(kv, cfg.Refresh.StoreTTL),
		tracker: limiters.NewFailedAttemptTracker(kv, limiters.LockoutConfig{
			Window: cfg.Lockout.Window,
		}),
		throttle: rate.New(kv, rate.Config{
			MaxRefreshPerWindow: cfg.RefreshThrottle.MaxPerWindow,
			RefreshWindow:       cfg.RefreshThrottle.Window,
			MaxResetPerWindow:   cfg.PasswordReset.MaxRequests,
			ResetWindow:         cfg.PasswordReset.RequestWindow,
		}),
		resetStore: newPasswordResetStore(kv, cfg.PasswordReset.TokenTTL),
		users:      b.users,
		mail:       b.mail,
		logger:     logger,
	}
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:     cfg.Audit.Enabled,
		BufferSize:  cfg.Audit.BufferSize,
		DropIfFull:  cfg.Audit.DropIfFull,
		SinkTimeout: cfg.Audit.SinkTimeout,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	// -------- CREDENTIALS --------
	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.hasher = hasher

	filler, err := internal.NewResetToken(24)
	if err != nil {
		return nil, err
	}
	engine.dummyHash, err = hasher.Hash(filler)
	if err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	engine.initFlowDeps()

	b.built = true

	return engine, nil
}
