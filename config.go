package sessionguard

import (
	"errors"
	"time"
)

// Config is the full engine configuration. Start from [DefaultConfig] and
// override what differs; the builder clones it so later edits by the caller
// do not reach a running engine.
type Config struct {
	JWT             JWTConfig
	Session         SessionConfig
	Refresh         RefreshConfig
	Lockout         LockoutConfig
	Devices         DeviceConfig
	Password        PasswordConfig
	PasswordReset   PasswordResetConfig
	RefreshThrottle RefreshThrottleConfig
	Store           StoreConfig
	Audit           AuditConfig
	Metrics         MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls access and refresh token signing.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the sliding session record.
type SessionConfig struct {
	// TTL is the idle lifetime; every non-throttled refresh restarts it.
	TTL time.Duration
	// RefreshThrottle is the minimum gap between two non-forced refreshes.
	RefreshThrottle time.Duration
}

/*
====================================
REFRESH TOKEN CONFIG
====================================
*/

// RefreshConfig controls how long refresh records live in the store.
type RefreshConfig struct {
	// StoreTTL must not be shorter than JWT.RefreshTTL, or a valid token
	// would outlive its record.
	StoreTTL time.Duration
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig controls failed-login counting per email and IP.
type LockoutConfig struct {
	Threshold int
	Window    time.Duration
}

/*
====================================
DEVICE CONFIG
====================================
*/

// DeviceConfig bounds the per-user device history.
type DeviceConfig struct {
	MaxDevices int
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id parameters for new hashes.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

// PasswordResetConfig controls emailed single-use reset tokens.
type PasswordResetConfig struct {
	Enabled        bool
	TokenTTL       time.Duration
	MaxRequests    int
	RequestWindow  time.Duration
	MailTimeout    time.Duration
	EvictSessions  bool
	TokenByteCount int
}

/*
====================================
REFRESH THROTTLE CONFIG
====================================
*/

// RefreshThrottleConfig bounds refresh-token exchanges per session.
type RefreshThrottleConfig struct {
	MaxPerWindow int
	Window       time.Duration
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig tunes the key-value adapter's readiness probing.
type StoreConfig struct {
	ProbeTimeout      time.Duration
	ReconnectAttempts int
	ReconnectBackoff  time.Duration
	// ReadyCacheTTL is how long a readiness result is reused. During an
	// outage the reconnect loop runs at most once per interval. Zero probes
	// on every call.
	ReadyCacheTTL time.Duration
}

/*
====================================
AUDIT & METRICS CONFIG
====================================
*/

// AuditConfig controls asynchronous audit delivery.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// SinkTimeout bounds each sink call; zero leaves it unbounded.
	SinkTimeout time.Duration
}

// MetricsConfig toggles in-process metrics.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns production defaults. Signing keys are left empty.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "hs256",
			Leeway:        30 * time.Second,
		},
		Session: SessionConfig{
			TTL:             300 * time.Second,
			RefreshThrottle: 30 * time.Second,
		},
		Refresh: RefreshConfig{
			StoreTTL: 7 * 24 * time.Hour,
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Window:    15 * time.Minute,
		},
		Devices: DeviceConfig{
			MaxDevices: 10,
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		PasswordReset: PasswordResetConfig{
			Enabled:        true,
			TokenTTL:       time.Hour,
			MaxRequests:    5,
			RequestWindow:  time.Hour,
			MailTimeout:    10 * time.Second,
			EvictSessions:  true,
			TokenByteCount: 32,
		},
		RefreshThrottle: RefreshThrottleConfig{
			MaxPerWindow: 30,
			Window:       time.Minute,
		},
		Store: StoreConfig{
			ProbeTimeout:      500 * time.Millisecond,
			ReconnectAttempts: 3,
			ReconnectBackoff:  100 * time.Millisecond,
			ReadyCacheTTL:     time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize:  1024,
			DropIfFull:  true,
			SinkTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Session
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.RefreshThrottle < 0 {
		return errors.New("Session RefreshThrottle must be >= 0")
	}
	if c.Session.RefreshThrottle >= c.Session.TTL {
		return errors.New("Session RefreshThrottle must be shorter than TTL")
	}

	// Refresh
	if c.Refresh.StoreTTL < c.JWT.RefreshTTL {
		return errors.New("Refresh StoreTTL must be >= JWT RefreshTTL")
	}

	// Lockout
	if c.Lockout.Threshold <= 0 {
		return errors.New("Lockout Threshold must be > 0")
	}
	if c.Lockout.Window <= 0 {
		return errors.New("Lockout Window must be > 0")
	}

	// Devices
	if c.Devices.MaxDevices <= 0 {
		return errors.New("Devices MaxDevices must be > 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// Password Reset
	if c.PasswordReset.Enabled {
		if c.PasswordReset.TokenTTL <= 0 {
			return errors.New("PasswordReset TokenTTL must be > 0")
		}
		if c.PasswordReset.MaxRequests < 0 {
			return errors.New("PasswordReset MaxRequests must be >= 0")
		}
		if c.PasswordReset.MaxRequests > 0 && c.PasswordReset.RequestWindow <= 0 {
			return errors.New("PasswordReset RequestWindow must be > 0 when MaxRequests is set")
		}
		if c.PasswordReset.MailTimeout <= 0 {
			return errors.New("PasswordReset MailTimeout must be > 0")
		}
		if c.PasswordReset.TokenByteCount < 16 {
			return errors.New("PasswordReset TokenByteCount must be >= 16")
		}
	}

	// Refresh throttle
	if c.RefreshThrottle.MaxPerWindow < 0 {
		return errors.New("RefreshThrottle MaxPerWindow must be >= 0")
	}
	if c.RefreshThrottle.MaxPerWindow > 0 && c.RefreshThrottle.Window <= 0 {
		return errors.New("RefreshThrottle Window must be > 0 when MaxPerWindow is set")
	}

	// Store
	if c.Store.ProbeTimeout <= 0 {
		return errors.New("Store ProbeTimeout must be > 0")
	}
	if c.Store.ReconnectAttempts <= 0 {
		return errors.New("Store ReconnectAttempts must be > 0")
	}
	if c.Store.ReadyCacheTTL < 0 {
		return errors.New("Store ReadyCacheTTL must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}
	if c.Audit.SinkTimeout < 0 {
		return errors.New("Audit SinkTimeout must be >= 0")
	}

	return nil
}
