// Package config loads service settings from the environment and an optional
// .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/netip"
	"strings"
	"time"

	"github.com/MrEthical07/sessionguard"
	"github.com/MrEthical07/sessionguard/kvstore"
	"github.com/MrEthical07/sessionguard/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the settings of the sessionguard service.
type Config struct {
	HTTPAddr        string        `mapstructure:"HTTP_ADDR"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	// TrustedProxies is a comma-separated list of proxy IPs or CIDRs whose
	// X-Forwarded-For header is honoured.
	TrustedProxies string `mapstructure:"TRUSTED_PROXIES"`

	RedisAddr           string        `mapstructure:"REDIS_ADDR"`
	RedisPassword       string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB             int           `mapstructure:"REDIS_DB"`
	RedisDialTimeout    time.Duration `mapstructure:"REDIS_DIAL_TIMEOUT"`
	RedisCommandTimeout time.Duration `mapstructure:"REDIS_COMMAND_TIMEOUT"`
	// EmbeddedRedis starts an in-process miniredis instead of dialing
	// RedisAddr. Development only; nothing survives a restart.
	EmbeddedRedis bool `mapstructure:"EMBEDDED_REDIS"`

	// DBDriver is "sqlite" or "postgres".
	DBDriver    string `mapstructure:"DB_DRIVER"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBDebug     bool   `mapstructure:"DB_DEBUG"`

	JWTSecret     string        `mapstructure:"JWT_SECRET"`
	JWTIssuer     string        `mapstructure:"JWT_ISSUER"`
	JWTAudience   string        `mapstructure:"JWT_AUDIENCE"`
	JWTAccessTTL  time.Duration `mapstructure:"JWT_ACCESS_TTL"`
	JWTRefreshTTL time.Duration `mapstructure:"JWT_REFRESH_TTL"`

	SessionTTL             time.Duration `mapstructure:"SESSION_TTL"`
	SessionRefreshThrottle time.Duration `mapstructure:"SESSION_REFRESH_THROTTLE"`
	LockoutThreshold       int           `mapstructure:"LOCKOUT_THRESHOLD"`
	LockoutWindow          time.Duration `mapstructure:"LOCKOUT_WINDOW"`
	MaxDevices             int           `mapstructure:"MAX_DEVICES"`

	PasswordResetEnabled bool          `mapstructure:"PASSWORD_RESET_ENABLED"`
	SMTPHost             string        `mapstructure:"SMTP_HOST"`
	SMTPPort             int           `mapstructure:"SMTP_PORT"`
	SMTPUsername         string        `mapstructure:"SMTP_USERNAME"`
	SMTPPassword         string        `mapstructure:"SMTP_PASSWORD"`
	MailFrom             string        `mapstructure:"MAIL_FROM"`
	ResetURLBase         string        `mapstructure:"RESET_URL_BASE"`
	MailTimeout          time.Duration `mapstructure:"MAIL_TIMEOUT"`

	AuditEnabled bool `mapstructure:"AUDIT_ENABLED"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// OTelEndpoint enables OTLP metric export when set (host:port).
	OTelEndpoint       string        `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelInsecure       bool          `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OTelServiceName    string        `mapstructure:"OTEL_SERVICE_NAME"`
	OTelExportInterval time.Duration `mapstructure:"OTEL_METRIC_EXPORT_INTERVAL"`
}

var defaults = map[string]any{
	"HTTP_ADDR":        ":8080",
	"SHUTDOWN_TIMEOUT": "10s",
	"TRUSTED_PROXIES":  "",

	"REDIS_ADDR":            "localhost:6379",
	"REDIS_PASSWORD":        "",
	"REDIS_DB":              0,
	"REDIS_DIAL_TIMEOUT":    "2s",
	"REDIS_COMMAND_TIMEOUT": "1s",
	"EMBEDDED_REDIS":        false,

	"DB_DRIVER":    "sqlite",
	"DATABASE_URL": "file:sessionguard.db?cache=shared",
	"DB_DEBUG":     false,

	"JWT_SECRET":      "",
	"JWT_ISSUER":      "sessionguard",
	"JWT_AUDIENCE":    "",
	"JWT_ACCESS_TTL":  "15m",
	"JWT_REFRESH_TTL": "168h",

	"SESSION_TTL":              "300s",
	"SESSION_REFRESH_THROTTLE": "30s",
	"LOCKOUT_THRESHOLD":        5,
	"LOCKOUT_WINDOW":           "15m",
	"MAX_DEVICES":              10,

	"PASSWORD_RESET_ENABLED": true,
	"SMTP_HOST":              "",
	"SMTP_PORT":              587,
	"SMTP_USERNAME":          "",
	"SMTP_PASSWORD":          "",
	"MAIL_FROM":              "",
	"RESET_URL_BASE":         "",
	"MAIL_TIMEOUT":           "10s",

	"AUDIT_ENABLED": false,

	"LOG_LEVEL":  "info",
	"LOG_FORMAT": "json",

	"OTEL_EXPORTER_OTLP_ENDPOINT": "",
	"OTEL_EXPORTER_OTLP_INSECURE": true,
	"OTEL_SERVICE_NAME":           "sessionguard",
	"OTEL_METRIC_EXPORT_INTERVAL": "15s",
}

// Load reads .env from the working directory (if present) and the
// environment. Environment variables override .env values.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit dotenv path. A missing file is ignored.
func LoadFile(envFile string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if envFile != "" {
		values, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: read %s: %w", envFile, err)
		}
		for key, value := range values {
			v.SetDefault(strings.ToUpper(key), value)
		}
	}

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		return fmt.Errorf("config: TRUSTED_PROXIES: %w", err)
	}
	if c.MailTimeout <= 0 {
		return errors.New("config: MAIL_TIMEOUT must be > 0")
	}
	if c.RedisAddr == "" && !c.EmbeddedRedis {
		return errors.New("config: REDIS_ADDR must be set unless EMBEDDED_REDIS=true")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("config: JWT_SECRET must be at least 32 bytes")
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver)
	}
	if c.DatabaseURL == "" {
		return errors.New("config: DATABASE_URL must be set")
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("config: LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.SMTPHost != "" && c.MailFrom == "" {
		return errors.New("config: MAIL_FROM must be set when SMTP_HOST is set")
	}
	engineCfg := c.EngineConfig()
	if err := engineCfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// EngineConfig maps the service settings onto the engine configuration.
func (c *Config) EngineConfig() sessionguard.Config {
	cfg := sessionguard.DefaultConfig()

	cfg.JWT.PrivateKey = []byte(c.JWTSecret)
	cfg.JWT.Issuer = c.JWTIssuer
	cfg.JWT.Audience = c.JWTAudience
	cfg.JWT.AccessTTL = c.JWTAccessTTL
	cfg.JWT.RefreshTTL = c.JWTRefreshTTL
	cfg.Refresh.StoreTTL = c.JWTRefreshTTL

	cfg.Session.TTL = c.SessionTTL
	cfg.Session.RefreshThrottle = c.SessionRefreshThrottle
	cfg.Lockout.Threshold = c.LockoutThreshold
	cfg.Lockout.Window = c.LockoutWindow
	cfg.Devices.MaxDevices = c.MaxDevices
	cfg.PasswordReset.Enabled = c.PasswordResetEnabled
	cfg.PasswordReset.MailTimeout = c.MailTimeout
	cfg.Audit.Enabled = c.AuditEnabled

	return cfg
}

// TrustedProxyPrefixes parses TrustedProxies.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	return middleware.ParseTrustedProxies(strings.Split(c.TrustedProxies, ","))
}

// RedisOptions returns client options for the external Redis server.
func (c *Config) RedisOptions() kvstore.ClientOptions {
	return kvstore.ClientOptions{
		Addrs:        strings.Split(c.RedisAddr, ","),
		Password:     c.RedisPassword,
		DB:           c.RedisDB,
		DialTimeout:  c.RedisDialTimeout,
		ReadTimeout:  c.RedisCommandTimeout,
		WriteTimeout: c.RedisCommandTimeout,
	}
}

// NewLogger builds the service logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: LOG_LEVEL %q is not a valid level", s)
	}
	return level, nil
}
