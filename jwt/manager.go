package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the JWT algorithm.
type SigningMethod string

const (
	// MethodEd25519 signs with EdDSA over Ed25519 keys.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with a shared HMAC secret.
	MethodHS256 SigningMethod = "hs256"
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

// ErrExpired is returned (wrapped) when a token is past its exp claim.
var ErrExpired = jwt.ErrTokenExpired

// ErrWrongTokenType is returned when an access token is presented as a
// refresh token or the other way round.
var ErrWrongTokenType = errors.New("wrong token type")

// Config holds signing keys and token lifetimes.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

// Manager issues and verifies access and refresh tokens. Keys are decoded
// once by [NewManager].
type Manager struct {
	config    Config
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	kidKeys   map[string]any
	parser    *jwt.Parser
}

// Claims are carried by both token kinds. Refresh tokens additionally set
// the registered ID (jti) so every issued token is distinct.
type Claims struct {
	UID  string `json:"uid"`
	SID  string `json:"sid"`
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// AccessClaims is the parsed form of an access token.
type AccessClaims = Claims

// RefreshClaims is the parsed form of a refresh token.
type RefreshClaims = Claims

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	switch {
	case cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0:
		return nil, errors.New("invalid TTL configuration")
	case cfg.RefreshTTL < cfg.AccessTTL:
		return nil, errors.New("refresh TTL must not be shorter than access TTL")
	case cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute:
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	m := &Manager{config: cfg, kidKeys: make(map[string]any, len(cfg.VerifyKeys))}
	if err := m.loadKeys(); err != nil {
		return nil, err
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	m.parser = jwt.NewParser(opts...)
	return m, nil
}

// loadKeys decodes the signing key, the default verify key and every entry
// of VerifyKeys for the configured method.
func (m *Manager) loadKeys() error {
	cfg := m.config
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < 32 {
			return errors.New("hs256 requires a secret of at least 32 bytes")
		}
		m.method = jwt.SigningMethodHS256
		m.signKey, m.verifyKey = cfg.PrivateKey, cfg.PrivateKey
		for kid, key := range cfg.VerifyKeys {
			m.kidKeys[kid] = key
		}

	case MethodEd25519:
		m.method = jwt.SigningMethodEdDSA
		priv, err := parseEdPrivateKey(cfg.PrivateKey)
		if err != nil {
			return err
		}
		m.signKey = priv
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return err
			}
			m.verifyKey = pub
		} else if len(cfg.VerifyKeys) == 0 {
			return errors.New("ed25519 requires public key or verify key set")
		}
		for kid, key := range cfg.VerifyKeys {
			pub, err := parseEdPublicKey(key)
			if err != nil {
				return fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
			m.kidKeys[kid] = pub
		}

	default:
		return errors.New("unsupported signing method")
	}

	for kid := range cfg.VerifyKeys {
		if strings.TrimSpace(kid) == "" {
			return errors.New("verify key map contains empty kid")
		}
	}
	return nil
}

// AccessTTL returns the configured access-token lifetime.
func (j *Manager) AccessTTL() time.Duration {
	return j.config.AccessTTL
}

// RefreshTTL returns the configured refresh-token lifetime.
func (j *Manager) RefreshTTL() time.Duration {
	return j.config.RefreshTTL
}

// CreateAccess issues a short-lived token bound to uid and sid.
func (j *Manager) CreateAccess(uid, sid string) (string, error) {
	return j.sign(uid, sid, typeAccess, "", j.config.AccessTTL)
}

// CreateRefresh issues a long-lived token bound to uid and sid with a random jti.
func (j *Manager) CreateRefresh(uid, sid string) (string, error) {
	return j.sign(uid, sid, typeRefresh, uuid.NewString(), j.config.RefreshTTL)
}

// ParseAccess verifies an access token.
func (j *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	return j.parse(tokenStr, typeAccess)
}

// ParseRefresh verifies a refresh token. An expired token fails with an
// error matching [ErrExpired].
func (j *Manager) ParseRefresh(tokenStr string) (*RefreshClaims, error) {
	return j.parse(tokenStr, typeRefresh)
}

func (j *Manager) sign(uid, sid, typ, jti string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UID:  uid,
		SID:  sid,
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   uid,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.config.Issuer,
		},
	}
	if j.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{j.config.Audience}
	}

	token := jwt.NewWithClaims(j.method, claims)
	if j.config.KeyID != "" {
		token.Header["kid"] = j.config.KeyID
	}
	return token.SignedString(j.signKey)
}

// keyFor picks the verification key named by the token's kid header.
func (j *Manager) keyFor(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	switch {
	case len(j.kidKeys) > 0:
		key, ok := j.kidKeys[kid]
		if !ok {
			return nil, fmt.Errorf("unknown kid %q", kid)
		}
		return key, nil
	case j.config.KeyID != "" && kid != j.config.KeyID:
		return nil, fmt.Errorf("unknown kid %q", kid)
	default:
		return j.verifyKey, nil
	}
}

func (j *Manager) parse(tokenStr, typ string) (*Claims, error) {
	claims := &Claims{}
	token, err := j.parser.ParseWithClaims(tokenStr, claims, j.keyFor)
	if err != nil {
		return nil, err
	}
	switch {
	case !token.Valid:
		return nil, jwt.ErrTokenInvalidClaims
	case claims.Type != typ:
		return nil, ErrWrongTokenType
	case claims.UID == "" || claims.SID == "":
		return nil, jwt.ErrTokenInvalidClaims
	case claims.IssuedAt != nil && claims.IssuedAt.After(time.Now().Add(j.config.MaxFutureIAT)):
		return nil, errors.New("token iat too far in the future")
	}
	return claims, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	priv, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return priv, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	pub, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return pub, nil
}
