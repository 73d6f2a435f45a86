package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	minPassBytes          = 10
	algorithmID           = "argon2id"

	// DefaultMaxPasswordBytes bounds hashing cost when Config leaves it unset.
	DefaultMaxPasswordBytes = 1024
)

var (
	// ErrPasswordTooShort is returned by Hash for passwords under 10 bytes.
	ErrPasswordTooShort = errors.New("password must be at least 10 bytes")
	// ErrPasswordTooLong is returned for passwords over the configured maximum.
	ErrPasswordTooLong = errors.New("password too long")
	// ErrMalformedHash is returned when an encoded hash cannot be parsed.
	ErrMalformedHash = errors.New("malformed argon2id hash")
)

var b64 = base64.StdEncoding

// Config holds Argon2id cost parameters.
type Config struct {
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
}

// DefaultConfig returns the parameters used for new hashes.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// costs are the tunable Argon2id inputs recorded in a PHC string.
type costs struct {
	memory      uint32
	time        uint32
	parallelism uint8
}

func (c costs) derive(password string, salt []byte, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), salt, c.time, c.memory, c.parallelism, keyLen)
}

// weakerThan reports whether any cost of c is below the matching cost of o.
func (c costs) weakerThan(o costs) bool {
	return c.memory < o.memory || c.time < o.time || c.parallelism < o.parallelism
}

// encoded is a decoded "$argon2id$v=19$m=..,t=..,p=..$salt$key" string.
type encoded struct {
	costs
	salt []byte
	key  []byte
}

func (e encoded) String() string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID, argon2.Version,
		e.memory, e.time, e.parallelism,
		b64.EncodeToString(e.salt), b64.EncodeToString(e.key))
}

func malformed(what string) error {
	return fmt.Errorf("%w: %s", ErrMalformedHash, what)
}

func decode(s string) (encoded, error) {
	var out encoded

	fields := strings.Split(s, "$")
	if len(fields) != 6 || fields[0] != "" {
		return out, malformed("field count")
	}
	if fields[1] != algorithmID {
		return out, malformed("algorithm " + fields[1])
	}

	var version int
	var rest string
	if n, _ := fmt.Sscanf(fields[2], "v=%d%s", &version, &rest); n != 1 {
		return out, malformed("version")
	}
	if version != argon2.Version {
		return out, malformed(fmt.Sprintf("version %d", version))
	}

	var c costs
	n, _ := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d%s", &c.memory, &c.time, &c.parallelism, &rest)
	if n != 3 {
		return out, malformed("parameters")
	}
	if c.memory < minMemoryKB || c.time < minTimeCost || c.parallelism < minParallelism {
		return out, malformed("parameters below minimum")
	}

	salt, err := b64.DecodeString(fields[4])
	if err != nil || len(salt) < int(minSaltLength) {
		return out, malformed("salt")
	}
	key, err := b64.DecodeString(fields[5])
	if err != nil || len(key) == 0 {
		return out, malformed("key")
	}

	return encoded{costs: c, salt: salt, key: key}, nil
}

// Argon2 hashes and verifies PHC-encoded Argon2id hashes.
type Argon2 struct {
	config Config
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.MaxPasswordBytes <= 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}
	return &Argon2{config: cfg}, nil
}

func (a *Argon2) costs() costs {
	return costs{memory: a.config.Memory, time: a.config.Time, parallelism: a.config.Parallelism}
}

// Hash returns a PHC string for password. Bytes are hashed as given, with no
// Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	if len(password) < minPassBytes {
		return "", ErrPasswordTooShort
	}
	if len(password) > a.config.MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	c := a.costs()
	return encoded{costs: c, salt: salt, key: c.derive(password, salt, a.config.KeyLength)}.String(), nil
}

// Verify reports whether password matches encodedHash in constant time.
func (a *Argon2) Verify(password, encodedHash string) (bool, error) {
	if len(password) > a.config.MaxPasswordBytes {
		return false, ErrPasswordTooLong
	}
	e, err := decode(encodedHash)
	if err != nil {
		return false, err
	}
	computed := e.derive(password, e.salt, uint32(len(e.key)))
	return subtle.ConstantTimeCompare(computed, e.key) == 1, nil
}

// NeedsUpgrade reports whether encodedHash used weaker parameters than the
// current config.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	e, err := decode(encodedHash)
	if err != nil {
		return false, err
	}
	return e.weakerThan(a.costs()) || uint32(len(e.key)) != a.config.KeyLength, nil
}

func validateConfig(cfg Config) error {
	switch {
	case cfg.Memory < minMemoryKB:
		return fmt.Errorf("password memory must be >= %d KB", minMemoryKB)
	case cfg.Time < minTimeCost:
		return errors.New("password time must be >= 1")
	case cfg.Parallelism < minParallelism:
		return errors.New("password parallelism must be >= 1")
	case cfg.SaltLength < minSaltLength:
		return fmt.Errorf("password salt length must be >= %d", minSaltLength)
	case cfg.KeyLength < minKeyLength:
		return fmt.Errorf("password key length must be >= %d", minKeyLength)
	}
	return nil
}
