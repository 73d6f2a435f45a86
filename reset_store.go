package sessionguard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/sessionguard/internal"
	"github.com/MrEthical07/sessionguard/kvstore"
)

const resetKeyPrefix = "password_reset:"

var errResetRedisUnavailable = errors.New("reset redis unavailable")

// passwordResetStore keeps userId under the hash of each outstanding reset
// token. Records are consumed with GETDEL, so a token works exactly once.
type passwordResetStore struct {
	kv  *kvstore.Store
	ttl time.Duration
}

func newPasswordResetStore(kv *kvstore.Store, ttl time.Duration) *passwordResetStore {
	return &passwordResetStore{kv: kv, ttl: ttl}
}

func (s *passwordResetStore) key(token string) string {
	return resetKeyPrefix + internal.HashResetToken(token)
}

func (s *passwordResetStore) Save(ctx context.Context, token, userID string) error {
	if err := s.kv.SetWithTTL(ctx, s.key(token), userID, s.ttl); err != nil {
		return fmt.Errorf("%w: %v", errResetRedisUnavailable, err)
	}
	return nil
}

// Consume returns the user bound to token and deletes the record. ok is false
// for unknown, expired or already used tokens.
func (s *passwordResetStore) Consume(ctx context.Context, token string) (string, bool, error) {
	data, ok, err := s.kv.Take(ctx, s.key(token))
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", errResetRedisUnavailable, err)
	}
	if !ok || len(data) == 0 {
		return "", false, nil
	}
	return string(data), true, nil
}
