package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/sessionguard/kvstore"
)

// ErrRedisUnavailable wraps store failures reported to callers.
var ErrRedisUnavailable = errors.New("redis unavailable")

// DefaultTTL is the refresh-token lifetime.
const DefaultTTL = 7 * 24 * time.Hour

// Record is one issued refresh token.
type Record struct {
	Token     string `json:"token"`
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	CreatedAt int64  `json:"createdAt"`
}

// Store persists refresh tokens.
type Store struct {
	kv  *kvstore.Store
	ttl time.Duration
	now func() time.Time
}

// NewStore creates a refresh-token store on top of kv.
func NewStore(kv *kvstore.Store, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{kv: kv, ttl: ttl, now: time.Now}
}

func tokenKey(token string) string {
	return "refresh_token:" + token
}

func userSetKey(userID string) string {
	return "user_refresh_tokens:" + userID
}

// TTL returns the configured token lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Store writes the token record and indexes it under the user.
//
//	Performance: 1 pipelined round trip (SET, SADD, EXPIRE).
func (s *Store) Store(ctx context.Context, token, userID, sessionID string) error {
	data, err := json.Marshal(Record{
		Token:     token,
		UserID:    userID,
		SessionID: sessionID,
		CreatedAt: s.now().Unix(),
	})
	if err != nil {
		return err
	}

	err = s.kv.Pipeline(ctx,
		kvstore.SetOp(tokenKey(token), data, s.ttl),
		kvstore.AddToSetOp(userSetKey(userID), token),
		kvstore.ExpireOp(userSetKey(userID), s.ttl),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get returns the record or nil when it is absent, corrupt or the store is
// unreachable.
func (s *Store) Get(ctx context.Context, token string) *Record {
	if token == "" {
		return nil
	}
	data, ok, err := s.kv.Get(ctx, tokenKey(token))
	if err != nil {
		s.kv.FailOpen("refresh.get", err)
		return nil
	}
	if !ok {
		return nil
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil
	}
	return &rec
}

// Delete removes one token and drops it from its user's set. Unknown tokens
// are a no-op.
func (s *Store) Delete(ctx context.Context, token string) error {
	rec := s.Get(ctx, token)
	if rec == nil {
		return nil
	}
	err := s.kv.Pipeline(ctx,
		kvstore.DeleteOp(tokenKey(token)),
		kvstore.RemoveFromSetOp(userSetKey(rec.UserID), token),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// DeleteAllForUser revokes every token the user holds.
//
//	Performance: 1 SMEMBERS + 1 pipelined DEL.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) error {
	tokens, err := s.kv.MembersOf(ctx, userSetKey(userID))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	keys := make([]string, 0, len(tokens)+1)
	for _, token := range tokens {
		keys = append(keys, tokenKey(token))
	}
	keys = append(keys, userSetKey(userID))

	if err := s.kv.Pipeline(ctx, kvstore.DeleteOp(keys...)); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Tokens lists the user's outstanding tokens. A store failure yields nil.
func (s *Store) Tokens(ctx context.Context, userID string) []string {
	tokens, err := s.kv.MembersOf(ctx, userSetKey(userID))
	return kvstore.Or(s.kv, "refresh.tokens", tokens, err, nil)
}
