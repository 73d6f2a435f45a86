package sessionguard

import (
	"context"
	"time"

	"github.com/MrEthical07/sessionguard/internal/flows"
)

// Validate accepts accessToken only while its session is the user's active
// one, and slides that session forward through the throttled refresh.
// Rejections match [ErrTokenInvalid] or [ErrSessionGone].
func (e *Engine) Validate(ctx context.Context, accessToken string) (*AuthResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	res, err := flows.RunValidate(ctx, accessToken, e.flows.Validate)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		UserID:    res.UserID,
		SessionID: res.SessionID,
		Email:     res.Email,
		Name:      res.Name,
		ExpiresAt: res.ExpiresAt,
	}, nil
}

// SessionTimeLeft returns the remaining lifetime of sessionID, or
// [ErrSessionNotFound] when it has expired or never existed.
func (e *Engine) SessionTimeLeft(ctx context.Context, sessionID string) (time.Duration, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}
	if sessionID == "" {
		return 0, ErrSessionNotFound
	}
	left := e.sessionStore.TimeLeft(ctx, sessionID)
	if left <= 0 {
		return 0, ErrSessionNotFound
	}
	return left, nil
}

// ExtendSession resets sessionID to a full lifetime, bypassing the refresh
// throttle. It reports false when the session is gone or the store failed.
func (e *Engine) ExtendSession(ctx context.Context, sessionID string) bool {
	if e == nil || sessionID == "" {
		return false
	}
	ok := e.sessionStore.Refresh(ctx, sessionID, true)
	if ok {
		e.metricInc(MetricSessionExtended)
	}
	e.emitAudit(ctx, auditEventSessionExtended, ok, "", sessionID, nil, nil)
	return ok
}

// RefreshAccessToken exchanges refreshToken for a new access token bound to
// the same session. The refresh token is not rotated.
//
// Rejections match [ErrRefreshExpired], [ErrRefreshRevoked],
// [ErrSessionGone], [ErrUserInactive] or [ErrRefreshRateLimited].
func (e *Engine) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	return flows.RunRefresh(ctx, refreshToken, e.flows.Refresh)
}

// Logout deletes sessionID and every refresh token of userID. Store failures
// are logged, not returned; the records expire on their own.
func (e *Engine) Logout(ctx context.Context, sessionID, userID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunLogout(ctx, sessionID, userID, e.flows.Logout)
}
