package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/sessionguard/jwt"
)

// RefreshRecord is the flow-local view of a stored refresh token.
type RefreshRecord struct {
	UserID    string
	SessionID string
}

// RefreshMetrics carries metric IDs used by the refresh flow.
type RefreshMetrics struct {
	Success     int
	Failure     int
	RateLimited int
}

// RefreshEvents carries audit event names used by the refresh flow.
type RefreshEvents struct {
	Success     string
	Failure     string
	RateLimited string
}

// RefreshErrors carries host-level errors for each rejection reason.
type RefreshErrors struct {
	EngineNotReady        error
	Expired               error
	Revoked               error
	SessionGone           error
	UserInactive          error
	RateLimited           error
	UserNotFound          error
	DependencyUnavailable func(error) error
}

// RefreshDeps captures refresh-token exchange dependencies.
type RefreshDeps struct {
	ParseRefresh     func(string) (*jwt.RefreshClaims, error)
	CheckThrottle    func(context.Context, string) error
	GetRefreshRecord func(context.Context, string) *RefreshRecord
	IsSessionActive  func(ctx context.Context, sessionID, userID string) bool
	GetUserByID      func(context.Context, string) (*UserRecord, error)
	IssueAccessToken func(userID, sessionID string) (string, error)
	TouchSession     func(context.Context, string) bool

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics RefreshMetrics
	Events  RefreshEvents
	Errors  RefreshErrors
}

// RunRefresh exchanges a refresh token for a new access token. The refresh
// token itself is not rotated; it stays valid until logout, eviction or
// expiry.
func RunRefresh(ctx context.Context, token string, deps RefreshDeps) (string, error) {
	if deps.ParseRefresh == nil || deps.GetRefreshRecord == nil {
		return "", deps.Errors.EngineNotReady
	}

	fail := func(userID, sessionID string, err error) (string, error) {
		metricInc(deps.MetricInc, deps.Metrics.Failure)
		emit(deps.EmitAudit, ctx, deps.Events.Failure, false, userID, sessionID, err, nil)
		return "", err
	}

	claims, err := deps.ParseRefresh(token)
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return fail("", "", deps.Errors.Expired)
		}
		return fail("", "", deps.Errors.Revoked)
	}

	if deps.CheckThrottle != nil {
		if err := deps.CheckThrottle(ctx, claims.SID); err != nil {
			metricInc(deps.MetricInc, deps.Metrics.RateLimited)
			emit(deps.EmitAudit, ctx, deps.Events.RateLimited, false, claims.UID, claims.SID, deps.Errors.RateLimited, nil)
			return "", deps.Errors.RateLimited
		}
	}

	record := deps.GetRefreshRecord(ctx, token)
	if record == nil || record.UserID != claims.UID || record.SessionID != claims.SID {
		return fail(claims.UID, claims.SID, deps.Errors.Revoked)
	}

	if !deps.IsSessionActive(ctx, claims.SID, claims.UID) {
		return fail(claims.UID, claims.SID, deps.Errors.SessionGone)
	}

	user, err := deps.GetUserByID(ctx, claims.UID)
	if err != nil {
		if errors.Is(err, deps.Errors.UserNotFound) {
			return fail(claims.UID, claims.SID, deps.Errors.UserInactive)
		}
		return fail(claims.UID, claims.SID, deps.Errors.DependencyUnavailable(err))
	}
	if !user.IsActive {
		return fail(claims.UID, claims.SID, deps.Errors.UserInactive)
	}

	access, err := deps.IssueAccessToken(claims.UID, claims.SID)
	if err != nil {
		return fail(claims.UID, claims.SID, err)
	}
	if deps.TouchSession != nil {
		deps.TouchSession(ctx, claims.SID)
	}

	metricInc(deps.MetricInc, deps.Metrics.Success)
	emit(deps.EmitAudit, ctx, deps.Events.Success, true, claims.UID, claims.SID, nil, nil)
	return access, nil
}
