package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/sessionguard/jwt"
	"github.com/MrEthical07/sessionguard/session"
)

// ValidateResult is the flow-local view of an accepted access token.
type ValidateResult struct {
	UserID    string
	SessionID string
	Email     string
	Name      string
	ExpiresAt time.Time
}

// ValidateMetrics carries metric IDs used by the validate flow.
type ValidateMetrics struct {
	Success int
	Failure int
}

// ValidateErrors carries host-level errors for the validate flow.
type ValidateErrors struct {
	EngineNotReady error
	TokenInvalid   error
	SessionGone    error
}

// ValidateDeps captures access-token validation dependencies.
type ValidateDeps struct {
	ParseAccess     func(string) (*jwt.AccessClaims, error)
	ActiveSessionID func(context.Context, string) string
	GetSession      func(context.Context, string) *session.Session
	TouchSession    func(context.Context, string) bool
	Now             func() time.Time
	ObserveLatency  func(time.Duration)

	MetricInc func(int)
	Metrics   ValidateMetrics
	Errors    ValidateErrors
}

// RunValidate accepts an access token only while its session is the user's
// active one. Accepted requests slide the session through the throttled
// refresh.
func RunValidate(ctx context.Context, token string, deps ValidateDeps) (*ValidateResult, error) {
	if deps.ParseAccess == nil || deps.GetSession == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if deps.ObserveLatency != nil && deps.Now != nil {
		start := deps.Now()
		defer func() { deps.ObserveLatency(deps.Now().Sub(start)) }()
	}

	claims, err := deps.ParseAccess(token)
	if err != nil {
		metricInc(deps.MetricInc, deps.Metrics.Failure)
		return nil, deps.Errors.TokenInvalid
	}

	if deps.ActiveSessionID(ctx, claims.UID) != claims.SID {
		metricInc(deps.MetricInc, deps.Metrics.Failure)
		return nil, deps.Errors.SessionGone
	}
	sess := deps.GetSession(ctx, claims.SID)
	if sess == nil || sess.UserID != claims.UID {
		metricInc(deps.MetricInc, deps.Metrics.Failure)
		return nil, deps.Errors.SessionGone
	}

	if deps.TouchSession != nil {
		deps.TouchSession(ctx, claims.SID)
	}

	res := &ValidateResult{
		UserID:    sess.UserID,
		SessionID: sess.SessionID,
		Email:     sess.Email,
		Name:      sess.Name,
	}
	if claims.ExpiresAt != nil {
		res.ExpiresAt = claims.ExpiresAt.Time
	}
	metricInc(deps.MetricInc, deps.Metrics.Success)
	return res, nil
}
