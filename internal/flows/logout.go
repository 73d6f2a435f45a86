package flows

import "context"

// LogoutDeps captures logout dependencies.
type LogoutDeps struct {
	DeleteSession           func(ctx context.Context, sessionID, userID string) error
	DeleteUserRefreshTokens func(context.Context, string) error

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	MetricLogout int
	EventLogout  string
	ErrInvalid   error
}

// RunLogout removes the session and every refresh token of the user. Store
// failures are logged and swallowed; expiry finishes the job.
func RunLogout(ctx context.Context, sessionID, userID string, deps LogoutDeps) error {
	if sessionID == "" || userID == "" {
		return deps.ErrInvalid
	}

	if err := deps.DeleteSession(ctx, sessionID, userID); err != nil {
		warn(deps.Warn, "delete session on logout", "op", "logout.session", "session_id", sessionID, "error", err)
	}
	if err := deps.DeleteUserRefreshTokens(ctx, userID); err != nil {
		warn(deps.Warn, "delete refresh tokens on logout", "op", "logout.refresh", "user_id", userID, "error", err)
	}

	metricInc(deps.MetricInc, deps.MetricLogout)
	emit(deps.EmitAudit, ctx, deps.EventLogout, true, userID, sessionID, nil, nil)
	return nil
}
