package flows

import (
	"context"
	"errors"
	"time"
)

// PasswordMetrics carries metric IDs used by the password flows.
type PasswordMetrics struct {
	ResetRequest        int
	ResetRateLimited    int
	ResetConfirmSuccess int
	ResetConfirmFailure int
	ChangeSuccess       int
	ChangeFailure       int
	MailFailure         int
}

// PasswordEvents carries audit event names used by the password flows.
type PasswordEvents struct {
	ResetRequest  string
	ResetConfirm  string
	ChangeSuccess string
	ChangeFailure string
	MailFailure   string
}

// PasswordErrors carries host-level errors for the password flows.
type PasswordErrors struct {
	EngineNotReady        error
	ResetDisabled         error
	ResetRateLimited      error
	ResetInvalid          error
	PasswordReuse         error
	PasswordMismatch      error
	UserNotFound          error
	DependencyUnavailable func(error) error
}

// PasswordDeps captures reset and change-password dependencies.
type PasswordDeps struct {
	ResetEnabled  bool
	EvictSessions bool
	TokenBytes    int
	MailTimeout   time.Duration

	CheckResetThrottle func(ctx context.Context, email, ip string) error
	NewResetToken      func(int) (string, error)
	SaveResetToken     func(ctx context.Context, token, userID string) error
	ConsumeResetToken  func(context.Context, string) (string, bool, error)
	SendResetMail      func(ctx context.Context, address, token, name string) error
	// Go runs fn in the background; the host tracks it for shutdown.
	Go func(fn func())

	GetUserByEmail func(context.Context, string) (*UserRecord, error)
	GetUserByID    func(context.Context, string) (*UserRecord, error)
	SaveUser       func(context.Context, *UserRecord) error
	HashPassword   func(string) (string, error)
	VerifyPassword func(password, encodedHash string) (bool, error)

	DeleteUserSessions      func(context.Context, string) error
	DeleteUserRefreshTokens func(context.Context, string) error

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	Metrics PasswordMetrics
	Events  PasswordEvents
	Errors  PasswordErrors
}

// RunRequestPasswordReset issues a single-use reset token and mails it in the
// background. Unknown and inactive accounts get the same nil result as real
// ones, so the response never reveals whether an email is registered.
func RunRequestPasswordReset(ctx context.Context, email, ip string, deps PasswordDeps) error {
	if !deps.ResetEnabled {
		return deps.Errors.ResetDisabled
	}
	if deps.GetUserByEmail == nil || deps.SaveResetToken == nil {
		return deps.Errors.EngineNotReady
	}

	email = NormalizeEmail(email)
	meta := func() map[string]string { return map[string]string{"email": email} }

	if deps.CheckResetThrottle != nil {
		if err := deps.CheckResetThrottle(ctx, email, ip); err != nil {
			metricInc(deps.MetricInc, deps.Metrics.ResetRateLimited)
			emit(deps.EmitAudit, ctx, deps.Events.ResetRequest, false, "", "", deps.Errors.ResetRateLimited, meta)
			return deps.Errors.ResetRateLimited
		}
	}
	metricInc(deps.MetricInc, deps.Metrics.ResetRequest)

	user, err := deps.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, deps.Errors.UserNotFound) {
			warn(deps.Warn, "reset lookup failed", "op", "reset.lookup", "error", err)
		}
		emit(deps.EmitAudit, ctx, deps.Events.ResetRequest, false, "", "", deps.Errors.UserNotFound, meta)
		return nil
	}
	if !user.IsActive {
		emit(deps.EmitAudit, ctx, deps.Events.ResetRequest, false, user.ID, "", nil, meta)
		return nil
	}

	token, err := deps.NewResetToken(deps.TokenBytes)
	if err != nil {
		return err
	}
	if err := deps.SaveResetToken(ctx, token, user.ID); err != nil {
		warn(deps.Warn, "store reset token", "op", "reset.save", "user_id", user.ID, "error", err)
		emit(deps.EmitAudit, ctx, deps.Events.ResetRequest, false, user.ID, "", deps.Errors.DependencyUnavailable(err), meta)
		return nil
	}

	address, name, userID := user.Email, user.Name, user.ID
	send := func() {
		mailCtx, cancel := context.WithTimeout(context.Background(), deps.MailTimeout)
		defer cancel()
		if err := deps.SendResetMail(mailCtx, address, token, name); err != nil {
			metricInc(deps.MetricInc, deps.Metrics.MailFailure)
			emit(deps.EmitAudit, mailCtx, deps.Events.MailFailure, false, userID, "", err, nil)
			warn(deps.Warn, "send reset mail", "op", "reset.mail", "user_id", userID, "error", err)
		}
	}
	if deps.Go != nil {
		deps.Go(send)
	} else {
		go send()
	}

	emit(deps.EmitAudit, ctx, deps.Events.ResetRequest, true, user.ID, "", nil, meta)
	return nil
}

// RunConfirmPasswordReset consumes token and sets the new password. The new
// password is checked before the token is consumed, so a policy rejection
// leaves the token usable.
func RunConfirmPasswordReset(ctx context.Context, token, newPassword string, deps PasswordDeps) error {
	if !deps.ResetEnabled {
		return deps.Errors.ResetDisabled
	}
	if deps.ConsumeResetToken == nil || deps.GetUserByID == nil {
		return deps.Errors.EngineNotReady
	}

	fail := func(userID string, err error) error {
		metricInc(deps.MetricInc, deps.Metrics.ResetConfirmFailure)
		emit(deps.EmitAudit, ctx, deps.Events.ResetConfirm, false, userID, "", err, nil)
		return err
	}

	if token == "" {
		return fail("", deps.Errors.ResetInvalid)
	}

	hash, err := deps.HashPassword(newPassword)
	if err != nil {
		return fail("", err)
	}

	userID, ok, err := deps.ConsumeResetToken(ctx, token)
	if err != nil {
		return fail("", deps.Errors.DependencyUnavailable(err))
	}
	if !ok {
		return fail("", deps.Errors.ResetInvalid)
	}

	user, err := deps.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, deps.Errors.UserNotFound) {
			return fail(userID, deps.Errors.ResetInvalid)
		}
		return fail(userID, deps.Errors.DependencyUnavailable(err))
	}

	user.PasswordHash = hash
	if err := deps.SaveUser(ctx, user); err != nil {
		return fail(userID, deps.Errors.DependencyUnavailable(err))
	}

	if deps.EvictSessions {
		evictAll(ctx, user.ID, deps)
	}

	metricInc(deps.MetricInc, deps.Metrics.ResetConfirmSuccess)
	emit(deps.EmitAudit, ctx, deps.Events.ResetConfirm, true, user.ID, "", nil, nil)
	return nil
}

// RunChangePassword verifies the current password, stores the new one and
// signs the user out everywhere.
func RunChangePassword(ctx context.Context, userID, oldPassword, newPassword string, deps PasswordDeps) error {
	if deps.GetUserByID == nil || deps.VerifyPassword == nil {
		return deps.Errors.EngineNotReady
	}

	fail := func(err error) error {
		metricInc(deps.MetricInc, deps.Metrics.ChangeFailure)
		emit(deps.EmitAudit, ctx, deps.Events.ChangeFailure, false, userID, "", err, nil)
		return err
	}

	user, err := deps.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, deps.Errors.UserNotFound) {
			return fail(deps.Errors.UserNotFound)
		}
		return fail(deps.Errors.DependencyUnavailable(err))
	}

	ok, err := deps.VerifyPassword(oldPassword, user.PasswordHash)
	if err != nil || !ok {
		return fail(deps.Errors.PasswordMismatch)
	}
	if oldPassword == newPassword {
		return fail(deps.Errors.PasswordReuse)
	}

	hash, err := deps.HashPassword(newPassword)
	if err != nil {
		return fail(err)
	}
	user.PasswordHash = hash
	if err := deps.SaveUser(ctx, user); err != nil {
		return fail(deps.Errors.DependencyUnavailable(err))
	}

	evictAll(ctx, user.ID, deps)

	metricInc(deps.MetricInc, deps.Metrics.ChangeSuccess)
	emit(deps.EmitAudit, ctx, deps.Events.ChangeSuccess, true, user.ID, "", nil, nil)
	return nil
}

func evictAll(ctx context.Context, userID string, deps PasswordDeps) {
	if err := deps.DeleteUserSessions(ctx, userID); err != nil {
		warn(deps.Warn, "evict sessions after password update", "op", "password.evict_sessions", "user_id", userID, "error", err)
	}
	if err := deps.DeleteUserRefreshTokens(ctx, userID); err != nil {
		warn(deps.Warn, "evict refresh tokens after password update", "op", "password.evict_refresh", "user_id", userID, "error", err)
	}
}
