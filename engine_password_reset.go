package sessionguard

import (
	"context"

	"github.com/MrEthical07/sessionguard/internal/flows"
)

// RequestPasswordReset mails a single-use reset token to email. It returns nil
// for unknown and inactive accounts alike. The only errors are
// [ErrPasswordResetDisabled] and [ErrPasswordResetRateLimited].
//
// The client IP from ctx feeds the per-IP throttle.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunRequestPasswordReset(ctx, email, clientIPFromContext(ctx), e.flows.Password)
}

// ConfirmPasswordReset consumes token and sets newPassword. Every session and
// refresh token of the user is revoked unless eviction is disabled in
// [PasswordResetConfig].
func (e *Engine) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunConfirmPasswordReset(ctx, token, newPassword, e.flows.Password)
}

// ChangePassword replaces the password of userID after checking oldPassword,
// then revokes every session and refresh token of the user.
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunChangePassword(ctx, userID, oldPassword, newPassword, e.flows.Password)
}
