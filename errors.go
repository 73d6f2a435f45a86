package sessionguard

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error categories. Every concrete engine error wraps exactly one of these,
// so callers can branch with errors.Is without enumerating every failure.
var (
	ErrAuthentication        = errors.New("authentication failed")
	ErrTooManyRequests       = errors.New("too many requests")
	ErrValidation            = errors.New("validation failed")
	ErrConflict              = errors.New("conflict")
	ErrNotFound              = errors.New("not found")
	ErrDependencyUnavailable = errors.New("service temporarily unavailable")
)

var (
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", ErrAuthentication)
	ErrAccountLocked      = fmt.Errorf("account locked: %w", ErrTooManyRequests)
	// ErrInactiveAccount is returned only after the password has been verified.
	ErrInactiveAccount = fmt.Errorf("account inactive: %w", ErrAuthentication)
	ErrTokenInvalid    = fmt.Errorf("invalid token: %w", ErrAuthentication)
	// ErrSessionGone means the token is well formed but its session was
	// evicted, logged out or expired.
	ErrSessionGone     = fmt.Errorf("session no longer active: %w", ErrAuthentication)
	ErrSessionNotFound = fmt.Errorf("session not found: %w", ErrNotFound)

	ErrRefreshExpired     = fmt.Errorf("refresh token expired: %w", ErrAuthentication)
	ErrRefreshRevoked     = fmt.Errorf("refresh token revoked: %w", ErrAuthentication)
	ErrUserInactive       = fmt.Errorf("user inactive: %w", ErrAuthentication)
	ErrRefreshRateLimited = fmt.Errorf("refresh rate limited: %w", ErrTooManyRequests)

	ErrUserNotFound = fmt.Errorf("user not found: %w", ErrNotFound)

	ErrPasswordPolicy           = fmt.Errorf("password policy violation: %w", ErrValidation)
	ErrPasswordReuse            = fmt.Errorf("new password must be different from current password: %w", ErrValidation)
	ErrPasswordMismatch         = fmt.Errorf("current password is incorrect: %w", ErrAuthentication)
	ErrPasswordResetDisabled    = fmt.Errorf("password reset disabled: %w", ErrValidation)
	ErrPasswordResetInvalid     = fmt.Errorf("password reset token invalid or expired: %w", ErrValidation)
	ErrPasswordResetRateLimited = fmt.Errorf("password reset rate limited: %w", ErrTooManyRequests)

	ErrEngineNotReady = errors.New("engine not initialized")
)

// LockedError is returned while the email/IP pair is locked out.
type LockedError struct {
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked, retry in %s", e.RetryAfter.Round(time.Second))
}

func (e *LockedError) Unwrap() error { return ErrAccountLocked }

// InvalidCredentialsError carries how many failures remain before the lock.
type InvalidCredentialsError struct {
	AttemptsRemaining int
}

func (e *InvalidCredentialsError) Error() string {
	return fmt.Sprintf("invalid credentials, %d attempts remaining", e.AttemptsRemaining)
}

func (e *InvalidCredentialsError) Unwrap() error { return ErrInvalidCredentials }

// StatusCode maps an engine error to the HTTP status its category implies.
// Unknown errors map to 500.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDependencyUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func dependencyError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrDependencyUnavailable, err)
}
