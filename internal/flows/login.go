package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/sessionguard/device"
	"github.com/MrEthical07/sessionguard/internal/limiters"
)

// LoginInput is one login attempt.
type LoginInput struct {
	Email    string
	Password string
	IP       string
	Device   device.Info
}

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
	User         UserRecord
	DeviceID     string
	IsNewDevice  bool
	TotalDevices int
	// PreviousDevice is the most recently seen other active device, captured
	// before this login deactivated it.
	PreviousDevice *device.Device
}

// LoginMetrics carries metric IDs used by the login flow.
type LoginMetrics struct {
	Success            int
	Failure            int
	Locked             int
	Inactive           int
	DependencyFailure  int
	SessionCreated     int
	SessionEvicted     int
	DeviceNew          int
	DeviceLogoutNotice int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	Success            string
	Failure            string
	Locked             string
	Inactive           string
	Unavailable        string
	SessionEvicted     string
	DeviceLogoutNotice string
}

// LoginErrors carries host-level errors and constructors.
type LoginErrors struct {
	EngineNotReady        error
	UserNotFound          error
	InactiveAccount       error
	Locked                func(retryAfter time.Duration) error
	InvalidCredentials    func(attemptsRemaining int) error
	DependencyUnavailable func(error) error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	LockoutThreshold       int
	MaxDevices             int
	PasswordUpgradeOnLogin bool
	// DummyHash is verified against when the email is unknown, so both
	// failure kinds cost one hash verification.
	DummyHash string
	Now       func() time.Time

	IsLocked      func(context.Context, string) bool
	LockRemaining func(context.Context, string) time.Duration
	RecordFailure func(context.Context, string) (int, error)
	Lock          func(context.Context, string) error
	ClearFailures func(context.Context, string) error

	GetUserByEmail func(context.Context, string) (*UserRecord, error)
	SaveUser       func(context.Context, *UserRecord) error
	VerifyPassword func(password, encodedHash string) (bool, error)
	NeedsRehash    func(encodedHash string) bool
	HashPassword   func(password string) (string, error)

	NewSessionID            func() (string, error)
	CreateSession           func(ctx context.Context, userID, sessionID, email, name string) error
	DeleteUserSessions      func(context.Context, string) error
	DeleteUserRefreshTokens func(context.Context, string) error
	IssueAccessToken        func(userID, sessionID string) (string, error)
	IssueRefreshToken       func(userID, sessionID string) (string, error)
	StoreRefreshToken       func(ctx context.Context, token, userID, sessionID string) error

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLogin walks CHECK_LOCK, VERIFY_CREDENTIALS, CHECK_ACTIVE, EVICT_PRIOR,
// ISSUE_NEW, PERSIST and RESPOND. Every terminal path emits one metric and one
// audit event.
//
// Eviction completes before issuance starts. The durable user is saved once,
// after every fast-store write has succeeded.
func RunLogin(ctx context.Context, in LoginInput, deps LoginDeps) (*LoginResult, error) {
	if deps.GetUserByEmail == nil || deps.VerifyPassword == nil || deps.CreateSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	email := NormalizeEmail(in.Email)
	identifier := limiters.Identifier(email, in.IP)
	ipMeta := func() map[string]string {
		return map[string]string{"email": email}
	}

	// CHECK_LOCK
	if deps.IsLocked(ctx, identifier) {
		err := deps.Errors.Locked(deps.LockRemaining(ctx, identifier))
		metricInc(deps.MetricInc, deps.Metrics.Locked)
		emit(deps.EmitAudit, ctx, deps.Events.Locked, false, "", "", err, ipMeta)
		return nil, err
	}

	// VERIFY_CREDENTIALS
	user, err := deps.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, deps.Errors.UserNotFound) {
		depErr := deps.Errors.DependencyUnavailable(err)
		metricInc(deps.MetricInc, deps.Metrics.DependencyFailure)
		emit(deps.EmitAudit, ctx, deps.Events.Unavailable, false, "", "", depErr, ipMeta)
		return nil, depErr
	}

	verified := false
	if user != nil {
		ok, verifyErr := deps.VerifyPassword(in.Password, user.PasswordHash)
		verified = verifyErr == nil && ok
	} else if deps.DummyHash != "" {
		_, _ = deps.VerifyPassword(in.Password, deps.DummyHash)
	}

	if !verified {
		return nil, loginFailure(ctx, identifier, user, deps, ipMeta)
	}

	// CHECK_ACTIVE
	if !user.IsActive {
		metricInc(deps.MetricInc, deps.Metrics.Inactive)
		emit(deps.EmitAudit, ctx, deps.Events.Inactive, false, user.ID, "", deps.Errors.InactiveAccount, ipMeta)
		return nil, deps.Errors.InactiveAccount
	}

	if err := deps.ClearFailures(ctx, identifier); err != nil {
		warn(deps.Warn, "clear failed attempts", "op", "login.clear_failures", "error", err)
	}

	// EVICT_PRIOR
	deviceID := device.Fingerprint(in.Device)
	registry := device.NewRegistry(&user.Devices, deps.MaxDevices)
	previous := registry.MostRecentOtherActive(deviceID)

	if err := deps.DeleteUserSessions(ctx, user.ID); err != nil {
		warn(deps.Warn, "evict prior sessions", "op", "login.evict_sessions", "user_id", user.ID, "error", err)
	}
	if err := deps.DeleteUserRefreshTokens(ctx, user.ID); err != nil {
		warn(deps.Warn, "evict prior refresh tokens", "op", "login.evict_refresh", "user_id", user.ID, "error", err)
	}
	metricInc(deps.MetricInc, deps.Metrics.SessionEvicted)
	emit(deps.EmitAudit, ctx, deps.Events.SessionEvicted, true, user.ID, "", nil, nil)
	registry.DeactivateOthers(deviceID)

	// ISSUE_NEW
	sessionID, err := deps.NewSessionID()
	if err != nil {
		return nil, err
	}
	if err := deps.CreateSession(ctx, user.ID, sessionID, user.Email, user.Name); err != nil {
		return nil, loginUnavailable(ctx, user.ID, sessionID, err, deps)
	}
	metricInc(deps.MetricInc, deps.Metrics.SessionCreated)

	access, err := deps.IssueAccessToken(user.ID, sessionID)
	if err != nil {
		abandonSession(ctx, user.ID, deps)
		return nil, err
	}
	refresh, err := deps.IssueRefreshToken(user.ID, sessionID)
	if err != nil {
		abandonSession(ctx, user.ID, deps)
		return nil, err
	}
	if err := deps.StoreRefreshToken(ctx, refresh, user.ID, sessionID); err != nil {
		abandonSession(ctx, user.ID, deps)
		return nil, loginUnavailable(ctx, user.ID, sessionID, err, deps)
	}

	// PERSIST
	now := deps.Now()
	in.Device.SourceIP = firstNonEmpty(in.Device.SourceIP, in.IP)
	user.LastLogin = now
	id, isNew := registry.RecordLogin(in.Device, now)
	if isNew {
		metricInc(deps.MetricInc, deps.Metrics.DeviceNew)
	}
	if deps.PasswordUpgradeOnLogin && deps.NeedsRehash != nil && deps.HashPassword != nil && deps.NeedsRehash(user.PasswordHash) {
		if upgraded, err := deps.HashPassword(in.Password); err == nil {
			user.PasswordHash = upgraded
		}
	}
	if err := deps.SaveUser(ctx, user); err != nil {
		warn(deps.Warn, "save user after login", "op", "login.save_user", "user_id", user.ID, "error", err)
	}

	// RESPOND
	result := &LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		SessionID:    sessionID,
		User:         *user,
		DeviceID:     id,
		IsNewDevice:  isNew,
		TotalDevices: registry.Len(),
	}
	if previous != nil {
		result.PreviousDevice = previous
		metricInc(deps.MetricInc, deps.Metrics.DeviceLogoutNotice)
		emit(deps.EmitAudit, ctx, deps.Events.DeviceLogoutNotice, true, user.ID, sessionID, nil, func() map[string]string {
			return map[string]string{"device_id": previous.DeviceID}
		})
	}

	metricInc(deps.MetricInc, deps.Metrics.Success)
	emit(deps.EmitAudit, ctx, deps.Events.Success, true, user.ID, sessionID, nil, func() map[string]string {
		return map[string]string{
			"device_id":  id,
			"new_device": boolString(isNew),
		}
	})
	return result, nil
}

func loginFailure(ctx context.Context, identifier string, user *UserRecord, deps LoginDeps, meta func() map[string]string) error {
	userID := ""
	if user != nil {
		userID = user.ID
	}

	count, err := deps.RecordFailure(ctx, identifier)
	if err != nil {
		warn(deps.Warn, "record failed attempt", "op", "login.record_failure", "error", err)
	}

	if count >= deps.LockoutThreshold {
		if err := deps.Lock(ctx, identifier); err != nil {
			warn(deps.Warn, "set account lock", "op", "login.lock", "error", err)
		}
		lockErr := deps.Errors.Locked(deps.LockRemaining(ctx, identifier))
		metricInc(deps.MetricInc, deps.Metrics.Locked)
		emit(deps.EmitAudit, ctx, deps.Events.Locked, false, userID, "", lockErr, meta)
		return lockErr
	}

	remaining := deps.LockoutThreshold - count
	failErr := deps.Errors.InvalidCredentials(remaining)
	metricInc(deps.MetricInc, deps.Metrics.Failure)
	emit(deps.EmitAudit, ctx, deps.Events.Failure, false, userID, "", failErr, meta)
	return failErr
}

func loginUnavailable(ctx context.Context, userID, sessionID string, cause error, deps LoginDeps) error {
	err := deps.Errors.DependencyUnavailable(cause)
	metricInc(deps.MetricInc, deps.Metrics.DependencyFailure)
	emit(deps.EmitAudit, ctx, deps.Events.Unavailable, false, userID, sessionID, err, nil)
	return err
}

// abandonSession removes a session whose tokens could not be completed, so a
// failed login leaves no reachable session behind.
func abandonSession(ctx context.Context, userID string, deps LoginDeps) {
	if err := deps.DeleteUserSessions(ctx, userID); err != nil {
		warn(deps.Warn, "abandon session", "op", "login.abandon", "user_id", userID, "error", err)
	}
	if err := deps.DeleteUserRefreshTokens(ctx, userID); err != nil {
		warn(deps.Warn, "abandon refresh tokens", "op", "login.abandon", "user_id", userID, "error", err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
