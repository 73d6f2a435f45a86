package sessionguard

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/sessionguard/internal"
	"github.com/MrEthical07/sessionguard/internal/flows"
	"github.com/MrEthical07/sessionguard/session"
)

var errMailNotConfigured = errors.New("mail sender not configured")

// initFlowDeps binds every flow to this engine's stores. It runs once, at the
// end of Build.
func (e *Engine) initFlowDeps() {
	metricInc := func(id int) { e.metricInc(MetricID(id)) }
	deleteUserSessions := e.sessionStore.DeleteAllForUser
	deleteUserRefresh := e.refreshStore.DeleteAllForUser
	touch := func(ctx context.Context, sessionID string) bool {
		return e.sessionStore.Refresh(ctx, sessionID, false)
	}

	e.flows.Login = flows.LoginDeps{
		LockoutThreshold:       e.config.Lockout.Threshold,
		MaxDevices:             e.config.Devices.MaxDevices,
		PasswordUpgradeOnLogin: e.config.Password.UpgradeOnLogin,
		DummyHash:              e.dummyHash,
		Now:                    time.Now,

		IsLocked:      e.tracker.IsLocked,
		LockRemaining: e.tracker.LockRemaining,
		RecordFailure: e.tracker.RecordFailure,
		Lock:          e.tracker.Lock,
		ClearFailures: e.tracker.Clear,

		GetUserByEmail: e.getUserByEmail,
		SaveUser:       e.saveUser,
		VerifyPassword: e.hasher.Verify,
		NeedsRehash:    e.hasher.NeedsRehash,
		HashPassword:   e.hashPassword,

		NewSessionID: internal.NewSessionIDString,
		CreateSession: func(ctx context.Context, userID, sessionID, email, name string) error {
			_, err := e.sessionStore.Create(ctx, userID, sessionID, session.Fields{Email: email, Name: name})
			return err
		},
		DeleteUserSessions:      deleteUserSessions,
		DeleteUserRefreshTokens: deleteUserRefresh,
		IssueAccessToken:        e.jwtManager.CreateAccess,
		IssueRefreshToken:       e.jwtManager.CreateRefresh,
		StoreRefreshToken:       e.refreshStore.Store,

		MetricInc: metricInc,
		EmitAudit: e.emitAudit,
		Warn:      e.warn,

		Metrics: flows.LoginMetrics{
			Success:            int(MetricLoginSuccess),
			Failure:            int(MetricLoginFailure),
			Locked:             int(MetricLoginLocked),
			Inactive:           int(MetricLoginInactive),
			DependencyFailure:  int(MetricLoginDependencyFailure),
			SessionCreated:     int(MetricSessionCreated),
			SessionEvicted:     int(MetricSessionEvicted),
			DeviceNew:          int(MetricDeviceNew),
			DeviceLogoutNotice: int(MetricDeviceLogoutNotice),
		},
		Events: flows.LoginEvents{
			Success:            auditEventLoginSuccess,
			Failure:            auditEventLoginFailure,
			Locked:             auditEventLoginLocked,
			Inactive:           auditEventLoginInactive,
			Unavailable:        auditEventLoginUnavailable,
			SessionEvicted:     auditEventSessionEvicted,
			DeviceLogoutNotice: auditEventDeviceLogoutNotice,
		},
		Errors: flows.LoginErrors{
			EngineNotReady:  ErrEngineNotReady,
			UserNotFound:    ErrUserNotFound,
			InactiveAccount: ErrInactiveAccount,
			Locked: func(retryAfter time.Duration) error {
				return &LockedError{RetryAfter: retryAfter}
			},
			InvalidCredentials: func(remaining int) error {
				return &InvalidCredentialsError{AttemptsRemaining: remaining}
			},
			DependencyUnavailable: dependencyError,
		},
	}

	e.flows.Refresh = flows.RefreshDeps{
		ParseRefresh:  e.jwtManager.ParseRefresh,
		CheckThrottle: e.throttle.CheckRefresh,
		GetRefreshRecord: func(ctx context.Context, token string) *flows.RefreshRecord {
			rec := e.refreshStore.Get(ctx, token)
			if rec == nil {
				return nil
			}
			return &flows.RefreshRecord{UserID: rec.UserID, SessionID: rec.SessionID}
		},
		IsSessionActive:  e.sessionStore.IsActive,
		GetUserByID:      e.getUserByID,
		IssueAccessToken: e.jwtManager.CreateAccess,
		TouchSession:     touch,

		MetricInc: metricInc,
		EmitAudit: e.emitAudit,

		Metrics: flows.RefreshMetrics{
			Success:     int(MetricRefreshSuccess),
			Failure:     int(MetricRefreshFailure),
			RateLimited: int(MetricRefreshRateLimited),
		},
		Events: flows.RefreshEvents{
			Success:     auditEventRefreshSuccess,
			Failure:     auditEventRefreshFailure,
			RateLimited: auditEventRefreshRateLimited,
		},
		Errors: flows.RefreshErrors{
			EngineNotReady:        ErrEngineNotReady,
			Expired:               ErrRefreshExpired,
			Revoked:               ErrRefreshRevoked,
			SessionGone:           ErrSessionGone,
			UserInactive:          ErrUserInactive,
			RateLimited:           ErrRefreshRateLimited,
			UserNotFound:          ErrUserNotFound,
			DependencyUnavailable: dependencyError,
		},
	}

	e.flows.Validate = flows.ValidateDeps{
		ParseAccess:     e.jwtManager.ParseAccess,
		ActiveSessionID: e.sessionStore.ActiveSessionID,
		GetSession:      e.sessionStore.Get,
		TouchSession:    touch,
		MetricInc:       metricInc,
		Metrics: flows.ValidateMetrics{
			Success: int(MetricValidateSuccess),
			Failure: int(MetricValidateFailure),
		},
		Errors: flows.ValidateErrors{
			EngineNotReady: ErrEngineNotReady,
			TokenInvalid:   ErrTokenInvalid,
			SessionGone:    ErrSessionGone,
		},
	}
	if e.metrics.LatencyEnabled() {
		e.flows.Validate.Now = time.Now
		e.flows.Validate.ObserveLatency = func(d time.Duration) {
			e.metrics.Observe(MetricValidateLatency, d)
		}
	}

	e.flows.Logout = flows.LogoutDeps{
		DeleteSession:           e.sessionStore.Delete,
		DeleteUserRefreshTokens: deleteUserRefresh,
		MetricInc:               metricInc,
		EmitAudit:               e.emitAudit,
		Warn:                    e.warn,
		MetricLogout:            int(MetricLogout),
		EventLogout:             auditEventLogoutSession,
		ErrInvalid:              ErrSessionNotFound,
	}

	e.flows.Password = flows.PasswordDeps{
		ResetEnabled:  e.config.PasswordReset.Enabled,
		EvictSessions: e.config.PasswordReset.EvictSessions,
		TokenBytes:    e.config.PasswordReset.TokenByteCount,
		MailTimeout:   e.config.PasswordReset.MailTimeout,

		CheckResetThrottle: e.throttle.CheckReset,
		NewResetToken:      internal.NewResetToken,
		SaveResetToken:     e.resetStore.Save,
		ConsumeResetToken:  e.resetStore.Consume,
		SendResetMail: func(ctx context.Context, address, token, name string) error {
			if e.mail == nil {
				return errMailNotConfigured
			}
			return e.mail.SendPasswordReset(ctx, address, token, name)
		},
		Go: e.goBackground,

		GetUserByEmail: e.getUserByEmail,
		GetUserByID:    e.getUserByID,
		SaveUser:       e.saveUser,
		HashPassword:   e.hashPassword,
		VerifyPassword: e.hasher.Verify,

		DeleteUserSessions:      deleteUserSessions,
		DeleteUserRefreshTokens: deleteUserRefresh,

		MetricInc: metricInc,
		EmitAudit: e.emitAudit,
		Warn:      e.warn,

		Metrics: flows.PasswordMetrics{
			ResetRequest:        int(MetricPasswordResetRequest),
			ResetRateLimited:    int(MetricPasswordResetRateLimited),
			ResetConfirmSuccess: int(MetricPasswordResetConfirmSuccess),
			ResetConfirmFailure: int(MetricPasswordResetConfirmFailure),
			ChangeSuccess:       int(MetricPasswordChangeSuccess),
			ChangeFailure:       int(MetricPasswordChangeFailure),
			MailFailure:         int(MetricMailFailure),
		},
		Events: flows.PasswordEvents{
			ResetRequest:  auditEventPasswordResetRequest,
			ResetConfirm:  auditEventPasswordResetConfirm,
			ChangeSuccess: auditEventPasswordChangeSuccess,
			ChangeFailure: auditEventPasswordChangeFailure,
			MailFailure:   auditEventMailFailure,
		},
		Errors: flows.PasswordErrors{
			EngineNotReady:        ErrEngineNotReady,
			ResetDisabled:         ErrPasswordResetDisabled,
			ResetRateLimited:      ErrPasswordResetRateLimited,
			ResetInvalid:          ErrPasswordResetInvalid,
			PasswordReuse:         ErrPasswordReuse,
			PasswordMismatch:      ErrPasswordMismatch,
			UserNotFound:          ErrUserNotFound,
			DependencyUnavailable: dependencyError,
		},
	}
}
