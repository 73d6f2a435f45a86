package internaldefs

import (
	sessionguard "github.com/MrEthical07/sessionguard"
)

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   sessionguard.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine histogram to its exported name.
type HistogramDef struct {
	ID   sessionguard.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: sessionguard.MetricLoginSuccess, Name: "sessionguard_login_success_total", Help: "Successful logins."},
	{ID: sessionguard.MetricLoginFailure, Name: "sessionguard_login_failure_total", Help: "Logins rejected for bad credentials."},
	{ID: sessionguard.MetricLoginLocked, Name: "sessionguard_login_locked_total", Help: "Logins rejected by an account lock."},
	{ID: sessionguard.MetricLoginInactive, Name: "sessionguard_login_inactive_total", Help: "Logins rejected for inactive accounts."},
	{ID: sessionguard.MetricLoginDependencyFailure, Name: "sessionguard_login_dependency_failure_total", Help: "Logins aborted by a store outage."},
	{ID: sessionguard.MetricSessionCreated, Name: "sessionguard_session_created_total", Help: "Created sessions."},
	{ID: sessionguard.MetricSessionEvicted, Name: "sessionguard_session_evicted_total", Help: "Sessions evicted by a newer login."},
	{ID: sessionguard.MetricDeviceNew, Name: "sessionguard_device_new_total", Help: "Logins from a previously unseen device."},
	{ID: sessionguard.MetricDeviceLogoutNotice, Name: "sessionguard_device_logout_notice_total", Help: "Logins that displaced another device."},
	{ID: sessionguard.MetricDeviceDeactivated, Name: "sessionguard_device_deactivated_total", Help: "Devices deactivated by their owner."},
	{ID: sessionguard.MetricRefreshSuccess, Name: "sessionguard_refresh_success_total", Help: "Access tokens minted from a refresh token."},
	{ID: sessionguard.MetricRefreshFailure, Name: "sessionguard_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: sessionguard.MetricRefreshRateLimited, Name: "sessionguard_refresh_rate_limited_total", Help: "Throttled refresh attempts."},
	{ID: sessionguard.MetricValidateSuccess, Name: "sessionguard_validate_success_total", Help: "Accepted access tokens."},
	{ID: sessionguard.MetricValidateFailure, Name: "sessionguard_validate_failure_total", Help: "Rejected access tokens."},
	{ID: sessionguard.MetricSessionExtended, Name: "sessionguard_session_extended_total", Help: "Explicit session extensions."},
	{ID: sessionguard.MetricLogout, Name: "sessionguard_logout_total", Help: "Logouts."},
	{ID: sessionguard.MetricPasswordChangeSuccess, Name: "sessionguard_password_change_success_total", Help: "Successful password changes."},
	{ID: sessionguard.MetricPasswordChangeFailure, Name: "sessionguard_password_change_failure_total", Help: "Rejected password changes."},
	{ID: sessionguard.MetricPasswordResetRequest, Name: "sessionguard_password_reset_request_total", Help: "Password reset requests."},
	{ID: sessionguard.MetricPasswordResetRateLimited, Name: "sessionguard_password_reset_rate_limited_total", Help: "Throttled password reset requests."},
	{ID: sessionguard.MetricPasswordResetConfirmSuccess, Name: "sessionguard_password_reset_confirm_success_total", Help: "Successful password reset confirmations."},
	{ID: sessionguard.MetricPasswordResetConfirmFailure, Name: "sessionguard_password_reset_confirm_failure_total", Help: "Failed password reset confirmations."},
	{ID: sessionguard.MetricMailFailure, Name: "sessionguard_mail_failure_total", Help: "Outbound mail that could not be delivered."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: sessionguard.MetricValidateLatency, Name: "sessionguard_validate_latency_seconds", Help: "Validate latency histogram."},
}

// HistogramBounds holds the upper bound label of each bucket, in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is the name-safe form of [HistogramBounds].
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
