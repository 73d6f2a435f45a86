package flows

import (
	"context"
	"strings"
	"time"

	"github.com/MrEthical07/sessionguard/device"
)

// UserRecord is the flow-local copy of the durable user.
type UserRecord struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	LastLogin    time.Time
	Devices      []device.Device
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AuditFunc matches the engine's audit emitter.
type AuditFunc func(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadata func() map[string]string,
)

// NormalizeEmail lower-cases and trims an email for lookups and lockout keys.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func metricInc(fn func(int), id int) {
	if fn != nil {
		fn(id)
	}
}

func emit(fn AuditFunc, ctx context.Context, eventType string, success bool, userID, sessionID string, err error, metadata func() map[string]string) {
	if fn != nil {
		fn(ctx, eventType, success, userID, sessionID, err, metadata)
	}
}

func warn(fn func(string, ...any), msg string, args ...any) {
	if fn != nil {
		fn(msg, args...)
	}
}
