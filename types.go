package sessionguard

import (
	"context"
	"time"

	"github.com/MrEthical07/sessionguard/device"
)

// User is the durable account record. Devices is owned by the engine; stores
// persist it as-is.
type User struct {
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

// UserStore is the durable user collaborator. Lookups of a missing user
// must return an error matching [ErrUserNotFound].
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	SaveUser(ctx context.Context, user *User) error
}

// MailSender delivers password reset tokens. The engine calls it from a
// background goroutine and only logs failures.
type MailSender interface {
	SendPasswordReset(ctx context.Context, address, token, displayName string) error
}

// DeviceInfo is the request-side device description passed to Login.
type DeviceInfo = device.Info

// LoginResult is returned by [Engine.Login].
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         UserProfile
	DeviceInfo   DeviceSummary
	// DeviceLogout is set when a different device held the active session.
	DeviceLogout *DeviceLogoutNotice
}

// UserProfile is the public part of [User].
type UserProfile struct {
	ID        string
	Email     string
	Name      string
	LastLogin time.Time
}

// DeviceSummary describes the device the login was attributed to.
type DeviceSummary struct {
	DeviceID     string
	IsNewDevice  bool
	TotalDevices int
}

// DeviceLogoutNotice tells the caller which device was signed out.
type DeviceLogoutNotice struct {
	PreviousDevice PreviousDevice
	Message        string
}

// PreviousDevice describes the device a login displaced.
type PreviousDevice struct {
	DeviceID   string
	Browser    string
	OS         string
	DeviceType string
	LastSeen   time.Time
}

// AuthResult is returned by [Engine.Validate] for an accepted access token.
type AuthResult struct {
	UserID    string
	SessionID string
	Email     string
	Name      string
	ExpiresAt time.Time
}
