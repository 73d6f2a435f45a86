package device

import "time"

// MaxDevices caps the history kept per user.
const MaxDevices = 10

// Info describes the device presented at login.
type Info struct {
	Browser    string `json:"browser"`
	OS         string `json:"os"`
	DeviceType string `json:"deviceType"`
	Vendor     string `json:"vendor,omitempty"`
	SourceIP   string `json:"sourceIp"`
	UserAgent  string `json:"userAgent"`
	PushToken  string `json:"pushToken,omitempty"`
}

// Device is one entry of a user's device history.
type Device struct {
	DeviceID   string    `json:"deviceId"`
	Browser    string    `json:"browser"`
	OS         string    `json:"os"`
	DeviceType string    `json:"deviceType"`
	Vendor     string    `json:"vendor,omitempty"`
	SourceIP   string    `json:"sourceIp"`
	UserAgent  string    `json:"userAgent"`
	PushToken  string    `json:"pushToken,omitempty"`
	FirstSeen  time.Time `json:"firstSeen"`
	LastSeen   time.Time `json:"lastSeen"`
	LoginCount int       `json:"loginCount"`
	IsActive   bool      `json:"isActive"`
}
