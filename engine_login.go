package sessionguard

import (
	"context"
	"fmt"

	"github.com/MrEthical07/sessionguard/device"
	"github.com/MrEthical07/sessionguard/internal/flows"
)

// Login authenticates email and password from the client IP carried by ctx
// (see [WithClientIP]) and makes the new session the user's only one.
//
// Failures are a [*LockedError], an [*InvalidCredentialsError],
// [ErrInactiveAccount] or an error matching [ErrDependencyUnavailable]. An
// unknown email and a wrong password are indistinguishable.
//
// When another device held the active session, the result carries a
// DeviceLogout notice naming it.
func (e *Engine) Login(ctx context.Context, email, password string, info DeviceInfo) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	res, err := flows.RunLogin(ctx, flows.LoginInput{
		Email:    email,
		Password: password,
		IP:       clientIPFromContext(ctx),
		Device:   resolveDeviceInfo(ctx, info),
	}, e.flows.Login)
	if err != nil {
		return nil, err
	}

	out := &LoginResult{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		User: UserProfile{
			ID:        res.User.ID,
			Email:     res.User.Email,
			Name:      res.User.Name,
			LastLogin: res.User.LastLogin,
		},
		DeviceInfo: DeviceSummary{
			DeviceID:     res.DeviceID,
			IsNewDevice:  res.IsNewDevice,
			TotalDevices: res.TotalDevices,
		},
	}
	if prev := res.PreviousDevice; prev != nil {
		out.DeviceLogout = &DeviceLogoutNotice{
			PreviousDevice: PreviousDevice{
				DeviceID:   prev.DeviceID,
				Browser:    prev.Browser,
				OS:         prev.OS,
				DeviceType: prev.DeviceType,
				LastSeen:   prev.LastSeen,
			},
			Message: fmt.Sprintf("You have been logged out from your previous device (%s on %s)", prev.Browser, prev.OS),
		}
	}
	return out, nil
}

// resolveDeviceInfo fills blank device fields from the user agent, taken from
// info or from ctx (see [WithUserAgent]).
func resolveDeviceInfo(ctx context.Context, info DeviceInfo) DeviceInfo {
	if info.UserAgent == "" {
		info.UserAgent = userAgentFromContext(ctx)
	}
	if info.UserAgent == "" {
		return info
	}

	parsed := device.ParseUserAgent(info.UserAgent)
	if info.Browser == "" {
		info.Browser = parsed.Browser
	}
	if info.OS == "" {
		info.OS = parsed.OS
	}
	if info.DeviceType == "" {
		info.DeviceType = parsed.DeviceType
	}
	if info.Vendor == "" {
		info.Vendor = parsed.Vendor
	}
	return info
}
