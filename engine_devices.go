package sessionguard

import (
	"context"
	"time"

	"github.com/MrEthical07/sessionguard/device"
)

// ListDevices returns the user's device history, most recently seen first.
func (e *Engine) ListDevices(ctx context.Context, userID string) ([]device.Device, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	user, err := e.lookupUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return device.NewRegistry(&user.Devices, e.config.Devices.MaxDevices).History(), nil
}

// DeactivateDevice marks deviceID inactive. It reports false, without
// writing, when the device is unknown or already inactive.
func (e *Engine) DeactivateDevice(ctx context.Context, userID, deviceID string) (bool, error) {
	if e == nil {
		return false, ErrEngineNotReady
	}
	user, err := e.lookupUser(ctx, userID)
	if err != nil {
		return false, err
	}

	registry := device.NewRegistry(&user.Devices, e.config.Devices.MaxDevices)
	if !registry.Deactivate(deviceID) {
		return false, nil
	}

	user.UpdatedAt = time.Now()
	if err := e.users.SaveUser(ctx, user); err != nil {
		return false, dependencyError(err)
	}

	e.metricInc(MetricDeviceDeactivated)
	e.emitAudit(ctx, auditEventDeviceDeactivated, true, userID, "", nil, func() map[string]string {
		return map[string]string{"device_id": deviceID}
	})
	return true, nil
}
