package device

import (
	"sort"
	"time"
)

// Registry edits a user's device list in place.
type Registry struct {
	devices *[]Device
	max     int
}

// NewRegistry wraps devices. A non-positive max falls back to [MaxDevices].
func NewRegistry(devices *[]Device, max int) *Registry {
	if max <= 0 {
		max = MaxDevices
	}
	if *devices == nil {
		*devices = []Device{}
	}
	return &Registry{devices: devices, max: max}
}

// Len returns the number of recorded devices.
func (r *Registry) Len() int {
	return len(*r.devices)
}

func (r *Registry) find(id string) int {
	for i := range *r.devices {
		if (*r.devices)[i].DeviceID == id {
			return i
		}
	}
	return -1
}

// RecordLogin registers a login from info at now and returns the device ID
// and whether the device was new. The list is trimmed to the cap by dropping
// the entries seen least recently.
func (r *Registry) RecordLogin(info Info, now time.Time) (string, bool) {
	id := Fingerprint(info)

	if i := r.find(id); i >= 0 {
		d := &(*r.devices)[i]
		d.LastSeen = now
		d.LoginCount++
		d.SourceIP = info.SourceIP
		d.UserAgent = info.UserAgent
		if info.PushToken != "" {
			d.PushToken = info.PushToken
		}
		d.IsActive = true
		return id, false
	}

	*r.devices = append(*r.devices, Device{
		DeviceID:   id,
		Browser:    info.Browser,
		OS:         info.OS,
		DeviceType: info.DeviceType,
		Vendor:     info.Vendor,
		SourceIP:   info.SourceIP,
		UserAgent:  info.UserAgent,
		PushToken:  info.PushToken,
		FirstSeen:  now,
		LastSeen:   now,
		LoginCount: 1,
		IsActive:   true,
	})

	if len(*r.devices) > r.max {
		sortByLastSeen(*r.devices)
		*r.devices = (*r.devices)[:r.max]
	}
	return id, true
}

// History returns a copy of the devices, most recently seen first.
func (r *Registry) History() []Device {
	out := make([]Device, len(*r.devices))
	copy(out, *r.devices)
	sortByLastSeen(out)
	return out
}

// Deactivate marks id inactive. It returns false when the device is unknown
// or already inactive.
func (r *Registry) Deactivate(id string) bool {
	i := r.find(id)
	if i < 0 || !(*r.devices)[i].IsActive {
		return false
	}
	(*r.devices)[i].IsActive = false
	return true
}

// DeactivateOthers marks every device except keep inactive and returns how
// many changed.
func (r *Registry) DeactivateOthers(keep string) int {
	n := 0
	for i := range *r.devices {
		d := &(*r.devices)[i]
		if d.DeviceID != keep && d.IsActive {
			d.IsActive = false
			n++
		}
	}
	return n
}

// MostRecentOtherActive returns a copy of the most recently seen active
// device other than id, or nil.
func (r *Registry) MostRecentOtherActive(id string) *Device {
	var best *Device
	for i := range *r.devices {
		d := (*r.devices)[i]
		if d.DeviceID == id || !d.IsActive {
			continue
		}
		if best == nil || d.LastSeen.After(best.LastSeen) {
			dd := d
			best = &dd
		}
	}
	return best
}

func sortByLastSeen(devices []Device) {
	sort.SliceStable(devices, func(i, j int) bool {
		return devices[i].LastSeen.After(devices[j].LastSeen)
	})
}
