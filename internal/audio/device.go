package audio

import (
	"fmt"
	"strings"

	"github.com/gen2brain/malgo"
)

// DeviceKind separates devices that can be recorded directly from output
// devices that are only reachable through loopback.
type DeviceKind int

const (
	DeviceKindCapture DeviceKind = iota
	DeviceKindPlayback
)

func (k DeviceKind) String() string {
	if k == DeviceKindPlayback {
		return "playback"
	}
	return "capture"
}

// KindForSource returns the device kind a source selects devices from
func KindForSource(s Source) DeviceKind {
	if s == SourceMicrophone {
		return DeviceKindCapture
	}
	return DeviceKindPlayback
}

// DeviceInfo contains information about an audio device
type DeviceInfo struct {
	ID        string     // Stable index-based identifier
	Name      string     // Human-readable device name
	Kind      DeviceKind // Capture or playback
	IsDefault bool       // Whether this is the default device
}

// String returns a human-readable representation of the device
func (d DeviceInfo) String() string {
	defaultMarker := ""
	if d.IsDefault {
		defaultMarker = " [DEFAULT]"
	}
	return fmt.Sprintf("%s: %s%s", d.ID, d.Name, defaultMarker)
}

// ListDevices returns the devices of the given kind
func ListDevices(kind DeviceKind) ([]DeviceInfo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer freeContext(ctx)

	infos, err := ctx.Devices(malgoType(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	devices := make([]DeviceInfo, 0, len(infos))
	for i, info := range infos {
		devices = append(devices, DeviceInfo{
			ID:        fmt.Sprintf("%s-%d", kind, i),
			Name:      info.Name(),
			Kind:      kind,
			IsDefault: info.IsDefault > 0,
		})
	}
	return devices, nil
}

// MatchDevice prefers an exact ID match, then the first name containing
// the query. An empty query selects the default device.
func MatchDevice(devices []DeviceInfo, query string) (DeviceInfo, bool) {
	if query == "" {
		for _, d := range devices {
			if d.IsDefault {
				return d, true
			}
		}
		if len(devices) > 0 {
			return devices[0], true
		}
		return DeviceInfo{}, false
	}
	for _, d := range devices {
		if d.ID == query {
			return d, true
		}
	}
	q := strings.ToLower(query)
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.Name), q) {
			return d, true
		}
	}
	return DeviceInfo{}, false
}

// findDevice resolves name against an already initialized context
func findDevice(ctx *malgo.AllocatedContext, deviceType malgo.DeviceType, name string) (malgo.DeviceInfo, error) {
	infos, err := ctx.Devices(deviceType)
	if err != nil {
		return malgo.DeviceInfo{}, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	q := strings.ToLower(name)
	for _, info := range infos {
		if strings.Contains(strings.ToLower(info.Name()), q) {
			return info, nil
		}
	}
	return malgo.DeviceInfo{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
}

func malgoType(kind DeviceKind) malgo.DeviceType {
	if kind == DeviceKindPlayback {
		return malgo.Playback
	}
	return malgo.Capture
}
