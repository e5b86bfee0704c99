package app

import (
	"fmt"
	"io"
	"os"

	"github.com/emmett/sublive/internal/audio"
)

// DeviceManager handles audio device selection and listing
type DeviceManager struct {
	out  io.Writer
	list func(audio.DeviceKind) ([]audio.DeviceInfo, error)
}

// NewDeviceManager creates a new DeviceManager instance
func NewDeviceManager() *DeviceManager {
	return &DeviceManager{out: os.Stdout, list: audio.ListDevices}
}

// ListDevices prints the devices a source can capture from
func (dm *DeviceManager) ListDevices(source audio.Source) error {
	kind := audio.KindForSource(source)
	devices, err := dm.list(kind)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	if len(devices) == 0 {
		fmt.Fprintf(dm.out, "No %s devices found.\n", kind)
		return fmt.Errorf("no %s devices found", kind)
	}

	what := "capture"
	if kind == audio.DeviceKindPlayback {
		what = "playback (loopback)"
	}
	fmt.Fprintf(dm.out, "Found %d %s device(s):\n\n", len(devices), what)
	for i, device := range devices {
		marker := ""
		if device.IsDefault {
			marker = " [DEFAULT]"
		}
		fmt.Fprintf(dm.out, "%d. %s%s\n", i+1, device.Name, marker)
		fmt.Fprintf(dm.out, "   ID: %s\n", device.ID)
	}

	fmt.Fprintln(dm.out)
	fmt.Fprintln(dm.out, "To use a specific device, run:")
	fmt.Fprintf(dm.out, "  sublive -source %s -device \"%s\"\n", source, devices[0].Name)
	return nil
}

// SelectDevice checks that name resolves to a device before capture
// starts, so a typo fails with the list of choices.
func (dm *DeviceManager) SelectDevice(source audio.Source, name string) (*audio.DeviceInfo, error) {
	if source == audio.SourceFile {
		return nil, nil
	}
	kind := audio.KindForSource(source)
	devices, err := dm.list(kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	device, ok := audio.MatchDevice(devices, name)
	if !ok {
		fmt.Fprintf(dm.out, "Device '%s' not found. Available %s devices:\n", name, kind)
		for i, d := range devices {
			fmt.Fprintf(dm.out, "  %d. %s\n", i+1, d)
		}
		return nil, fmt.Errorf("%w: %s", audio.ErrDeviceNotFound, name)
	}
	return &device, nil
}
