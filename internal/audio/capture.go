package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrDeviceNotFound is returned when no device matches the requested name.
var ErrDeviceNotFound = errors.New("audio device not found")

// Source selects where captured audio comes from
type Source string

const (
	// SourceLoopback captures what the default output device is playing
	SourceLoopback Source = "loopback"
	// SourceMicrophone captures from an input device
	SourceMicrophone Source = "microphone"
	// SourceFile replays a WAV file
	SourceFile Source = "file"
)

// ParseSource converts a config string into a Source
func ParseSource(s string) (Source, error) {
	switch Source(strings.ToLower(strings.TrimSpace(s))) {
	case "", SourceLoopback:
		return SourceLoopback, nil
	case SourceMicrophone, "mic":
		return SourceMicrophone, nil
	case SourceFile:
		return SourceFile, nil
	default:
		return "", fmt.Errorf("unknown audio source: %s (valid: loopback, microphone, file)", s)
	}
}

// CaptureConfig holds configuration for audio capture
type CaptureConfig struct {
	// Source picks the capture backend
	Source Source

	// Device is a case-insensitive name fragment.
	// Empty string = use default device
	Device string

	// File is the WAV path used when Source is SourceFile
	File string

	// Realtime paces file playback at its natural rate
	Realtime bool

	// Loop restarts file playback at end of file
	Loop bool

	// PeriodFrames is the number of frames per callback.
	// Zero lets the backend choose
	PeriodFrames uint32

	// ChannelSize is the depth of the outbound sample channel
	ChannelSize int
}

// DefaultConfig returns the loopback configuration used by the overlay
func DefaultConfig() CaptureConfig {
	return CaptureConfig{
		Source:      SourceLoopback,
		Realtime:    true,
		ChannelSize: 256,
	}
}

// Format is the negotiated stream format
type Format struct {
	SampleRate uint32
	Channels   uint32
}

func (f Format) String() string {
	return fmt.Sprintf("%d Hz, %d ch", f.SampleRate, f.Channels)
}

// PacketDuration returns the playback duration of n interleaved samples
func (f Format) PacketDuration(n int) time.Duration {
	if f.SampleRate == 0 || f.Channels == 0 {
		return 0
	}
	frames := n / int(f.Channels)
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// CaptureStats counts packets seen by the callback
type CaptureStats struct {
	Captured uint64
	Dropped  uint64
}

// Capturer is the interface for audio capture implementations
type Capturer interface {
	// Start opens the device and begins capture. Device errors are
	// reported here and never retried.
	Start(ctx context.Context) error

	// Stop ends capture and closes the Samples channel
	Stop() error

	// Samples returns the channel of captured packets. Buffers come from
	// the capturer's Pool and should be released after use.
	Samples() <-chan []float32

	// Format returns the negotiated format. Valid after Start.
	Format() Format

	// Pause suspends capture without closing the channel
	Pause() error

	// Resume restarts a paused capture
	Resume() error

	// IsRunning returns true if capture is currently active
	IsRunning() bool

	// Stats returns packet counters
	Stats() CaptureStats
}

// NewCapturer creates the capturer selected by config.Source
func NewCapturer(config CaptureConfig, pool *Pool) (Capturer, error) {
	switch config.Source {
	case SourceFile:
		return NewFileCapturer(config, pool)
	case SourceLoopback, SourceMicrophone, "":
		return NewMalgoCapturer(config, pool)
	default:
		return nil, fmt.Errorf("unknown audio source: %s", config.Source)
	}
}

// trySend delivers buf without blocking. It reports false when the packet
// was dropped, in which case buf has already been recycled.
func trySend(ch chan<- []float32, pool *Pool, buf []float32) bool {
	select {
	case ch <- buf:
		return true
	default:
		pool.Release(buf)
		return false
	}
}
