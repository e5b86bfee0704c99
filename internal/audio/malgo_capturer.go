package audio

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"

	"github.com/emmett/sublive/internal/log"
)

// MalgoCapturer implements the Capturer interface using malgo.
// Each capturer owns its own malgo context and device.
type MalgoCapturer struct {
	config       CaptureConfig
	pool         *Pool
	device       *malgo.Device
	malgoContext *malgo.AllocatedContext
	samples      chan []float32
	format       Format
	native       malgo.FormatType
	running      bool
	paused       bool
	closed       atomic.Bool
	captured     atomic.Uint64
	dropped      atomic.Uint64
	mu           sync.RWMutex
	stopChan     chan struct{}
	wg           sync.WaitGroup
	logger       zerolog.Logger
	dropLog      zerolog.Logger
}

// NewMalgoCapturer creates a new malgo-based audio capturer
func NewMalgoCapturer(config CaptureConfig, pool *Pool) (*MalgoCapturer, error) {
	if pool == nil {
		pool = NewPool(DefaultPoolSize)
	}
	size := config.ChannelSize
	if size <= 0 {
		size = DefaultConfig().ChannelSize
	}
	logger := log.Component("audio")
	return &MalgoCapturer{
		config:   config,
		pool:     pool,
		samples:  make(chan []float32, size),
		stopChan: make(chan struct{}),
		logger:   logger,
		dropLog:  logger.Sample(&zerolog.BurstSampler{Burst: 1, Period: time.Second}),
	}, nil
}

// Start opens the device, negotiates its format and begins capture
func (m *MalgoCapturer) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return fmt.Errorf("capturer is already running")
	}
	if m.closed.Load() {
		return fmt.Errorf("capturer is closed")
	}

	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	deviceType := malgo.Capture
	lookup := malgo.Capture
	if m.config.Source != SourceMicrophone {
		deviceType = malgo.Loopback
		lookup = malgo.Playback
	}

	deviceConfig := malgo.DefaultDeviceConfig(deviceType)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 0 // native
	deviceConfig.SampleRate = 0       // native
	deviceConfig.PeriodSizeInFrames = m.config.PeriodFrames

	if m.config.Device != "" {
		info, err := findDevice(malgoCtx, lookup, m.config.Device)
		if err != nil {
			freeContext(malgoCtx)
			return err
		}
		deviceConfig.Capture.DeviceID = info.ID.Pointer()
	}

	callbacks := malgo.DeviceCallbacks{Data: m.onData}
	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		freeContext(malgoCtx)
		return fmt.Errorf("failed to initialize device: %w", err)
	}

	m.native = device.CaptureFormat()
	m.format = Format{SampleRate: device.SampleRate(), Channels: device.CaptureChannels()}
	if m.format.SampleRate == 0 || m.format.Channels == 0 {
		device.Uninit()
		freeContext(malgoCtx)
		return fmt.Errorf("failed to negotiate capture format: got %s", m.format)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		freeContext(malgoCtx)
		return fmt.Errorf("failed to start device: %w", err)
	}

	m.malgoContext = malgoCtx
	m.device = device
	m.running = true
	m.logger.Info().
		Str("source", string(m.config.Source)).
		Str("device", m.config.Device).
		Uint32("sample_rate", m.format.SampleRate).
		Uint32("channels", m.format.Channels).
		Msg("capture started")

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		select {
		case <-ctx.Done():
			go m.Stop()
		case <-m.stopChan:
		}
	}()

	return nil
}

// onData runs on the audio driver thread and must never block
func (m *MalgoCapturer) onData(_, input []byte, frames uint32) {
	if m.closed.Load() || len(input) == 0 {
		return
	}

	buf := m.pool.Acquire(int(frames * m.format.Channels))
	if m.native == malgo.FormatS16 {
		buf = DecodeS16LE(buf, input)
	} else {
		buf = DecodeF32LE(buf, input)
	}

	m.captured.Add(1)
	if !trySend(m.samples, m.pool, buf) {
		n := m.dropped.Add(1)
		m.dropLog.Warn().Uint64("dropped", n).Msg("sample channel full, dropping packet")
	}
}

// Stop stops audio capture and closes the samples channel
func (m *MalgoCapturer) Stop() error {
	m.mu.Lock()
	if m.closed.Swap(true) {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	m.mu.Unlock()

	close(m.stopChan)

	var stopErr error
	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			stopErr = fmt.Errorf("failed to stop device: %w", err)
		}
		m.device.Uninit()
	}
	if m.malgoContext != nil {
		freeContext(m.malgoContext)
	}

	m.wg.Wait()

	// The device is stopped, so no callback can still be sending.
	close(m.samples)

	stats := m.Stats()
	m.logger.Info().
		Uint64("captured", stats.Captured).
		Uint64("dropped", stats.Dropped).
		Msg("capture stopped")

	return stopErr
}

// Pause stops the device but keeps the channel open
func (m *MalgoCapturer) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running || m.paused {
		return nil
	}
	if err := m.device.Stop(); err != nil {
		return fmt.Errorf("failed to pause device: %w", err)
	}
	m.paused = true
	return nil
}

// Resume restarts a paused device
func (m *MalgoCapturer) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running || !m.paused {
		return nil
	}
	if err := m.device.Start(); err != nil {
		return fmt.Errorf("failed to resume device: %w", err)
	}
	m.paused = false
	return nil
}

// Samples returns a channel that receives audio samples
func (m *MalgoCapturer) Samples() <-chan []float32 {
	return m.samples
}

// Format returns the negotiated device format
func (m *MalgoCapturer) Format() Format {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.format
}

// IsRunning returns true if capture is currently active
func (m *MalgoCapturer) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running && !m.paused
}

// Stats returns packet counters
func (m *MalgoCapturer) Stats() CaptureStats {
	return CaptureStats{Captured: m.captured.Load(), Dropped: m.dropped.Load()}
}

func freeContext(ctx *malgo.AllocatedContext) {
	_ = ctx.Uninit()
	ctx.Free()
}
