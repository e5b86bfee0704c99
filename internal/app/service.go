package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/emmett/sublive/internal/audio"
	"github.com/emmett/sublive/internal/log"
	"github.com/emmett/sublive/internal/metrics"
	"github.com/emmett/sublive/internal/soniox"
	"github.com/emmett/sublive/internal/stream"
)

// DefaultStopGrace is how long Stop waits for the worker to flush
const DefaultStopGrace = 3 * time.Second

// ServiceConfig holds configuration for a transcription session
type ServiceConfig struct {
	Capture   audio.CaptureConfig
	Request   soniox.RequestSettings
	Endpoint  string
	Stream    stream.Options
	Metrics   *metrics.Metrics
	StopGrace time.Duration

	// Dialer overrides the connection to Endpoint
	Dialer stream.Dialer
	// NewCapturer overrides audio.NewCapturer
	NewCapturer func(audio.CaptureConfig, *audio.Pool) (audio.Capturer, error)
}

// Service owns one capture session and the worker streaming it
type Service struct {
	config ServiceConfig
	logger zerolog.Logger

	pool     *audio.Pool
	capturer audio.Capturer
	worker   *stream.Worker
	cancel   context.CancelFunc
	done     chan struct{}
	err      error

	started  atomic.Bool
	paused   atomic.Bool
	stopOnce sync.Once
}

// NewService creates a service. Nothing is opened until Start.
func NewService(config ServiceConfig) *Service {
	if config.Endpoint == "" {
		config.Endpoint = soniox.DefaultURL
	}
	if config.StopGrace <= 0 {
		config.StopGrace = DefaultStopGrace
	}
	if config.Dialer == nil {
		config.Dialer = stream.SonioxDialer(config.Endpoint)
	}
	if config.NewCapturer == nil {
		config.NewCapturer = func(c audio.CaptureConfig, p *audio.Pool) (audio.Capturer, error) {
			return audio.NewCapturer(c, p)
		}
	}
	return &Service{
		config: config,
		logger: log.Component("service"),
		pool:   audio.NewPool(audio.DefaultPoolSize),
		done:   make(chan struct{}),
	}
}

// Start opens the capture device and launches the worker. Device errors
// are returned here.
func (s *Service) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("service already started")
	}

	capturer, err := s.config.NewCapturer(s.config.Capture, s.pool)
	if err != nil {
		return fmt.Errorf("failed to create capturer: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	if err := capturer.Start(ctx); err != nil {
		cancel()
		return fmt.Errorf("failed to start capture: %w", err)
	}

	format := capturer.Format()
	req := soniox.BuildRequest(s.config.Request, format)
	payload, err := req.Marshal()
	if err != nil {
		cancel()
		capturer.Stop()
		return fmt.Errorf("failed to build request: %w", err)
	}

	s.logger.Info().
		Str("source", string(s.config.Capture.Source)).
		Stringer("format", format).
		Str("model", req.Model).
		Strs("languages", req.LanguageHints).
		Str("reference", req.ClientReferenceID).
		Msg("transcription session starting")

	opts := s.config.Stream
	opts.Metrics = s.config.Metrics
	s.capturer = capturer
	s.cancel = cancel
	s.worker = stream.NewWorker(s.config.Dialer, payload, capturer.Samples(), s.pool, opts)
	s.config.Metrics.WatchCapture(func() (uint64, uint64) {
		st := capturer.Stats()
		return st.Captured, st.Dropped
	})

	go func() {
		defer close(s.done)
		s.err = s.worker.Run(ctx)
		cancel()
		// the worker may stop on its own; release the device as well
		capturer.Stop()
	}()
	return nil
}

// Events returns the worker's event channel
func (s *Service) Events() <-chan stream.Event {
	if s.worker == nil {
		ch := make(chan stream.Event)
		close(ch)
		return ch
	}
	return s.worker.Events()
}

// Format returns the negotiated capture format
func (s *Service) Format() audio.Format {
	if s.capturer == nil {
		return audio.Format{}
	}
	return s.capturer.Format()
}

// State returns the worker state
func (s *Service) State() stream.State {
	if s.worker == nil {
		return stream.StateIdle
	}
	return s.worker.State()
}

// Pause suspends capture. The connection stays open.
func (s *Service) Pause() error {
	if s.capturer == nil {
		return errors.New("service not started")
	}
	if err := s.capturer.Pause(); err != nil {
		return err
	}
	s.paused.Store(true)
	s.logger.Info().Msg("capture paused")
	return nil
}

// Resume restarts a paused capture
func (s *Service) Resume() error {
	if s.capturer == nil {
		return errors.New("service not started")
	}
	if err := s.capturer.Resume(); err != nil {
		return err
	}
	s.paused.Store(false)
	s.logger.Info().Msg("capture resumed")
	return nil
}

// Toggle flips between paused and capturing and reports the resulting
// state. On error the state is unchanged.
func (s *Service) Toggle() (paused bool, err error) {
	if s.paused.Load() {
		err = s.Resume()
	} else {
		err = s.Pause()
	}
	return s.paused.Load(), err
}

// Paused reports whether capture is paused
func (s *Service) Paused() bool {
	return s.paused.Load()
}

// Status reports the session status from the capture and worker state
func (s *Service) Status() Status {
	return sessionStatus(s.paused.Load(), s.State())
}

func sessionStatus(paused bool, state stream.State) Status {
	switch {
	case state == stream.StateStopped:
		return StatusStopped
	case paused:
		return StatusPaused
	case state == stream.StateActive:
		return StatusConnected
	case state == stream.StateReconnecting:
		return StatusReconnecting
	default:
		return StatusConnecting
	}
}

// Stop ends the session. Stopping capture closes the audio channel, which
// lets the worker send end of audio and exit; if it has not exited within
// the grace period its context is cancelled.
func (s *Service) Stop() error {
	if !s.started.Load() || s.worker == nil {
		return nil
	}
	s.stopOnce.Do(func() {
		if err := s.capturer.Stop(); err != nil {
			s.logger.Warn().Err(err).Msg("capture stop failed")
		}

		timer := time.NewTimer(s.config.StopGrace)
		defer timer.Stop()
		select {
		case <-s.done:
		case <-timer.C:
			s.logger.Warn().Dur("grace", s.config.StopGrace).Msg("worker did not stop in time, aborting")
			s.cancel()
			<-s.done
		}
		s.pool.Close()
	})
	return s.Err()
}

// Done is closed when the worker has exited
func (s *Service) Done() <-chan struct{} {
	return s.done
}

// Err returns the worker's error once Done is closed
func (s *Service) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}
