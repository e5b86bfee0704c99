// Package stream drives captured audio into a recognizer connection and
// turns the replies into events, reconnecting on transient failures.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/emmett/sublive/internal/audio"
	"github.com/emmett/sublive/internal/log"
	"github.com/emmett/sublive/internal/metrics"
	"github.com/emmett/sublive/internal/soniox"
)

const (
	DefaultMaxRetries     = 5
	DefaultReconnectDelay = time.Second
	DefaultEventBuffer    = 128
)

// ErrConnectionLost is reported once the retry ceiling is exceeded
var ErrConnectionLost = errors.New("connection lost")

var (
	errAudioClosed = errors.New("audio channel closed")
	errReconnect   = errors.New("reconnect")
)

// Conn is one recognizer connection. *soniox.Session implements it.
type Conn interface {
	SendText(data []byte) error
	SendBytes(data []byte) error
	SendPong(data []byte) error
	Frames() <-chan soniox.Frame
	Err() error
	Close() error
}

// Dialer opens a new connection
type Dialer func(ctx context.Context) (Conn, error)

// SonioxDialer dials url with soniox.Dial
func SonioxDialer(url string) Dialer {
	return func(ctx context.Context) (Conn, error) {
		s, err := soniox.Dial(ctx, url)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Options tunes a Worker. Zero values select the defaults.
type Options struct {
	MaxRetries     int
	ReconnectDelay time.Duration
	EventBuffer    int
	Metrics        *metrics.Metrics
	Logger         *zerolog.Logger
}

// Worker owns the reconnect loop for one transcription session.
//
// It waits for the first audio packet, connects, sends the handshake and
// then multiplexes outbound audio with inbound frames until the audio
// channel is closed. Closing the audio channel is the only way it stops on
// its own; cancelling the context passed to Run aborts it.
type Worker struct {
	dial    Dialer
	request []byte
	audio   <-chan []float32
	pool    *audio.Pool
	events  chan Event
	opts    Options
	metrics *metrics.Metrics
	logger  zerolog.Logger
	state   atomic.Int32

	pcm       []byte
	pending   []float32
	retries   int
	connected bool
	outage    bool
}

// NewWorker creates a worker. request is the serialized handshake, sent
// unchanged on every connection.
func NewWorker(dial Dialer, request []byte, samples <-chan []float32, pool *audio.Pool, opts Options) *Worker {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = DefaultEventBuffer
	}
	if pool == nil {
		pool = audio.NewPool(audio.DefaultPoolSize)
	}
	logger := log.Component("worker")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Worker{
		dial:    dial,
		request: request,
		audio:   samples,
		pool:    pool,
		events:  make(chan Event, opts.EventBuffer),
		opts:    opts,
		metrics: opts.Metrics,
		logger:  logger,
	}
}

// Events returns the event channel. It is closed when Run returns.
func (w *Worker) Events() <-chan Event {
	return w.events
}

// State returns the current state
func (w *Worker) State() State {
	return State(w.state.Load())
}

func (w *Worker) setState(s State) {
	prev := State(w.state.Swap(int32(s)))
	if prev != s {
		w.logger.Debug().Stringer("from", prev).Stringer("to", s).Msg("state changed")
	}
	w.metrics.SetWorkerState(int(s))
}

// Run drives the state machine until the audio channel closes (nil), the
// retry ceiling is exceeded (ErrConnectionLost), the service reports a
// fatal error (*soniox.ServiceError) or ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	defer close(w.events)

	err := w.run(ctx)
	w.setState(StateStopped)
	if w.pending != nil {
		w.pool.Release(w.pending)
		w.pending = nil
	}

	if errors.Is(err, errAudioClosed) {
		w.logger.Info().Msg("audio closed, worker stopped")
		return nil
	}
	w.logger.Warn().Err(err).Msg("worker stopped")
	return err
}

func (w *Worker) run(ctx context.Context) error {
	if err := w.awaitAudio(ctx); err != nil {
		return err
	}

	for {
		w.setState(StateConnecting)
		conn, err := w.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Warn().Err(err).Int("retry", w.retries).Msg("connect failed")
			if err := w.backoff(ctx); err != nil {
				return err
			}
			continue
		}

		err = w.serve(ctx, conn)
		conn.Close()
		if !errors.Is(err, errReconnect) {
			return err
		}
		if err := w.backoff(ctx); err != nil {
			return err
		}
	}
}

// awaitAudio holds the first packet so no connection is opened before
// there is something to send.
func (w *Worker) awaitAudio(ctx context.Context) error {
	w.logger.Info().Msg("waiting for audio before connecting")
	select {
	case <-ctx.Done():
		return ctx.Err()
	case buf, ok := <-w.audio:
		if !ok {
			return errAudioClosed
		}
		w.pending = buf
		return nil
	}
}

// serve runs the Handshaking and Active states on one connection
func (w *Worker) serve(ctx context.Context, conn Conn) error {
	w.setState(StateHandshaking)
	if err := conn.SendText(w.request); err != nil {
		w.logger.Warn().Err(err).Msg("handshake failed")
		return errReconnect
	}

	w.setState(StateActive)
	w.retries = 0
	w.outage = false
	started := time.Now()
	defer func() { w.metrics.RecordSession(time.Since(started)) }()
	w.logger.Info().Msg("session active")

	if !w.connected {
		w.connected = true
		if err := w.emit(ctx, Event{Kind: EventConnected}); err != nil {
			return err
		}
	}

	if buf := w.pending; buf != nil {
		w.pending = nil
		if err := w.sendAudio(conn, buf); err != nil {
			return w.interrupted(ctx, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case buf, ok := <-w.audio:
			if !ok {
				if err := conn.SendBytes(nil); err != nil {
					w.logger.Debug().Err(err).Msg("end of audio not delivered")
				}
				return errAudioClosed
			}
			if err := w.sendAudio(conn, buf); err != nil {
				return w.interrupted(ctx, err)
			}

		case f, ok := <-conn.Frames():
			if !ok {
				return w.interrupted(ctx, conn.Err())
			}
			if err := w.handleFrame(ctx, conn, f); err != nil {
				return err
			}
		}
	}
}

func (w *Worker) handleFrame(ctx context.Context, conn Conn, f soniox.Frame) error {
	switch f.Kind {
	case soniox.FrameText:
		resp, err := soniox.ParseMessage(f.Data)
		var se *soniox.ServiceError
		switch {
		case errors.As(err, &se):
			w.metrics.RecordServiceError(se.Code)
			if se.Recoverable() {
				return w.interrupted(ctx, se)
			}
			w.logger.Error().Int("code", se.Code).Str("message", se.Message).Msg("fatal service error")
			if err := w.emit(ctx, Event{Kind: EventError, Message: se.Error(), Err: se}); err != nil {
				return err
			}
			return se
		case err != nil:
			w.metrics.RecordParseError()
			w.logger.Warn().Err(err).Int("bytes", len(f.Data)).Msg("skipping undecodable message")
			return nil
		}

		final := resp.CountFinal()
		w.metrics.RecordResponse(final, len(resp.Tokens)-final)
		if resp.Finished {
			w.logger.Info().Float64("audio_ms", resp.TotalAudioProcMs).Msg("service finished stream")
		}
		return w.emit(ctx, Event{Kind: EventResponse, Response: resp})

	case soniox.FramePing:
		if err := conn.SendPong(f.Data); err != nil {
			w.logger.Debug().Err(err).Msg("pong failed")
		}
		return nil

	case soniox.FrameClose:
		return w.interrupted(ctx, fmt.Errorf("server closed connection: %d %s", f.CloseCode, f.Data))

	default:
		return nil
	}
}

// interrupted logs why an active session ended and reports the outage to
// the display layer once.
func (w *Worker) interrupted(ctx context.Context, cause error) error {
	w.logger.Warn().Err(cause).Msg("connection interrupted")
	if !w.outage {
		w.outage = true
		if err := w.emit(ctx, Event{Kind: EventWarning, Message: "connection interrupted, reconnecting"}); err != nil {
			return err
		}
	}
	return errReconnect
}

// backoff runs the Reconnecting state. Audio that arrives meanwhile is
// held (first packet) or recycled, and a closed audio channel stops the
// worker instead of reconnecting.
func (w *Worker) backoff(ctx context.Context) error {
	w.setState(StateReconnecting)
	if err := w.drainAudio(); err != nil {
		return err
	}

	w.retries++
	w.metrics.RecordReconnect()
	if w.retries > w.opts.MaxRetries {
		w.logger.Error().Int("retries", w.retries-1).Msg("retry ceiling reached")
		if err := w.emit(ctx, Event{Kind: EventError, Message: ErrConnectionLost.Error(), Err: ErrConnectionLost}); err != nil {
			return err
		}
		return ErrConnectionLost
	}

	w.logger.Info().Int("retry", w.retries).Dur("delay", w.opts.ReconnectDelay).Msg("reconnecting")
	timer := time.NewTimer(w.opts.ReconnectDelay)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case buf, ok := <-w.audio:
			if !ok {
				return errAudioClosed
			}
			w.hold(buf)
		}
	}
}

func (w *Worker) drainAudio() error {
	for {
		select {
		case buf, ok := <-w.audio:
			if !ok {
				return errAudioClosed
			}
			w.hold(buf)
		default:
			return nil
		}
	}
}

func (w *Worker) hold(buf []float32) {
	if w.pending == nil {
		w.pending = buf
		return
	}
	w.pool.Release(buf)
}

// sendAudio encodes buf as one binary frame and recycles it
func (w *Worker) sendAudio(conn Conn, buf []float32) error {
	defer w.pool.Release(buf)
	if len(buf) == 0 {
		// an empty frame would end the stream
		return nil
	}
	w.pcm = audio.AppendPCM16LE(w.pcm[:0], buf)
	if err := conn.SendBytes(w.pcm); err != nil {
		return err
	}
	w.metrics.RecordAudioSent(len(w.pcm), audio.Level(buf))
	return nil
}

// emit blocks until the event is queued or ctx is cancelled
func (w *Worker) emit(ctx context.Context, ev Event) error {
	select {
	case w.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
