package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/emmett/sublive/internal/log"
	"github.com/emmett/sublive/internal/metrics"
	"github.com/emmett/sublive/internal/output"
	"github.com/emmett/sublive/internal/stream"
	"github.com/emmett/sublive/internal/transcript"
)

// DefaultFrameInterval is roughly 30 frames per second
const DefaultFrameInterval = 33 * time.Millisecond

// DisplayConfig wires a Display
type DisplayConfig struct {
	Store          *transcript.Store
	Events         <-chan stream.Event
	Hub            *Hub
	Renderer       output.Renderer
	Metrics        *metrics.Metrics
	FrameInterval  time.Duration
	SilenceTimeout time.Duration
}

// Display is the poll loop that owns the Store. Every frame it drains the
// pending events, expires silent subtitles and publishes what changed.
type Display struct {
	store    *transcript.Store
	events   <-chan stream.Event
	hub      *Hub
	renderer output.Renderer
	metrics  *metrics.Metrics
	interval time.Duration
	silence  time.Duration
	logger   zerolog.Logger

	published uint64
	fatal     error
	ended     bool
}

// NewDisplay creates a display loop. Hub and Renderer are optional.
func NewDisplay(cfg DisplayConfig) *Display {
	if cfg.Store == nil {
		cfg.Store = transcript.NewStore(transcript.DefaultMaxBlocks)
	}
	if cfg.Hub == nil {
		cfg.Hub = NewHub()
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultFrameInterval
	}
	if cfg.SilenceTimeout <= 0 {
		cfg.SilenceTimeout = transcript.DefaultSilenceTimeout
	}
	return &Display{
		store:     cfg.Store,
		events:    cfg.Events,
		hub:       cfg.Hub,
		renderer:  cfg.Renderer,
		metrics:   cfg.Metrics,
		interval:  cfg.FrameInterval,
		silence:   cfg.SilenceTimeout,
		logger:    log.Component("display"),
		published: ^uint64(0),
	}
}

// Hub returns the hub the display publishes to
func (d *Display) Hub() *Hub {
	return d.hub
}

// Run polls until the event channel closes or ctx is cancelled. It
// returns the fatal error the worker reported, if any.
func (d *Display) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.frame()
	for !d.ended {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.frame()
		}
	}

	if d.fatal == nil {
		d.hub.SetStatus(StatusStopped, "session ended")
	}
	if d.renderer != nil {
		if err := d.renderer.Close(); err != nil {
			d.logger.Warn().Err(err).Msg("renderer close failed")
		}
	}
	return d.fatal
}

// frame runs one poll iteration
func (d *Display) frame() {
	d.drain()

	select {
	case n := <-d.hub.Resizes():
		d.logger.Info().Int("capacity", n).Msg("resizing subtitles")
		d.store.Resize(n)
	default:
	}

	if d.store.ClearIfSilent(d.silence) {
		d.logger.Debug().Dur("timeout", d.silence).Msg("cleared after silence")
	}

	if v := d.store.Version(); v != d.published {
		d.published = v
		d.publish()
	}
}

// drain applies every pending event without blocking
func (d *Display) drain() {
	for !d.ended {
		select {
		case ev, ok := <-d.events:
			if !ok {
				d.ended = true
				return
			}
			d.handle(ev)
		default:
			return
		}
	}
}

func (d *Display) handle(ev stream.Event) {
	switch ev.Kind {
	case stream.EventConnected:
		d.hub.SetStatus(StatusConnected, "")
		d.status(output.StatusInfo, "connected")

	case stream.EventResponse:
		if st := d.hub.Status().Status; st == StatusReconnecting || st == StatusConnecting {
			d.hub.SetStatus(StatusConnected, "")
		}
		d.store.Update(ev.Response)

	case stream.EventWarning:
		d.hub.SetStatus(StatusReconnecting, ev.Message)
		d.status(output.StatusWarning, ev.Message)

	case stream.EventError:
		d.fatal = ev.Err
		d.hub.SetStatus(StatusError, ev.Message)
		d.status(output.StatusError, ev.Message)
	}
}

func (d *Display) publish() {
	snap := d.store.Snapshot()
	d.hub.Publish(snap)
	d.metrics.SetFinalBlocks(len(snap.Finals))
	if d.renderer != nil {
		if err := d.renderer.Render(snap); err != nil {
			d.logger.Warn().Err(err).Msg("render failed")
		}
	}
}

func (d *Display) status(kind output.StatusKind, msg string) {
	if d.renderer == nil {
		return
	}
	if err := d.renderer.Status(kind, msg); err != nil {
		d.logger.Warn().Err(err).Msg("status render failed")
	}
}
