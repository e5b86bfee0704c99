package audio

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-audio/wav"
	"github.com/rs/zerolog"

	"github.com/emmett/sublive/internal/log"
)

// defaultPacket is the playback length of one replayed packet
const defaultPacket = 10 * time.Millisecond

// FileCapturer replays a WAV file as if it were a capture device.
// In realtime mode packets are paced and dropped on overflow like a real
// device; otherwise they are delivered as fast as the consumer reads them.
type FileCapturer struct {
	config   CaptureConfig
	pool     *Pool
	samples  chan []float32
	pcm      []float32
	format   Format
	started  atomic.Bool
	running  atomic.Bool
	paused   atomic.Bool
	captured atomic.Uint64
	dropped  atomic.Uint64
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	logger   zerolog.Logger
}

// NewFileCapturer creates a capturer reading config.File
func NewFileCapturer(config CaptureConfig, pool *Pool) (*FileCapturer, error) {
	if config.File == "" {
		return nil, fmt.Errorf("no audio file configured")
	}
	if pool == nil {
		pool = NewPool(DefaultPoolSize)
	}
	size := config.ChannelSize
	if size <= 0 {
		size = DefaultConfig().ChannelSize
	}
	return &FileCapturer{
		config:  config,
		pool:    pool,
		samples: make(chan []float32, size),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		logger:  log.Component("audio"),
	}, nil
}

// Start decodes the file and begins playback
func (f *FileCapturer) Start(ctx context.Context) error {
	if f.running.Load() {
		return fmt.Errorf("capturer is already running")
	}
	select {
	case <-f.stop:
		return fmt.Errorf("capturer is closed")
	default:
	}

	pcm, format, err := decodeWAV(f.config.File)
	if err != nil {
		return err
	}
	f.pcm = pcm
	f.format = format
	f.started.Store(true)
	f.running.Store(true)

	f.logger.Info().
		Str("file", f.config.File).
		Uint32("sample_rate", format.SampleRate).
		Uint32("channels", format.Channels).
		Bool("realtime", f.config.Realtime).
		Msg("file playback started")

	go f.play(ctx)
	return nil
}

func (f *FileCapturer) play(ctx context.Context) {
	defer close(f.done)
	defer f.closeSamples()

	packet := int(f.format.SampleRate) * int(f.format.Channels) * int(defaultPacket) / int(time.Second)
	if f.config.PeriodFrames > 0 {
		packet = int(f.config.PeriodFrames * f.format.Channels)
	}
	if packet < 1 {
		packet = 1
	}

	var tick <-chan time.Time
	if f.config.Realtime {
		ticker := time.NewTicker(f.format.PacketDuration(packet))
		defer ticker.Stop()
		tick = ticker.C
	}

	pos := 0
	for {
		if pos >= len(f.pcm) {
			if !f.config.Loop {
				return
			}
			pos = 0
		}

		if tick != nil {
			select {
			case <-ctx.Done():
				return
			case <-f.stop:
				return
			case <-tick:
			}
		}
		if f.paused.Load() {
			if tick == nil {
				select {
				case <-ctx.Done():
					return
				case <-f.stop:
					return
				case <-time.After(defaultPacket):
				}
			}
			continue
		}

		end := min(pos+packet, len(f.pcm))
		buf := append(f.pool.Acquire(end-pos), f.pcm[pos:end]...)
		pos = end
		f.captured.Add(1)

		if tick != nil {
			if !trySend(f.samples, f.pool, buf) {
				f.dropped.Add(1)
			}
			continue
		}
		select {
		case f.samples <- buf:
		case <-ctx.Done():
			return
		case <-f.stop:
			return
		}
	}
}

func (f *FileCapturer) closeSamples() {
	f.running.Store(false)
	close(f.samples)
}

// Stop ends playback and closes the samples channel
func (f *FileCapturer) Stop() error {
	f.stopOnce.Do(func() {
		close(f.stop)
		if !f.started.Load() {
			f.closeSamples()
			close(f.done)
		}
	})
	<-f.done
	return nil
}

// Pause suspends playback
func (f *FileCapturer) Pause() error {
	f.paused.Store(true)
	return nil
}

// Resume continues playback
func (f *FileCapturer) Resume() error {
	f.paused.Store(false)
	return nil
}

// Samples returns a channel that receives audio samples
func (f *FileCapturer) Samples() <-chan []float32 {
	return f.samples
}

// Format returns the file format
func (f *FileCapturer) Format() Format {
	return f.format
}

// IsRunning returns true while playback is active
func (f *FileCapturer) IsRunning() bool {
	return f.running.Load() && !f.paused.Load()
}

// Stats returns packet counters
func (f *FileCapturer) Stats() CaptureStats {
	return CaptureStats{Captured: f.captured.Load(), Dropped: f.dropped.Load()}
}

// decodeWAV reads a PCM WAV file into normalized interleaved samples
func decodeWAV(path string) ([]float32, Format, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, Format{}, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	dec := wav.NewDecoder(file)
	if !dec.IsValidFile() {
		return nil, Format{}, fmt.Errorf("invalid wav file: %s", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, Format{}, fmt.Errorf("failed to decode wav: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels == 0 || buf.Format.SampleRate == 0 {
		return nil, Format{}, fmt.Errorf("wav file has no format: %s", path)
	}
	if len(buf.Data) == 0 {
		return nil, Format{}, fmt.Errorf("wav file has no samples: %s", path)
	}

	depth := buf.SourceBitDepth
	if depth == 0 {
		depth = int(dec.BitDepth)
	}
	if depth < 8 || depth > 32 {
		return nil, Format{}, fmt.Errorf("unsupported wav bit depth: %d", depth)
	}
	scale := float32(int64(1) << (depth - 1))

	pcm := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		if depth == 8 {
			// 8-bit wav is unsigned
			v -= 128
		}
		pcm[i] = float32(v) / scale
	}

	format := Format{
		SampleRate: uint32(buf.Format.SampleRate),
		Channels:   uint32(buf.Format.NumChannels),
	}
	return pcm, format, nil
}
