package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for the transcription pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Audio metrics
	PacketsSent prometheus.Counter
	BytesSent   prometheus.Counter
	AudioLevel  prometheus.Gauge

	// Connection metrics
	Reconnects    prometheus.Counter
	WorkerState   prometheus.Gauge
	ServiceErrors *prometheus.CounterVec
	SessionLength prometheus.Histogram

	// Recognition metrics
	Responses   prometheus.Counter
	Tokens      *prometheus.CounterVec
	ParseErrors prometheus.Counter
	FinalBlocks prometheus.Gauge
}

// NewMetrics creates all metrics on a private registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		PacketsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "sublive_audio_packets_sent_total",
			Help: "Total number of audio packets sent to the recognizer",
		}),
		BytesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "sublive_audio_bytes_sent_total",
			Help: "Total number of PCM bytes sent to the recognizer",
		}),
		AudioLevel: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sublive_audio_level",
			Help: "RMS level of the most recently sent audio packet",
		}),

		Reconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "sublive_reconnects_total",
			Help: "Total number of reconnect attempts",
		}),
		WorkerState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sublive_worker_state",
			Help: "Current streaming worker state (0 idle, 1 connecting, 2 handshaking, 3 active, 4 reconnecting, 5 stopped)",
		}),
		ServiceErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sublive_service_errors_total",
			Help: "Service error payloads received, by code",
		}, []string{"code"}),
		SessionLength: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sublive_session_duration_seconds",
			Help:    "Lifetime of individual recognizer connections",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		}),

		Responses: factory.NewCounter(prometheus.CounterOpts{
			Name: "sublive_responses_total",
			Help: "Total number of recognition responses received",
		}),
		Tokens: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sublive_tokens_total",
			Help: "Recognition tokens received, by kind",
		}, []string{"kind"}),
		ParseErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "sublive_parse_errors_total",
			Help: "Total number of inbound frames that could not be decoded",
		}),
		FinalBlocks: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sublive_final_blocks",
			Help: "Number of final subtitle blocks currently displayed",
		}),
	}
}

// WatchCapture exposes capture counters read on every scrape
func (m *Metrics) WatchCapture(stats func() (captured, dropped uint64)) {
	if m == nil {
		return
	}
	m.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "sublive_audio_packets_captured_total",
			Help: "Total number of packets delivered by the capture callback",
		}, func() float64 {
			c, _ := stats()
			return float64(c)
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "sublive_audio_packets_dropped_total",
			Help: "Total number of packets dropped because the audio channel was full",
		}, func() float64 {
			_, d := stats()
			return float64(d)
		}),
	)
}

// RecordAudioSent counts one sent packet
func (m *Metrics) RecordAudioSent(bytes int, level float64) {
	if m == nil {
		return
	}
	m.PacketsSent.Inc()
	m.BytesSent.Add(float64(bytes))
	m.AudioLevel.Set(level)
}

// RecordReconnect counts a reconnect attempt
func (m *Metrics) RecordReconnect() {
	if m == nil {
		return
	}
	m.Reconnects.Inc()
}

// SetWorkerState records the numeric worker state
func (m *Metrics) SetWorkerState(state int) {
	if m == nil {
		return
	}
	m.WorkerState.Set(float64(state))
}

// RecordServiceError counts a service error payload
func (m *Metrics) RecordServiceError(code int) {
	if m == nil {
		return
	}
	m.ServiceErrors.WithLabelValues(strconv.Itoa(code)).Inc()
}

// RecordSession observes how long a connection stayed active
func (m *Metrics) RecordSession(d time.Duration) {
	if m == nil {
		return
	}
	m.SessionLength.Observe(d.Seconds())
}

// RecordResponse counts a response and its tokens
func (m *Metrics) RecordResponse(final, interim int) {
	if m == nil {
		return
	}
	m.Responses.Inc()
	m.Tokens.WithLabelValues("final").Add(float64(final))
	m.Tokens.WithLabelValues("interim").Add(float64(interim))
}

// RecordParseError counts an undecodable frame
func (m *Metrics) RecordParseError() {
	if m == nil {
		return
	}
	m.ParseErrors.Inc()
}

// SetFinalBlocks records how many final blocks are on screen
func (m *Metrics) SetFinalBlocks(n int) {
	if m == nil {
		return
	}
	m.FinalBlocks.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
