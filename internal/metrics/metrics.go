// Package metrics exposes Prometheus instrumentation for capture
// sessions. A nil *Recorder is valid and records nothing, so callers
// never need to guard their instrumentation points.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the session metrics.
type Recorder struct {
	sessionsStarted prometheus.Counter
	sessionsFailed  prometheus.Counter
	sessionsActive  prometheus.Gauge
	sessionDuration prometheus.Histogram
	chunksSent      prometheus.Counter
	bytesSent       prometheus.Counter
	protocolErrors  prometheus.Counter
	transportErrors prometheus.Counter
}

// New registers the session metrics against reg.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		sessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicecap_sessions_started_total",
			Help: "Total capture sessions started",
		}),
		sessionsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicecap_sessions_failed_total",
			Help: "Total capture sessions that ended in the error phase",
		}),
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voicecap_sessions_active",
			Help: "Capture sessions currently holding resources",
		}),
		sessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicecap_session_duration_seconds",
			Help:    "Duration of capture sessions",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		chunksSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicecap_audio_chunks_sent_total",
			Help: "Audio chunks transmitted over the control channel",
		}),
		bytesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicecap_audio_bytes_sent_total",
			Help: "Audio bytes transmitted over the control channel",
		}),
		protocolErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicecap_protocol_errors_total",
			Help: "Inbound control-channel messages that were dropped",
		}),
		transportErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicecap_transport_errors_total",
			Help: "Control-channel dial and transport failures",
		}),
	}
}

func (r *Recorder) SessionStarted() {
	if r == nil {
		return
	}
	r.sessionsStarted.Inc()
	r.sessionsActive.Inc()
}

func (r *Recorder) SessionStopped(d time.Duration) {
	if r == nil {
		return
	}
	r.sessionsActive.Dec()
	r.sessionDuration.Observe(d.Seconds())
}

func (r *Recorder) SessionFailed() {
	if r == nil {
		return
	}
	r.sessionsFailed.Inc()
}

func (r *Recorder) ChunkSent(bytes int) {
	if r == nil {
		return
	}
	r.chunksSent.Inc()
	r.bytesSent.Add(float64(bytes))
}

func (r *Recorder) ProtocolError() {
	if r == nil {
		return
	}
	r.protocolErrors.Inc()
}

func (r *Recorder) TransportError() {
	if r == nil {
		return
	}
	r.transportErrors.Inc()
}
