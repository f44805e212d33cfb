// Package metrics exposes Prometheus instrumentation for the worker
// supervisor and the audio pipeline. The collectors are registered on an
// explicit registry so tests can use an isolated one.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Worker protocol metrics
	WorkerRequests        *prometheus.CounterVec
	WorkerRequestDuration prometheus.Histogram
	WorkerRestarts        prometheus.Counter
	WorkerProtocolErrors  prometheus.Counter
	HandshakeDuration     prometheus.Histogram

	// Side-channel metrics
	SideChannelEvents  *prometheus.CounterVec
	SideChannelDropped prometheus.Counter

	// Audio pipeline metrics
	RecordingsStarted  prometheus.Counter
	RecordingsFinished prometheus.Counter
	RecordingDuration  prometheus.Histogram

	// Interruption metrics
	Interrupts *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		WorkerRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "speekium_worker_requests_total",
			Help: "Total worker protocol requests by command",
		}, []string{"command"}),
		WorkerRequestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "speekium_worker_request_duration_seconds",
			Help:    "Duration of worker request round trips",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		}),
		WorkerRestarts: factory.NewCounter(prometheus.CounterOpts{
			Name: "speekium_worker_restarts_total",
			Help: "Total worker process replacements after failed health checks",
		}),
		WorkerProtocolErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "speekium_worker_protocol_errors_total",
			Help: "Total malformed response lines",
		}),
		HandshakeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "speekium_worker_handshake_duration_seconds",
			Help:    "Time from spawn to the worker ready signal",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s to ~1 minute
		}),
		SideChannelEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "speekium_side_channel_events_total",
			Help: "Total side-channel events by kind",
		}, []string{"kind"}),
		SideChannelDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "speekium_side_channel_dropped_total",
			Help: "Total side-channel lines dropped as unparseable",
		}),
		RecordingsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "speekium_recordings_started_total",
			Help: "Total recording sessions started",
		}),
		RecordingsFinished: factory.NewCounter(prometheus.CounterOpts{
			Name: "speekium_recordings_finished_total",
			Help: "Total recording sessions finished with audio",
		}),
		RecordingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "speekium_recording_duration_seconds",
			Help:    "Duration of captured recordings",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 0.25s to ~2 minutes
		}),
		Interrupts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "speekium_interrupts_total",
			Help: "Total interrupt requests by priority and outcome",
		}, []string{"priority", "outcome"}),
	}
}
