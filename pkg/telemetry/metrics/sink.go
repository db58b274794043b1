package metrics

import (
	"time"

	"mercator-hq/scanport/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// SinkMetrics tracks calls to outbound sinks.
//
// Metrics:
//   - scanport_sink_calls_total: Sink calls by sink and status
//   - scanport_sink_call_duration_seconds: Sink call latency
type SinkMetrics struct {
	callsTotal   *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
}

// NewSinkMetrics creates and registers sink metrics with the provided registry.
func NewSinkMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *SinkMetrics {
	sm := &SinkMetrics{
		callsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "sink_calls_total",
				Help:      "Total number of sink calls",
			},
			[]string{"sink", "status"},
		),

		callDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "sink_call_duration_seconds",
				Help:      "Duration of sink calls in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"sink"},
		),
	}

	registry.MustRegister(sm.callsTotal, sm.callDuration)

	return sm
}

// RecordCall records a sink call.
func (sm *SinkMetrics) RecordCall(sink, status string, duration time.Duration) {
	sm.callsTotal.WithLabelValues(sink, status).Inc()
	sm.callDuration.WithLabelValues(sink).Observe(duration.Seconds())
}
