package metrics

import (
	"time"

	"mercator-hq/scanport/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// ExportMetrics tracks export orchestrator activity.
//
// Metrics:
//   - scanport_exports_total: Exports by format and status
//   - scanport_export_duration_seconds: Export wall time by format
//   - scanport_export_items: Items per export by format
//   - scanport_export_bytes: Artifact size by format
//   - scanport_export_failures_total: Failed exports by format and phase
//   - scanport_export_compressed_bytes_total: Estimated compressed bytes
type ExportMetrics struct {
	exportsTotal    *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	items           *prometheus.HistogramVec
	bytes           *prometheus.HistogramVec
	failuresTotal   *prometheus.CounterVec
	compressedBytes *prometheus.CounterVec
	originalBytes   *prometheus.CounterVec
}

// NewExportMetrics creates and registers export metrics with the provided registry.
func NewExportMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ExportMetrics {
	em := &ExportMetrics{
		exportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "exports_total",
				Help:      "Total number of exports",
			},
			[]string{"format", "status"},
		),

		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "export_duration_seconds",
				Help:      "Duration of exports in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"format"},
		),

		items: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "export_items",
				Help:      "Number of items per export",
				Buckets:   cfg.ItemCountBuckets,
			},
			[]string{"format"},
		),

		bytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "export_bytes",
				Help:      "Size of export artifacts in bytes",
				Buckets:   prometheus.ExponentialBuckets(256, 4, 10), // 256B to 64MB
			},
			[]string{"format"},
		),

		failuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "export_failures_total",
				Help:      "Total number of failed exports by phase",
			},
			[]string{"format", "phase"},
		),

		compressedBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "export_compressed_bytes_total",
				Help:      "Estimated compressed size of artifacts",
			},
			[]string{"format"},
		),

		originalBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "export_uncompressed_bytes_total",
				Help:      "Uncompressed size of artifacts submitted for compression",
			},
			[]string{"format"},
		),
	}

	registry.MustRegister(
		em.exportsTotal,
		em.duration,
		em.items,
		em.bytes,
		em.failuresTotal,
		em.compressedBytes,
		em.originalBytes,
	)

	return em
}

// RecordExport records a finished export.
func (em *ExportMetrics) RecordExport(format, status string, duration time.Duration, items int, bytes int64) {
	em.exportsTotal.WithLabelValues(format, status).Inc()
	em.duration.WithLabelValues(format).Observe(duration.Seconds())
	em.items.WithLabelValues(format).Observe(float64(items))
	if bytes > 0 {
		em.bytes.WithLabelValues(format).Observe(float64(bytes))
	}
}

// RecordFailure records the phase an export failed in.
func (em *ExportMetrics) RecordFailure(format, phase string) {
	em.failuresTotal.WithLabelValues(format, phase).Inc()
}

// RecordCompression records original and estimated compressed sizes.
func (em *ExportMetrics) RecordCompression(format string, original, compressed int64) {
	em.originalBytes.WithLabelValues(format).Add(float64(original))
	em.compressedBytes.WithLabelValues(format).Add(float64(compressed))
}
