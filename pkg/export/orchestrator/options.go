package orchestrator

import (
	"log/slog"
	"time"

	"mercator-hq/scanport/pkg/config"
	"mercator-hq/scanport/pkg/export/csv"
	"mercator-hq/scanport/pkg/export/encoders"
	"mercator-hq/scanport/pkg/sinks/cloud"
	"mercator-hq/scanport/pkg/sinks/email"
	"mercator-hq/scanport/pkg/telemetry/metrics"
	"mercator-hq/scanport/pkg/telemetry/tracing"
)

// Config holds orchestrator tuning.
type Config struct {
	// BatchSize is the chunk size for tabular and spreadsheet encoding.
	BatchSize int

	// ResetDelay is how long the last progress event stays visible in
	// Status after an export finishes.
	ResetDelay time.Duration

	// CompressionRatio is the placeholder ratio used for the compression
	// summary.
	CompressionRatio float64

	// HTMLEmail selects the HTML email template.
	HTMLEmail bool

	// Location renders local dates. Nil means time.Local.
	Location *time.Location
}

// DefaultConfig returns the orchestrator defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:        csv.DefaultBatchSize,
		ResetDelay:       config.DefaultResetDelay,
		CompressionRatio: config.DefaultCompressionRatio,
	}
}

// ConfigFrom builds a Config from the loaded configuration.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		BatchSize:        cfg.Export.BatchSize,
		ResetDelay:       cfg.Export.ResetDelay,
		CompressionRatio: cfg.Export.CompressionRatio,
		HTMLEmail:        cfg.Sinks.Email.HTML,
	}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPersister sets the persistence sink required by text and document
// formats.
func WithPersister(p encoders.Persister) Option {
	return func(o *Orchestrator) { o.persister = p }
}

// WithSharer sets the best effort share sink.
func WithSharer(s encoders.Sharer) Option {
	return func(o *Orchestrator) { o.sharer = s }
}

// WithRenderer sets the document renderer.
func WithRenderer(r encoders.DocumentRenderer) Option {
	return func(o *Orchestrator) { o.renderer = r }
}

// WithSpreadsheet sets the spreadsheet sink.
func WithSpreadsheet(s encoders.SpreadsheetSink) Option {
	return func(o *Orchestrator) { o.sheets = s }
}

// WithMailer sets the email sink.
func WithMailer(m email.Sender) Option {
	return func(o *Orchestrator) { o.mailer = m }
}

// WithUploader sets the cloud upload sink.
func WithUploader(u cloud.Uploader) Option {
	return func(o *Orchestrator) { o.uploader = u }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l.With("component", "orchestrator")
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *Orchestrator) { o.metrics = c }
}

// WithTracer sets the tracer.
func WithTracer(t *tracing.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithClock sets the clock used for file names and document titles.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}
