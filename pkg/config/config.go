package config

import (
	"time"

	"mercator-hq/scanport/pkg/export"
)

// Config is the root configuration structure for scanport.
type Config struct {
	// Export contains defaults for the export pipeline.
	Export ExportConfig `yaml:"export"`

	// Sinks configures the external capabilities artifacts are handed to.
	Sinks SinksConfig `yaml:"sinks"`

	// Automation configures the rule engine, its rule source, scheduler and
	// run history.
	Automation AutomationConfig `yaml:"automation"`

	// Telemetry contains configuration for logging, metrics and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ExportConfig contains export pipeline defaults.
type ExportConfig struct {
	// OutputDir is where the filesystem persistence sink writes artifacts.
	// Default: "exports"
	OutputDir string `yaml:"output_dir"`

	// BatchSize is the number of rows encoded per chunk.
	// Default: 1000
	BatchSize int `yaml:"batch_size"`

	// ResetDelay is how long the finished progress state is kept before
	// the orchestrator returns to idle.
	// Default: 2s
	ResetDelay time.Duration `yaml:"reset_delay"`

	// CompressionRatio is the placeholder ratio reported when compression
	// is requested.
	// Default: 0.8
	CompressionRatio float64 `yaml:"compression_ratio"`

	// DefaultFormat is used by the CLI when no format is given.
	// Default: "csv"
	DefaultFormat string `yaml:"default_format"`

	// Options are the default export options.
	Options export.Options `yaml:"options"`
}

// SinksConfig groups the sink configurations.
type SinksConfig struct {
	Email  EmailConfig  `yaml:"email"`
	Sheets SheetsConfig `yaml:"sheets"`
	Cloud  CloudConfig  `yaml:"cloud"`
}

// EmailConfig configures the SMTP email sink.
type EmailConfig struct {
	// Enabled controls whether the email sink is wired.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Host and Port address the SMTP server.
	// Default port: 587
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Username and Password authenticate with PLAIN auth when set.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// From is the sender address.
	From string `yaml:"from"`

	// HTML selects the HTML body template instead of plain text.
	// Default: false
	HTML bool `yaml:"html"`

	// Timeout bounds a single send.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`
}

// SheetsConfig configures the workbook-backed spreadsheet sink.
type SheetsConfig struct {
	// Enabled controls whether the spreadsheet sink is wired.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Dir is where workbooks are written.
	// Default: "sheets"
	Dir string `yaml:"dir"`

	// Credential is the access credential. The sink stays disconnected
	// until one is supplied.
	Credential string `yaml:"credential"`

	// BaseURL prefixes sheet locations.
	// Default: "file://"
	BaseURL string `yaml:"base_url"`
}

// CloudConfig configures the NATS-backed cloud upload sink.
type CloudConfig struct {
	// Enabled controls whether the cloud sink is wired.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// URL is the NATS server URL.
	// Default: "nats://127.0.0.1:4222"
	URL string `yaml:"url"`

	// SubjectPrefix prefixes upload subjects (prefix.service).
	// Default: "scanport.uploads"
	SubjectPrefix string `yaml:"subject_prefix"`

	// DefaultService is used when an upload names no service.
	// Default: "google_drive"
	DefaultService string `yaml:"default_service"`

	// Timeout bounds a single publish and flush.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// Resilience configures retries and the circuit breaker.
	Resilience ResilienceConfig `yaml:"resilience"`
}

// ResilienceConfig configures retry and circuit breaking for outbound calls.
type ResilienceConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	// Default: 2
	MaxRetries int `yaml:"max_retries"`

	// InitialBackoff is the delay before the first retry.
	// Default: 200ms
	InitialBackoff time.Duration `yaml:"initial_backoff"`

	// MaxBackoff caps the delay between retries.
	// Default: 2s
	MaxBackoff time.Duration `yaml:"max_backoff"`

	// BreakerFailures is the consecutive failure count that opens the breaker.
	// Default: 5
	BreakerFailures uint32 `yaml:"breaker_failures"`

	// BreakerTimeout is how long the breaker stays open.
	// Default: 30s
	BreakerTimeout time.Duration `yaml:"breaker_timeout"`
}

// AutomationConfig configures the automation rule engine.
type AutomationConfig struct {
	// RulesFile is a YAML file with a top-level rules list. When empty the
	// built-in default rules are used.
	RulesFile string `yaml:"rules_file"`

	// Watch reloads RulesFile when it changes.
	// Default: false
	Watch bool `yaml:"watch"`

	// WatchDebounce coalesces bursts of file events.
	// Default: 250ms
	WatchDebounce time.Duration `yaml:"watch_debounce"`

	// Schedule is the cron expression for evaluation passes.
	// Default: "* * * * *" (every minute)
	Schedule string `yaml:"schedule"`

	// DataFile is the JSON file holding the latest scan snapshot that
	// scheduled passes evaluate.
	DataFile string `yaml:"data_file"`

	// History configures the trigger run history.
	History HistoryConfig `yaml:"history"`

	// Webhook configures the webhook action.
	Webhook WebhookConfig `yaml:"webhook"`
}

// HistoryConfig configures trigger run history storage.
type HistoryConfig struct {
	// Backend is "sqlite" or "memory".
	// Default: "memory"
	Backend string `yaml:"backend"`

	// SQLitePath is the database file for the sqlite backend.
	// Default: "data/history.db"
	SQLitePath string `yaml:"sqlite_path"`

	// BusyTimeout is the SQLite busy timeout.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// Retention is how long entries are kept. Scheduled passes prune
	// older entries. Zero keeps everything.
	// Default: 0
	Retention time.Duration `yaml:"retention"`
}

// WebhookConfig configures the webhook action.
type WebhookConfig struct {
	// Timeout bounds a single webhook call.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// RateLimit is the maximum calls per second (0 = unlimited).
	// Default: 0
	RateLimit float64 `yaml:"rate_limit"`

	// Burst is the rate limiter burst size.
	// Default: 1
	Burst int `yaml:"burst"`

	// Resilience configures retries and the circuit breaker.
	Resilience ResilienceConfig `yaml:"resilience"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII redacts email addresses, credentials and tokens in logs.
	// Default: true
	RedactPII bool `yaml:"redact_pii"`

	// RedactPatterns contains custom redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom PII redaction pattern.
type RedactPattern struct {
	// Name is a descriptive name for the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement is the string to replace matches with.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// ListenAddress is where `scanport serve` exposes metrics.
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`

	// Namespace is the metric name prefix.
	// Default: "scanport"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	Subsystem string `yaml:"subsystem"`

	// DurationBuckets defines histogram buckets for export duration (seconds).
	// Default: [0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30]
	DurationBuckets []float64 `yaml:"duration_buckets"`

	// ItemCountBuckets defines histogram buckets for items per export.
	// Default: [1, 10, 100, 1000, 10000, 100000]
	ItemCountBuckets []float64 `yaml:"item_count_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio", "exports"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Example: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "scanport"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS for the OTLP connection.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for OTLP exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}
