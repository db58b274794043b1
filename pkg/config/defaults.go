package config

import (
	"time"

	"mercator-hq/scanport/pkg/export"
)

// Default values for configuration fields.
const (
	// Export defaults
	DefaultOutputDir        = "exports"
	DefaultBatchSize        = 1000
	DefaultResetDelay       = 2 * time.Second
	DefaultCompressionRatio = 0.8
	DefaultExportFormat     = "csv"

	// Sink defaults
	DefaultSMTPPort        = 587
	DefaultEmailTimeout    = 30 * time.Second
	DefaultSheetsDir       = "sheets"
	DefaultSheetsBaseURL   = "file://"
	DefaultCloudURL        = "nats://127.0.0.1:4222"
	DefaultCloudSubject    = "scanport.uploads"
	DefaultCloudService    = "google_drive"
	DefaultCloudTimeout    = 10 * time.Second
	DefaultMaxRetries      = 2
	DefaultInitialBackoff  = 200 * time.Millisecond
	DefaultMaxBackoff      = 2 * time.Second
	DefaultBreakerFailures = uint32(5)
	DefaultBreakerTimeout  = 30 * time.Second

	// Automation defaults
	DefaultWatchDebounce     = 250 * time.Millisecond
	DefaultSchedule          = "* * * * *"
	DefaultHistoryBackend    = "memory"
	DefaultHistorySQLitePath = "data/history.db"
	DefaultHistoryBusy       = 5 * time.Second
	DefaultWebhookTimeout    = 10 * time.Second
	DefaultWebhookBurst      = 1

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsAddress     = "127.0.0.1:9090"
	DefaultMetricsNamespace   = "scanport"
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 1.0
	DefaultTracingService     = "scanport"
	DefaultTracingTimeout     = 10 * time.Second
)

// Defaults returns a configuration populated with every default value,
// including the boolean defaults that ApplyDefaults cannot infer from zero
// values.
func Defaults() *Config {
	cfg := &Config{}
	cfg.Export.Options = export.DefaultOptions()
	cfg.Telemetry.Logging.RedactPII = true
	cfg.Telemetry.Metrics.Enabled = true
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	applyExportDefaults(&cfg.Export)
	applySinkDefaults(&cfg.Sinks)
	applyAutomationDefaults(&cfg.Automation)
	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyExportDefaults(cfg *ExportConfig) {
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.ResetDelay == 0 {
		cfg.ResetDelay = DefaultResetDelay
	}
	if cfg.CompressionRatio == 0 {
		cfg.CompressionRatio = DefaultCompressionRatio
	}
	if cfg.DefaultFormat == "" {
		cfg.DefaultFormat = DefaultExportFormat
	}
	if cfg.Options.DateFormat == "" {
		cfg.Options.DateFormat = export.DateISO
	}
}

func applySinkDefaults(cfg *SinksConfig) {
	if cfg.Email.Port == 0 {
		cfg.Email.Port = DefaultSMTPPort
	}
	if cfg.Email.Timeout == 0 {
		cfg.Email.Timeout = DefaultEmailTimeout
	}

	if cfg.Sheets.Dir == "" {
		cfg.Sheets.Dir = DefaultSheetsDir
	}
	if cfg.Sheets.BaseURL == "" {
		cfg.Sheets.BaseURL = DefaultSheetsBaseURL
	}

	if cfg.Cloud.URL == "" {
		cfg.Cloud.URL = DefaultCloudURL
	}
	if cfg.Cloud.SubjectPrefix == "" {
		cfg.Cloud.SubjectPrefix = DefaultCloudSubject
	}
	if cfg.Cloud.DefaultService == "" {
		cfg.Cloud.DefaultService = DefaultCloudService
	}
	if cfg.Cloud.Timeout == 0 {
		cfg.Cloud.Timeout = DefaultCloudTimeout
	}
	applyResilienceDefaults(&cfg.Cloud.Resilience)
}

func applyResilienceDefaults(cfg *ResilienceConfig) {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = DefaultInitialBackoff
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = DefaultMaxBackoff
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = DefaultBreakerFailures
	}
	if cfg.BreakerTimeout == 0 {
		cfg.BreakerTimeout = DefaultBreakerTimeout
	}
}

func applyAutomationDefaults(cfg *AutomationConfig) {
	if cfg.WatchDebounce == 0 {
		cfg.WatchDebounce = DefaultWatchDebounce
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}

	if cfg.History.Backend == "" {
		cfg.History.Backend = DefaultHistoryBackend
	}
	if cfg.History.SQLitePath == "" {
		cfg.History.SQLitePath = DefaultHistorySQLitePath
	}
	if cfg.History.BusyTimeout == 0 {
		cfg.History.BusyTimeout = DefaultHistoryBusy
	}

	if cfg.Webhook.Timeout == 0 {
		cfg.Webhook.Timeout = DefaultWebhookTimeout
	}
	if cfg.Webhook.Burst == 0 {
		cfg.Webhook.Burst = DefaultWebhookBurst
	}
	applyResilienceDefaults(&cfg.Webhook.Resilience)
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLoggingFormat
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.ListenAddress == "" {
		cfg.Metrics.ListenAddress = DefaultMetricsAddress
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Metrics.DurationBuckets) == 0 {
		cfg.Metrics.DurationBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30}
	}
	if len(cfg.Metrics.ItemCountBuckets) == 0 {
		cfg.Metrics.ItemCountBuckets = []float64{1, 10, 100, 1000, 10000, 100000}
	}

	if cfg.Tracing.Sampler == "" {
		cfg.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultTracingService
	}
	if cfg.Tracing.Timeout == 0 {
		cfg.Tracing.Timeout = DefaultTracingTimeout
	}
}
