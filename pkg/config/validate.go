package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"

	"mercator-hq/scanport/pkg/export"
)

// FieldError is a problem with one setting, addressed by its dotted YAML
// path such as "export.batch_size".
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationError carries every FieldError found in one pass so a user
// can fix the whole file at once.
type ValidationError struct {
	Errors []FieldError
}

func (e ValidationError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "configuration validation failed"
	case 1:
		return "configuration validation failed: " + e.Errors[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, fe := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", fe.Error())
	}
	return sb.String()
}

// Validate checks cfg after defaults have been applied.
func Validate(cfg *Config) error {
	errs := validateExport(&cfg.Export)
	errs = append(errs, validateSinks(&cfg.Sinks)...)
	errs = append(errs, validateAutomation(&cfg.Automation)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateExport(cfg *ExportConfig) []FieldError {
	var errs []FieldError

	if cfg.OutputDir == "" {
		errs = append(errs, FieldError{Field: "export.output_dir", Message: "output directory is required"})
	}
	if cfg.BatchSize < 1 {
		errs = append(errs, FieldError{Field: "export.batch_size", Message: "batch size must be at least 1"})
	}
	if cfg.ResetDelay < 0 {
		errs = append(errs, FieldError{Field: "export.reset_delay", Message: "reset delay must not be negative"})
	}
	if cfg.CompressionRatio <= 0 || cfg.CompressionRatio > 1 {
		errs = append(errs, FieldError{Field: "export.compression_ratio", Message: "compression ratio must be in (0, 1]"})
	}
	if _, err := export.ParseFormat(cfg.DefaultFormat); err != nil {
		errs = append(errs, FieldError{Field: "export.default_format", Message: err.Error()})
	}

	switch cfg.Options.DateFormat {
	case export.DateISO, export.DateLocal, export.DateOnly, export.TimeOnly:
	default:
		errs = append(errs, FieldError{
			Field:   "export.options.date_format",
			Message: fmt.Sprintf("invalid date format %q: must be 'iso', 'local', 'date-only' or 'time-only'", cfg.Options.DateFormat),
		})
	}

	return errs
}

func validateSinks(cfg *SinksConfig) []FieldError {
	var errs []FieldError

	if cfg.Email.Enabled {
		if cfg.Email.Host == "" {
			errs = append(errs, FieldError{Field: "sinks.email.host", Message: "SMTP host is required when email is enabled"})
		}
		if cfg.Email.From == "" {
			errs = append(errs, FieldError{Field: "sinks.email.from", Message: "sender address is required when email is enabled"})
		}
		if cfg.Email.Port < 1 || cfg.Email.Port > 65535 {
			errs = append(errs, FieldError{Field: "sinks.email.port", Message: "port must be between 1 and 65535"})
		}
	}

	if cfg.Sheets.Enabled && cfg.Sheets.Dir == "" {
		errs = append(errs, FieldError{Field: "sinks.sheets.dir", Message: "directory is required when spreadsheets are enabled"})
	}

	if cfg.Cloud.Enabled {
		u, err := url.Parse(cfg.Cloud.URL)
		if err != nil || u.Scheme == "" {
			errs = append(errs, FieldError{Field: "sinks.cloud.url", Message: fmt.Sprintf("invalid URL %q", cfg.Cloud.URL)})
		}
		if cfg.Cloud.SubjectPrefix == "" {
			errs = append(errs, FieldError{Field: "sinks.cloud.subject_prefix", Message: "subject prefix is required"})
		}
	}
	errs = append(errs, validateResilience("sinks.cloud.resilience", &cfg.Cloud.Resilience)...)

	return errs
}

func validateResilience(prefix string, cfg *ResilienceConfig) []FieldError {
	var errs []FieldError
	if cfg.MaxRetries < 0 {
		errs = append(errs, FieldError{Field: prefix + ".max_retries", Message: "max retries must not be negative"})
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		errs = append(errs, FieldError{Field: prefix + ".max_backoff", Message: "max backoff must be at least the initial backoff"})
	}
	return errs
}

func validateAutomation(cfg *AutomationConfig) []FieldError {
	var errs []FieldError

	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "automation.schedule",
			Message: fmt.Sprintf("invalid cron schedule %q: %v", cfg.Schedule, err),
		})
	}

	if cfg.Watch && cfg.RulesFile == "" {
		errs = append(errs, FieldError{Field: "automation.rules_file", Message: "rules file is required when watch is enabled"})
	}

	switch cfg.History.Backend {
	case "memory":
	case "sqlite":
		if cfg.History.SQLitePath == "" {
			errs = append(errs, FieldError{Field: "automation.history.sqlite_path", Message: "path is required for the sqlite backend"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "automation.history.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'memory' or 'sqlite'", cfg.History.Backend),
		})
	}

	if cfg.History.Retention < 0 {
		errs = append(errs, FieldError{Field: "automation.history.retention", Message: "retention must not be negative"})
	}

	if cfg.Webhook.RateLimit < 0 {
		errs = append(errs, FieldError{Field: "automation.webhook.rate_limit", Message: "rate limit must not be negative"})
	}
	if cfg.Webhook.Burst < 1 {
		errs = append(errs, FieldError{Field: "automation.webhook.burst", Message: "burst must be at least 1"})
	}
	errs = append(errs, validateResilience("automation.webhook.resilience", &cfg.Webhook.Resilience)...)

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "metrics path must start with /"})
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	switch cfg.Tracing.Sampler {
	case "always", "never", "ratio", "exports":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("unknown sampler %q: must be 'always', 'never', 'ratio', or 'exports'", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	return errs
}
