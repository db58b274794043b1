package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "SCANPORT_"

// LoadConfig loads configuration from a YAML file at the specified path.
// Unset fields keep their defaults. The configuration is validated but not
// modified by environment variables; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML on top of Defaults and applies defaults to any field
// the document zeroed.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention SCANPORT_SECTION_FIELD (e.g., SCANPORT_EXPORT_OUTPUT_DIR) and
// always take precedence over the file.
//
// An empty path skips the file and starts from Defaults.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Defaults()
	} else {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Export overrides
	envString("EXPORT_OUTPUT_DIR", &cfg.Export.OutputDir)
	envInt("EXPORT_BATCH_SIZE", &cfg.Export.BatchSize)
	envDuration("EXPORT_RESET_DELAY", &cfg.Export.ResetDelay)
	envString("EXPORT_DEFAULT_FORMAT", &cfg.Export.DefaultFormat)

	// Email overrides
	envBool("SINKS_EMAIL_ENABLED", &cfg.Sinks.Email.Enabled)
	envString("SINKS_EMAIL_HOST", &cfg.Sinks.Email.Host)
	envInt("SINKS_EMAIL_PORT", &cfg.Sinks.Email.Port)
	envString("SINKS_EMAIL_USERNAME", &cfg.Sinks.Email.Username)
	envString("SINKS_EMAIL_PASSWORD", &cfg.Sinks.Email.Password)
	envString("SINKS_EMAIL_FROM", &cfg.Sinks.Email.From)

	// Spreadsheet overrides
	envBool("SINKS_SHEETS_ENABLED", &cfg.Sinks.Sheets.Enabled)
	envString("SINKS_SHEETS_DIR", &cfg.Sinks.Sheets.Dir)
	envString("SINKS_SHEETS_CREDENTIAL", &cfg.Sinks.Sheets.Credential)

	// Cloud overrides
	envBool("SINKS_CLOUD_ENABLED", &cfg.Sinks.Cloud.Enabled)
	envString("SINKS_CLOUD_URL", &cfg.Sinks.Cloud.URL)
	envString("SINKS_CLOUD_SUBJECT_PREFIX", &cfg.Sinks.Cloud.SubjectPrefix)

	// Automation overrides
	envString("AUTOMATION_RULES_FILE", &cfg.Automation.RulesFile)
	envBool("AUTOMATION_WATCH", &cfg.Automation.Watch)
	envString("AUTOMATION_SCHEDULE", &cfg.Automation.Schedule)
	envString("AUTOMATION_DATA_FILE", &cfg.Automation.DataFile)
	envString("AUTOMATION_HISTORY_BACKEND", &cfg.Automation.History.Backend)
	envString("AUTOMATION_HISTORY_SQLITE_PATH", &cfg.Automation.History.SQLitePath)
	envDuration("AUTOMATION_HISTORY_RETENTION", &cfg.Automation.History.Retention)
	envDuration("AUTOMATION_WEBHOOK_TIMEOUT", &cfg.Automation.Webhook.Timeout)
	if val := os.Getenv(EnvPrefix + "AUTOMATION_WEBHOOK_RATE_LIMIT"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Automation.Webhook.RateLimit = f
		}
	}

	// Telemetry overrides
	if val := os.Getenv(EnvPrefix + "TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = strings.ToLower(val)
	}
	if val := os.Getenv(EnvPrefix + "TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = strings.ToLower(val)
	}
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_LISTEN_ADDRESS", &cfg.Telemetry.Metrics.ListenAddress)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
}

func envString(key string, dst *string) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		*dst = val
	}
}

func envInt(key string, dst *int) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
