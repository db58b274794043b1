// Package config loads scanport configuration from YAML with environment
// variable overrides.
//
// # Loading
//
//	cfg, err := config.LoadConfigWithEnvOverrides("scanport.yaml")
//
// Values are applied in the following order (later overrides earlier):
//
//  1. Default values (defaults.go)
//  2. Values from the YAML file
//  3. SCANPORT_* environment variables
//  4. Validation, which reports every invalid field at once
//
// # Environment Variable Overrides
//
//   - SCANPORT_EXPORT_OUTPUT_DIR overrides export.output_dir
//   - SCANPORT_AUTOMATION_RULES_FILE overrides automation.rules_file
//   - SCANPORT_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Example
//
//	export:
//	  output_dir: ./exports
//	  options:
//	    include_timestamps: true
//	    date_format: iso
//	automation:
//	  rules_file: ./rules.yaml
//	  watch: true
//	  schedule: "*/5 * * * *"
//	  history:
//	    backend: sqlite
//	    sqlite_path: ./data/history.db
package config
