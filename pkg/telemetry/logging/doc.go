// Package logging provides structured logging with PII redaction.
//
// # Overview
//
// The logging package wraps Go's standard log/slog package to provide:
//   - JSON and text output
//   - Redaction of email addresses, bearer tokens, credentials and phone
//     numbers in messages and attribute values
//   - Masking of values logged under sensitive keys (password, token, ...)
//   - Context fields (export_id, rule_id, run_id) on *Context log calls
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:     "info",
//	    Format:    "json",
//	    RedactPII: true,
//	})
//
//	logger.Info("export emailed",
//	    "recipient", "ops@example.com", // logged as o***@example.com
//	    "format", "csv",
//	)
//
//	ctx = logging.WithRuleID(ctx, "rule-42")
//	logger.InfoContext(ctx, "rule triggered") // carries rule_id
package logging
