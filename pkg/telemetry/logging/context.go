package logging

import (
	"context"
	"log/slog"
)

// Context keys for common log fields.
type contextKey string

const (
	// ExportIDKey is the context key for export identifiers.
	ExportIDKey contextKey = "export_id"

	// RuleIDKey is the context key for automation rule identifiers.
	RuleIDKey contextKey = "rule_id"

	// RunIDKey is the context key for automation run identifiers.
	RunIDKey contextKey = "run_id"
)

// WithExportID adds an export ID to the context.
func WithExportID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ExportIDKey, id)
}

// GetExportID retrieves the export ID from the context.
func GetExportID(ctx context.Context) string {
	if id, ok := ctx.Value(ExportIDKey).(string); ok {
		return id
	}
	return ""
}

// WithRuleID adds a rule ID to the context.
func WithRuleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RuleIDKey, id)
}

// GetRuleID retrieves the rule ID from the context.
func GetRuleID(ctx context.Context) string {
	if id, ok := ctx.Value(RuleIDKey).(string); ok {
		return id
	}
	return ""
}

// WithRunID adds a run ID to the context.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RunIDKey, id)
}

// GetRunID retrieves the run ID from the context.
func GetRunID(ctx context.Context) string {
	if id, ok := ctx.Value(RunIDKey).(string); ok {
		return id
	}
	return ""
}

// contextAttrs extracts the known fields from ctx.
func contextAttrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}

	var attrs []slog.Attr
	if id := GetExportID(ctx); id != "" {
		attrs = append(attrs, slog.String(string(ExportIDKey), id))
	}
	if id := GetRuleID(ctx); id != "" {
		attrs = append(attrs, slog.String(string(RuleIDKey), id))
	}
	if id := GetRunID(ctx); id != "" {
		attrs = append(attrs, slog.String(string(RunIDKey), id))
	}
	return attrs
}
