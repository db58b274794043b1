package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanExport         = "export"
	SpanExportEncode   = "export.encode"
	SpanRuleEvaluation = "automation.evaluate"
	SpanRuleAction     = "automation.action"
)

// Attribute keys used on scanport spans.
const (
	AttrExportFormat   = attribute.Key("export.format")
	AttrExportItems    = attribute.Key("export.item_count")
	AttrExportBytes    = attribute.Key("export.byte_size")
	AttrExportArtifact = attribute.Key("export.artifact")
	AttrExportPhase    = attribute.Key("export.phase")

	AttrRuleID        = attribute.Key("rule.id")
	AttrRuleName      = attribute.Key("rule.name")
	AttrRuleTriggered = attribute.Key("rule.triggered")
	AttrRulesTotal    = attribute.Key("rules.total")
	AttrActionType    = attribute.Key("action.type")
	AttrActionSuccess = attribute.Key("action.success")

	AttrSinkName = attribute.Key("sink.name")
)

// SetExportAttributes sets the standard export attributes.
func SetExportAttributes(span trace.Span, format string, items int) {
	span.SetAttributes(
		AttrExportFormat.String(format),
		AttrExportItems.Int(items),
	)
}

// SetRuleAttributes sets the standard rule attributes.
func SetRuleAttributes(span trace.Span, ruleID, ruleName string) {
	span.SetAttributes(
		AttrRuleID.String(ruleID),
		AttrRuleName.String(ruleName),
	)
}

// AddEvent adds a named event with optional attributes to the span.
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
