// Package tracing provides OpenTelemetry tracing for scanport.
//
// Exports and rule evaluation passes each open a span; sinks add child
// spans for their outbound calls. Spans are batched to an OTLP gRPC
// collector when tracing is enabled and are noops otherwise.
//
// # Sampling Strategies
//
//   - always: Sample all traces
//   - never: Sample no traces
//   - ratio: Sample a fraction of traces (sample_ratio)
//
// All samplers respect the parent span's decision.
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, "export")
//	tracing.SetExportAttributes(span, "csv", len(items))
//	defer span.End()
//
// Trace context is injected into webhook request headers and cloud upload
// message headers with Inject.
package tracing
