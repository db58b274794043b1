// Package telemetry groups the observability packages used by scanport.
//
//   - logging: slog handlers with PII redaction and context fields
//   - metrics: Prometheus collectors for exports, rules and sinks
//   - tracing: OpenTelemetry spans exported over OTLP gRPC
//   - health: liveness and readiness probes
//
// Every collector and tracer is safe to use when disabled or nil, so
// library packages can record unconditionally:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(ctx)
//
// Log attributes whose keys look like credentials are masked, and email
// addresses in values are reduced to their first letter and domain.
package telemetry
