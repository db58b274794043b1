// Package metrics provides Prometheus metrics collection for scanport.
//
// # Metrics Categories
//
//   - Export Metrics: exports by format and status, duration, item counts,
//     artifact sizes, failures by phase, compression estimates
//   - Automation Metrics: rule evaluations, condition errors, action
//     results, loaded rules
//   - Sink Metrics: outbound sink calls and latency
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordExport("csv", metrics.StatusSuccess, time.Second, 120, 4096)
//
//	http.Handle("/metrics", collector.Handler())
//
// A nil *Collector is valid and records nothing.
package metrics
