// Package export defines the data model shared by the scanport export
// pipeline: scanned items, export options, formats, results, the progress
// stream and the error taxonomy.
//
// The pipeline itself lives in subpackages:
//
//   - format: record formatting and header derivation
//   - csv: the tabular encoder and its auxiliary text operations
//   - encoders: per-format adapters to external sinks
//   - orchestrator: the single Export entry point
//
// # Progress
//
// Every export emits one ordered stream of ProgressEvent values. Current
// never decreases and the stream ends with exactly one terminal event,
// either a success marker with Current == Total or an error. ProgressEmitter
// enforces both properties for any producer.
//
// # Errors
//
// Validation failures are aggregated into a single *ValidationError that
// lists every offending item index. Sink problems are reported as
// *SinkUnavailableError (capability not configured) or *SinkFailureError
// (the call itself failed). Use errors.As to tell them apart.
package export
