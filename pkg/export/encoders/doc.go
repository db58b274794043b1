// Package encoders adapts formatted export data to each output format and
// its external sink: persistence for CSV and JSON, a document renderer for
// PDF and a spreadsheet sink for Google Sheets style workbooks.
//
// Sinks are capability interfaces. A missing capability is reported as
// *export.SinkUnavailableError and a failing call as *export.SinkFailureError.
package encoders
