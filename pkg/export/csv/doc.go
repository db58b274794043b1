// Package csv is the tabular encoder for scanned items.
//
// Cells are quoted only when they contain a comma, a double quote, a line
// feed or a carriage return, and rows are joined with "\n" without a
// trailing newline. Encoder.EncodeChunked produces exactly the same bytes
// as Encoder.Encode while reporting progress per batch.
//
// The text helpers (ReorderColumns, ValidateStructure, Inspect) parse with
// encoding/csv so quoted cells are handled correctly.
package csv
