package export

import (
	"fmt"
	"strings"
)

// Item is a single scanned record as captured by a scanner session.
// ID and Data are required for the item to be exportable.
type Item struct {
	// ID uniquely identifies the scan.
	ID string `json:"id" yaml:"id"`

	// Type is the scan kind tag ("text-scan", "code-scan", "unknown", ...).
	Type string `json:"type" yaml:"type"`

	// Data is the primary payload (decoded text, barcode value, ...).
	Data string `json:"data" yaml:"data"`

	// Timestamp is the raw scan instant. It must parse with ParseTimestamp
	// when present.
	Timestamp string `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`

	// Product is the looked-up product for code scans, if any.
	Product *Product `json:"product,omitempty" yaml:"product,omitempty"`

	// Location is a free-form place description.
	Location string `json:"location,omitempty" yaml:"location,omitempty"`

	// ScannedCount is how many times the code was scanned. Zero means 1.
	ScannedCount int `json:"scannedCount,omitempty" yaml:"scanned_count,omitempty"`

	// Metadata carries scanner details (confidence, mode, language, counts).
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Product is the nested product record attached to code scans.
type Product struct {
	Name     string   `json:"name,omitempty" yaml:"name,omitempty"`
	Price    *float64 `json:"price,omitempty" yaml:"price,omitempty"`
	Category string   `json:"category,omitempty" yaml:"category,omitempty"`
	Brand    string   `json:"brand,omitempty" yaml:"brand,omitempty"`
	UPC      string   `json:"upc,omitempty" yaml:"upc,omitempty"`

	// Nutrition is passed through verbatim.
	Nutrition map[string]any `json:"nutrition,omitempty" yaml:"nutrition,omitempty"`
}

// Count returns the effective scan count (at least 1).
func (i Item) Count() int {
	if i.ScannedCount < 1 {
		return 1
	}
	return i.ScannedCount
}

// Format is the closed set of export targets.
type Format string

const (
	// FormatCSV is comma-delimited tabular text.
	FormatCSV Format = "csv"

	// FormatPDF is a rendered document.
	FormatPDF Format = "pdf"

	// FormatJSON is pretty-printed structured text.
	FormatJSON Format = "json"

	// FormatSpreadsheet is a remote or workbook spreadsheet.
	FormatSpreadsheet Format = "google_sheets"
)

// Formats returns every supported format in a stable order.
func Formats() []Format {
	return []Format{FormatCSV, FormatPDF, FormatJSON, FormatSpreadsheet}
}

// Valid reports whether f is a member of the format enum.
func (f Format) Valid() bool {
	switch f {
	case FormatCSV, FormatPDF, FormatJSON, FormatSpreadsheet:
		return true
	}
	return false
}

// Extension returns the file extension used for artifacts of this format.
func (f Format) Extension() string {
	switch f {
	case FormatCSV:
		return ".csv"
	case FormatPDF:
		return ".pdf"
	case FormatJSON:
		return ".json"
	case FormatSpreadsheet:
		return ".xlsx"
	}
	return ".txt"
}

// MIMEType returns the content type for artifacts of this format.
func (f Format) MIMEType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatPDF:
		return "application/pdf"
	case FormatJSON:
		return "application/json"
	case FormatSpreadsheet:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/plain"
}

// ParseFormat converts a user supplied tag into a Format.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", &UnsupportedFormatError{Format: s}
	}
	return f, nil
}

// ArtifactRef is an opaque reference to a persisted or shared output.
type ArtifactRef struct {
	// Location is a path, URI or URL that identifies the artifact.
	Location string `json:"location"`

	// Name is the artifact file name or sheet title.
	Name string `json:"name"`

	// MIMEType is the artifact content type.
	MIMEType string `json:"mime_type,omitempty"`

	// Size is the artifact size in bytes (0 if unknown).
	Size int64 `json:"size,omitempty"`
}

// String returns the artifact location.
func (a *ArtifactRef) String() string {
	if a == nil {
		return ""
	}
	return a.Location
}

// Result is produced exactly once per successful export.
type Result struct {
	// Artifact references the output. Nil when the persistence sink hands
	// the file straight to the user without a durable reference.
	Artifact *ArtifactRef `json:"artifact"`

	// Format is the format that was produced.
	Format Format `json:"format"`

	// ByteSize is the encoded size for text formats (0 if unknown).
	ByteSize int64 `json:"byte_size,omitempty"`
}

// String returns a short human readable description.
func (r *Result) String() string {
	if r == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s export (%d bytes) at %s", r.Format, r.ByteSize, r.Artifact.String())
}
