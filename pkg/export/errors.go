package export

import (
	"errors"
	"fmt"
	"strings"
)

// Common sentinel errors
var (
	// ErrNoData indicates an export was requested for an empty item set.
	ErrNoData = errors.New("no data to export")

	// ErrAuthRequired indicates a spreadsheet sink has no access credential.
	ErrAuthRequired = errors.New("spreadsheet access credential not set")

	// ErrExportInProgress indicates another export is still running.
	ErrExportInProgress = errors.New("an export is already in progress")
)

// ItemIssue describes one validation failure for a single item.
type ItemIssue struct {
	Index   int
	Message string
}

// String returns the issue as a sentence.
func (i ItemIssue) String() string {
	return fmt.Sprintf("item at index %d %s", i.Index, i.Message)
}

// ValidationError aggregates every malformed item found in an input set.
// It is raised before any encoding work begins.
type ValidationError struct {
	Issues []ItemIssue
	Cause  error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Cause != nil && len(e.Issues) == 0 {
		return fmt.Sprintf("data validation failed: %v", e.Cause)
	}
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = issue.String()
	}
	return fmt.Sprintf("data validation failed: %s", strings.Join(parts, ", "))
}

// Unwrap returns the underlying cause error.
func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// Indices returns the distinct offending item indices in ascending order.
func (e *ValidationError) Indices() []int {
	var out []int
	seen := make(map[int]bool)
	for _, issue := range e.Issues {
		if !seen[issue.Index] {
			seen[issue.Index] = true
			out = append(out, issue.Index)
		}
	}
	return out
}

// UnsupportedFormatError indicates an unrecognized format tag.
type UnsupportedFormatError struct {
	Format string
}

// Error implements the error interface.
func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported export format: %q", e.Format)
}

// SinkUnavailableError indicates a required capability (persistence,
// email, spreadsheet, upload, renderer) is not configured.
type SinkUnavailableError struct {
	Sink  string
	Cause error
}

// Error implements the error interface.
func (e *SinkUnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s sink unavailable: %v", e.Sink, e.Cause)
	}
	return fmt.Sprintf("%s sink unavailable", e.Sink)
}

// Unwrap returns the underlying cause error.
func (e *SinkUnavailableError) Unwrap() error {
	return e.Cause
}

// NewSinkUnavailableError creates a new SinkUnavailableError.
func NewSinkUnavailableError(sink string, cause error) *SinkUnavailableError {
	return &SinkUnavailableError{Sink: sink, Cause: cause}
}

// SinkFailureError indicates the sink call itself failed.
type SinkFailureError struct {
	Sink      string // Sink name ("persist", "email", "webhook", ...)
	Operation string // Operation that failed ("write", "send", "upload", ...)
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *SinkFailureError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Sink, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *SinkFailureError) Unwrap() error {
	return e.Cause
}

// NewSinkFailureError creates a new SinkFailureError.
func NewSinkFailureError(sink, operation string, cause error) *SinkFailureError {
	return &SinkFailureError{Sink: sink, Operation: operation, Cause: cause}
}

// ExportError wraps a failure of one orchestrator phase.
type ExportError struct {
	Format    Format // Requested format
	Phase     string // Phase that failed ("validate", "encode", "email", "upload")
	ItemCount int    // Number of items being exported
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *ExportError) Error() string {
	return fmt.Sprintf("export error [format=%s, phase=%s, item_count=%d]: %v", e.Format, e.Phase, e.ItemCount, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *ExportError) Unwrap() error {
	return e.Cause
}

// NewExportError creates a new ExportError.
func NewExportError(format Format, phase string, itemCount int, cause error) *ExportError {
	return &ExportError{
		Format:    format,
		Phase:     phase,
		ItemCount: itemCount,
		Cause:     cause,
	}
}
