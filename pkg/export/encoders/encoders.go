package encoders

import (
	"context"
	"time"

	"mercator-hq/scanport/pkg/export"
	"mercator-hq/scanport/pkg/export/format"
)

// Job is the input handed to every encoder by the orchestrator.
type Job struct {
	// Items are the validated raw items.
	Items []export.Item

	// Records are Items after formatting. The empty field policy is left
	// to the tabular encoders (CSV, document, spreadsheet); JSON encodes
	// every selected field as formatted.
	Records []format.Record

	// Options are the export options.
	Options export.Options

	// Format is the requested format.
	Format export.Format

	// FileName is the artifact name including extension.
	FileName string

	// GeneratedAt stamps document and spreadsheet titles.
	GeneratedAt time.Time
}

// Artifact is the output of an encoder.
type Artifact struct {
	// Ref references the persisted or remote artifact. It may be nil when
	// the persistence sink has no durable reference to give.
	Ref *export.ArtifactRef

	// Name is the artifact file name or sheet title.
	Name string

	// MIMEType is the content type of Content.
	MIMEType string

	// Content holds the encoded bytes for text and document formats. It
	// is nil for spreadsheet artifacts.
	Content []byte
}

// Size returns the encoded size in bytes.
func (a *Artifact) Size() int64 {
	if a == nil {
		return 0
	}
	return int64(len(a.Content))
}

// Encoder turns a Job into an Artifact, reporting progress in item units.
type Encoder interface {
	Encode(ctx context.Context, job Job, progress export.ProgressFunc) (*Artifact, error)
}

// Persister stores encoded content. It may return a nil reference when the
// content was handed off without a durable location.
type Persister interface {
	Persist(ctx context.Context, content []byte, filename string) (*export.ArtifactRef, error)
}

// Sharer offers a persisted artifact to the user. It is best effort.
type Sharer interface {
	Share(ctx context.Context, ref *export.ArtifactRef, mimeType, title string) error
}

// Document is the input of a DocumentRenderer.
type Document struct {
	Title       string
	Headers     []string
	Rows        [][]string
	Records     []format.Record
	GeneratedAt time.Time
}

// RenderedDocument is the output of a DocumentRenderer.
type RenderedDocument struct {
	Content   []byte
	MIMEType  string
	Extension string
}

// DocumentRenderer produces a printable document.
type DocumentRenderer interface {
	Render(ctx context.Context, doc Document) (*RenderedDocument, error)
}

// Sheet identifies a created spreadsheet.
type Sheet struct {
	ID    string
	URL   string
	Title string
}

// SpreadsheetSink writes rows to spreadsheets behind an access credential.
type SpreadsheetSink interface {
	// Connected reports whether a credential has been established.
	Connected() bool

	CreateSheet(ctx context.Context, title string, headers []string, rows [][]string) (*Sheet, error)
	AppendRows(ctx context.Context, sheetID string, rows [][]string) error
}

func report(progress export.ProgressFunc, current, total int, status string) {
	if progress != nil {
		progress(export.ProgressEvent{Current: current, Total: total, Status: status})
	}
}
