package encoders

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"mercator-hq/scanport/pkg/export"
	"mercator-hq/scanport/pkg/export/format"
)

// DocumentEncoder hands formatted records to a DocumentRenderer and persists the
// result.
type DocumentEncoder struct {
	renderer DocumentRenderer
	store    storage
}

// NewDocument creates a document encoder.
func NewDocument(renderer DocumentRenderer, persister Persister, sharer Sharer, logger *slog.Logger) *DocumentEncoder {
	return &DocumentEncoder{
		renderer: renderer,
		store:    storage{persister: persister, sharer: sharer, logger: logger},
	}
}

// Encode implements Encoder.
func (d *DocumentEncoder) Encode(ctx context.Context, job Job, progress export.ProgressFunc) (*Artifact, error) {
	if d.renderer == nil {
		return nil, export.NewSinkUnavailableError("document renderer", nil)
	}

	total := len(job.Records)
	report(progress, 0, total, "Generating document...")

	records := format.ApplyEmptyFieldPolicy(job.Records, job.Options)
	headers := format.HeadersFor(job.Options)
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = r.Row(headers)
	}

	title := job.Options.Title
	if title == "" {
		title = "Scan Export"
	}

	rendered, err := d.renderer.Render(ctx, Document{
		Title:       title,
		Headers:     headers,
		Rows:        rows,
		Records:     records,
		GeneratedAt: job.GeneratedAt,
	})
	if err != nil {
		return nil, export.NewSinkFailureError("document renderer", "render", err)
	}
	if rendered == nil {
		return nil, export.NewSinkFailureError("document renderer", "render", fmt.Errorf("renderer returned no document"))
	}

	mimeType := rendered.MIMEType
	if mimeType == "" {
		mimeType = export.FormatPDF.MIMEType()
	}

	name := job.FileName
	if rendered.Extension != "" {
		name = strings.TrimSuffix(name, filepath.Ext(name)) + rendered.Extension
	}

	report(progress, total, total, "Document generated")
	return d.store.save(ctx, rendered.Content, name, mimeType, export.FormatPDF)
}
