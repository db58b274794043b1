package encoders

import (
	"context"
	"fmt"

	"mercator-hq/scanport/pkg/export"
	"mercator-hq/scanport/pkg/export/csv"
	"mercator-hq/scanport/pkg/export/format"
)

// Spreadsheet writes formatted records to a SpreadsheetSink. The first batch
// creates the sheet and each later batch is appended.
type Spreadsheet struct {
	sink      SpreadsheetSink
	batchSize int
}

// NewSpreadsheet creates a spreadsheet encoder. batchSize below 1 means
// csv.DefaultBatchSize.
func NewSpreadsheet(sink SpreadsheetSink, batchSize int) *Spreadsheet {
	if batchSize < 1 {
		batchSize = csv.DefaultBatchSize
	}
	return &Spreadsheet{sink: sink, batchSize: batchSize}
}

// Encode implements Encoder.
func (s *Spreadsheet) Encode(ctx context.Context, job Job, progress export.ProgressFunc) (*Artifact, error) {
	if s.sink == nil {
		return nil, export.NewSinkUnavailableError("spreadsheet", export.ErrAuthRequired)
	}
	if !s.sink.Connected() {
		return nil, export.NewSinkUnavailableError("spreadsheet", export.ErrAuthRequired)
	}

	total := len(job.Records)
	report(progress, 0, total, "Creating spreadsheet...")

	headers := format.HeadersFor(job.Options)
	rows := make([][]string, len(job.Records))
	for i, r := range format.ApplyEmptyFieldPolicy(job.Records, job.Options) {
		rows[i] = r.Row(headers)
	}

	title := job.Options.Title
	if title == "" {
		title = fmt.Sprintf("Scan Export %s", job.GeneratedAt.Format("2006-01-02 15:04:05"))
	}

	first := min(s.batchSize, total)
	sheet, err := s.sink.CreateSheet(ctx, title, headers, rows[:first])
	if err != nil {
		return nil, export.NewSinkFailureError("spreadsheet", "create", err)
	}
	report(progress, first, total, fmt.Sprintf("Added %d of %d rows", first, total))

	for i := first; i < total; i += s.batchSize {
		end := min(i+s.batchSize, total)
		if err := s.sink.AppendRows(ctx, sheet.ID, rows[i:end]); err != nil {
			return nil, export.NewSinkFailureError("spreadsheet", "append", err)
		}
		report(progress, end, total, fmt.Sprintf("Added %d of %d rows", end, total))
	}

	report(progress, total, total, "Spreadsheet created")
	return &Artifact{
		Ref: &export.ArtifactRef{
			Location: sheet.URL,
			Name:     sheet.Title,
			MIMEType: export.FormatSpreadsheet.MIMEType(),
		},
		Name:     sheet.Title,
		MIMEType: export.FormatSpreadsheet.MIMEType(),
	}, nil
}
