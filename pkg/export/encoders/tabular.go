package encoders

import (
	"context"
	"log/slog"

	"mercator-hq/scanport/pkg/export"
	"mercator-hq/scanport/pkg/export/csv"
	"mercator-hq/scanport/pkg/export/format"
)

// Tabular encodes items as CSV and persists the text.
type Tabular struct {
	csv   *csv.Encoder
	store storage
}

// NewTabular creates a tabular encoder. persister may be nil, in which case
// Encode fails with a *export.SinkUnavailableError.
func NewTabular(enc *csv.Encoder, persister Persister, sharer Sharer, logger *slog.Logger) *Tabular {
	if enc == nil {
		enc = csv.NewEncoder(csv.DefaultBatchSize)
	}
	return &Tabular{
		csv:   enc,
		store: storage{persister: persister, sharer: sharer, logger: logger},
	}
}

// Encode implements Encoder.
func (t *Tabular) Encode(ctx context.Context, job Job, progress export.ProgressFunc) (*Artifact, error) {
	total := len(job.Records)
	report(progress, 0, total, "Generating CSV...")

	records := format.ApplyEmptyFieldPolicy(job.Records, job.Options)
	text, err := t.csv.EncodeRecords(ctx, records, job.Options, progress)
	if err != nil {
		return nil, err
	}
	if job.Options.ByteOrderMark {
		text = csv.AddBOM(text)
	}

	report(progress, total, total, "Saving file...")
	return t.store.save(ctx, []byte(text), job.FileName, export.FormatCSV.MIMEType(), export.FormatCSV)
}
