package encoders

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"mercator-hq/scanport/pkg/export"
)

// Structured encodes formatted records as pretty-printed JSON. Selected
// fields are kept even when empty.
type Structured struct {
	store storage
}

// NewStructured creates a structured encoder.
func NewStructured(persister Persister, sharer Sharer, logger *slog.Logger) *Structured {
	return &Structured{store: storage{persister: persister, sharer: sharer, logger: logger}}
}

// Encode implements Encoder.
func (s *Structured) Encode(ctx context.Context, job Job, progress export.ProgressFunc) (*Artifact, error) {
	total := len(job.Records)
	report(progress, 0, total, "Generating JSON...")

	data, err := json.MarshalIndent(job.Records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode records: %w", err)
	}

	report(progress, total, total, "Saving file...")
	return s.store.save(ctx, data, job.FileName, export.FormatJSON.MIMEType(), export.FormatJSON)
}
