package csv

import (
	"context"
	"fmt"
	"strings"

	"mercator-hq/scanport/pkg/export"
	"mercator-hq/scanport/pkg/export/format"
)

// DefaultBatchSize is the number of rows encoded per chunk.
const DefaultBatchSize = 1000

// Encoder encodes scanned items into comma-delimited text: a header row
// followed by one row per item, separated by "\n".
type Encoder struct {
	// BatchSize is the chunk size used by EncodeChunked. Values below 1
	// mean DefaultBatchSize.
	BatchSize int

	// Formatter renders records. The zero value uses the local time zone.
	Formatter format.Formatter
}

// NewEncoder creates an encoder with the given batch size.
func NewEncoder(batchSize int) *Encoder {
	return &Encoder{BatchSize: batchSize}
}

// Validate checks every item and reports all offending indices in a single
// *export.ValidationError. An empty set is valid for the encoder.
func Validate(items []export.Item) error {
	return export.CheckItems(items)
}

// Encode encodes items in one pass.
func (e *Encoder) Encode(items []export.Item, opts export.Options) (string, error) {
	if err := Validate(items); err != nil {
		return "", err
	}

	headers := format.HeadersFor(opts)
	var b strings.Builder
	writeRow(&b, headers)
	writeRecords(&b, e.records(items, opts), headers)
	return b.String(), nil
}

// EncodeChunked encodes items in batches of BatchSize, reporting progress
// after each batch. The output is byte-identical to Encode. Validation runs
// once before the first batch and headers are computed once.
func (e *Encoder) EncodeChunked(ctx context.Context, items []export.Item, opts export.Options, progress export.ProgressFunc) (string, error) {
	if err := Validate(items); err != nil {
		return "", err
	}
	return e.EncodeRecords(ctx, e.records(items, opts), opts, progress)
}

// EncodeRecords encodes records that were already validated, formatted and
// passed through the empty field policy. It batches and reports progress
// like EncodeChunked.
func (e *Encoder) EncodeRecords(ctx context.Context, records []format.Record, opts export.Options, progress export.ProgressFunc) (string, error) {
	size := e.batchSize()
	total := len(records)
	chunks := (total + size - 1) / size
	headers := format.HeadersFor(opts)

	var b strings.Builder
	writeRow(&b, headers)

	for i, chunk := 0, 1; i < total; i, chunk = i+size, chunk+1 {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		end := min(i+size, total)
		writeRecords(&b, records[i:end], headers)

		if progress != nil {
			progress(export.ProgressEvent{
				Current: end,
				Total:   total,
				Status:  fmt.Sprintf("Processing chunk %d of %d", chunk, chunks),
			})
		}
	}

	return b.String(), nil
}

func (e *Encoder) records(items []export.Item, opts export.Options) []format.Record {
	return format.ApplyEmptyFieldPolicy(e.Formatter.Format(items, opts), opts)
}

func writeRecords(b *strings.Builder, records []format.Record, headers []string) {
	for _, r := range records {
		b.WriteByte('\n')
		writeRow(b, r.Row(headers))
	}
}

func (e *Encoder) batchSize() int {
	if e.BatchSize < 1 {
		return DefaultBatchSize
	}
	return e.BatchSize
}
