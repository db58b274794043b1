package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"mercator-hq/scanport/pkg/export"
)

// DataSource supplies the scan snapshot a pass evaluates.
type DataSource interface {
	Items(ctx context.Context) ([]export.Item, error)
}

// DataSourceFunc adapts a function to DataSource.
type DataSourceFunc func(ctx context.Context) ([]export.Item, error)

// Items calls f.
func (f DataSourceFunc) Items(ctx context.Context) ([]export.Item, error) {
	return f(ctx)
}

// FileSource reads a JSON snapshot on every pass. The file holds either an
// array of items or an object with an "items" array. A missing file is an
// empty snapshot.
type FileSource struct {
	Path string
}

// Items reads and decodes the snapshot file.
func (s FileSource) Items(ctx context.Context) ([]export.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %q: %w", s.Path, err)
	}
	return DecodeItems(data)
}

// DecodeItems parses a JSON snapshot in either accepted layout.
func DecodeItems(data []byte) ([]export.Item, error) {
	var items []export.Item
	if err := json.Unmarshal(data, &items); err == nil {
		return items, nil
	}

	var wrapped struct {
		Items []export.Item `json:"items"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("invalid snapshot: %w", err)
	}
	return wrapped.Items, nil
}
