package encoders

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"mercator-hq/scanport/pkg/export"
)

// storage persists text artifacts and offers them for sharing.
type storage struct {
	persister Persister
	sharer    Sharer
	logger    *slog.Logger
}

func (s storage) save(ctx context.Context, content []byte, name, mimeType string, f export.Format) (*Artifact, error) {
	if s.persister == nil {
		return nil, export.NewSinkUnavailableError("persist", nil)
	}

	ref, err := s.persister.Persist(ctx, content, name)
	if err != nil {
		return nil, export.NewSinkFailureError("persist", "write", err)
	}

	if ref != nil && s.sharer != nil {
		title := fmt.Sprintf("Share %s Export", strings.ToUpper(string(f)))
		if err := s.sharer.Share(ctx, ref, mimeType, title); err != nil {
			s.log().Warn("failed to share export",
				"format", f,
				"file", name,
				"error", err,
			)
		}
	}

	return &Artifact{
		Ref:      ref,
		Name:     name,
		MIMEType: mimeType,
		Content:  content,
	}, nil
}

func (s storage) log() *slog.Logger {
	if s.logger == nil {
		return slog.Default()
	}
	return s.logger
}
