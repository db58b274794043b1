// Package localfs persists export artifacts to a directory on the local
// filesystem.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mercator-hq/scanport/pkg/export"
)

// ErrInvalidName indicates an artifact name that would escape the base
// directory or is otherwise unusable.
var ErrInvalidName = errors.New("invalid artifact file name")

// Store writes artifacts under a base directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

// New creates a Store rooted at dir. The directory is created on first use.
func New(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger.With("component", "localfs")}
}

// Dir returns the base directory.
func (s *Store) Dir() string {
	return s.dir
}

// Persist writes content to dir/filename and returns a reference to it.
// The file is written to a temporary name first and renamed into place.
func (s *Store) Persist(ctx context.Context, content []byte, filename string) (*export.ArtifactRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkName(filename); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	path := filepath.Join(s.dir, filename)
	tmp, err := os.CreateTemp(s.dir, "."+filename+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, fmt.Errorf("failed to write %s: %w", filename, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("failed to close %s: %w", filename, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("failed to set permissions on %s: %w", filename, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("failed to move %s into place: %w", filename, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	s.logger.Debug("artifact persisted", "path", abs, "bytes", len(content))

	return &export.ArtifactRef{
		Location: abs,
		Name:     filename,
		MIMEType: mimeTypeFor(filename),
		Size:     int64(len(content)),
	}, nil
}

// List returns the artifact file names in the base directory, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list export directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func checkName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case filepath.IsAbs(name), strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q must not contain a path", ErrInvalidName, name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q must not be hidden", ErrInvalidName, name)
	}
	return nil
}

func mimeTypeFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	for _, f := range export.Formats() {
		if f.Extension() == ext {
			return f.MIMEType()
		}
	}
	switch ext {
	case ".html":
		return "text/html"
	}
	return "application/octet-stream"
}
