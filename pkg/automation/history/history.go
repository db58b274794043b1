// Package history records automation trigger runs.
//
// Each triggered rule produces one Entry with the outcome of every action.
// Backends are an in-memory store for tests and single-process use, and a
// SQLite store for durable history.
package history

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"mercator-hq/scanport/pkg/config"
)

// Entry is one triggered rule run.
type Entry struct {
	ID          string          `json:"id"`
	RuleID      string          `json:"ruleId"`
	RuleName    string          `json:"ruleName"`
	Trigger     string          `json:"trigger,omitempty"`
	TriggeredAt time.Time       `json:"triggeredAt"`
	ItemCount   int             `json:"itemCount"`
	Success     bool            `json:"success"`
	Actions     []ActionOutcome `json:"actions"`
}

// ActionOutcome is the recorded result of one action.
type ActionOutcome struct {
	ActionType string `json:"action"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

// Store persists trigger runs.
type Store interface {
	// Record stores an entry.
	Record(ctx context.Context, entry Entry) error

	// List returns entries newest first. An empty ruleID lists every rule;
	// a limit of zero or less returns everything.
	List(ctx context.Context, ruleID string, limit int) ([]Entry, error)

	// Prune deletes entries triggered before cutoff and returns how many
	// were removed.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases resources held by the store.
	Close() error
}

// StorageError represents an error from a history backend.
type StorageError struct {
	Backend   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("history storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

func newStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}

// Open creates the store selected by cfg.Backend.
func Open(cfg config.HistoryConfig) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		sc := DefaultSQLiteConfig()
		if cfg.SQLitePath != "" {
			sc.Path = filepath.Clean(cfg.SQLitePath)
		}
		if cfg.BusyTimeout > 0 {
			sc.BusyTimeout = cfg.BusyTimeout
		}
		return NewSQLiteStore(sc)
	}
	return nil, fmt.Errorf("unknown history backend %q", cfg.Backend)
}
