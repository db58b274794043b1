package history

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore keeps entries in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Record implements Store.
func (s *MemoryStore) Record(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, cloneEntry(entry))
	return nil
}

// List implements Store.
func (s *MemoryStore) List(ctx context.Context, ruleID string, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if ruleID != "" && e.RuleID != ruleID {
			continue
		}
		out = append(out, cloneEntry(e))
	}
	slices.SortStableFunc(out, func(a, b Entry) int {
		return b.TriggeredAt.Compare(a.TriggeredAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Prune implements Store.
func (s *MemoryStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.entries)
	s.entries = slices.DeleteFunc(s.entries, func(e Entry) bool {
		return e.TriggeredAt.Before(cutoff)
	})
	return int64(before - len(s.entries)), nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}

func cloneEntry(e Entry) Entry {
	out := e
	out.Actions = slices.Clone(e.Actions)
	return out
}
