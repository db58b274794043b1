package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"mercator-hq/scanport/pkg/config"
)

func newSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	cfg := DefaultSQLiteConfig()
	cfg.Path = filepath.Join(t.TempDir(), "nested", "history.db")
	s, err := NewSQLiteStore(cfg)
	if err != nil {
		t.Fatalf("NewSQLiteStore() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func backends(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": newSQLite(t),
	}
}

func sampleEntries() []Entry {
	base := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	return []Entry{
		{
			ID: "run-1", RuleID: "rule-a", RuleName: "Daily Backup", Trigger: "schedule",
			TriggeredAt: base, ItemCount: 3, Success: true,
			Actions: []ActionOutcome{{ActionType: "export_csv", Success: true}},
		},
		{
			ID: "run-2", RuleID: "rule-b", RuleName: "Webhook", Trigger: "manual",
			TriggeredAt: base.Add(time.Minute), ItemCount: 1, Success: false,
			Actions: []ActionOutcome{{ActionType: "webhook", Success: false, Error: "webhook URL not configured"}},
		},
		{
			ID: "run-3", RuleID: "rule-a", RuleName: "Daily Backup", Trigger: "schedule",
			TriggeredAt: base.Add(2 * time.Minute), ItemCount: 5, Success: true,
			Actions: []ActionOutcome{{ActionType: "export_csv", Success: true}, {ActionType: "upload_cloud", Success: true}},
		},
	}
}

func ids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestStore_RecordAndList(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, e := range sampleEntries() {
				if err := store.Record(ctx, e); err != nil {
					t.Fatalf("Record() failed: %v", err)
				}
			}

			tests := []struct {
				name   string
				ruleID string
				limit  int
				want   []string
			}{
				{"all newest first", "", 0, []string{"run-3", "run-2", "run-1"}},
				{"by rule", "rule-a", 0, []string{"run-3", "run-1"}},
				{"limited", "", 2, []string{"run-3", "run-2"}},
				{"unknown rule", "rule-z", 0, nil},
			}
			for _, tt := range tests {
				got, err := store.List(ctx, tt.ruleID, tt.limit)
				if err != nil {
					t.Fatalf("%s: List() failed: %v", tt.name, err)
				}
				if diff := cmp.Diff(tt.want, ids(got), cmpopts.EquateEmpty()); diff != "" {
					t.Errorf("%s: ids mismatch (-want +got):\n%s", tt.name, diff)
				}
			}

			got, err := store.List(ctx, "rule-b", 1)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(sampleEntries()[1], got[0]); diff != "" {
				t.Errorf("entry round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStore_Prune(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			entries := sampleEntries()
			for _, e := range entries {
				if err := store.Record(ctx, e); err != nil {
					t.Fatal(err)
				}
			}

			n, err := store.Prune(ctx, entries[2].TriggeredAt)
			if err != nil {
				t.Fatalf("Prune() failed: %v", err)
			}
			if n != 2 {
				t.Errorf("Prune() removed %d, want 2", n)
			}

			left, err := store.List(ctx, "", 0)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff([]string{"run-3"}, ids(left)); diff != "" {
				t.Errorf("remaining mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSQLiteStore_AssignsIDs(t *testing.T) {
	store := newSQLite(t)
	ctx := context.Background()

	if err := store.Record(ctx, Entry{RuleID: "r", RuleName: "n", TriggeredAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	got, err := store.List(ctx, "r", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID == "" {
		t.Errorf("expected one entry with generated id, got %+v", got)
	}
}

func TestSQLiteStore_Reopen(t *testing.T) {
	cfg := DefaultSQLiteConfig()
	cfg.Path = filepath.Join(t.TempDir(), "history.db")

	first, err := NewSQLiteStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Record(context.Background(), sampleEntries()[0]); err != nil {
		t.Fatal(err)
	}
	first.Close()

	second, err := NewSQLiteStore(cfg)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer second.Close()

	got, err := second.List(context.Background(), "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("expected persisted entry, got %d", len(got))
	}
}

func TestOpen(t *testing.T) {
	store, err := Open(config.HistoryConfig{Backend: "memory"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("expected MemoryStore, got %T", store)
	}

	store, err = Open(config.HistoryConfig{Backend: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "h.db")})
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if _, ok := store.(*SQLiteStore); !ok {
		t.Errorf("expected SQLiteStore, got %T", store)
	}

	if _, err := Open(config.HistoryConfig{Backend: "redis"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewMemoryStore().Record(ctx, Entry{ID: "x"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
