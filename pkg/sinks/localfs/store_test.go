package localfs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestStore_Persist(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	store := New(dir, nil)

	ref, err := store.Persist(context.Background(), []byte("id,data\n1,x"), "scan_export.csv")
	if err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "scan_export.csv"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "id,data\n1,x" {
		t.Errorf("content = %q", got)
	}
	if ref.Name != "scan_export.csv" || ref.MIMEType != "text/csv" || ref.Size != 11 {
		t.Errorf("unexpected ref: %+v", ref)
	}
	if !filepath.IsAbs(ref.Location) {
		t.Errorf("Location %q is not absolute", ref.Location)
	}
}

func TestStore_PersistOverwrites(t *testing.T) {
	store := New(t.TempDir(), nil)
	ctx := context.Background()

	if _, err := store.Persist(ctx, []byte("old"), "a.json"); err != nil {
		t.Fatal(err)
	}
	ref, err := store.Persist(ctx, []byte("new"), "a.json")
	if err != nil {
		t.Fatal(err)
	}
	got, _ := os.ReadFile(ref.Location)
	if string(got) != "new" {
		t.Errorf("content = %q, want new", got)
	}
}

func TestStore_RejectsUnsafeNames(t *testing.T) {
	store := New(t.TempDir(), nil)

	for _, name := range []string{"", ".", "..", "../escape.csv", "sub/dir.csv", "/abs.csv", `win\path.csv`, ".hidden"} {
		t.Run(name, func(t *testing.T) {
			_, err := store.Persist(context.Background(), []byte("x"), name)
			if !errors.Is(err, ErrInvalidName) {
				t.Errorf("Persist(%q) error = %v, want ErrInvalidName", name, err)
			}
		})
	}
}

func TestStore_CancelledContext(t *testing.T) {
	store := New(t.TempDir(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.Persist(ctx, []byte("x"), "a.csv"); !errors.Is(err, context.Canceled) {
		t.Errorf("Persist() error = %v, want context.Canceled", err)
	}
}

func TestStore_List(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, nil)
	ctx := context.Background()

	for _, name := range []string{"b.json", "a.csv", "report.html"} {
		if _, err := store.Persist(ctx, []byte("x"), name); err != nil {
			t.Fatal(err)
		}
	}

	names, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if diff := cmp.Diff([]string{"a.csv", "b.json", "report.html"}, names); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}

	empty, err := New(filepath.Join(dir, "missing"), nil).List()
	if err != nil || len(empty) != 0 {
		t.Errorf("List() on missing dir = %v, %v", empty, err)
	}
}

func TestMimeTypeFor(t *testing.T) {
	tests := map[string]string{
		"a.csv":  "text/csv",
		"a.JSON": "application/json",
		"a.pdf":  "application/pdf",
		"a.xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"a.html": "text/html",
		"a.bin":  "application/octet-stream",
	}
	for name, want := range tests {
		if got := mimeTypeFor(name); got != want {
			t.Errorf("mimeTypeFor(%q) = %q, want %q", name, got, want)
		}
	}
}
