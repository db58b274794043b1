package sheets

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"mercator-hq/scanport/pkg/export"

	"github.com/google/go-cmp/cmp"
)

func TestWorkbook_Connect(t *testing.T) {
	w := NewWorkbook(t.TempDir(), "file://", nil)

	if w.Connected() {
		t.Fatal("new workbook should be disconnected")
	}
	if err := w.Connect(""); !errors.Is(err, export.ErrAuthRequired) {
		t.Errorf("Connect(\"\") error = %v, want ErrAuthRequired", err)
	}
	if err := w.Connect("token"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !w.Connected() {
		t.Error("Connected() = false after Connect")
	}
	w.Disconnect()
	if w.Connected() {
		t.Error("Connected() = true after Disconnect")
	}
}

func TestWorkbook_RequiresCredential(t *testing.T) {
	w := NewWorkbook(t.TempDir(), "file://", nil)

	_, err := w.CreateSheet(context.Background(), "t", []string{"id"}, nil)
	if !errors.Is(err, export.ErrAuthRequired) {
		t.Errorf("CreateSheet() error = %v, want ErrAuthRequired", err)
	}
}

func TestWorkbook_CreateAndAppend(t *testing.T) {
	w := NewWorkbook(t.TempDir(), "file://", nil)
	if err := w.Connect("token"); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	headers := []string{"id", "data"}
	sheet, err := w.CreateSheet(ctx, "Scan Export", headers, [][]string{{"1", "a"}, {"2", "b"}})
	if err != nil {
		t.Fatalf("CreateSheet() error = %v", err)
	}
	if sheet.Title != "Scan Export" || sheet.ID == "" {
		t.Errorf("unexpected sheet: %+v", sheet)
	}
	if !strings.HasPrefix(sheet.URL, "file:///") || !strings.HasSuffix(sheet.URL, sheet.ID+".xlsx") {
		t.Errorf("URL = %q", sheet.URL)
	}
	if _, err := os.Stat(strings.TrimPrefix(sheet.URL, "file://")); err != nil {
		t.Errorf("workbook not on disk: %v", err)
	}

	if err := w.AppendRows(ctx, sheet.ID, [][]string{{"3", "c"}}); err != nil {
		t.Fatalf("AppendRows() error = %v", err)
	}
	if err := w.AppendRows(ctx, sheet.ID, [][]string{{"4", "d"}, {"5", "e"}}); err != nil {
		t.Fatalf("AppendRows() error = %v", err)
	}

	rows, err := w.Rows(sheet.ID)
	if err != nil {
		t.Fatalf("Rows() error = %v", err)
	}
	want := [][]string{{"id", "data"}, {"1", "a"}, {"2", "b"}, {"3", "c"}, {"4", "d"}, {"5", "e"}}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestWorkbook_AppendUnknownSheet(t *testing.T) {
	w := NewWorkbook(t.TempDir(), "file://", nil)
	if err := w.Connect("token"); err != nil {
		t.Fatal(err)
	}
	if err := w.AppendRows(context.Background(), "missing", [][]string{{"x"}}); err == nil {
		t.Error("AppendRows() to unknown sheet should fail")
	}
}
