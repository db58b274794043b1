package csv

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAddBOM(t *testing.T) {
	got := AddBOM("id,data")
	if !strings.HasPrefix(got, "\uFEFF") {
		t.Fatalf("missing BOM: %q", got)
	}
	if AddBOM(got) != got {
		t.Error("AddBOM is not idempotent")
	}
	if StripBOM(got) != "id,data" {
		t.Error("StripBOM did not restore text")
	}
}

func TestValidateStructure(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []int
	}{
		{"consistent", "a,b\n1,2\n3,4", nil},
		{"quoted comma", "a,b\n\"1,5\",2", nil},
		{"quoted newline", "a,b\n\"x\ny\",2\n3,4", nil},
		{"short and long rows", "a,b,c\n1,2,3\n1,2\n1,2,3,4", []int{3, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rows []int
			for _, issue := range ValidateStructure(tt.text) {
				rows = append(rows, issue.Row)
			}
			if diff := cmp.Diff(tt.want, rows); diff != "" {
				t.Errorf("rows mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValidateStructure_Messages(t *testing.T) {
	issues := ValidateStructure("a,b\n1")
	if len(issues) != 1 || issues[0].String() != "Row 2 has 1 columns, expected 2" {
		t.Errorf("issues = %v", issues)
	}

	empty := ValidateStructure("")
	if len(empty) != 1 || empty[0].String() != "CSV content is empty" {
		t.Errorf("empty issues = %v", empty)
	}

	bad := ValidateStructure("a,b\n\"unterminated,2")
	if len(bad) != 1 || bad[0].Message == "" {
		t.Errorf("malformed issues = %v", bad)
	}
}

func TestReorderColumns(t *testing.T) {
	text := "id,type,data\n1,code-scan,\"hello, world\"\n2,text-scan,plain"

	got, err := ReorderColumns(text, []string{"data", "id", "missing"})
	if err != nil {
		t.Fatal(err)
	}
	want := "data,id,missing\n\"hello, world\",1,\nplain,2,"
	if got != want {
		t.Errorf("ReorderColumns() = %q, want %q", got, want)
	}

	same, err := ReorderColumns(text, nil)
	if err != nil || same != text {
		t.Errorf("empty order should return input, got %q, %v", same, err)
	}
}

func TestSanitize(t *testing.T) {
	in := "a\x00b\x07c\td\ne\rf\x1bg\x7fh"
	if got := Sanitize(in); got != "abc\td\ne\rfgh" {
		t.Errorf("Sanitize() = %q", got)
	}
}

func TestInspect(t *testing.T) {
	info := Inspect("id,data\n1,\"multi\nline\"\n2,x")

	want := FileInfo{
		RowCount:    2,
		ColumnCount: 2,
		Headers:     []string{"id", "data"},
		ByteSize:    len("id,data\n1,\"multi\nline\"\n2,x"),
		LineCount:   4,
	}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Errorf("Inspect() mismatch (-want +got):\n%s", diff)
	}
}
