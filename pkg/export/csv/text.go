package csv

import (
	stdcsv "encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ByteOrderMark is the UTF-8 byte order mark.
const ByteOrderMark = "\uFEFF"

// AddBOM prefixes text with a UTF-8 byte order mark unless it already has
// one.
func AddBOM(text string) string {
	if strings.HasPrefix(text, ByteOrderMark) {
		return text
	}
	return ByteOrderMark + text
}

// StripBOM removes a leading byte order mark.
func StripBOM(text string) string {
	return strings.TrimPrefix(text, ByteOrderMark)
}

// StructureIssue reports a row whose shape differs from the header row.
// Row is 1-based with the header as row 1.
type StructureIssue struct {
	Row      int
	Columns  int
	Expected int
	Message  string
}

// String returns the issue as a sentence.
func (s StructureIssue) String() string {
	if s.Message != "" {
		return s.Message
	}
	return fmt.Sprintf("Row %d has %d columns, expected %d", s.Row, s.Columns, s.Expected)
}

// ValidateStructure checks that every row has as many columns as the
// header. Quoted cells are parsed properly. It never fails; unparsable
// content is reported as an issue.
func ValidateStructure(text string) []StructureIssue {
	if strings.TrimSpace(StripBOM(text)) == "" {
		return []StructureIssue{{Message: "CSV content is empty"}}
	}

	r := newReader(text)
	var issues []StructureIssue
	expected := -1

	for row := 1; ; row++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			issues = append(issues, StructureIssue{Row: row, Message: fmt.Sprintf("Row %d is malformed: %v", row, err)})
			break
		}
		if expected < 0 {
			expected = len(rec)
			continue
		}
		if len(rec) != expected {
			issues = append(issues, StructureIssue{Row: row, Columns: len(rec), Expected: expected})
		}
	}

	return issues
}

// ReorderColumns rewrites text so its columns follow order. Target headers
// that do not exist in text produce empty cells.
func ReorderColumns(text string, order []string) (string, error) {
	if len(order) == 0 {
		return text, nil
	}

	rows, err := newReader(text).ReadAll()
	if err != nil {
		return "", fmt.Errorf("failed to parse CSV: %w", err)
	}

	var b strings.Builder
	writeRow(&b, order)
	if len(rows) == 0 {
		return b.String(), nil
	}

	index := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	cells := make([]string, len(order))
	for _, row := range rows[1:] {
		for i, h := range order {
			cells[i] = ""
			if j, ok := index[h]; ok && j < len(row) {
				cells[i] = row[j]
			}
		}
		b.WriteByte('\n')
		writeRow(&b, cells)
	}

	return b.String(), nil
}

// Sanitize removes control characters other than tab, line feed and
// carriage return.
func Sanitize(text string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, text)
}

// FileInfo describes encoded tabular text.
type FileInfo struct {
	RowCount    int      `json:"rowCount"`
	ColumnCount int      `json:"columnCount"`
	Headers     []string `json:"headers"`
	ByteSize    int      `json:"fileSize"`
	LineCount   int      `json:"lineCount"`
}

// Inspect reports row, column, byte and line counts for text. Rows are
// counted as parsed records, so quoted line breaks do not inflate RowCount.
func Inspect(text string) FileInfo {
	info := FileInfo{
		ByteSize:  len(text),
		LineCount: strings.Count(text, "\n") + 1,
	}

	rows, err := newReader(text).ReadAll()
	if err != nil || len(rows) == 0 {
		return info
	}

	info.Headers = rows[0]
	info.ColumnCount = len(rows[0])
	info.RowCount = len(rows) - 1
	return info
}

func newReader(text string) *stdcsv.Reader {
	r := stdcsv.NewReader(strings.NewReader(StripBOM(text)))
	r.FieldsPerRecord = -1
	return r
}
