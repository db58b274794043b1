package csv

import "strings"

// specialChars are the characters that force a cell to be quoted.
const specialChars = ",\"\n\r"

// Escape quotes a cell value when it contains a comma, a double quote, a
// line feed or a carriage return. Internal quotes are doubled. Every other
// value is returned unchanged.
func Escape(value string) string {
	if !strings.ContainsAny(value, specialChars) {
		return value
	}
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

// JoinRow escapes and joins cells with commas.
func JoinRow(cells []string) string {
	var b strings.Builder
	writeRow(&b, cells)
	return b.String()
}

func writeRow(b *strings.Builder, cells []string) {
	for i, c := range cells {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(Escape(c))
	}
}
