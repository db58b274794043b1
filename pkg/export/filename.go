package export

import (
	"strings"
	"time"
)

// FileNameOptions controls GenerateFileName.
type FileNameOptions struct {
	// IncludeTime appends _HH-MM-SS after the date.
	IncludeTime bool

	// Suffix is appended after the date (and time) when set.
	Suffix string
}

// GenerateFileName builds an artifact name of the form
// base_YYYY-MM-DD[_HH-MM-SS][_suffix].ext.
func GenerateFileName(base string, format Format, at time.Time, opts FileNameOptions) string {
	var b strings.Builder
	b.WriteString(base)
	b.WriteByte('_')
	b.WriteString(at.Format("2006-01-02"))

	if opts.IncludeTime {
		b.WriteByte('_')
		b.WriteString(at.Format("15-04-05"))
	}

	if opts.Suffix != "" {
		b.WriteByte('_')
		b.WriteString(opts.Suffix)
	}

	b.WriteString(format.Extension())
	return b.String()
}

// FileNameFor returns the artifact name for an export: the custom file name
// (with the format's extension added when missing) or a generated
// scan_export name stamped with at.
func FileNameFor(opts Options, format Format, at time.Time) string {
	if name := strings.TrimSpace(opts.CustomFileName); name != "" {
		if !strings.HasSuffix(strings.ToLower(name), format.Extension()) {
			name += format.Extension()
		}
		return name
	}
	return GenerateFileName("scan_export", format, at, FileNameOptions{IncludeTime: true})
}
