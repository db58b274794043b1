package export

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// timestampLayouts are the textual layouts accepted by ParseTimestamp,
// tried in order.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a raw scan timestamp. It accepts RFC 3339 with or
// without fractional seconds, zoneless ISO date-times, plain dates and unix
// epoch milliseconds.
func ParseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}

	return time.Time{}, fmt.Errorf("invalid timestamp %q", raw)
}
