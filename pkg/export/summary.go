package export

import (
	"sort"
	"time"
)

// Summary describes an item set for notification bodies and logs.
type Summary struct {
	TotalItems      int            `json:"totalItems"`
	ByType          map[string]int `json:"byType"`
	WithProductInfo int            `json:"withProductInfo"`
	FirstScan       *time.Time     `json:"firstScan,omitempty"`
	LastScan        *time.Time     `json:"lastScan,omitempty"`
	Format          Format         `json:"fileFormat,omitempty"`
}

// Summarize computes a Summary of items. Timestamps that do not parse are
// ignored for the date range.
func Summarize(items []Item, format Format) Summary {
	s := Summary{
		TotalItems: len(items),
		ByType:     make(map[string]int),
		Format:     format,
	}

	for _, item := range items {
		s.ByType[item.Type]++
		if item.Product != nil {
			s.WithProductInfo++
		}

		if item.Timestamp == "" {
			continue
		}
		t, err := ParseTimestamp(item.Timestamp)
		if err != nil {
			continue
		}
		if s.FirstScan == nil || t.Before(*s.FirstScan) {
			first := t
			s.FirstScan = &first
		}
		if s.LastScan == nil || t.After(*s.LastScan) {
			last := t
			s.LastScan = &last
		}
	}

	return s
}

// Types returns the distinct item types in the summary, sorted.
func (s Summary) Types() []string {
	types := make([]string, 0, len(s.ByType))
	for t := range s.ByType {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
