package format

import (
	"maps"
	"time"

	"mercator-hq/scanport/pkg/export"
)

// Formatter normalizes items into Records. The zero value renders
// non-ISO dates in the local time zone.
type Formatter struct {
	// Location is used for local, date-only and time-only rendering.
	Location *time.Location
}

// Format normalizes items using the local time zone.
func Format(items []export.Item, opts export.Options) []Record {
	return Formatter{}.Format(items, opts)
}

// Format normalizes items into Records. It never fails and never mutates
// its input.
func (f Formatter) Format(items []export.Item, opts export.Options) []Record {
	loc := f.Location
	if loc == nil {
		loc = time.Local
	}

	records := make([]Record, len(items))
	for i, item := range items {
		r := Record{
			ID:   item.ID,
			Type: item.Type,
			Data: item.Data,
		}

		if opts.IncludeTimestamps {
			ts := renderRaw(item.Timestamp, opts.DateFormat, loc)
			r.Timestamp = &ts
		}

		if opts.IncludeMetadata {
			count := item.Count()
			location := item.Location
			r.ScannedCount = &count
			r.Location = &location
		}

		if opts.IncludeProductInfo && item.Product != nil {
			r.Product = projectProduct(item.Product)
		}

		records[i] = r
	}
	return records
}

func projectProduct(p *export.Product) *Product {
	out := &Product{
		Name:     p.Name,
		Category: p.Category,
		Brand:    p.Brand,
		UPC:      p.UPC,
	}
	if p.Price != nil {
		price := *p.Price
		out.Price = &price
	}
	if p.Nutrition != nil {
		out.Nutrition = maps.Clone(p.Nutrition)
	}
	return out
}

// renderRaw renders a raw timestamp. Missing values render as "" and
// unparsable ones pass through verbatim.
func renderRaw(raw string, df export.DateFormat, loc *time.Location) string {
	if raw == "" {
		return ""
	}
	t, err := export.ParseTimestamp(raw)
	if err != nil {
		return raw
	}
	return RenderDate(t, df, loc)
}

// RenderDate renders t per df. Unknown formats render as ISO.
func RenderDate(t time.Time, df export.DateFormat, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	switch df {
	case export.DateLocal:
		return t.In(loc).Format("1/2/2006, 3:04:05 PM")
	case export.DateOnly:
		return t.In(loc).Format("1/2/2006")
	case export.TimeOnly:
		return t.In(loc).Format("3:04:05 PM")
	default:
		return t.UTC().Format("2006-01-02T15:04:05.000Z")
	}
}
