package format

import "mercator-hq/scanport/pkg/export"

// ApplyEmptyFieldPolicy returns copies of records with empty string fields
// either replaced by the placeholder (IncludeEmptyFields) or pruned. A
// missing product price renders as the placeholder too.
// Only fields present in a record are considered. ID and Data are
// required and left untouched.
func ApplyEmptyFieldPolicy(records []Record, opts export.Options) []Record {
	out := make([]Record, len(records))
	placeholder := opts.Placeholder()

	fill := func(s string) string {
		if s == "" && opts.IncludeEmptyFields {
			return placeholder
		}
		return s
	}
	fillPtr := func(p *string) *string {
		if p == nil {
			return nil
		}
		if *p != "" {
			v := *p
			return &v
		}
		if !opts.IncludeEmptyFields {
			return nil
		}
		v := placeholder
		return &v
	}

	for i, r := range records {
		c := r
		c.Type = fill(r.Type)
		c.Timestamp = fillPtr(r.Timestamp)
		c.Location = fillPtr(r.Location)
		if r.ScannedCount != nil {
			n := *r.ScannedCount
			c.ScannedCount = &n
		}
		if r.Product != nil {
			p := *r.Product
			p.Name = fill(p.Name)
			p.Category = fill(p.Category)
			p.Brand = fill(p.Brand)
			p.UPC = fill(p.UPC)
			if p.Price == nil && opts.IncludeEmptyFields {
				p.EmptyPrice = placeholder
			}
			c.Product = &p
		}
		out[i] = c
	}
	return out
}
