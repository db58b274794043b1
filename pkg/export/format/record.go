package format

import "strconv"

// Record is an export-ready item. Optional sections are pointers: nil means
// the section was not selected by the options (or was pruned as empty).
type Record struct {
	ID           string   `json:"id"`
	Type         string   `json:"type,omitempty"`
	Data         string   `json:"data"`
	Timestamp    *string  `json:"timestamp,omitempty"`
	ScannedCount *int     `json:"scannedCount,omitempty"`
	Location     *string  `json:"location,omitempty"`
	Product      *Product `json:"product,omitempty"`
}

// Product is the projected product sub-record.
type Product struct {
	Name      string         `json:"name,omitempty"`
	Price     *float64       `json:"price"`
	Category  string         `json:"category,omitempty"`
	Brand     string         `json:"brand,omitempty"`
	UPC       string         `json:"upc,omitempty"`
	Nutrition map[string]any `json:"nutrition,omitempty"`

	// EmptyPrice is the price cell text when Price is nil.
	EmptyPrice string `json:"-"`
}

// Value resolves a tabular header to the record's cell value. Unknown
// headers resolve to the empty string.
func (r Record) Value(header string) string {
	switch header {
	case ColumnID:
		return r.ID
	case ColumnType:
		return r.Type
	case ColumnData:
		return r.Data
	case ColumnTimestamp:
		return deref(r.Timestamp)
	case ColumnProductName:
		if r.Product != nil {
			return r.Product.Name
		}
	case ColumnProductPrice:
		if r.Product != nil {
			if r.Product.Price == nil {
				return r.Product.EmptyPrice
			}
			return FormatPrice(r.Product.Price)
		}
	case ColumnProductCategory:
		if r.Product != nil {
			return r.Product.Category
		}
	case ColumnProductBrand:
		if r.Product != nil {
			return r.Product.Brand
		}
	case ColumnScannedCount:
		if r.ScannedCount != nil && *r.ScannedCount > 0 {
			return strconv.Itoa(*r.ScannedCount)
		}
		return "1"
	case ColumnLocation:
		return deref(r.Location)
	}
	return ""
}

// Row projects the record onto headers.
func (r Record) Row(headers []string) []string {
	row := make([]string, len(headers))
	for i, h := range headers {
		row[i] = r.Value(h)
	}
	return row
}

// FormatPrice renders a price with two decimals, or "" when absent.
func FormatPrice(price *float64) string {
	if price == nil {
		return ""
	}
	return strconv.FormatFloat(*price, 'f', 2, 64)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
