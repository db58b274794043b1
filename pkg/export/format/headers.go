package format

import "mercator-hq/scanport/pkg/export"

// Tabular column keys.
const (
	ColumnID              = "id"
	ColumnType            = "type"
	ColumnData            = "data"
	ColumnTimestamp       = "timestamp"
	ColumnProductName     = "product_name"
	ColumnProductPrice    = "product_price"
	ColumnProductCategory = "product_category"
	ColumnProductBrand    = "product_brand"
	ColumnScannedCount    = "scanned_count"
	ColumnLocation        = "location"
)

// DeriveHeaders returns the ordered column set selected by opts.
func DeriveHeaders(opts export.Options) []string {
	headers := []string{ColumnID, ColumnType, ColumnData}

	if opts.IncludeTimestamps {
		headers = append(headers, ColumnTimestamp)
	}

	if opts.IncludeProductInfo {
		headers = append(headers,
			ColumnProductName,
			ColumnProductPrice,
			ColumnProductCategory,
			ColumnProductBrand,
		)
	}

	if opts.IncludeMetadata {
		headers = append(headers, ColumnScannedCount, ColumnLocation)
	}

	return headers
}

// HeadersFor returns opts.CustomHeaders when set, otherwise DeriveHeaders.
// The result is always a fresh slice.
func HeadersFor(opts export.Options) []string {
	if len(opts.CustomHeaders) > 0 {
		return append([]string(nil), opts.CustomHeaders...)
	}
	return DeriveHeaders(opts)
}
