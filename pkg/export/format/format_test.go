package format

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"mercator-hq/scanport/pkg/export"
)

func price(v float64) *float64 { return &v }

func sampleItems() []export.Item {
	return []export.Item{
		{
			ID:           "1",
			Type:         "code-scan",
			Data:         "012345678905",
			Timestamp:    "2025-01-15T10:30:00Z",
			Location:     "Aisle 4",
			ScannedCount: 3,
			Product: &export.Product{
				Name:      "Oat Milk",
				Price:     price(3.5),
				Category:  "Dairy",
				Brand:     "Oatly",
				UPC:       "012345678905",
				Nutrition: map[string]any{"kcal": 120},
			},
		},
		{
			ID:   "2",
			Type: "text-scan",
			Data: "hello",
		},
	}
}

func TestDeriveHeaders(t *testing.T) {
	tests := []struct {
		name string
		opts export.Options
		want []string
	}{
		{
			name: "base only",
			opts: export.Options{},
			want: []string{"id", "type", "data"},
		},
		{
			name: "timestamps",
			opts: export.Options{IncludeTimestamps: true},
			want: []string{"id", "type", "data", "timestamp"},
		},
		{
			name: "product info",
			opts: export.Options{IncludeProductInfo: true},
			want: []string{"id", "type", "data", "product_name", "product_price", "product_category", "product_brand"},
		},
		{
			name: "everything",
			opts: export.DefaultOptions(),
			want: []string{"id", "type", "data", "timestamp", "product_name", "product_price", "product_category", "product_brand", "scanned_count", "location"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := DeriveHeaders(tt.opts)
			second := DeriveHeaders(tt.opts)
			if diff := cmp.Diff(tt.want, first); diff != "" {
				t.Errorf("DeriveHeaders() mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(first, second); diff != "" {
				t.Errorf("DeriveHeaders() not deterministic:\n%s", diff)
			}
		})
	}
}

func TestHeadersFor_Custom(t *testing.T) {
	custom := []string{"data", "id"}
	opts := export.Options{IncludeTimestamps: true, CustomHeaders: custom}

	got := HeadersFor(opts)
	if diff := cmp.Diff(custom, got); diff != "" {
		t.Errorf("HeadersFor() mismatch (-want +got):\n%s", diff)
	}

	got[0] = "mutated"
	if opts.CustomHeaders[0] != "data" {
		t.Error("HeadersFor() aliases CustomHeaders")
	}
}

func TestFormat_FieldSelection(t *testing.T) {
	items := sampleItems()

	records := Format(items, export.Options{})
	r := records[0]
	if r.Timestamp != nil || r.ScannedCount != nil || r.Location != nil || r.Product != nil {
		t.Errorf("unexpected optional sections: %+v", r)
	}
	if r.ID != "1" || r.Type != "code-scan" || r.Data != "012345678905" {
		t.Errorf("base fields = %+v", r)
	}

	records = Format(items, export.DefaultOptions())
	r = records[0]
	if r.Timestamp == nil || *r.Timestamp != "2025-01-15T10:30:00.000Z" {
		t.Errorf("Timestamp = %v", r.Timestamp)
	}
	if r.ScannedCount == nil || *r.ScannedCount != 3 {
		t.Errorf("ScannedCount = %v", r.ScannedCount)
	}
	if r.Product == nil || r.Product.Name != "Oat Milk" || r.Product.Nutrition["kcal"] != 120 {
		t.Errorf("Product = %+v", r.Product)
	}

	second := records[1]
	if second.Product != nil {
		t.Error("item without product should have no product section")
	}
	if second.ScannedCount == nil || *second.ScannedCount != 1 {
		t.Errorf("default ScannedCount = %v", second.ScannedCount)
	}
	if second.Timestamp == nil || *second.Timestamp != "" {
		t.Errorf("missing timestamp should render empty, got %v", second.Timestamp)
	}
}

func TestFormat_DoesNotMutateInput(t *testing.T) {
	items := sampleItems()
	records := Format(items, export.DefaultOptions())

	records[0].Product.Nutrition["kcal"] = 0
	*records[0].Product.Price = 99

	if items[0].Product.Nutrition["kcal"] != 120 {
		t.Error("nutrition map aliased")
	}
	if *items[0].Product.Price != 3.5 {
		t.Error("price aliased")
	}
}

func TestRenderDate(t *testing.T) {
	ts := time.Date(2025, 1, 15, 14, 5, 9, 0, time.UTC)
	tests := []struct {
		df   export.DateFormat
		want string
	}{
		{export.DateISO, "2025-01-15T14:05:09.000Z"},
		{export.DateLocal, "1/15/2025, 2:05:09 PM"},
		{export.DateOnly, "1/15/2025"},
		{export.TimeOnly, "2:05:09 PM"},
		{"bogus", "2025-01-15T14:05:09.000Z"},
	}
	for _, tt := range tests {
		if got := RenderDate(ts, tt.df, time.UTC); got != tt.want {
			t.Errorf("RenderDate(%q) = %q, want %q", tt.df, got, tt.want)
		}
	}
}

func TestFormatter_UnparsableTimestampVerbatim(t *testing.T) {
	f := Formatter{Location: time.UTC}
	records := f.Format([]export.Item{{ID: "1", Data: "x", Timestamp: "someday"}}, export.Options{IncludeTimestamps: true})
	if got := *records[0].Timestamp; got != "someday" {
		t.Errorf("Timestamp = %q, want verbatim", got)
	}
}

func TestRecordValue(t *testing.T) {
	records := Format(sampleItems(), export.DefaultOptions())
	r := records[0]

	tests := map[string]string{
		"id":               "1",
		"type":             "code-scan",
		"product_name":     "Oat Milk",
		"product_price":    "3.50",
		"product_category": "Dairy",
		"product_brand":    "Oatly",
		"scanned_count":    "3",
		"location":         "Aisle 4",
		"unknown_column":   "",
	}
	for header, want := range tests {
		if got := r.Value(header); got != want {
			t.Errorf("Value(%q) = %q, want %q", header, got, want)
		}
	}

	bare := Format(sampleItems(), export.Options{})[1]
	if got := bare.Value("scanned_count"); got != "1" {
		t.Errorf("scanned_count default = %q, want 1", got)
	}
	if got := bare.Value("product_price"); got != "" {
		t.Errorf("product_price without product = %q", got)
	}
}

func TestApplyEmptyFieldPolicy(t *testing.T) {
	items := []export.Item{{
		ID:      "1",
		Data:    "x",
		Product: &export.Product{Name: "Tea"},
	}}
	opts := export.DefaultOptions()
	records := Format(items, opts)

	t.Run("prune", func(t *testing.T) {
		out := ApplyEmptyFieldPolicy(records, opts)
		r := out[0]
		if r.Timestamp != nil || r.Location != nil {
			t.Errorf("empty fields not pruned: %+v", r)
		}
		data, err := json.Marshal(r)
		if err != nil {
			t.Fatal(err)
		}
		want := `{"id":"1","data":"x","scannedCount":1,"product":{"name":"Tea","price":null}}`
		if string(data) != want {
			t.Errorf("json = %s, want %s", data, want)
		}
	})

	t.Run("placeholder", func(t *testing.T) {
		opts := opts
		opts.IncludeEmptyFields = true
		opts.EmptyFieldPlaceholder = "-"
		out := ApplyEmptyFieldPolicy(records, opts)
		r := out[0]
		if r.Type != "-" || *r.Timestamp != "-" || *r.Location != "-" {
			t.Errorf("top level not filled: %+v", r)
		}
		if r.Product.Name != "Tea" || r.Product.Brand != "-" || r.Product.UPC != "-" {
			t.Errorf("product not filled: %+v", r.Product)
		}
		if got := r.Value(ColumnProductPrice); got != "-" {
			t.Errorf("product_price = %q, want placeholder", got)
		}
	})

	t.Run("default placeholder", func(t *testing.T) {
		opts := export.Options{IncludeEmptyFields: true}
		out := ApplyEmptyFieldPolicy(Format(items, opts), opts)
		if out[0].Type != export.DefaultEmptyFieldPlaceholder {
			t.Errorf("Type = %q", out[0].Type)
		}
		if out[0].Timestamp != nil {
			t.Error("unselected timestamp should stay absent")
		}
	})

	if records[0].Timestamp == nil {
		t.Error("input records mutated")
	}
}
