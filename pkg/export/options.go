package export

// DateFormat selects how timestamps are rendered.
type DateFormat string

const (
	// DateISO renders RFC 3339 UTC with milliseconds.
	DateISO DateFormat = "iso"

	// DateLocal renders local date and time.
	DateLocal DateFormat = "local"

	// DateOnly renders the local date.
	DateOnly DateFormat = "date-only"

	// TimeOnly renders the local time of day.
	TimeOnly DateFormat = "time-only"
)

// DefaultEmptyFieldPlaceholder is used when IncludeEmptyFields is set
// without an explicit placeholder.
const DefaultEmptyFieldPlaceholder = "N/A"

// Options controls formatting, encoding and delivery of an export.
type Options struct {
	// IncludeTimestamps adds the timestamp column/field.
	IncludeTimestamps bool `json:"includeTimestamps" yaml:"include_timestamps"`

	// IncludeProductInfo adds product columns/sub-record.
	IncludeProductInfo bool `json:"includeProductInfo" yaml:"include_product_info"`

	// IncludeMetadata adds scanned_count and location.
	IncludeMetadata bool `json:"includeMetadata" yaml:"include_metadata"`

	// DateFormat controls timestamp rendering. Empty means ISO.
	DateFormat DateFormat `json:"dateFormat,omitempty" yaml:"date_format,omitempty"`

	// CustomFileName overrides the generated artifact name.
	CustomFileName string `json:"customFileName,omitempty" yaml:"custom_file_name,omitempty"`

	// CustomHeaders overrides header derivation entirely.
	CustomHeaders []string `json:"customHeaders,omitempty" yaml:"custom_headers,omitempty"`

	// SendEmail hands the artifact to the email sink when EmailAddress is set.
	SendEmail    bool   `json:"sendEmail" yaml:"send_email"`
	EmailAddress string `json:"emailAddress,omitempty" yaml:"email_address,omitempty"`

	// AutoUpload hands the artifact to the cloud sink.
	AutoUpload    bool   `json:"autoUpload" yaml:"auto_upload"`
	UploadService string `json:"uploadService,omitempty" yaml:"upload_service,omitempty"`
	UploadFolder  string `json:"uploadFolder,omitempty" yaml:"upload_folder,omitempty"`

	// CompressFiles requests a compression summary for the artifact.
	CompressFiles bool `json:"compressFiles" yaml:"compress_files"`

	// IncludeEmptyFields replaces empty fields with EmptyFieldPlaceholder
	// instead of pruning them.
	IncludeEmptyFields    bool   `json:"includeEmptyFields" yaml:"include_empty_fields"`
	EmptyFieldPlaceholder string `json:"emptyFieldPlaceholder,omitempty" yaml:"empty_field_placeholder,omitempty"`

	// ByteOrderMark prefixes tabular output with a UTF-8 BOM for
	// spreadsheet applications.
	ByteOrderMark bool `json:"byteOrderMark" yaml:"byte_order_mark"`

	// Title names document and spreadsheet artifacts.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
}

// Placeholder returns the configured empty field placeholder.
func (o Options) Placeholder() string {
	if o.EmptyFieldPlaceholder == "" {
		return DefaultEmptyFieldPlaceholder
	}
	return o.EmptyFieldPlaceholder
}

// WantsEmail reports whether the email step should run.
func (o Options) WantsEmail() bool {
	return o.SendEmail && o.EmailAddress != ""
}

// DefaultOptions mirrors the defaults of the scanner app export screen.
func DefaultOptions() Options {
	return Options{
		IncludeTimestamps:  true,
		IncludeProductInfo: true,
		IncludeMetadata:    true,
		DateFormat:         DateISO,
	}
}
