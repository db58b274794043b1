package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mercator-hq/scanport/pkg/cli"
	"mercator-hq/scanport/pkg/export"
)

var exportFlags struct {
	format       string
	output       string
	email        string
	upload       bool
	service      string
	folder       string
	fileName     string
	dateFormat   string
	title        string
	compress     bool
	noTimestamps bool
	noProduct    bool
	noMetadata   bool
	emptyFields  bool
	bom          bool
	quiet        bool
	dryRun       bool
}

var exportCmd = &cobra.Command{
	Use:   "export [flags] <snapshot.json|->",
	Short: "Export a scan snapshot",
	Long: `Export a JSON scan snapshot as CSV, JSON, an HTML document or a
spreadsheet workbook.

The snapshot is either an array of items or an object with an "items"
array. Use "-" to read it from stdin. Options default to the export
section of the configuration file.

Examples:
  # CSV with the configured defaults
  scanport export scans.json

  # JSON, mailed and uploaded
  scanport export --format json --email ops@example.com --upload scans.json

  # Date only timestamps and no product columns
  scanport export --date-format date-only --no-product scans.json

  # Validate and summarize without writing anything
  scanport export --dry-run scans.json`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	f := exportCmd.Flags()
	f.StringVarP(&exportFlags.format, "format", "f", "", "export format: csv, pdf, json, google_sheets (default from config)")
	f.StringVarP(&exportFlags.output, "output", "o", "text", "result output: text, json")
	f.StringVar(&exportFlags.email, "email", "", "mail the artifact to this address")
	f.BoolVar(&exportFlags.upload, "upload", false, "upload the artifact to cloud storage")
	f.StringVar(&exportFlags.service, "service", "", "cloud service for --upload")
	f.StringVar(&exportFlags.folder, "folder", "", "cloud folder for --upload")
	f.StringVar(&exportFlags.fileName, "file-name", "", "artifact file name")
	f.StringVar(&exportFlags.dateFormat, "date-format", "", "timestamp rendering: iso, local, date-only, time-only")
	f.StringVar(&exportFlags.title, "title", "", "document and spreadsheet title")
	f.BoolVar(&exportFlags.compress, "compress", false, "report the estimated compressed size")
	f.BoolVar(&exportFlags.noTimestamps, "no-timestamps", false, "omit the timestamp column")
	f.BoolVar(&exportFlags.noProduct, "no-product", false, "omit product columns")
	f.BoolVar(&exportFlags.noMetadata, "no-metadata", false, "omit location and scan count")
	f.BoolVar(&exportFlags.emptyFields, "include-empty", false, "keep empty fields with a placeholder")
	f.BoolVar(&exportFlags.bom, "bom", false, "prefix CSV output with a UTF-8 byte order mark")
	f.BoolVarP(&exportFlags.quiet, "quiet", "q", false, "hide the progress bar")
	f.BoolVar(&exportFlags.dryRun, "dry-run", false, "validate and summarize without exporting")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	outFormat, err := cli.ParseOutputFormat(exportFlags.output)
	if err != nil {
		return err
	}

	formatTag := exportFlags.format
	if formatTag == "" {
		formatTag = cfg.Export.DefaultFormat
	}
	format, err := export.ParseFormat(formatTag)
	if err != nil {
		return err
	}

	items, err := readItems(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	formatter := cli.NewFormatter(outFormat)

	if exportFlags.dryRun {
		if err := export.ValidateItems(items); err != nil {
			return err
		}
		return formatter.FormatTo(out, summaryOutput(export.Summarize(items, format), outFormat))
	}

	a, err := newApp(cfg, out)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	var progress export.ProgressFunc
	if !exportFlags.quiet && outFormat == cli.FormatText {
		progress = cli.NewProgressBar(cmd.ErrOrStderr()).Func()
	}

	result, err := a.orchestrator.Export(ctx, items, format, exportOptions(cmd, cfg.Export.Options), progress)
	if err != nil {
		return cli.NewCommandError("export", err)
	}

	if outFormat == cli.FormatText {
		fmt.Fprintf(out, "✓ %s\n", result)
		return nil
	}
	return formatter.FormatTo(out, result)
}

// exportOptions applies the flags the user set on top of base.
func exportOptions(cmd *cobra.Command, base export.Options) export.Options {
	opts := base
	changed := cmd.Flags().Changed

	if exportFlags.email != "" {
		opts.SendEmail = true
		opts.EmailAddress = exportFlags.email
	}
	if changed("upload") {
		opts.AutoUpload = exportFlags.upload
	}
	if exportFlags.service != "" {
		opts.UploadService = exportFlags.service
	}
	if exportFlags.folder != "" {
		opts.UploadFolder = exportFlags.folder
	}
	if exportFlags.fileName != "" {
		opts.CustomFileName = exportFlags.fileName
	}
	if exportFlags.dateFormat != "" {
		opts.DateFormat = export.DateFormat(exportFlags.dateFormat)
	}
	if exportFlags.title != "" {
		opts.Title = exportFlags.title
	}
	if changed("compress") {
		opts.CompressFiles = exportFlags.compress
	}
	if exportFlags.noTimestamps {
		opts.IncludeTimestamps = false
	}
	if exportFlags.noProduct {
		opts.IncludeProductInfo = false
	}
	if exportFlags.noMetadata {
		opts.IncludeMetadata = false
	}
	if changed("include-empty") {
		opts.IncludeEmptyFields = exportFlags.emptyFields
	}
	if changed("bom") {
		opts.ByteOrderMark = exportFlags.bom
	}
	return opts
}

// summaryOutput renders a summary as a table for text and CSV output.
func summaryOutput(s export.Summary, f cli.OutputFormat) any {
	if f == cli.FormatJSON {
		return s
	}
	t := cli.Table{Headers: []string{"field", "value"}}
	t.Append("format", string(s.Format))
	t.Append("total_items", strconv.Itoa(s.TotalItems))
	t.Append("with_product_info", strconv.Itoa(s.WithProductInfo))

	for _, typ := range s.Types() {
		t.Append("type:"+typ, strconv.Itoa(s.ByType[typ]))
	}
	return t
}
