// Package document renders printable export reports.
package document

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"mercator-hq/scanport/pkg/export/encoders"
)

// HTMLRenderer renders a print-ready HTML report: a title block, summary
// line and one table row per record.
type HTMLRenderer struct {
	// Location renders the generation time. Nil means time.Local.
	Location *time.Location
}

// NewHTMLRenderer creates an HTMLRenderer in local time.
func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{}
}

type reportData struct {
	Title     string
	Generated string
	Count     int
	Headers   []string
	Rows      [][]string
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>{{.Title}}</title>
  <style>
    @page { size: A4 landscape; margin: 12mm; }
    body { font-family: Arial, sans-serif; color: #333; font-size: 11px; }
    h1 { color: #007AFF; font-size: 20px; margin-bottom: 4px; }
    .meta { color: #666; margin-bottom: 12px; }
    table { border-collapse: collapse; width: 100%; }
    th { background: #007AFF; color: #fff; text-align: left; }
    th, td { border: 1px solid #ddd; padding: 4px 6px; vertical-align: top; }
    tr:nth-child(even) td { background: #f8f9fa; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">Generated {{.Generated}} &middot; {{.Count}} items</div>
  <table>
    <thead>
      <tr>{{range .Headers}}<th>{{.}}</th>{{end}}</tr>
    </thead>
    <tbody>
{{- range .Rows}}
      <tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{- end}}
    </tbody>
  </table>
</body>
</html>
`))

// Render implements encoders.DocumentRenderer.
func (r *HTMLRenderer) Render(ctx context.Context, doc encoders.Document) (*encoders.RenderedDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	loc := r.Location
	if loc == nil {
		loc = time.Local
	}
	generated := doc.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	var buf bytes.Buffer
	err := reportTemplate.Execute(&buf, reportData{
		Title:     doc.Title,
		Generated: generated.In(loc).Format("1/2/2006, 3:04:05 PM"),
		Count:     len(doc.Rows),
		Headers:   doc.Headers,
		Rows:      doc.Rows,
	})
	if err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}

	return &encoders.RenderedDocument{
		Content:   buf.Bytes(),
		MIMEType:  "text/html",
		Extension: ".html",
	}, nil
}
