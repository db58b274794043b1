package email

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	"text/template"
	"time"
)

// Details describes the export an email announces.
type Details struct {
	Format      string
	ItemCount   int
	GeneratedAt time.Time

	// SizeBytes is the artifact size. Zero means unknown.
	SizeBytes int64
}

// SizeKB returns the size hint in kilobytes with one decimal, or "" when
// the size is unknown.
func (d Details) SizeKB() string {
	if d.SizeBytes <= 0 {
		return ""
	}
	return fmt.Sprintf("%.1f", float64(d.SizeBytes)/1024)
}

// FormatTag returns the upper-cased format.
func (d Details) FormatTag() string {
	return strings.ToUpper(d.Format)
}

// Generated returns the local generation time.
func (d Details) Generated() string {
	return d.GeneratedAt.Local().Format("1/2/2006, 3:04:05 PM")
}

// Subject returns the subject line for an export email.
func Subject(format string) string {
	return fmt.Sprintf("QR Scanner Export - %s", strings.ToUpper(format))
}

var plainTemplate = template.Must(template.New("plain").Parse(`Hello,

Your QR Scanner export is ready!

Export Details:
• Format: {{.FormatTag}}
• Items: {{.ItemCount}}
• Generated: {{.Generated}}
• File Size: {{with .SizeKB}}{{.}}{{else}}N/A{{end}} KB

This export was generated using the QR Scanner app.

Best regards,
QR Scanner Team`))

var htmlTemplate = htmltemplate.Must(htmltemplate.New("html").Parse(`<!DOCTYPE html>
<html>
<head>
  <style>
    body { font-family: Arial, sans-serif; color: #333; }
    .header { color: #007AFF; font-size: 18px; font-weight: bold; }
    .details { background: #f8f9fa; padding: 15px; border-radius: 8px; margin: 15px 0; }
    .detail-item { margin: 5px 0; }
    .label { font-weight: bold; color: #007AFF; }
    .footer { color: #666; font-size: 12px; margin-top: 20px; }
  </style>
</head>
<body>
  <div class="header">QR Scanner Export Ready</div>

  <p>Hello,</p>
  <p>Your QR Scanner export is ready for download.</p>

  <div class="details">
    <div class="detail-item"><span class="label">Format:</span> {{.FormatTag}}</div>
    <div class="detail-item"><span class="label">Items:</span> {{.ItemCount}}</div>
    <div class="detail-item"><span class="label">Generated:</span> {{.Generated}}</div>
{{- with .SizeKB}}
    <div class="detail-item"><span class="label">File Size:</span> {{.}} KB</div>
{{- end}}
  </div>

  <p>This export was generated using the QR Scanner app.</p>

  <div class="footer">
    Best regards,<br>
    QR Scanner Team
  </div>
</body>
</html>`))

// PlainBody renders the plain text email body.
func PlainBody(d Details) string {
	var buf bytes.Buffer
	if err := plainTemplate.Execute(&buf, d); err != nil {
		// The template only reads fields of Details.
		panic(err)
	}
	return buf.String()
}

// HTMLBody renders the HTML email body.
func HTMLBody(d Details) string {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, d); err != nil {
		panic(err)
	}
	return buf.String()
}
