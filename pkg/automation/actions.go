package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"mercator-hq/scanport/pkg/export"
	"mercator-hq/scanport/pkg/export/format"
	"mercator-hq/scanport/pkg/sinks/cloud"
	"mercator-hq/scanport/pkg/sinks/email"
)

// Exporter runs an export. The export orchestrator satisfies it.
type Exporter interface {
	Export(ctx context.Context, items []export.Item, f export.Format, opts export.Options, onProgress export.ProgressFunc) (*export.Result, error)
}

// executeAction dispatches one action. The returned value is the typed
// outcome recorded in ActionResult.Result.
func (e *Engine) executeAction(ctx context.Context, rule Rule, a Action, items []export.Item, now time.Time) (any, error) {
	switch a.Type {
	case ActionExportCSV:
		return e.runExport(ctx, a, export.FormatCSV, items)
	case ActionExportPDF:
		return e.runExport(ctx, a, export.FormatPDF, items)
	case ActionSendEmail:
		return e.sendEmail(ctx, rule, a, items, now)
	case ActionUploadCloud:
		return e.uploadSnapshot(ctx, a, items, now)
	case ActionWebhook:
		return e.triggerWebhook(ctx, a, items, now)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, a.Type)
}

func (e *Engine) runExport(ctx context.Context, a Action, f export.Format, items []export.Item) (*ExportOutcome, error) {
	if e.exporter == nil {
		return nil, export.NewSinkUnavailableError("export", nil)
	}

	opts := export.DefaultOptions()
	if a.Export != nil {
		opts = a.Export.Options
	}

	result, err := e.exporter.Export(ctx, items, f, opts, nil)
	if err != nil {
		return nil, err
	}
	return &ExportOutcome{
		Format:    result.Format,
		ItemCount: len(items),
		Artifact:  result.Artifact,
		ByteSize:  result.ByteSize,
	}, nil
}

func (e *Engine) sendEmail(ctx context.Context, rule Rule, a Action, items []export.Item, now time.Time) (*EmailOutcome, error) {
	if a.Email == nil || len(a.Email.Recipients) == 0 {
		return nil, &ConfigurationError{ActionType: a.Type, Field: "recipients", Message: "no email recipients configured"}
	}
	if e.mailer == nil {
		return nil, export.NewSinkUnavailableError("email", nil)
	}

	subject := a.Email.Subject
	if subject == "" {
		subject = fmt.Sprintf("QR Scanner Automation - %s", rule.Name)
	}
	body := summaryBody(rule, export.Summarize(items, ""), now)

	out := &EmailOutcome{
		Recipients: append([]string(nil), a.Email.Recipients...),
		ItemCount:  len(items),
	}
	for _, to := range a.Email.Recipients {
		receipt, err := e.mailer.Send(ctx, email.Message{
			To:      []string{to},
			Subject: subject,
			Body:    body,
		})
		if err != nil {
			return nil, export.NewSinkFailureError("email", "send", err)
		}
		if receipt != nil {
			out.MessageIDs = append(out.MessageIDs, receipt.MessageID)
		}
	}
	return out, nil
}

func summaryBody(rule Rule, s export.Summary, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Automation rule %q was triggered.\n\n", rule.Name)
	fmt.Fprintf(&b, "Items: %d\n", s.TotalItems)
	fmt.Fprintf(&b, "With product info: %d\n", s.WithProductInfo)
	for _, t := range s.Types() {
		label := t
		if label == "" {
			label = "unknown"
		}
		fmt.Fprintf(&b, "  %s: %d\n", label, s.ByType[t])
	}
	if s.FirstScan != nil && s.LastScan != nil {
		fmt.Fprintf(&b, "Scanned between %s and %s\n",
			format.RenderDate(*s.FirstScan, export.DateISO, time.UTC),
			format.RenderDate(*s.LastScan, export.DateISO, time.UTC))
	}
	fmt.Fprintf(&b, "\nGenerated at %s by QR Scanner.\n", format.RenderDate(now, export.DateISO, time.UTC))
	return b.String()
}

func (e *Engine) uploadSnapshot(ctx context.Context, a Action, items []export.Item, now time.Time) (*UploadOutcome, error) {
	if e.uploader == nil {
		return nil, export.NewSinkUnavailableError("cloud", nil)
	}

	cfg := CloudAction{}
	if a.Cloud != nil {
		cfg = *a.Cloud
	}

	content, err := json.MarshalIndent(format.Format(items, export.DefaultOptions()), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	receipt, err := e.uploader.Upload(ctx, cloud.Upload{
		Service:   cfg.Service,
		Folder:    cfg.Folder,
		Name:      export.FileNameFor(export.Options{}, export.FormatJSON, now),
		MIMEType:  export.FormatJSON.MIMEType(),
		Content:   content,
		ItemCount: len(items),
	})
	if err != nil {
		return nil, export.NewSinkFailureError("cloud", "upload", err)
	}

	out := &UploadOutcome{Service: cfg.Service, ItemCount: len(items)}
	if receipt != nil {
		out.Service = receipt.Service
		out.Location = receipt.Location
	}
	return out, nil
}

func (e *Engine) triggerWebhook(ctx context.Context, a Action, items []export.Item, now time.Time) (*WebhookOutcome, error) {
	if a.Webhook == nil || strings.TrimSpace(a.Webhook.URL) == "" {
		return nil, &ConfigurationError{ActionType: a.Type, Field: "url", Message: "webhook URL not configured"}
	}

	data := items
	if data == nil {
		data = []export.Item{}
	}
	payload := WebhookPayload{
		Data:      data,
		Timestamp: format.RenderDate(now, export.DateISO, time.UTC),
		Event:     WebhookEvent,
	}

	out, err := e.webhook.Post(ctx, a.Webhook.URL, a.Webhook.Headers, payload)
	if err != nil {
		return nil, export.NewSinkFailureError("webhook", "post", err)
	}
	return out, nil
}
