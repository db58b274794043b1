// Package orchestrator runs a complete export: validation, formatting,
// encoding, and optional email, upload and compression steps, with one
// progress stream per call.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/scanport/pkg/export"
	"mercator-hq/scanport/pkg/export/csv"
	"mercator-hq/scanport/pkg/export/encoders"
	"mercator-hq/scanport/pkg/export/format"
	"mercator-hq/scanport/pkg/sinks/cloud"
	"mercator-hq/scanport/pkg/sinks/email"
	"mercator-hq/scanport/pkg/telemetry/metrics"
	"mercator-hq/scanport/pkg/telemetry/tracing"
)

// Phase names used in errors, logs and metrics.
const (
	PhaseValidate = "validate"
	PhaseFormat   = "format"
	PhaseDispatch = "dispatch"
	PhaseEncode   = "encode"
	PhaseEmail    = "email"
	PhaseUpload   = "upload"
)

// Progress status texts.
const (
	StatusFormatting = "Formatting data..."
	StatusEmailing   = "Sending email..."
	StatusUploading  = "Uploading to cloud..."
	StatusCompleted  = "Export completed!"
)

// Status is a snapshot of the orchestrator's progress state.
type Status struct {
	// Exporting is true while an export is running.
	Exporting bool

	// Format is the format of the running or last finished export.
	Format export.Format

	// StartedAt is when the running or last finished export began.
	StartedAt time.Time

	// Progress is the last progress event. It is nil once the orchestrator
	// is quiescent.
	Progress *export.ProgressEvent
}

// Orchestrator runs exports. It allows one export at a time.
type Orchestrator struct {
	cfg Config

	persister encoders.Persister
	sharer    encoders.Sharer
	renderer  encoders.DocumentRenderer
	sheets    encoders.SpreadsheetSink
	mailer    email.Sender
	uploader  cloud.Uploader

	logger  *slog.Logger
	metrics *metrics.Collector
	tracer  *tracing.Tracer
	now     func() time.Time

	mu        sync.Mutex
	exporting bool
	gen       uint64
	format    export.Format
	startedAt time.Time
	last      *export.ProgressEvent
	timer     *time.Timer
}

// New creates an Orchestrator. Sinks not supplied through options are
// unavailable, and exports needing them fail with a
// *export.SinkUnavailableError.
func New(cfg Config, opts ...Option) *Orchestrator {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = csv.DefaultBatchSize
	}
	if cfg.CompressionRatio <= 0 {
		cfg.CompressionRatio = DefaultConfig().CompressionRatio
	}

	o := &Orchestrator{
		cfg:    cfg,
		logger: slog.Default().With("component", "orchestrator"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Export validates items, encodes them in format f and runs the optional
// delivery steps selected by opts. onProgress receives an ordered stream
// ending in exactly one terminal event. The returned error wraps the
// failing phase's cause in a *export.ExportError.
func (o *Orchestrator) Export(ctx context.Context, items []export.Item, f export.Format, opts export.Options, onProgress export.ProgressFunc) (*export.Result, error) {
	if !o.begin(f) {
		export.NewProgressEmitter(onProgress).Fail(export.ErrExportInProgress)
		return nil, export.ErrExportInProgress
	}
	defer o.finish()

	start := o.now()
	emitter := export.NewProgressEmitter(func(e export.ProgressEvent) {
		o.observe(e)
		if onProgress != nil {
			onProgress(e)
		}
	})

	ctx, span := o.tracer.Start(ctx, tracing.SpanExport)
	tracing.SetExportAttributes(span, string(f), len(items))

	result, phase, err := o.run(ctx, items, f, opts, emitter)
	elapsed := o.now().Sub(start)

	if err != nil {
		emitter.Fail(err)
		o.metrics.RecordExport(string(f), metrics.StatusError, elapsed, len(items), 0)
		o.metrics.RecordExportFailure(string(f), phase)
		o.logger.ErrorContext(ctx, "export failed",
			"format", f,
			"phase", phase,
			"item_count", len(items),
			"trace_id", tracing.TraceID(ctx),
			"error", err,
		)
		span.SetAttributes(tracing.AttrExportPhase.String(phase))
		tracing.End(span, err)
		return nil, export.NewExportError(f, phase, len(items), err)
	}

	o.metrics.RecordExport(string(f), metrics.StatusSuccess, elapsed, len(items), result.ByteSize)
	o.logger.InfoContext(ctx, "export completed",
		"format", f,
		"item_count", len(items),
		"bytes", result.ByteSize,
		"artifact", result.Artifact.String(),
		"duration_ms", elapsed.Milliseconds(),
	)
	span.SetAttributes(
		tracing.AttrExportBytes.Int64(result.ByteSize),
		tracing.AttrExportArtifact.String(result.Artifact.String()),
	)
	tracing.End(span, nil)
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, items []export.Item, f export.Format, opts export.Options, emitter *export.ProgressEmitter) (*export.Result, string, error) {
	total := len(items)

	if err := export.ValidateItems(items); err != nil {
		return nil, PhaseValidate, err
	}

	emitter.Report(0, total, StatusFormatting)
	formatter := format.Formatter{Location: o.cfg.Location}
	records := formatter.Format(items, opts)

	enc, err := o.encoderFor(f)
	if err != nil {
		return nil, PhaseDispatch, err
	}

	at := o.now()
	job := encoders.Job{
		Items:       items,
		Records:     records,
		Options:     opts,
		Format:      f,
		FileName:    export.FileNameFor(opts, f, at),
		GeneratedAt: at,
	}

	_, encSpan := o.tracer.Start(ctx, tracing.SpanExportEncode)
	artifact, err := enc.Encode(ctx, job, emitter.Func())
	tracing.End(encSpan, err)
	if err != nil {
		return nil, PhaseEncode, err
	}

	if opts.WantsEmail() {
		emitter.Report(total, total, StatusEmailing)
		if err := o.sendEmail(ctx, artifact, f, total, opts.EmailAddress, at); err != nil {
			return nil, PhaseEmail, err
		}
	}

	if opts.AutoUpload {
		emitter.Report(total, total, StatusUploading)
		if err := o.upload(ctx, artifact, opts, total); err != nil {
			return nil, PhaseUpload, err
		}
	}

	if opts.CompressFiles {
		o.compress(ctx, artifact, f)
	}

	emitter.Complete(total, StatusCompleted)

	return &export.Result{
		Artifact: artifact.Ref,
		Format:   f,
		ByteSize: artifact.Size(),
	}, "", nil
}

// encoderFor dispatches over the closed format set.
func (o *Orchestrator) encoderFor(f export.Format) (encoders.Encoder, error) {
	switch f {
	case export.FormatCSV:
		enc := csv.NewEncoder(o.cfg.BatchSize)
		enc.Formatter = format.Formatter{Location: o.cfg.Location}
		return encoders.NewTabular(enc, o.persister, o.sharer, o.logger), nil
	case export.FormatPDF:
		return encoders.NewDocument(o.renderer, o.persister, o.sharer, o.logger), nil
	case export.FormatJSON:
		return encoders.NewStructured(o.persister, o.sharer, o.logger), nil
	case export.FormatSpreadsheet:
		return encoders.NewSpreadsheet(o.sheets, o.cfg.BatchSize), nil
	}
	return nil, &export.UnsupportedFormatError{Format: string(f)}
}

func (o *Orchestrator) sendEmail(ctx context.Context, artifact *encoders.Artifact, f export.Format, items int, address string, at time.Time) error {
	if o.mailer == nil {
		return export.NewSinkUnavailableError("email", nil)
	}

	details := email.Details{
		Format:      string(f),
		ItemCount:   items,
		GeneratedAt: at,
		SizeBytes:   artifact.Size(),
	}
	msg := email.Message{
		To:      []string{address},
		Subject: email.Subject(string(f)),
		HTML:    o.cfg.HTMLEmail,
	}
	if o.cfg.HTMLEmail {
		msg.Body = email.HTMLBody(details)
	} else {
		msg.Body = email.PlainBody(details)
	}
	if len(artifact.Content) > 0 {
		msg.Attachment = &email.Attachment{
			Name:     artifact.Name,
			MIMEType: artifact.MIMEType,
			Content:  artifact.Content,
		}
	}

	start := o.now()
	receipt, err := o.mailer.Send(ctx, msg)
	if err != nil {
		o.metrics.RecordSinkCall("email", metrics.StatusError, o.now().Sub(start))
		return export.NewSinkFailureError("email", "send", err)
	}
	o.metrics.RecordSinkCall("email", metrics.StatusSuccess, o.now().Sub(start))
	if receipt != nil {
		o.logger.InfoContext(ctx, "export emailed", "recipient", address, "message_id", receipt.MessageID)
	}
	return nil
}

func (o *Orchestrator) upload(ctx context.Context, artifact *encoders.Artifact, opts export.Options, items int) error {
	if o.uploader == nil {
		return export.NewSinkUnavailableError("cloud", nil)
	}

	start := o.now()
	receipt, err := o.uploader.Upload(ctx, cloud.Upload{
		Service:   opts.UploadService,
		Folder:    opts.UploadFolder,
		Name:      artifact.Name,
		MIMEType:  artifact.MIMEType,
		Content:   artifact.Content,
		ItemCount: items,
	})
	if err != nil {
		o.metrics.RecordSinkCall("cloud", metrics.StatusError, o.now().Sub(start))
		return export.NewSinkFailureError("cloud", "upload", err)
	}
	o.metrics.RecordSinkCall("cloud", metrics.StatusSuccess, o.now().Sub(start))
	if receipt != nil {
		o.logger.InfoContext(ctx, "export uploaded", "location", receipt.Location, "upload_id", receipt.ID)
	}
	return nil
}

// compress reports the estimated compressed size. No bytes are rewritten.
func (o *Orchestrator) compress(ctx context.Context, artifact *encoders.Artifact, f export.Format) {
	original := artifact.Size()
	estimated := int64(float64(original) * o.cfg.CompressionRatio)

	o.metrics.RecordCompression(string(f), original, estimated)
	o.logger.InfoContext(ctx, "compression summary",
		"file", artifact.Name,
		"original_bytes", original,
		"compressed_bytes", estimated,
		"ratio", o.cfg.CompressionRatio,
	)
}

// Status returns a snapshot of the progress state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := Status{
		Exporting: o.exporting,
		Format:    o.format,
		StartedAt: o.startedAt,
	}
	if o.last != nil {
		e := *o.last
		s.Progress = &e
	}
	return s
}

// Busy reports whether an export is running.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.exporting
}

func (o *Orchestrator) begin(f export.Format) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.exporting {
		return false
	}
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	o.exporting = true
	o.gen++
	o.format = f
	o.startedAt = o.now()
	o.last = nil
	return true
}

func (o *Orchestrator) observe(e export.ProgressEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.last = &e
}

func (o *Orchestrator) finish() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.exporting = false
	if o.cfg.ResetDelay <= 0 {
		o.reset()
		return
	}

	gen := o.gen
	o.timer = time.AfterFunc(o.cfg.ResetDelay, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.gen == gen && !o.exporting {
			o.reset()
		}
	})
}

// reset returns to the quiescent state. Callers hold o.mu.
func (o *Orchestrator) reset() {
	o.last = nil
	o.format = ""
	o.startedAt = time.Time{}
	o.timer = nil
}

// IsBusy reports whether err is the concurrent export rejection.
func IsBusy(err error) bool {
	return errors.Is(err, export.ErrExportInProgress)
}
