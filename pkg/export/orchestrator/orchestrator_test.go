package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/scanport/pkg/config"
	"mercator-hq/scanport/pkg/export"
	"mercator-hq/scanport/pkg/export/encoders"
	"mercator-hq/scanport/pkg/sinks/cloud"
	"mercator-hq/scanport/pkg/sinks/email"
	"mercator-hq/scanport/pkg/telemetry/metrics"
	"mercator-hq/scanport/pkg/telemetry/tracing"
)

type memPersister struct {
	mu    sync.Mutex
	files map[string][]byte

	entered chan struct{}
	release chan struct{}
}

func (m *memPersister) Persist(ctx context.Context, content []byte, filename string) (*export.ArtifactRef, error) {
	if m.entered != nil {
		close(m.entered)
		<-m.release
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files == nil {
		m.files = make(map[string][]byte)
	}
	m.files[filename] = content
	return &export.ArtifactRef{Location: "mem://" + filename, Name: filename, Size: int64(len(content))}, nil
}

type fakeMailer struct {
	sent []email.Message
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, msg email.Message) (*email.Receipt, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, msg)
	return &email.Receipt{MessageID: "<1@test>", SentAt: time.Now()}, nil
}

type fakeUploader struct {
	uploads []cloud.Upload
	err     error
}

func (f *fakeUploader) Upload(ctx context.Context, up cloud.Upload) (*cloud.UploadReceipt, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.uploads = append(f.uploads, up)
	return &cloud.UploadReceipt{ID: "u-1", Location: "scanport.uploads.drive/" + up.Name}, nil
}

type fakeSheets struct{ rows [][]string }

func (f *fakeSheets) Connected() bool { return true }

func (f *fakeSheets) CreateSheet(ctx context.Context, title string, headers []string, rows [][]string) (*encoders.Sheet, error) {
	f.rows = append([][]string{headers}, rows...)
	return &encoders.Sheet{ID: "s-1", URL: "https://sheets.test/s-1", Title: title}, nil
}

func (f *fakeSheets) AppendRows(ctx context.Context, sheetID string, rows [][]string) error {
	f.rows = append(f.rows, rows...)
	return nil
}

type progressLog struct {
	mu     sync.Mutex
	events []export.ProgressEvent
}

func (p *progressLog) record(e export.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *progressLog) terminal() []export.ProgressEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []export.ProgressEvent
	for _, e := range p.events {
		if e.Terminal() {
			out = append(out, e)
		}
	}
	return out
}

func fixedClock() time.Time {
	return time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
}

func helloItems() []export.Item {
	return []export.Item{{ID: "1", Data: "hello, world", Timestamp: "2025-01-15T10:30:00Z"}}
}

func newTestOrchestrator(opts ...Option) *Orchestrator {
	cfg := DefaultConfig()
	cfg.ResetDelay = 0
	cfg.Location = time.UTC
	return New(cfg, append([]Option{WithClock(fixedClock)}, opts...)...)
}

func TestExport_CSVHelloWorld(t *testing.T) {
	store := &memPersister{}
	o := newTestOrchestrator(WithPersister(store))
	progress := &progressLog{}

	result, err := o.Export(context.Background(), helloItems(), export.FormatCSV, export.Options{IncludeTimestamps: true}, progress.record)
	if err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	if result.Format != export.FormatCSV {
		t.Errorf("Format = %q", result.Format)
	}
	if result.Artifact == nil || !strings.HasPrefix(result.Artifact.Location, "mem://scan_export_") {
		t.Fatalf("Artifact = %+v", result.Artifact)
	}

	content := store.files[result.Artifact.Name]
	want := "id,type,data,timestamp\n1,,\"hello, world\",2025-01-15T10:30:00.000Z"
	if diff := cmp.Diff(want, string(content)); diff != "" {
		t.Errorf("content mismatch (-want +got):\n%s", diff)
	}
	if result.ByteSize != int64(len(content)) {
		t.Errorf("ByteSize = %d, want %d", result.ByteSize, len(content))
	}

	terminal := progress.terminal()
	if len(terminal) != 1 || !terminal[0].Done || terminal[0].Status != StatusCompleted {
		t.Errorf("terminal events = %+v", terminal)
	}
	last := progress.events[len(progress.events)-1]
	if last.Current != 1 || last.Total != 1 {
		t.Errorf("last event = %+v", last)
	}
}

func TestExport_ProgressIsMonotonic(t *testing.T) {
	items := make([]export.Item, 25)
	for i := range items {
		items[i] = export.Item{ID: string(rune('a' + i)), Data: "x"}
	}

	cfg := DefaultConfig()
	cfg.BatchSize = 10
	cfg.ResetDelay = 0
	o := New(cfg, WithPersister(&memPersister{}))
	progress := &progressLog{}

	if _, err := o.Export(context.Background(), items, export.FormatCSV, export.Options{}, progress.record); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}

	prev := 0
	for i, e := range progress.events {
		if e.Current < prev {
			t.Fatalf("event %d went backwards: %+v", i, e)
		}
		if e.Current > e.Total {
			t.Fatalf("event %d exceeds total: %+v", i, e)
		}
		prev = e.Current
	}
}

func TestExport_Failures(t *testing.T) {
	tests := []struct {
		name   string
		items  []export.Item
		format export.Format
		opts   export.Options
		setup  []Option
		phase  string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unsupported format",
			items:  helloItems(),
			format: export.Format("xml"),
			setup:  []Option{WithPersister(&memPersister{})},
			phase:  PhaseDispatch,
			check: func(t *testing.T, err error) {
				var unsupported *export.UnsupportedFormatError
				if !errors.As(err, &unsupported) || unsupported.Format != "xml" {
					t.Errorf("expected UnsupportedFormatError for xml, got %v", err)
				}
			},
		},
		{
			name:   "empty input",
			format: export.FormatCSV,
			setup:  []Option{WithPersister(&memPersister{})},
			phase:  PhaseValidate,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, export.ErrNoData) {
					t.Errorf("expected ErrNoData, got %v", err)
				}
			},
		},
		{
			name:   "malformed item",
			items:  []export.Item{{ID: "1", Data: "ok"}, {ID: "", Data: ""}},
			format: export.FormatJSON,
			setup:  []Option{WithPersister(&memPersister{})},
			phase:  PhaseValidate,
			check: func(t *testing.T, err error) {
				var verr *export.ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				if diff := cmp.Diff([]int{1}, verr.Indices()); diff != "" {
					t.Errorf("indices mismatch (-want +got):\n%s", diff)
				}
			},
		},
		{
			name:   "missing persister",
			items:  helloItems(),
			format: export.FormatJSON,
			phase:  PhaseEncode,
			check:  expectSinkUnavailable("persist"),
		},
		{
			name:   "missing mailer",
			items:  helloItems(),
			format: export.FormatCSV,
			opts:   export.Options{SendEmail: true, EmailAddress: "ops@example.com"},
			setup:  []Option{WithPersister(&memPersister{})},
			phase:  PhaseEmail,
			check:  expectSinkUnavailable("email"),
		},
		{
			name:   "missing uploader",
			items:  helloItems(),
			format: export.FormatCSV,
			opts:   export.Options{AutoUpload: true},
			setup:  []Option{WithPersister(&memPersister{})},
			phase:  PhaseUpload,
			check:  expectSinkUnavailable("cloud"),
		},
		{
			name:   "mailer failure",
			items:  helloItems(),
			format: export.FormatCSV,
			opts:   export.Options{SendEmail: true, EmailAddress: "ops@example.com"},
			setup:  []Option{WithPersister(&memPersister{}), WithMailer(&fakeMailer{err: errors.New("relay denied")})},
			phase:  PhaseEmail,
			check: func(t *testing.T, err error) {
				var failure *export.SinkFailureError
				if !errors.As(err, &failure) || failure.Sink != "email" || failure.Operation != "send" {
					t.Errorf("expected email send failure, got %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrchestrator(tt.setup...)
			progress := &progressLog{}

			result, err := o.Export(context.Background(), tt.items, tt.format, tt.opts, progress.record)
			if err == nil {
				t.Fatalf("expected error, got result %v", result)
			}
			if result != nil {
				t.Errorf("expected nil result, got %v", result)
			}

			var exportErr *export.ExportError
			if !errors.As(err, &exportErr) {
				t.Fatalf("expected ExportError, got %T", err)
			}
			if exportErr.Phase != tt.phase {
				t.Errorf("Phase = %q, want %q", exportErr.Phase, tt.phase)
			}
			tt.check(t, err)

			terminal := progress.terminal()
			if len(terminal) != 1 || !terminal[0].Failed() {
				t.Errorf("expected one failed terminal event, got %+v", terminal)
			}
		})
	}
}

func expectSinkUnavailable(sink string) func(t *testing.T, err error) {
	return func(t *testing.T, err error) {
		var unavailable *export.SinkUnavailableError
		if !errors.As(err, &unavailable) || unavailable.Sink != sink {
			t.Errorf("expected %s SinkUnavailableError, got %v", sink, err)
		}
	}
}

func TestExport_EmailAndUpload(t *testing.T) {
	mailer := &fakeMailer{}
	uploader := &fakeUploader{}
	o := newTestOrchestrator(
		WithPersister(&memPersister{}),
		WithMailer(mailer),
		WithUploader(uploader),
	)
	progress := &progressLog{}

	opts := export.Options{
		SendEmail:     true,
		EmailAddress:  "ops@example.com",
		AutoUpload:    true,
		UploadService: "dropbox",
		UploadFolder:  "scans",
		CompressFiles: true,
	}
	if _, err := o.Export(context.Background(), helloItems(), export.FormatJSON, opts, progress.record); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}

	if len(mailer.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(mailer.sent))
	}
	msg := mailer.sent[0]
	if msg.Subject != "QR Scanner Export - JSON" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	if diff := cmp.Diff([]string{"ops@example.com"}, msg.To); diff != "" {
		t.Errorf("recipients mismatch (-want +got):\n%s", diff)
	}
	if msg.Attachment == nil || msg.Attachment.MIMEType != "application/json" {
		t.Errorf("Attachment = %+v", msg.Attachment)
	}

	if len(uploader.uploads) != 1 {
		t.Fatalf("expected 1 upload, got %d", len(uploader.uploads))
	}
	up := uploader.uploads[0]
	if up.Service != "dropbox" || up.Folder != "scans" || up.ItemCount != 1 {
		t.Errorf("upload = %+v", up)
	}

	var statuses []string
	for _, e := range progress.events {
		statuses = append(statuses, e.Status)
	}
	joined := strings.Join(statuses, "|")
	if !strings.Contains(joined, StatusEmailing+"|"+StatusUploading) {
		t.Errorf("statuses = %q", joined)
	}
}

func TestExport_EmailWithoutAddressIsSkipped(t *testing.T) {
	mailer := &fakeMailer{}
	o := newTestOrchestrator(WithPersister(&memPersister{}), WithMailer(mailer))

	if _, err := o.Export(context.Background(), helloItems(), export.FormatCSV, export.Options{SendEmail: true}, nil); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Errorf("expected no email, got %d", len(mailer.sent))
	}
}

func TestExport_Spreadsheet(t *testing.T) {
	sheets := &fakeSheets{}
	o := newTestOrchestrator(WithSpreadsheet(sheets))

	result, err := o.Export(context.Background(), helloItems(), export.FormatSpreadsheet, export.Options{}, nil)
	if err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	if result.Artifact == nil || result.Artifact.Location != "https://sheets.test/s-1" {
		t.Errorf("Artifact = %+v", result.Artifact)
	}
	if len(sheets.rows) != 2 {
		t.Errorf("expected header and one row, got %v", sheets.rows)
	}
}

func TestExport_RejectsConcurrentExport(t *testing.T) {
	store := &memPersister{entered: make(chan struct{}), release: make(chan struct{})}
	o := newTestOrchestrator(WithPersister(store))

	errCh := make(chan error, 1)
	go func() {
		_, err := o.Export(context.Background(), helloItems(), export.FormatCSV, export.Options{}, nil)
		errCh <- err
	}()

	<-store.entered
	if !o.Busy() {
		t.Error("expected Busy() while an export runs")
	}

	progress := &progressLog{}
	_, err := o.Export(context.Background(), helloItems(), export.FormatJSON, export.Options{}, progress.record)
	if !errors.Is(err, export.ErrExportInProgress) {
		t.Errorf("expected ErrExportInProgress, got %v", err)
	}
	if !IsBusy(err) {
		t.Error("IsBusy() = false")
	}
	if terminal := progress.terminal(); len(terminal) != 1 || !terminal[0].Failed() {
		t.Errorf("expected one failed event for the rejected call, got %+v", terminal)
	}

	close(store.release)
	if err := <-errCh; err != nil {
		t.Errorf("first export failed: %v", err)
	}
}

func TestStatus_ResetsAfterDelay(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ResetDelay = 20 * time.Millisecond
	o := New(cfg, WithPersister(&memPersister{}))

	if _, err := o.Export(context.Background(), helloItems(), export.FormatCSV, export.Options{}, nil); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}

	status := o.Status()
	if status.Exporting {
		t.Error("expected Exporting = false after Export returns")
	}
	if status.Progress == nil || !status.Progress.Done {
		t.Fatalf("expected finished progress to be visible, got %+v", status.Progress)
	}
	if status.Format != export.FormatCSV {
		t.Errorf("Format = %q", status.Format)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if o.Status().Progress == nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("progress state was not reset")
}

func TestExport_RecordsMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(&config.MetricsConfig{
		Enabled:   true,
		Namespace: "test",
		Subsystem: "orchestrator",
	}, registry)

	o := newTestOrchestrator(WithPersister(&memPersister{}), WithMetrics(collector))

	if _, err := o.Export(context.Background(), helloItems(), export.FormatCSV, export.Options{CompressFiles: true}, nil); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	if _, err := o.Export(context.Background(), nil, export.FormatCSV, export.Options{}, nil); err == nil {
		t.Fatal("expected empty export to fail")
	}

	count, err := testutil.GatherAndCount(registry, "test_orchestrator_exports_total")
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("expected success and error series, got %d", count)
	}

	count, err = testutil.GatherAndCount(registry, "test_orchestrator_export_failures_total")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected 1 failure series, got %d", count)
	}
}

func TestExport_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	o := newTestOrchestrator(WithPersister(&memPersister{}), WithTracer(tracing.NewWithProvider(provider)))

	if _, err := o.Export(context.Background(), helloItems(), export.FormatJSON, export.Options{}, nil); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	if diff := cmp.Diff([]string{"export.encode", "export"}, names); diff != "" {
		t.Errorf("span names mismatch (-want +got):\n%s", diff)
	}
}
