package automation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"mercator-hq/scanport/pkg/automation/history"
	"mercator-hq/scanport/pkg/config"
	"mercator-hq/scanport/pkg/export"
	"mercator-hq/scanport/pkg/resilience"
	"mercator-hq/scanport/pkg/sinks/cloud"
	"mercator-hq/scanport/pkg/sinks/email"
	"mercator-hq/scanport/pkg/telemetry/metrics"
)

var testNow = time.Date(2025, 1, 15, 2, 0, 0, 0, time.UTC)

func testClock() time.Time { return testNow }

type fakeExporter struct {
	mu      sync.Mutex
	calls   []export.Format
	options []export.Options
	err     error
}

func (f *fakeExporter) Export(ctx context.Context, items []export.Item, format export.Format, opts export.Options, onProgress export.ProgressFunc) (*export.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, format)
	f.options = append(f.options, opts)
	if f.err != nil {
		return nil, f.err
	}
	return &export.Result{
		Format:   format,
		Artifact: &export.ArtifactRef{Location: "mem://export" + format.Extension()},
		ByteSize: 42,
	}, nil
}

type fakeMailer struct {
	sent []email.Message
}

func (f *fakeMailer) Send(ctx context.Context, msg email.Message) (*email.Receipt, error) {
	f.sent = append(f.sent, msg)
	return &email.Receipt{MessageID: "<m@test>"}, nil
}

type fakeUploader struct {
	uploads []cloud.Upload
}

func (f *fakeUploader) Upload(ctx context.Context, up cloud.Upload) (*cloud.UploadReceipt, error) {
	f.uploads = append(f.uploads, up)
	return &cloud.UploadReceipt{Service: up.Service, Location: "scanport.uploads/" + up.Name}, nil
}

func countRule(name string, threshold int, actions ...Action) Rule {
	return Rule{
		Name:       name,
		Enabled:    true,
		Conditions: []Condition{{Type: ConditionDataCount, Operator: OpGreaterThan, Value: NewValue(threshold)}},
		Actions:    actions,
	}
}

func mustAdd(t *testing.T, e *Engine, r Rule, opts ...AddOption) Rule {
	t.Helper()
	stored, err := e.AddRule(r, opts...)
	if err != nil {
		t.Fatalf("AddRule() failed: %v", err)
	}
	return stored
}

func names(rules []Rule) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.Name
	}
	return out
}

func TestEngine_AddRule(t *testing.T) {
	e := New(WithClock(testClock))

	stored := mustAdd(t, e, countRule("big", 10))
	if !strings.HasPrefix(stored.ID, "rule-") {
		t.Errorf("ID = %q, want rule- prefix", stored.ID)
	}
	if !stored.CreatedAt.Equal(testNow) {
		t.Errorf("CreatedAt = %v", stored.CreatedAt)
	}

	if _, err := e.AddRule(Rule{ID: stored.ID, Name: "dup"}); err == nil {
		t.Error("expected duplicate id to fail")
	}

	var ruleErr *RuleError
	if _, err := e.AddRule(Rule{Actions: []Action{{Type: "fax"}}}); !errors.As(err, &ruleErr) {
		t.Errorf("expected RuleError, got %v", err)
	} else if len(ruleErr.Errors) != 2 {
		t.Errorf("expected 2 problems, got %v", ruleErr.Errors)
	}

	if got := len(e.Rules()); got != 1 {
		t.Errorf("expected 1 rule, got %d", got)
	}
}

func TestEngine_AddRuleEnabledByDefault(t *testing.T) {
	e := New()

	stored := mustAdd(t, e, Rule{Name: "zero conditions"})
	if !stored.Enabled {
		t.Error("rule added without AddDisabled should be enabled")
	}
	off := mustAdd(t, e, Rule{Name: "off", Enabled: true}, AddDisabled())
	if off.Enabled {
		t.Error("AddDisabled rule should be disabled")
	}

	triggered := e.EvaluateRules(context.Background(), nil, EvalContext{})
	if diff := cmp.Diff([]string{"zero conditions"}, names(triggered)); diff != "" {
		t.Errorf("triggered mismatch (-want +got):\n%s", diff)
	}
}

func TestEngine_RemoveAndToggle(t *testing.T) {
	e := New()
	r := mustAdd(t, e, countRule("big", 10))

	if err := e.SetEnabled(r.ID, false); err != nil {
		t.Fatal(err)
	}
	if got, _ := e.Rule(r.ID); got.Enabled {
		t.Error("expected rule to be disabled")
	}

	if err := e.RemoveRule(r.ID); err != nil {
		t.Fatal(err)
	}
	if err := e.RemoveRule(r.ID); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("expected ErrRuleNotFound, got %v", err)
	}
	if err := e.SetEnabled("missing", true); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("expected ErrRuleNotFound, got %v", err)
	}
}

func TestEngine_RulesAreCopies(t *testing.T) {
	e := New()
	r := mustAdd(t, e, countRule("big", 10, Action{Type: ActionSendEmail, Email: &EmailAction{Recipients: []string{"a@example.com"}}}))

	rules := e.Rules()
	rules[0].Name = "changed"
	rules[0].Actions[0].Email.Recipients[0] = "b@example.com"

	got, _ := e.Rule(r.ID)
	if got.Name != "big" || got.Actions[0].Email.Recipients[0] != "a@example.com" {
		t.Errorf("stored rule was mutated: %+v", got)
	}
}

func TestEngine_EvaluateRules(t *testing.T) {
	e := New(WithClock(testClock))

	mustAdd(t, e, countRule("over 100", 100))
	mustAdd(t, e, Rule{Name: "always", Enabled: true})
	disabled := mustAdd(t, e, Rule{Name: "disabled"}, AddDisabled())
	mustAdd(t, e, Rule{
		Name:    "broken then never",
		Enabled: true,
		Conditions: []Condition{
			{Type: "weather", Operator: "sunny"},
		},
	})
	mustAdd(t, e, Rule{
		Name:    "and semantics",
		Enabled: true,
		Conditions: []Condition{
			{Type: ConditionDataCount, Operator: OpGreaterThan, Value: NewValue(0)},
			{Type: ConditionDataCount, Operator: OpLessThan, Value: NewValue(0)},
		},
	})

	tests := []struct {
		n    int
		want []string
	}{
		{100, []string{"always"}},
		{101, []string{"over 100", "always"}},
	}

	for _, tt := range tests {
		triggered := e.EvaluateRules(context.Background(), makeItems(tt.n), EvalContext{})
		if diff := cmp.Diff(tt.want, names(triggered)); diff != "" {
			t.Errorf("n=%d triggered mismatch (-want +got):\n%s", tt.n, diff)
		}
		for _, r := range triggered {
			if r.LastTriggered == nil || !r.LastTriggered.Equal(testNow) {
				t.Errorf("rule %q LastTriggered = %v", r.Name, r.LastTriggered)
			}
		}
	}

	got, _ := e.Rule(disabled.ID)
	if got.LastTriggered != nil {
		t.Error("disabled rule must never be stamped")
	}
}

func TestEngine_EvalContextClock(t *testing.T) {
	e := New(WithClock(testClock))
	mustAdd(t, e, Rule{
		Name:       "at three",
		Enabled:    true,
		Conditions: []Condition{{Type: ConditionTimeBased, Operator: OpTimeOfDay, Value: NewValue(3)}},
	})

	if got := e.EvaluateRules(context.Background(), nil, EvalContext{}); len(got) != 0 {
		t.Errorf("expected no trigger at 02:00, got %v", names(got))
	}
	at3 := testNow.Add(time.Hour)
	if got := e.EvaluateRules(context.Background(), nil, EvalContext{Now: at3}); len(got) != 1 {
		t.Errorf("expected trigger at 03:00, got %v", names(got))
	}
}

func TestEngine_WebhookWithoutURL(t *testing.T) {
	e := New()
	rule := countRule("hook", 0, Action{Type: ActionWebhook, Webhook: &WebhookAction{}})

	results := e.ExecuteRuleActions(context.Background(), rule, makeItems(1))
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	res := results[0]
	if res.Success || res.ActionType != ActionWebhook {
		t.Errorf("result = %+v", res)
	}
	var cfgErr *ConfigurationError
	if !errors.As(res.Err(), &cfgErr) || cfgErr.Field != "url" {
		t.Errorf("expected url ConfigurationError, got %v", res.Err())
	}
	if !strings.Contains(res.Error, "webhook URL not configured") {
		t.Errorf("Error = %q", res.Error)
	}
}

func TestEngine_WebhookDelivery(t *testing.T) {
	var (
		mu       sync.Mutex
		received WebhookPayload
		header   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		header = r.Header.Get("X-Api-Key")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"accepted":true}`))
	}))
	defer srv.Close()

	e := New(WithClock(testClock))
	rule := countRule("hook", 0, Action{Type: ActionWebhook, Webhook: &WebhookAction{
		URL:     srv.URL,
		Headers: map[string]string{"X-Api-Key": "secret"},
	}})

	results := e.ExecuteRuleActions(context.Background(), rule, makeItems(2))
	if !results[0].Success {
		t.Fatalf("webhook failed: %s", results[0].Error)
	}

	outcome, ok := results[0].Result.(*WebhookOutcome)
	if !ok || outcome.StatusCode != http.StatusOK {
		t.Fatalf("Result = %#v", results[0].Result)
	}
	if diff := cmp.Diff(map[string]any{"accepted": true}, outcome.Body); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}

	mu.Lock()
	defer mu.Unlock()
	if header != "secret" {
		t.Errorf("custom header = %q", header)
	}
	if received.Event != WebhookEvent || len(received.Data) != 2 {
		t.Errorf("payload = %+v", received)
	}
	if received.Timestamp != "2025-01-15T02:00:00.000Z" {
		t.Errorf("timestamp = %q", received.Timestamp)
	}
}

func TestEngine_WebhookNonJSONResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	e := New()
	results := e.ExecuteRuleActions(context.Background(),
		countRule("hook", 0, Action{Type: ActionWebhook, Webhook: &WebhookAction{URL: srv.URL}}), makeItems(1))

	outcome, ok := results[0].Result.(*WebhookOutcome)
	if !ok {
		t.Fatalf("Result = %#v", results[0].Result)
	}
	want := map[string]any{"status": "success", "message": "No JSON response body."}
	if diff := cmp.Diff(want, outcome.Body); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestEngine_WebhookFailureStatus(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	executor := resilience.NewExecutor("webhook", resilience.Policy{Attempts: 3}, nil)
	client := NewWebhookClient(config.WebhookConfig{Timeout: time.Second}, executor, nil)
	e := New(WithWebhookClient(client))

	results := e.ExecuteRuleActions(context.Background(),
		countRule("hook", 0, Action{Type: ActionWebhook, Webhook: &WebhookAction{URL: srv.URL}}), makeItems(1))

	res := results[0]
	if res.Success {
		t.Fatal("expected failure")
	}
	var status *StatusError
	if !errors.As(res.Err(), &status) || status.StatusCode != http.StatusUnauthorized || status.Body != "bad token" {
		t.Errorf("expected 401 StatusError, got %v", res.Err())
	}
	var sinkErr *export.SinkFailureError
	if !errors.As(res.Err(), &sinkErr) || sinkErr.Sink != "webhook" {
		t.Errorf("expected webhook SinkFailureError, got %v", res.Err())
	}
	if calls != 1 {
		t.Errorf("client errors must not be retried, got %d calls", calls)
	}
}

func TestEngine_WebhookRetriesServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	executor := resilience.NewExecutor("webhook", resilience.Policy{Attempts: 3}, nil)
	e := New(WithWebhookClient(NewWebhookClient(config.WebhookConfig{}, executor, nil)))

	results := e.ExecuteRuleActions(context.Background(),
		countRule("hook", 0, Action{Type: ActionWebhook, Webhook: &WebhookAction{URL: srv.URL}}), makeItems(1))
	if !results[0].Success {
		t.Fatalf("expected success after retries: %s", results[0].Error)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestWebhookTarget(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://hooks.example.com/a?x=1", "hooks.example.com"},
		{"http://127.0.0.1:8080/b", "127.0.0.1:8080"},
		{"not a url", "not a url"},
	}
	for _, tt := range tests {
		if got := webhookTarget(tt.url); got != tt.want {
			t.Errorf("webhookTarget(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestEngine_ActionsRunIndependently(t *testing.T) {
	exporter := &fakeExporter{}
	mailer := &fakeMailer{}
	uploader := &fakeUploader{}
	e := New(WithClock(testClock), WithExporter(exporter), WithMailer(mailer), WithUploader(uploader))

	rule := countRule("everything", 0,
		Action{Type: ActionExportCSV},
		Action{Type: ActionWebhook},
		Action{Type: ActionExportPDF},
		Action{Type: ActionSendEmail, Email: &EmailAction{Recipients: []string{"a@example.com", "b@example.com"}, Subject: "Scans"}},
		Action{Type: ActionUploadCloud, Cloud: &CloudAction{Service: "dropbox", Folder: "backups"}},
		Action{Type: "fax"},
	)

	results := e.ExecuteRuleActions(context.Background(), rule, makeItems(3))

	var got []bool
	for _, r := range results {
		got = append(got, r.Success)
	}
	if diff := cmp.Diff([]bool{true, false, true, true, true, false}, got); diff != "" {
		t.Errorf("success mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]export.Format{export.FormatCSV, export.FormatPDF}, exporter.calls); diff != "" {
		t.Errorf("export calls mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(export.DefaultOptions(), exporter.options[0]); diff != "" {
		t.Errorf("default options mismatch (-want +got):\n%s", diff)
	}

	if len(mailer.sent) != 2 || mailer.sent[0].Subject != "Scans" {
		t.Errorf("emails = %+v", mailer.sent)
	}
	if !strings.Contains(mailer.sent[0].Body, "Items: 3") {
		t.Errorf("email body = %q", mailer.sent[0].Body)
	}

	if len(uploader.uploads) != 1 {
		t.Fatalf("expected 1 upload, got %d", len(uploader.uploads))
	}
	up := uploader.uploads[0]
	if up.Service != "dropbox" || up.Folder != "backups" || up.MIMEType != "application/json" {
		t.Errorf("upload = %+v", up)
	}
	var snapshot []map[string]any
	if err := json.Unmarshal(up.Content, &snapshot); err != nil || len(snapshot) != 3 {
		t.Errorf("snapshot = %s (%v)", up.Content, err)
	}

	if !errors.Is(results[5].Err(), ErrUnknownAction) {
		t.Errorf("expected ErrUnknownAction, got %v", results[5].Err())
	}
}

func TestEngine_MissingSinks(t *testing.T) {
	e := New()
	rule := countRule("sinks", 0,
		Action{Type: ActionExportCSV},
		Action{Type: ActionSendEmail, Email: &EmailAction{Recipients: []string{"a@example.com"}}},
		Action{Type: ActionUploadCloud},
	)

	results := e.ExecuteRuleActions(context.Background(), rule, makeItems(1))
	want := []string{"export", "email", "cloud"}
	for i, res := range results {
		var unavailable *export.SinkUnavailableError
		if !errors.As(res.Err(), &unavailable) || unavailable.Sink != want[i] {
			t.Errorf("action %d: expected %s SinkUnavailableError, got %v", i, want[i], res.Err())
		}
	}
}

func TestEngine_EmailWithoutRecipients(t *testing.T) {
	e := New(WithMailer(&fakeMailer{}))
	results := e.ExecuteRuleActions(context.Background(),
		countRule("mail", 0, Action{Type: ActionSendEmail}), makeItems(1))

	var cfgErr *ConfigurationError
	if !errors.As(results[0].Err(), &cfgErr) || cfgErr.Field != "recipients" {
		t.Errorf("expected recipients ConfigurationError, got %v", results[0].Err())
	}
}

func TestEngine_RunOnceRecordsHistory(t *testing.T) {
	store := history.NewMemoryStore()
	exporter := &fakeExporter{}
	e := New(WithClock(testClock), WithExporter(exporter), WithHistory(store))

	rule := mustAdd(t, e, countRule("big", 1, Action{Type: ActionExportCSV}, Action{Type: ActionWebhook}))
	mustAdd(t, e, countRule("huge", 1000, Action{Type: ActionExportCSV}))

	runs, err := e.RunOnce(context.Background(), makeItems(5), EvalContext{Trigger: "manual"})
	if err != nil {
		t.Fatalf("RunOnce() failed: %v", err)
	}
	if len(runs) != 1 || runs[0].Rule.ID != rule.ID {
		t.Fatalf("runs = %+v", runs)
	}
	if runs[0].Succeeded() {
		t.Error("run with a failed action must not be successful")
	}

	entries, err := store.List(context.Background(), rule.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(entries))
	}
	want := history.Entry{
		ID:          entries[0].ID,
		RuleID:      rule.ID,
		RuleName:    "big",
		Trigger:     "manual",
		TriggeredAt: testNow,
		ItemCount:   5,
		Success:     false,
		Actions: []history.ActionOutcome{
			{ActionType: "export_csv", Success: true},
			{ActionType: "webhook", Success: false, Error: "webhook action misconfigured: url: webhook URL not configured"},
		},
	}
	if diff := cmp.Diff(want, entries[0]); diff != "" {
		t.Errorf("entry mismatch (-want +got):\n%s", diff)
	}
}

func TestEngine_ReplaceRules(t *testing.T) {
	e := New(WithClock(testClock))
	kept := mustAdd(t, e, Rule{ID: "keep", Name: "keep", Enabled: true})
	mustAdd(t, e, Rule{ID: "drop", Name: "drop", Enabled: true})
	e.EvaluateRules(context.Background(), nil, EvalContext{})

	if err := e.ReplaceRules([]Rule{{Name: ""}}); err == nil {
		t.Fatal("expected invalid replacement to fail")
	}
	if len(e.Rules()) != 2 {
		t.Fatal("failed replacement must leave rules untouched")
	}

	if err := e.ReplaceRules([]Rule{{ID: "keep", Name: "keep v2", Enabled: true}, {Name: "new", Enabled: true}}); err != nil {
		t.Fatalf("ReplaceRules() failed: %v", err)
	}

	rules := e.Rules()
	if diff := cmp.Diff([]string{"keep v2", "new"}, names(rules)); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	got, _ := e.Rule(kept.ID)
	if got.LastTriggered == nil {
		t.Error("LastTriggered should survive a reload")
	}
}

func TestEngine_Summary(t *testing.T) {
	e := New()
	for _, r := range DefaultRules() {
		mustAdd(t, e, r)
	}
	rules := e.Rules()
	if err := e.SetEnabled(rules[1].ID, false); err != nil {
		t.Fatal(err)
	}

	s := e.Summary()
	if s.Total != 3 || s.Enabled != 2 || s.Disabled != 1 {
		t.Errorf("summary counts = %d/%d/%d", s.Total, s.Enabled, s.Disabled)
	}
	if s.Rules[0].Name != "Daily Backup" || s.Rules[0].Actions != 2 || s.Rules[0].Conditions != 1 {
		t.Errorf("first rule summary = %+v", s.Rules[0])
	}
}

func TestDefaultRules(t *testing.T) {
	e := New(WithClock(testClock))
	for _, r := range DefaultRules() {
		mustAdd(t, e, r)
	}

	items := makeItems(101)
	items[0].Product = &export.Product{Name: "Milk"}

	// 02:00 fires the daily backup; 101 items fire the batch rule; a
	// product fires the inventory alert.
	triggered := e.EvaluateRules(context.Background(), items, EvalContext{})
	want := []string{"Daily Backup", "Large Batch Export", "Product Inventory Alert"}
	if diff := cmp.Diff(want, names(triggered)); diff != "" {
		t.Errorf("triggered mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultRules_StableIDs(t *testing.T) {
	ids := func() []string {
		e := New()
		if err := e.ReplaceRules(DefaultRules()); err != nil {
			t.Fatalf("ReplaceRules() error = %v", err)
		}
		var out []string
		for _, r := range e.Rules() {
			out = append(out, r.ID)
		}
		return out
	}

	want := []string{RuleDailyBackup, RuleLargeBatchExport, RuleInventoryAlert}
	first, second := ids(), ids()
	if diff := cmp.Diff(want, first); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("ids differ between engines (-first +second):\n%s", diff)
	}
}

func TestEngine_Metrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(&config.MetricsConfig{Enabled: true, Namespace: "test", Subsystem: "automation"}, registry)

	e := New(WithMetrics(collector))
	mustAdd(t, e, Rule{Name: "bad", Enabled: true, Conditions: []Condition{{Type: "weather"}}})
	mustAdd(t, e, countRule("hook", 0, Action{Type: ActionWebhook}))

	if _, err := e.RunOnce(context.Background(), makeItems(1), EvalContext{}); err != nil {
		t.Fatal(err)
	}

	for name, want := range map[string]int{
		"test_automation_rule_evaluations_total": 2,
		"test_automation_condition_errors_total": 1,
		"test_automation_action_results_total":   1,
		"test_automation_rules_loaded":           2,
	} {
		got, err := testutil.GatherAndCount(registry, name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if got != want {
			t.Errorf("%s series = %d, want %d", name, got, want)
		}
	}
}
