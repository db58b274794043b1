package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/scanport/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Helper function to create test config
func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Enabled:          true,
		Namespace:        "test",
		Subsystem:        "metrics",
		DurationBuckets:  []float64{0.1, 0.5, 1.0, 5.0},
		ItemCountBuckets: []float64{1, 10, 100},
	}
}

func TestCollector_NewCollector(t *testing.T) {
	cfg := testConfig()
	registry := prometheus.NewRegistry()

	collector := NewCollector(cfg, registry)

	if collector.config != cfg {
		t.Error("Collector config not set correctly")
	}
	if collector.Registry() != registry {
		t.Error("Collector registry not set correctly")
	}
}

func TestCollector_Defaults(t *testing.T) {
	cfg := &config.MetricsConfig{Enabled: true}
	NewCollector(cfg, nil)

	if cfg.Namespace != config.DefaultMetricsNamespace {
		t.Errorf("Namespace = %q", cfg.Namespace)
	}
	if len(cfg.DurationBuckets) == 0 || len(cfg.ItemCountBuckets) == 0 {
		t.Error("default buckets not applied")
	}
}

func TestCollector_RecordExport(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordExport("csv", StatusSuccess, 200*time.Millisecond, 10, 2048)
	collector.RecordExport("csv", StatusSuccess, time.Second, 5, 0)
	collector.RecordExport("json", StatusError, time.Millisecond, 1, 0)

	if got := testutil.ToFloat64(collector.exportMetrics.exportsTotal.WithLabelValues("csv", StatusSuccess)); got != 2 {
		t.Errorf("csv success exports = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.exportMetrics.exportsTotal.WithLabelValues("json", StatusError)); got != 1 {
		t.Errorf("json error exports = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(collector.exportMetrics.bytes); got != 1 {
		t.Errorf("byte histograms = %d, want 1 (zero sizes skipped)", got)
	}
}

func TestCollector_RecordFailureAndCompression(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordExportFailure("google_sheets", "encode")
	collector.RecordCompression("csv", 1000, 800)

	if got := testutil.ToFloat64(collector.exportMetrics.failuresTotal.WithLabelValues("google_sheets", "encode")); got != 1 {
		t.Errorf("failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.exportMetrics.compressedBytes.WithLabelValues("csv")); got != 800 {
		t.Errorf("compressed bytes = %v, want 800", got)
	}
	if got := testutil.ToFloat64(collector.exportMetrics.originalBytes.WithLabelValues("csv")); got != 1000 {
		t.Errorf("original bytes = %v, want 1000", got)
	}
}

func TestCollector_Automation(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordRuleEvaluation("rule-1", true, time.Millisecond)
	collector.RecordRuleEvaluation("rule-1", false, time.Millisecond)
	collector.RecordConditionError("nope")
	collector.RecordAction("webhook", false)
	collector.RecordAction("export_csv", true)
	collector.UpdateRulesLoaded(3, 2)

	am := collector.automationMetrics
	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"triggered", testutil.ToFloat64(am.evaluationsTotal.WithLabelValues("rule-1", "true")), 1},
		{"not triggered", testutil.ToFloat64(am.evaluationsTotal.WithLabelValues("rule-1", "false")), 1},
		{"condition errors", testutil.ToFloat64(am.conditionErrors.WithLabelValues("nope")), 1},
		{"webhook failures", testutil.ToFloat64(am.actionResults.WithLabelValues("webhook", "false")), 1},
		{"export successes", testutil.ToFloat64(am.actionResults.WithLabelValues("export_csv", "true")), 1},
		{"enabled rules", testutil.ToFloat64(am.rulesLoaded.WithLabelValues("enabled")), 2},
		{"disabled rules", testutil.ToFloat64(am.rulesLoaded.WithLabelValues("disabled")), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestCollector_RecordSinkCall(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordSinkCall("email", StatusSuccess, 10*time.Millisecond)
	collector.RecordSinkCall("email", StatusError, 10*time.Millisecond)

	if got := testutil.ToFloat64(collector.sinkMetrics.callsTotal.WithLabelValues("email", StatusError)); got != 1 {
		t.Errorf("email errors = %v, want 1", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	collector := NewCollector(cfg, prometheus.NewRegistry())

	collector.RecordExport("csv", StatusSuccess, time.Second, 1, 1)
	collector.RecordAction("webhook", true)

	if got := testutil.CollectAndCount(collector.exportMetrics.exportsTotal); got != 0 {
		t.Errorf("disabled collector recorded %d series", got)
	}
}

func TestCollector_Nil(t *testing.T) {
	var collector *Collector

	// Must not panic.
	collector.RecordExport("csv", StatusSuccess, time.Second, 1, 1)
	collector.RecordRuleEvaluation("r", true, time.Second)
	collector.RecordSinkCall("email", StatusSuccess, time.Second)
}

func TestRuleLabels(t *testing.T) {
	l := newRuleLabels(2)

	got := []string{l.label("a"), l.label("b"), l.label("a"), l.label("c")}
	want := []string{"a", "b", "a", OverflowLabel}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("label #%d = %q, want %q", i, got[i], want[i])
		}
	}
	if l.count() != 2 {
		t.Errorf("count() = %d, want 2", l.count())
	}
}

func TestCollector_RuleCardinality(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	collector.rules = newRuleLabels(1)

	collector.RecordRuleEvaluation("rule-a", true, 0)
	collector.RecordRuleEvaluation("rule-b", true, 0)

	if got := testutil.ToFloat64(collector.automationMetrics.evaluationsTotal.WithLabelValues(OverflowLabel, "true")); got != 1 {
		t.Errorf("overflow evaluations = %v, want 1", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	collector.RecordExport("csv", StatusSuccess, time.Second, 3, 100)

	srv := httptest.NewServer(collector.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "test_metrics_exports_total") {
		t.Errorf("metrics output missing exports_total:\n%s", body)
	}
}

func TestCollector_HandlerDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	tests := []struct {
		name      string
		collector *Collector
	}{
		{"disabled", NewCollector(cfg, prometheus.NewRegistry())},
		{"nil", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
			if rec.Code != http.StatusNotFound {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
			}
		})
	}
}

func TestCollector_HandlerCountsScrapes(t *testing.T) {
	registry := prometheus.NewRegistry()
	handler := NewCollector(testConfig(), registry).Handler()

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	}
	if !strings.Contains(gatherNames(t, registry), "promhttp_metric_handler_requests_total") {
		t.Error("scrape counter not registered")
	}
}

func gatherNames(t *testing.T, g prometheus.Gatherer) string {
	t.Helper()
	families, err := g.Gather()
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	return strings.Join(names, ",")
}
