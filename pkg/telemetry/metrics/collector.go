package metrics

import (
	"sync"
	"time"

	"mercator-hq/scanport/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// MaxRuleLabels is the number of distinct rule ids tracked per collector.
const MaxRuleLabels = 1000

// OverflowLabel replaces rule ids beyond MaxRuleLabels.
const OverflowLabel = "other"

// Collector owns every Prometheus metric recorded by scanport. All record
// methods are no-ops on a nil Collector or when metrics are disabled, so
// components can hold an optional *Collector without guarding each call.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	exportMetrics     *ExportMetrics
	automationMetrics *AutomationMetrics
	sinkMetrics       *SinkMetrics

	// Rule ids are user supplied; cap their label cardinality.
	rules *ruleLabels
}

// NewCollector registers the export, automation and sink metric families
// on registry, or on a fresh registry when it is nil. Empty namespace and
// bucket settings in cfg are filled in place.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30}
	}
	if len(cfg.ItemCountBuckets) == 0 {
		cfg.ItemCountBuckets = []float64{1, 10, 100, 1000, 10000, 100000}
	}

	c := &Collector{
		config:   cfg,
		registry: registry,
		rules:    newRuleLabels(MaxRuleLabels),
	}

	c.exportMetrics = NewExportMetrics(cfg, registry)
	c.automationMetrics = NewAutomationMetrics(cfg, registry)
	c.sinkMetrics = NewSinkMetrics(cfg, registry)

	return c
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// RecordExport records a finished export. bytes is 0 when the encoder
// does not know the artifact size.
func (c *Collector) RecordExport(format, status string, duration time.Duration, items int, bytes int64) {
	if !c.enabled() {
		return
	}

	c.exportMetrics.RecordExport(format, status, duration, items, bytes)
}

// RecordExportFailure records which phase of an export failed.
func (c *Collector) RecordExportFailure(format, phase string) {
	if !c.enabled() {
		return
	}

	c.exportMetrics.RecordFailure(format, phase)
}

// RecordCompression records the estimated compressed size of an artifact.
func (c *Collector) RecordCompression(format string, original, compressed int64) {
	if !c.enabled() {
		return
	}

	c.exportMetrics.RecordCompression(format, original, compressed)
}

// RecordRuleEvaluation records one rule evaluation and whether it triggered.
func (c *Collector) RecordRuleEvaluation(ruleID string, triggered bool, duration time.Duration) {
	if !c.enabled() {
		return
	}

	c.automationMetrics.RecordEvaluation(c.rules.label(ruleID), triggered, duration)
}

// RecordConditionError records a condition that could not be evaluated.
func (c *Collector) RecordConditionError(conditionType string) {
	if !c.enabled() {
		return
	}

	c.automationMetrics.RecordConditionError(conditionType)
}

// RecordAction records the outcome of one rule action.
func (c *Collector) RecordAction(actionType string, success bool) {
	if !c.enabled() {
		return
	}

	c.automationMetrics.RecordAction(actionType, success)
}

// UpdateRulesLoaded sets the number of loaded rules.
func (c *Collector) UpdateRulesLoaded(total, enabled int) {
	if !c.enabled() {
		return
	}

	c.automationMetrics.UpdateRules(total, enabled)
}

// RecordSinkCall records the latency and outcome of one call to sink.
func (c *Collector) RecordSinkCall(sink, status string, duration time.Duration) {
	if !c.enabled() {
		return
	}

	c.sinkMetrics.RecordCall(sink, status, duration)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ruleLabels caps the number of distinct rule id label values. Ids seen
// after the cap are reported as OverflowLabel.
type ruleLabels struct {
	max int

	mu   sync.Mutex
	seen map[string]struct{}
}

func newRuleLabels(max int) *ruleLabels {
	return &ruleLabels{max: max, seen: make(map[string]struct{})}
}

// label returns id while under the cap or when id was already admitted.
func (l *ruleLabels) label(id string) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[id]; ok {
		return id
	}
	if len(l.seen) >= l.max {
		return OverflowLabel
	}
	l.seen[id] = struct{}{}
	return id
}

func (l *ruleLabels) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}
