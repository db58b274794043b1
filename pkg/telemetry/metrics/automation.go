package metrics

import (
	"strconv"
	"time"

	"mercator-hq/scanport/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// AutomationMetrics tracks rule engine activity.
//
// Metrics:
//   - scanport_rule_evaluations_total: Evaluations by rule and outcome
//   - scanport_rule_evaluation_duration_seconds: Evaluation duration
//   - scanport_condition_errors_total: Conditions that could not be evaluated
//   - scanport_action_results_total: Action outcomes by type
//   - scanport_rules_loaded: Loaded rules by state
type AutomationMetrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	conditionErrors    *prometheus.CounterVec
	actionResults      *prometheus.CounterVec
	rulesLoaded        *prometheus.GaugeVec
}

// NewAutomationMetrics creates and registers automation metrics with the provided registry.
func NewAutomationMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *AutomationMetrics {
	am := &AutomationMetrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_evaluations_total",
				Help:      "Total number of rule evaluations",
			},
			[]string{"rule_id", "triggered"},
		),

		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_evaluation_duration_seconds",
				Help:      "Duration of rule evaluation in seconds",
				// Rule evaluation scans the snapshot once per condition
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to 2.6s
			},
			[]string{"rule_id"},
		),

		conditionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "condition_errors_total",
				Help:      "Total number of conditions that could not be evaluated",
			},
			[]string{"condition_type"},
		),

		actionResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "action_results_total",
				Help:      "Total number of executed rule actions",
			},
			[]string{"action_type", "success"},
		),

		rulesLoaded: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rules_loaded",
				Help:      "Number of loaded automation rules",
			},
			[]string{"state"},
		),
	}

	registry.MustRegister(
		am.evaluationsTotal,
		am.evaluationDuration,
		am.conditionErrors,
		am.actionResults,
		am.rulesLoaded,
	)

	return am
}

// RecordEvaluation records a rule evaluation.
func (am *AutomationMetrics) RecordEvaluation(ruleID string, triggered bool, duration time.Duration) {
	am.evaluationsTotal.WithLabelValues(ruleID, strconv.FormatBool(triggered)).Inc()
	am.evaluationDuration.WithLabelValues(ruleID).Observe(duration.Seconds())
}

// RecordConditionError records a condition evaluation error.
func (am *AutomationMetrics) RecordConditionError(conditionType string) {
	am.conditionErrors.WithLabelValues(conditionType).Inc()
}

// RecordAction records an action result.
func (am *AutomationMetrics) RecordAction(actionType string, success bool) {
	am.actionResults.WithLabelValues(actionType, strconv.FormatBool(success)).Inc()
}

// UpdateRules sets the loaded rule gauges.
func (am *AutomationMetrics) UpdateRules(total, enabled int) {
	am.rulesLoaded.WithLabelValues("enabled").Set(float64(enabled))
	am.rulesLoaded.WithLabelValues("disabled").Set(float64(total - enabled))
}
