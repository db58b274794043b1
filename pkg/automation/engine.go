package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"mercator-hq/scanport/pkg/automation/history"
	"mercator-hq/scanport/pkg/config"
	"mercator-hq/scanport/pkg/export"
	"mercator-hq/scanport/pkg/sinks/cloud"
	"mercator-hq/scanport/pkg/sinks/email"
	"mercator-hq/scanport/pkg/telemetry/logging"
	"mercator-hq/scanport/pkg/telemetry/metrics"
	"mercator-hq/scanport/pkg/telemetry/tracing"
)

// Engine holds automation rules and evaluates them against scan data.
// The rule list is guarded so scheduled passes may overlap reloads.
type Engine struct {
	mu    sync.RWMutex
	rules []*Rule

	exporter Exporter
	mailer   email.Sender
	uploader cloud.Uploader
	webhook  *WebhookClient
	history  history.Store

	logger  *slog.Logger
	metrics *metrics.Collector
	tracer  *tracing.Tracer
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithExporter sets the exporter used by export actions.
func WithExporter(x Exporter) Option {
	return func(e *Engine) { e.exporter = x }
}

// WithMailer sets the email sink used by send_email.
func WithMailer(m email.Sender) Option {
	return func(e *Engine) { e.mailer = m }
}

// WithUploader sets the cloud sink used by upload_cloud.
func WithUploader(u cloud.Uploader) Option {
	return func(e *Engine) { e.uploader = u }
}

// WithWebhookClient sets the client used by webhook actions.
func WithWebhookClient(w *WebhookClient) Option {
	return func(e *Engine) {
		if w != nil {
			e.webhook = w
		}
	}
}

// WithHistory records every triggered rule run in store.
func WithHistory(store history.Store) Option {
	return func(e *Engine) { e.history = store }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l.With("component", "automation")
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = c }
}

// WithTracer sets the tracer.
func WithTracer(t *tracing.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithClock sets the clock used by time conditions and timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an engine with no rules.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger: slog.Default().With("component", "automation"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.webhook == nil {
		e.webhook = NewWebhookClient(config.WebhookConfig{}, nil, e.logger)
	}
	return e
}

// AddOption adjusts a rule as AddRule stores it.
type AddOption func(*Rule)

// AddDisabled stores the rule disabled.
func AddDisabled() AddOption {
	return func(r *Rule) { r.Enabled = false }
}

// AddRule validates and appends a rule. The rule is stored enabled unless
// AddDisabled is passed; r.Enabled is not consulted. A rule without an ID
// is given a rule-<uuid> ID, and CreatedAt defaults to now. The stored
// copy is returned.
func (e *Engine) AddRule(r Rule, opts ...AddOption) (Rule, error) {
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	stored := e.prepare(r)
	stored.Enabled = true
	for _, opt := range opts {
		opt(&stored)
	}
	if e.indexOf(stored.ID) >= 0 {
		return Rule{}, fmt.Errorf("rule %q already exists", stored.ID)
	}
	e.rules = append(e.rules, &stored)
	e.updateLoaded()

	e.logger.Info("rule added", "rule_id", stored.ID, "name", stored.Name)
	return stored.Clone(), nil
}

// RemoveRule deletes the rule with the given ID.
func (e *Engine) RemoveRule(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrRuleNotFound, id)
	}
	e.rules = append(e.rules[:i], e.rules[i+1:]...)
	e.updateLoaded()

	e.logger.Info("rule removed", "rule_id", id)
	return nil
}

// SetEnabled enables or disables a rule.
func (e *Engine) SetEnabled(id string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrRuleNotFound, id)
	}
	e.rules[i].Enabled = enabled
	e.updateLoaded()
	return nil
}

// Rule returns a copy of the rule with the given ID.
func (e *Engine) Rule(id string) (Rule, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if i := e.indexOf(id); i >= 0 {
		return e.rules[i].Clone(), true
	}
	return Rule{}, false
}

// Rules returns copies of every rule in order.
func (e *Engine) Rules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Rule, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.Clone()
	}
	return out
}

// ReplaceRules swaps the whole rule set. Nothing changes unless every rule
// is valid. LastTriggered is carried over for rules whose ID survives.
func (e *Engine) ReplaceRules(rules []Rule) error {
	var errs []error
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	previous := make(map[string]*Rule, len(e.rules))
	for _, r := range e.rules {
		previous[r.ID] = r
	}

	next := make([]*Rule, 0, len(rules))
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		stored := e.prepare(r)
		if seen[stored.ID] {
			return fmt.Errorf("duplicate rule id %q", stored.ID)
		}
		seen[stored.ID] = true
		if old, ok := previous[stored.ID]; ok && stored.LastTriggered == nil && old.LastTriggered != nil {
			t := *old.LastTriggered
			stored.LastTriggered = &t
		}
		next = append(next, &stored)
	}

	e.rules = next
	e.updateLoaded()
	e.logger.Info("rules replaced", "total", len(next))
	return nil
}

// EvaluateRules returns copies of the enabled rules whose conditions all
// hold, stamping their LastTriggered. Disabled rules are skipped. A
// condition that cannot be evaluated is logged and counts as not met for
// its rule only.
func (e *Engine) EvaluateRules(ctx context.Context, items []export.Item, ec EvalContext) []Rule {
	now := ec.Now
	if now.IsZero() {
		now = e.now()
	}

	ctx, span := e.tracer.Start(ctx, tracing.SpanRuleEvaluation)
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	span.SetAttributes(tracing.AttrRulesTotal.Int(len(e.rules)))

	var triggered []Rule
	for _, r := range e.rules {
		if !r.Enabled {
			continue
		}

		start := time.Now()
		ok := e.evaluateRule(ctx, r, items, now)
		e.metrics.RecordRuleEvaluation(r.ID, ok, time.Since(start))
		if !ok {
			continue
		}

		t := now
		r.LastTriggered = &t
		triggered = append(triggered, r.Clone())
		tracing.AddEvent(span, "rule.triggered", tracing.AttrRuleID.String(r.ID), tracing.AttrRuleName.String(r.Name))
	}

	e.logger.DebugContext(ctx, "rules evaluated",
		"items", len(items),
		"triggered", len(triggered),
		"trigger", ec.Trigger,
	)
	return triggered
}

// evaluateRule applies AND semantics, stopping at the first condition that
// is not met.
func (e *Engine) evaluateRule(ctx context.Context, r *Rule, items []export.Item, now time.Time) bool {
	for _, c := range r.Conditions {
		met, err := evaluateCondition(c, items, now)
		if err != nil {
			cerr := &ConditionEvaluationError{RuleID: r.ID, Type: c.Type, Operator: c.Operator, Cause: err}
			e.metrics.RecordConditionError(string(c.Type))
			e.logger.WarnContext(ctx, "condition evaluation failed",
				"rule_id", r.ID,
				"rule_name", r.Name,
				"error", cerr,
			)
			return false
		}
		if !met {
			return false
		}
	}
	return true
}

// ExecuteRuleActions runs every action of rule in order. Each action
// succeeds or fails independently; the result slice always has one entry
// per action.
func (e *Engine) ExecuteRuleActions(ctx context.Context, rule Rule, items []export.Item) []ActionResult {
	ctx = logging.WithRuleID(ctx, rule.ID)
	now := e.now()

	results := make([]ActionResult, 0, len(rule.Actions))
	for _, a := range rule.Actions {
		actx, span := e.tracer.Start(ctx, tracing.SpanRuleAction)
		tracing.SetRuleAttributes(span, rule.ID, rule.Name)
		span.SetAttributes(tracing.AttrActionType.String(string(a.Type)))

		outcome, err := e.executeAction(actx, rule, a, items, now)

		res := ActionResult{ActionType: a.Type, Success: err == nil}
		if err != nil {
			res.Error = err.Error()
			res.err = err
			e.logger.ErrorContext(actx, "action execution failed",
				"action", a.Type,
				"error", err,
			)
		} else {
			res.Result = outcome
			e.logger.InfoContext(actx, "action executed", "action", a.Type, "items", len(items))
		}

		span.SetAttributes(tracing.AttrActionSuccess.Bool(res.Success))
		tracing.End(span, err)
		e.metrics.RecordAction(string(a.Type), res.Success)
		results = append(results, res)
	}
	return results
}

// RunOnce evaluates the rules and executes the actions of every rule that
// triggers, recording each run in the history store when one is attached.
// The returned error reports history failures only; action failures are in
// the results.
func (e *Engine) RunOnce(ctx context.Context, items []export.Item, ec EvalContext) ([]RuleRun, error) {
	if ec.Now.IsZero() {
		ec.Now = e.now()
	}
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)

	triggered := e.EvaluateRules(ctx, items, ec)

	var (
		runs []RuleRun
		errs []error
	)
	for _, r := range triggered {
		run := RuleRun{Rule: r, Results: e.ExecuteRuleActions(ctx, r, items)}
		runs = append(runs, run)

		if e.history == nil {
			continue
		}
		if err := e.history.Record(ctx, historyEntry(run, ec, len(items))); err != nil {
			e.logger.ErrorContext(ctx, "failed to record rule run", "rule_id", r.ID, "error", err)
			errs = append(errs, err)
		}
	}

	if len(triggered) > 0 {
		e.logger.InfoContext(ctx, "automation pass completed",
			"items", len(items),
			"triggered", len(triggered),
		)
	}
	return runs, errors.Join(errs...)
}

func historyEntry(run RuleRun, ec EvalContext, items int) history.Entry {
	entry := history.Entry{
		ID:          uuid.NewString(),
		RuleID:      run.Rule.ID,
		RuleName:    run.Rule.Name,
		Trigger:     ec.Trigger,
		TriggeredAt: ec.Now,
		ItemCount:   items,
		Success:     run.Succeeded(),
	}
	if run.Rule.LastTriggered != nil {
		entry.TriggeredAt = *run.Rule.LastTriggered
	}
	for _, res := range run.Results {
		entry.Actions = append(entry.Actions, history.ActionOutcome{
			ActionType: string(res.ActionType),
			Success:    res.Success,
			Error:      res.Error,
		})
	}
	return entry
}

// History returns the attached history store, or nil.
func (e *Engine) History() history.Store {
	return e.history
}

// Summary returns rule counts and a short description of every rule.
func (e *Engine) Summary() Summary {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := Summary{Total: len(e.rules), Rules: make([]RuleSummary, 0, len(e.rules))}
	for _, r := range e.rules {
		if r.Enabled {
			s.Enabled++
		} else {
			s.Disabled++
		}
		rs := RuleSummary{
			ID:         r.ID,
			Name:       r.Name,
			Enabled:    r.Enabled,
			Conditions: len(r.Conditions),
			Actions:    len(r.Actions),
		}
		if r.LastTriggered != nil {
			t := *r.LastTriggered
			rs.LastTriggered = &t
		}
		s.Rules = append(s.Rules, rs)
	}
	return s
}

// prepare returns a stored copy of r with ID and CreatedAt filled.
// Callers hold e.mu.
func (e *Engine) prepare(r Rule) Rule {
	stored := r.Clone()
	if stored.ID == "" {
		stored.ID = "rule-" + uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = e.now()
	}
	return stored
}

func (e *Engine) indexOf(id string) int {
	for i, r := range e.rules {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (e *Engine) updateLoaded() {
	enabled := 0
	for _, r := range e.rules {
		if r.Enabled {
			enabled++
		}
	}
	e.metrics.UpdateRulesLoaded(len(e.rules), enabled)
}
