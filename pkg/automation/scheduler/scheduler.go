// Package scheduler runs automation passes on a cron schedule.
//
// Each pass reads the latest scan snapshot from a DataSource, evaluates
// every rule with the "schedule" trigger and executes the actions of the
// rules that fire. When a history retention is set, entries older than the
// retention are pruned after the pass.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/scanport/pkg/automation"
	"mercator-hq/scanport/pkg/export"
)

// TriggerSchedule marks passes started by the scheduler.
const TriggerSchedule = "schedule"

// Runner evaluates rules and runs the actions of those that fire.
type Runner interface {
	RunOnce(ctx context.Context, items []export.Item, ec automation.EvalContext) ([]automation.RuleRun, error)
}

// Pruner deletes history entries older than a cutoff.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// Pass summarizes one scheduled pass.
type Pass struct {
	At        time.Time
	Items     int
	Triggered []string
	Failed    int
	Pruned    int64
}

// Scheduler triggers automation passes on a cron expression.
type Scheduler struct {
	runner    Runner
	source    DataSource
	schedule  string
	pruner    Pruner
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time

	cron    *cron.Cron
	entry   cron.EntryID
	mu      sync.Mutex
	running bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRetention prunes entries older than retention from p after every
// pass. A zero retention disables pruning.
func WithRetention(p Pruner, retention time.Duration) Option {
	return func(s *Scheduler) {
		s.pruner = p
		s.retention = retention
	}
}

// WithLogger sets the scheduler logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the pass clock.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a scheduler for the standard five-field cron expression
// schedule. Descriptors such as "@hourly" and "@every 5m" are accepted.
func New(runner Runner, source DataSource, schedule string, opts ...Option) (*Scheduler, error) {
	if runner == nil || source == nil {
		return nil, errors.New("scheduler requires a runner and a data source")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}

	s := &Scheduler{
		runner:   runner,
		source:   source,
		schedule: schedule,
		logger:   slog.Default().With("component", "automation.scheduler"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Overlapping passes are skipped rather than queued.
	cronLog := cron.PrintfLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelDebug))
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLog)))
	return s, nil
}

// Start schedules passes until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler already running")
	}

	id, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.RunPass(ctx); err != nil {
			s.logger.Error("scheduled pass failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule passes: %w", err)
	}
	s.entry = id

	s.cron.Start()
	s.running = true

	s.logger.Info("automation scheduler started",
		"schedule", s.schedule,
		"retention", s.retention.String(),
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// RunPass runs one pass immediately.
func (s *Scheduler) RunPass(ctx context.Context) (Pass, error) {
	pass := Pass{At: s.now()}

	items, err := s.source.Items(ctx)
	if err != nil {
		return pass, fmt.Errorf("failed to load snapshot: %w", err)
	}
	pass.Items = len(items)

	runs, err := s.runner.RunOnce(ctx, items, automation.EvalContext{Now: pass.At, Trigger: TriggerSchedule})
	for _, run := range runs {
		pass.Triggered = append(pass.Triggered, run.Rule.ID)
		if !run.Succeeded() {
			pass.Failed++
		}
	}
	if err != nil {
		s.logger.Warn("pass finished with history errors", "error", err)
	}

	if s.pruner != nil && s.retention > 0 {
		pruned, perr := s.pruner.Prune(ctx, pass.At.Add(-s.retention))
		if perr != nil {
			err = errors.Join(err, fmt.Errorf("failed to prune history: %w", perr))
		}
		pass.Pruned = pruned
	}

	if len(runs) > 0 {
		s.logger.Info("scheduled pass completed",
			"items", pass.Items,
			"triggered", len(runs),
			"failed", pass.Failed,
			"pruned", pass.Pruned,
		)
	} else {
		s.logger.Debug("scheduled pass completed, no rules triggered", "items", pass.Items)
	}
	return pass, err
}

// Stop stops the scheduler and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.cron.Remove(s.entry)
		s.running = false
		s.logger.Info("automation scheduler stopped")
	}
}

// IsRunning reports whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled pass time, or nil when nothing is
// scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 || entries[0].Next.IsZero() {
		return nil
	}
	next := entries[0].Next
	return &next
}
