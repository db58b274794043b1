package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"mercator-hq/scanport/pkg/automation"
)

// DefaultDebounce is the quiet period used when none is configured.
const DefaultDebounce = 250 * time.Millisecond

// Reloader receives a freshly loaded rule set.
type Reloader interface {
	ReplaceRules(rules []automation.Rule) error
}

// ReloadFunc observes the outcome of every reload attempt.
type ReloadFunc func(loaded int, err error)

// Watcher reloads rules into a Reloader whenever the watched file or
// directory changes. Bursts of events collapse into one reload.
type Watcher struct {
	path     string
	dir      bool
	target   Reloader
	logger   *slog.Logger
	interval time.Duration
	onReload ReloadFunc

	fsw      *fsnotify.Watcher
	debounce *debouncer

	mu       sync.Mutex
	running  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the quiet period before a reload.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithLogger sets the watcher logger.
func WithLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithReloadHook registers fn to run after every reload attempt.
func WithReloadHook(fn ReloadFunc) WatcherOption {
	return func(w *Watcher) { w.onReload = fn }
}

// NewWatcher starts observing path. Events that arrive before Watch is
// called are delivered once it runs.
//
// A single file is watched through its parent directory so editors that
// save by renaming a temporary file are still noticed.
func NewWatcher(path string, target Reloader, opts ...WatcherOption) (*Watcher, error) {
	if target == nil {
		return nil, errors.New("watcher requires a reload target")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to watch %q: %w", path, err)
	}

	w := &Watcher{
		path:     abs,
		dir:      info.IsDir(),
		target:   target,
		logger:   slog.Default(),
		interval: DefaultDebounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.debounce = newDebouncer(w.interval)

	w.fsw, err = fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := w.addPaths(); err != nil {
		_ = w.fsw.Close()
		return nil, err
	}
	return w, nil
}

// Reload loads the rules now and hands them to the target. On any error
// the target keeps its current rules.
func (w *Watcher) Reload() (int, error) {
	rules, err := Load(w.path)
	if err == nil {
		err = w.target.ReplaceRules(rules)
	}
	if w.onReload != nil {
		w.onReload(len(rules), err)
	}
	if err != nil {
		return 0, err
	}
	return len(rules), nil
}

// Watch processes file events until ctx is done or Stop is called. A
// Watcher runs at most once.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("watcher already started")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.debounce.stop()
		_ = w.fsw.Close()
		close(w.doneCh)
	}()

	select {
	case <-w.stopCh:
		return nil
	default:
	}

	w.logger.Info("rule watcher started",
		"path", w.path,
		"debounce_ms", w.interval.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("rule watcher stopped", "reason", ctx.Err())
			return nil

		case <-w.stopCh:
			w.logger.Info("rule watcher stopped")
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if w.dir && event.Has(fsnotify.Create) {
				w.watchNewDirectory(event.Name)
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("rule file event", "path", event.Name, "op", event.Op.String())
			w.debounce.trigger(w.reload)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			w.logger.Error("rule watcher error", "error", err)
		}
	}
}

// Stop ends a running Watch and waits for it to return.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })

	w.mu.Lock()
	running := w.running
	w.mu.Unlock()
	if running {
		<-w.doneCh
		return
	}
	w.debounce.stop()
	_ = w.fsw.Close()
}

func (w *Watcher) reload() {
	n, err := w.Reload()
	if err != nil {
		w.logger.Error("rule reload failed, keeping previous rules", "path", w.path, "error", err)
		return
	}
	w.logger.Info("rules reloaded", "path", w.path, "rules", n)
}

func (w *Watcher) addPaths() error {
	if !w.dir {
		if err := w.fsw.Add(filepath.Dir(w.path)); err != nil {
			return fmt.Errorf("failed to watch %q: %w", w.path, err)
		}
		return nil
	}
	return filepath.WalkDir(w.path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.path && isHidden(p) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("failed to watch directory %q: %w", p, err)
		}
		return nil
	})
}

func (w *Watcher) watchNewDirectory(p string) {
	info, err := os.Stat(p)
	if err != nil || !info.IsDir() || isHidden(p) {
		return
	}
	if err := w.fsw.Add(p); err != nil {
		w.logger.Warn("failed to watch new directory", "path", p, "error", err)
	}
}

// relevant reports whether an event can change the loaded rule set.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if !w.dir {
		return filepath.Clean(event.Name) == w.path
	}
	return isRuleFile(event.Name) && !isHidden(event.Name)
}

// debouncer runs the latest callback once no trigger has arrived for an
// interval.
type debouncer struct {
	interval time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{interval: interval}
}

func (d *debouncer) trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		stopped := d.stopped
		d.mu.Unlock()
		if !stopped {
			fn()
		}
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
