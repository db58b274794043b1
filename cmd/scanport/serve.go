package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/scanport/pkg/automation/scheduler"
	"mercator-hq/scanport/pkg/automation/source"
	"mercator-hq/scanport/pkg/cli"
	"mercator-hq/scanport/pkg/config"
	"mercator-hq/scanport/pkg/telemetry/health"
)

var serveFlags struct {
	listenAddress   string
	shutdownTimeout time.Duration
	healthRPS       float64
	dryRun          bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run scheduled rule evaluation",
	Long: `Run the automation engine until interrupted.

Every automation.schedule tick the snapshot in automation.data_file is
evaluated against the loaded rules and triggered actions run. With
automation.watch the rule file is reloaded when it changes. Metrics and
health endpoints are served on telemetry.metrics.listen_address.

Examples:
  # Start with the default config.yaml
  scanport serve

  # Override the listen address
  scanport serve --listen 0.0.0.0:9100

  # Validate the setup without starting
  scanport serve --dry-run`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override the metrics and health listen address")
	serveCmd.Flags().DurationVar(&serveFlags.shutdownTimeout, "shutdown-timeout", 10*time.Second, "graceful shutdown timeout")
	serveCmd.Flags().Float64Var(&serveFlags.healthRPS, "health-rps", 10, "rate limit for health endpoints (0 disables)")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "load config and rules without starting")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if serveFlags.listenAddress != "" {
		cfg.Telemetry.Metrics.ListenAddress = serveFlags.listenAddress
	}

	out := cmd.OutOrStdout()
	a, err := newApp(cfg, out)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	logServeConfig(a.logger, cfg)

	if err := a.loadRules(); err != nil {
		return cli.NewCommandError("serve", err)
	}
	summary := a.engine.Summary()
	fmt.Fprintf(out, "✓ Rules loaded (%d enabled of %d)\n", summary.Enabled, summary.Total)

	if serveFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	if cfg.Automation.Watch && cfg.Automation.RulesFile != "" {
		watcher, err := source.NewWatcher(cfg.Automation.RulesFile, a.engine,
			source.WithDebounce(cfg.Automation.WatchDebounce),
			source.WithLogger(a.logger.With("component", "rule_watcher")),
		)
		if err != nil {
			return cli.NewCommandError("serve", err)
		}
		defer watcher.Stop()
		go func() {
			if err := watcher.Watch(ctx); err != nil {
				a.logger.Error("rule watcher exited", "error", err)
			}
		}()
		fmt.Fprintf(out, "✓ Watching %s\n", cfg.Automation.RulesFile)
	}

	var sched *scheduler.Scheduler
	if cfg.Automation.DataFile != "" {
		sched, err = scheduler.New(a.engine, scheduler.FileSource{Path: cfg.Automation.DataFile}, cfg.Automation.Schedule,
			scheduler.WithRetention(a.history, cfg.Automation.History.Retention),
			scheduler.WithLogger(a.logger.With("component", "scheduler")),
		)
		if err != nil {
			return cli.NewConfigError("automation.schedule", err.Error())
		}
		if err := sched.Start(ctx); err != nil {
			return cli.NewCommandError("serve", err)
		}
		defer sched.Stop()
		if next := sched.NextRun(); next != nil {
			fmt.Fprintf(out, "✓ Scheduler started (next pass %s)\n", next.Format(time.RFC3339))
		}
	} else {
		a.logger.Warn("automation.data_file not set, scheduled evaluation disabled")
	}

	srv := &http.Server{
		Addr:              cfg.Telemetry.Metrics.ListenAddress,
		Handler:           a.routes(sched),
		ReadHeaderTimeout: 5 * time.Second,
	}
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return cli.NewCommandError("serve", fmt.Errorf("failed to listen on %s: %w", srv.Addr, err))
	}

	errChan := make(chan error, 1)
	go func() {
		a.logger.Info("starting HTTP server", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	fmt.Fprintf(out, "✓ Health endpoint: http://%s/readyz\n", ln.Addr())
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Fprintf(out, "✓ Metrics endpoint: http://%s%s\n", ln.Addr(), cfg.Telemetry.Metrics.Path)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	select {
	case err := <-errChan:
		return cli.NewCommandError("serve", err)
	case <-ctx.Done():
		fmt.Fprintln(out, "\nShutting down gracefully...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serveFlags.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("shutdown failed", "error", err)
		return cli.NewCommandError("serve", err)
	}
	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}

// routes builds the metrics and health mux. sched may be nil.
func (a *app) routes(sched *scheduler.Scheduler) http.Handler {
	mux := http.NewServeMux()
	if a.cfg.Telemetry.Metrics.Enabled {
		mux.Handle(a.cfg.Telemetry.Metrics.Path, a.metrics.Handler())
	}

	checker := health.New(health.DefaultTimeout)
	for name, check := range a.healthChecks(sched) {
		checker.Register(name, check)
	}

	probes := http.NewServeMux()
	health.Mount(probes, checker, currentBuild())
	limited := health.RateLimited(probes.ServeHTTP, serveFlags.healthRPS, int(serveFlags.healthRPS)+1)
	for _, path := range []string{"/healthz", "/readyz", "/version"} {
		mux.Handle(path, limited)
	}
	return mux
}

func (a *app) healthChecks(sched *scheduler.Scheduler) map[string]health.CheckFunc {
	checks := map[string]health.CheckFunc{
		"history": func(ctx context.Context) error {
			_, err := a.history.List(ctx, "", 1)
			return err
		},
		"rules": func(context.Context) error {
			if a.engine.Summary().Enabled == 0 {
				return errors.New("no enabled rules")
			}
			return nil
		},
	}
	if a.uploader != nil {
		checks["cloud"] = a.uploader.Ping
	}
	if sched != nil {
		checks["scheduler"] = func(context.Context) error {
			if !sched.IsRunning() {
				return errors.New("scheduler not running")
			}
			return nil
		}
	}
	return checks
}

// logServeConfig records the effective automation settings at debug level.
func logServeConfig(logger *slog.Logger, cfg *config.Config) {
	logger.Debug("automation settings",
		"rules_file", cfg.Automation.RulesFile,
		"watch", cfg.Automation.Watch,
		"schedule", cfg.Automation.Schedule,
		"data_file", cfg.Automation.DataFile,
		"history_backend", cfg.Automation.History.Backend,
	)
}
