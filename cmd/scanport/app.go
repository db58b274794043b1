package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"mercator-hq/scanport/pkg/automation"
	"mercator-hq/scanport/pkg/automation/history"
	"mercator-hq/scanport/pkg/automation/scheduler"
	"mercator-hq/scanport/pkg/automation/source"
	"mercator-hq/scanport/pkg/cli"
	"mercator-hq/scanport/pkg/config"
	"mercator-hq/scanport/pkg/export"
	"mercator-hq/scanport/pkg/export/orchestrator"
	"mercator-hq/scanport/pkg/resilience"
	"mercator-hq/scanport/pkg/sinks/cloud"
	"mercator-hq/scanport/pkg/sinks/document"
	"mercator-hq/scanport/pkg/sinks/email"
	"mercator-hq/scanport/pkg/sinks/localfs"
	"mercator-hq/scanport/pkg/sinks/sheets"
	"mercator-hq/scanport/pkg/telemetry/logging"
	"mercator-hq/scanport/pkg/telemetry/metrics"
	"mercator-hq/scanport/pkg/telemetry/tracing"
)

// app holds the components shared by every command.
type app struct {
	cfg          *config.Config
	logger       *slog.Logger
	registry     *prometheus.Registry
	metrics      *metrics.Collector
	tracer       *tracing.Tracer
	orchestrator *orchestrator.Orchestrator
	engine       *automation.Engine
	history      history.Store
	uploader     *cloud.NATSUploader
}

// loadConfig reads the --config file. The default path may be absent, in
// which case defaults and environment overrides apply.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := cfgFile
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	cfg, err := config.LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, cli.NewConfigError("", err.Error())
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	return cfg, nil
}

// newApp wires sinks, the orchestrator and the automation engine. Share
// notices for persisted artifacts are written to out.
func newApp(cfg *config.Config, out io.Writer) (*app, error) {
	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging, os.Stderr))
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, registry)

	tracing.ServiceVersion = Version
	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  collector,
		tracer:   tracer,
	}

	opts := []orchestrator.Option{
		orchestrator.WithPersister(localfs.New(cfg.Export.OutputDir, logger)),
		orchestrator.WithSharer(shareNotice{w: out}),
		orchestrator.WithRenderer(document.NewHTMLRenderer()),
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(collector),
		orchestrator.WithTracer(tracer),
	}
	engineOpts := []automation.Option{
		automation.WithLogger(logger),
		automation.WithMetrics(collector),
		automation.WithTracer(tracer),
	}

	if cfg.Sinks.Sheets.Enabled {
		wb := sheets.NewWorkbook(cfg.Sinks.Sheets.Dir, cfg.Sinks.Sheets.BaseURL, logger)
		if cfg.Sinks.Sheets.Credential != "" {
			if err := wb.Connect(cfg.Sinks.Sheets.Credential); err != nil {
				return nil, fmt.Errorf("failed to connect spreadsheet sink: %w", err)
			}
		}
		opts = append(opts, orchestrator.WithSpreadsheet(wb))
	}

	if cfg.Sinks.Email.Enabled {
		sender := email.NewSMTPSender(cfg.Sinks.Email, logger)
		opts = append(opts, orchestrator.WithMailer(sender))
		engineOpts = append(engineOpts, automation.WithMailer(sender))
	}

	if cfg.Sinks.Cloud.Enabled {
		executor := resilience.NewExecutor("cloud", resilience.PolicyFrom(cfg.Sinks.Cloud.Resilience), logger)
		uploader, err := cloud.Dial(cfg.Sinks.Cloud, executor, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect cloud sink: %w", err)
		}
		a.uploader = uploader
		opts = append(opts, orchestrator.WithUploader(uploader))
		engineOpts = append(engineOpts, automation.WithUploader(uploader))
	}

	store, err := history.Open(cfg.Automation.History)
	if err != nil {
		a.Close(context.Background())
		return nil, err
	}
	a.history = store

	webhookExec := resilience.NewExecutor("webhook", resilience.PolicyFrom(cfg.Automation.Webhook.Resilience), logger)
	a.orchestrator = orchestrator.New(orchestrator.ConfigFrom(cfg), opts...)
	engineOpts = append(engineOpts,
		automation.WithExporter(a.orchestrator),
		automation.WithHistory(store),
		automation.WithWebhookClient(automation.NewWebhookClient(cfg.Automation.Webhook, webhookExec, logger)),
	)
	a.engine = automation.New(engineOpts...)

	return a, nil
}

// loadRules installs the configured rule file, or the built-in rules when
// none is configured.
func (a *app) loadRules() error {
	rules := automation.DefaultRules()
	if path := a.cfg.Automation.RulesFile; path != "" {
		loaded, err := source.Load(path)
		if err != nil {
			return err
		}
		rules = loaded
	}
	return a.engine.ReplaceRules(rules)
}

// Close releases every component. It is safe on a partially built app.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.history != nil {
		errs = append(errs, a.history.Close())
	}
	if a.uploader != nil {
		a.uploader.Close()
	}
	if a.tracer != nil {
		errs = append(errs, a.tracer.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// shareNotice tells the user where a persisted artifact can be found.
type shareNotice struct {
	w io.Writer
}

func (s shareNotice) Share(ctx context.Context, ref *export.ArtifactRef, mimeType, title string) error {
	if s.w == nil || ref == nil {
		return nil
	}
	_, err := fmt.Fprintf(s.w, "✓ %s saved to %s\n", title, ref.Location)
	return err
}

// readItems decodes a snapshot from path, or stdin when path is "-".
func readItems(path string, stdin io.Reader) ([]export.Item, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return scheduler.DecodeItems(data)
}
