/*
Package cli provides the terminal helpers used by the scanport command.

Output Formatting:

Command results are printed as text, JSON or CSV. Tabular results use
Table so every format can render them:

	table := cli.Table{Headers: []string{"id", "name"}}
	table.Append("rule-1", "Daily Backup")
	if err := cli.NewFormatter(cli.FormatCSV).FormatTo(os.Stdout, table); err != nil {
		return err
	}

Progress Reporting:

ProgressBar renders an export progress stream on one terminal line:

	bar := cli.NewProgressBar(os.Stderr)
	result, err := orch.Export(ctx, items, format, opts, bar.Func())

Signal Handling:

SignalContext returns a context canceled on SIGINT or SIGTERM:

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()
*/
package cli
