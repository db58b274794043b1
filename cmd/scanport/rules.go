package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/scanport/pkg/automation"
	"mercator-hq/scanport/pkg/automation/history"
	"mercator-hq/scanport/pkg/automation/source"
	"mercator-hq/scanport/pkg/cli"
)

// TriggerManual tags history entries started from the command line.
const TriggerManual = "manual"

var rulesFlags struct {
	output  string
	at      string
	execute bool
	ruleID  string
	limit   int
	initOut string
	force   bool
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and run automation rules",
	Long: `Inspect, evaluate and run automation rules.

Rules come from automation.rules_file in the configuration, or the
built-in rule set when none is configured.`,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the loaded rules",
	Args:  cobra.NoArgs,
	RunE:  runRulesList,
}

var rulesEvaluateCmd = &cobra.Command{
	Use:   "evaluate [flags] <snapshot.json|->",
	Short: "Show which rules a snapshot triggers",
	Long: `Evaluate every enabled rule against a snapshot.

Without --execute only the matching rules are listed. With --execute
their actions run and the outcome is recorded in the trigger history.

Examples:
  scanport rules evaluate scans.json
  scanport rules evaluate --at 2026-01-05T09:00:00Z scans.json
  scanport rules evaluate --execute scans.json`,
	Args: cobra.ExactArgs(1),
	RunE: runRulesEvaluate,
}

var rulesHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded rule triggers",
	Args:  cobra.NoArgs,
	RunE:  runRulesHistory,
}

var rulesInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the built-in rules as a YAML rule file",
	Args:  cobra.NoArgs,
	RunE:  runRulesInit,
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate <path>",
	Short: "Validate a rule file or directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesValidate,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd, rulesEvaluateCmd, rulesHistoryCmd, rulesInitCmd, rulesValidateCmd)

	rulesCmd.PersistentFlags().StringVarP(&rulesFlags.output, "output", "o", "text", "output format: text, json, csv")

	rulesEvaluateCmd.Flags().StringVar(&rulesFlags.at, "at", "", "evaluate as of this RFC 3339 instant")
	rulesEvaluateCmd.Flags().BoolVar(&rulesFlags.execute, "execute", false, "run the actions of matching rules")

	rulesHistoryCmd.Flags().StringVar(&rulesFlags.ruleID, "rule", "", "only show triggers of this rule")
	rulesHistoryCmd.Flags().IntVar(&rulesFlags.limit, "limit", 20, "maximum entries to show (0 for all)")

	rulesInitCmd.Flags().StringVarP(&rulesFlags.initOut, "file", "f", "", "write to this file instead of stdout")
	rulesInitCmd.Flags().BoolVar(&rulesFlags.force, "force", false, "overwrite an existing file")
}

// withRules builds the app, loads the rules and runs fn.
func withRules(cmd *cobra.Command, fn func(a *app, f cli.OutputFormat) error) error {
	outFormat, err := cli.ParseOutputFormat(rulesFlags.output)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	if err := a.loadRules(); err != nil {
		return cli.NewCommandError(cmd.Name(), err)
	}
	return fn(a, outFormat)
}

func runRulesList(cmd *cobra.Command, _ []string) error {
	return withRules(cmd, func(a *app, f cli.OutputFormat) error {
		summary := a.engine.Summary()
		if f == cli.FormatJSON {
			return cli.NewFormatter(f).FormatTo(cmd.OutOrStdout(), summary)
		}
		return cli.NewFormatter(f).FormatTo(cmd.OutOrStdout(), rulesTable(summary))
	})
}

func rulesTable(s automation.Summary) cli.Table {
	t := cli.Table{Headers: []string{"id", "name", "enabled", "conditions", "actions", "last_triggered"}}
	for _, r := range s.Rules {
		t.Append(
			r.ID,
			r.Name,
			strconv.FormatBool(r.Enabled),
			strconv.Itoa(r.Conditions),
			strconv.Itoa(r.Actions),
			formatTime(r.LastTriggered),
		)
	}
	return t
}

func runRulesEvaluate(cmd *cobra.Command, args []string) error {
	ec := automation.EvalContext{Trigger: TriggerManual}
	if rulesFlags.at != "" {
		at, err := time.Parse(time.RFC3339, rulesFlags.at)
		if err != nil {
			return cli.NewConfigError("at", fmt.Sprintf("invalid instant %q: %v", rulesFlags.at, err))
		}
		ec.Now = at
	}

	items, err := readItems(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}

	return withRules(cmd, func(a *app, f cli.OutputFormat) error {
		out := cmd.OutOrStdout()
		ctx, stop := cli.SignalContext(cmd.Context())
		defer stop()

		if !rulesFlags.execute {
			matched := a.engine.EvaluateRules(ctx, items, ec)
			if f == cli.FormatJSON {
				return cli.NewFormatter(f).FormatTo(out, matched)
			}
			t := cli.Table{Headers: []string{"id", "name"}}
			for _, r := range matched {
				t.Append(r.ID, r.Name)
			}
			return cli.NewFormatter(f).FormatTo(out, t)
		}

		runs, err := a.engine.RunOnce(ctx, items, ec)
		if f == cli.FormatJSON {
			if ferr := cli.NewFormatter(f).FormatTo(out, runs); ferr != nil {
				return ferr
			}
		} else if ferr := cli.NewFormatter(f).FormatTo(out, runsTable(runs)); ferr != nil {
			return ferr
		}
		if err != nil {
			return cli.NewCommandError("rules evaluate", err)
		}
		for _, run := range runs {
			if !run.Succeeded() {
				return cli.NewCommandError("rules evaluate", fmt.Errorf("rule %q had failing actions", run.Rule.ID))
			}
		}
		return nil
	})
}

func runsTable(runs []automation.RuleRun) cli.Table {
	t := cli.Table{Headers: []string{"rule", "action", "success", "error"}}
	for _, run := range runs {
		for _, res := range run.Results {
			t.Append(run.Rule.ID, string(res.ActionType), strconv.FormatBool(res.Success), res.Error)
		}
	}
	return t
}

func runRulesHistory(cmd *cobra.Command, _ []string) error {
	return withRules(cmd, func(a *app, f cli.OutputFormat) error {
		entries, err := a.history.List(cmd.Context(), rulesFlags.ruleID, rulesFlags.limit)
		if err != nil {
			return cli.NewCommandError("rules history", err)
		}
		if f == cli.FormatJSON {
			return cli.NewFormatter(f).FormatTo(cmd.OutOrStdout(), entries)
		}
		return cli.NewFormatter(f).FormatTo(cmd.OutOrStdout(), historyTable(entries))
	})
}

func historyTable(entries []history.Entry) cli.Table {
	t := cli.Table{Headers: []string{"triggered_at", "rule", "trigger", "items", "success", "actions"}}
	for _, e := range entries {
		failed := 0
		for _, a := range e.Actions {
			if !a.Success {
				failed++
			}
		}
		t.Append(
			formatTime(&e.TriggeredAt),
			e.RuleID,
			e.Trigger,
			strconv.Itoa(e.ItemCount),
			strconv.FormatBool(e.Success),
			fmt.Sprintf("%d/%d ok", len(e.Actions)-failed, len(e.Actions)),
		)
	}
	return t
}

func runRulesInit(cmd *cobra.Command, _ []string) error {
	data, err := source.Marshal(automation.DefaultRules())
	if err != nil {
		return err
	}
	if rulesFlags.initOut == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if rulesFlags.force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(rulesFlags.initOut, flags, 0o644)
	if err != nil {
		return cli.NewCommandError("rules init", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return cli.NewCommandError("rules init", err)
	}
	if err := f.Close(); err != nil {
		return cli.NewCommandError("rules init", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d rules to %s\n", len(automation.DefaultRules()), rulesFlags.initOut)
	return nil
}

func runRulesValidate(cmd *cobra.Command, args []string) error {
	rules, err := source.Load(args[0])
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "✗ %s is invalid\n", args[0])
		return cli.NewConfigError(args[0], err.Error())
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is valid (%d rules)\n", args[0], len(rules))
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
