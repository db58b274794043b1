package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/scanport/pkg/automation"
	"mercator-hq/scanport/pkg/automation/source"
	"mercator-hq/scanport/pkg/cli"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and rule file",
	Long: `Load the configuration with environment overrides applied and check
every field, then parse the configured rule file.

Examples:
  scanport validate
  scanport validate --config /etc/scanport/config.yaml`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintln(out, "✗ Configuration invalid")
		return err
	}
	fmt.Fprintln(out, "✓ Configuration valid")

	path := cfg.Automation.RulesFile
	if path == "" {
		fmt.Fprintf(out, "✓ Using %d built-in rules\n", len(automation.DefaultRules()))
		return nil
	}
	rules, err := source.Load(path)
	if err != nil {
		fmt.Fprintf(out, "✗ Rules in %s invalid\n", path)
		return cli.NewConfigError("automation.rules_file", err.Error())
	}
	fmt.Fprintf(out, "✓ Rules valid (%d rules in %s)\n", len(rules), path)
	return nil
}
