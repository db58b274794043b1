package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/scanport/pkg/cli"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "scanport",
	Short: "Scanport - export and automation for scanned items",
	Long: `Scanport exports scanned items and automates what happens to them.

Exports:
  - CSV, JSON, HTML document and spreadsheet workbook encoders
  - Email delivery and cloud upload of the artifact
  - Progress reporting while large snapshots are encoded

Automation:
  - Rules with count, time, data type and product conditions
  - Export, email, upload and webhook actions
  - Cron scheduled passes and hot reloaded rule files`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path (ignored when the default is absent)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
