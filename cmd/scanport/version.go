package main

import (
	"fmt"
	"io"
	"runtime"

	"mercator-hq/scanport/pkg/cli"
	"mercator-hq/scanport/pkg/telemetry/health"

	"github.com/spf13/cobra"
)

// Overridden with -ldflags "-X main.Version=...".
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionOutput string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the scanport version with the commit and toolchain it was built from.`,
	Run: func(cmd *cobra.Command, args []string) {
		if versionOutput == string(cli.FormatJSON) {
			_ = cli.NewFormatter(cli.FormatJSON).FormatTo(cmd.OutOrStdout(), currentBuild())
			return
		}
		printVersion(cmd.OutOrStdout())
	},
}

func currentBuild() health.BuildInfo {
	return health.BuildInfo{
		Version:   Version,
		Commit:    GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
}

func printVersion(w io.Writer) {
	b := currentBuild()
	fmt.Fprintf(w, "Scanport %s\n", b.Version)
	fmt.Fprintf(w, "Git Commit: %s\n", b.Commit)
	fmt.Fprintf(w, "Build Date: %s\n", b.BuildDate)
	fmt.Fprintf(w, "Go Version: %s\n", b.GoVersion)
	fmt.Fprintf(w, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

func init() {
	versionCmd.Flags().StringVarP(&versionOutput, "output", "o", "text", "Output format (text, json)")
	rootCmd.AddCommand(versionCmd)
}
