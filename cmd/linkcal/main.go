// Package main provides the linkcal CLI entry point.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/linkcal/linkcal/internal/logging"
)

var version = "dev"

// globalOpts are the persistent flags shared by every subcommand.
type globalOpts struct {
	configPath string
	output     string
	verbose    bool
	logFormat  string
}

func newRootCmd() *cobra.Command {
	g := &globalOpts{}

	rootCmd := &cobra.Command{
		Use:   "linkcal",
		Short: "Calibrate score cutoffs for heuristic file links",
		Long: `linkcal compares scored heuristic file-to-file links against an exact
ground-truth link set and version-control co-change evidence, then suggests
the score cutoff that keeps hallucinated links under a target ratio.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if g.verbose {
				level = slog.LevelDebug
			}
			logging.Init(level, g.logFormat, cmd.ErrOrStderr())
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "Path to config file (default: .linkcal/config.yaml above the repo path)")
	pf.StringVarP(&g.output, "output", "o", "text", "Output format: text, json or markdown")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVar(&g.logFormat, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(
		newCalibrateCmd(g),
		newBucketsCmd(g),
		newReportCmd(g),
		newCompareCmd(g),
		newVersionCmd(),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the linkcal version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "linkcal %s\n", version)
		},
	}
}
