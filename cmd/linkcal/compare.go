package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/linkcal/linkcal/pkg/link"
)

type compareOpts struct {
	dataFile string
	input    inputFlags
}

func newCompareCmd(g *globalOpts) *cobra.Command {
	var opts compareOpts

	cmd := &cobra.Command{
		Use:   "compare [data-file]",
		Short: "Compare heuristic links and symbols with the ground truth, ignoring scores",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.dataFile, _ = dataArgs(args)
			return runCompare(cmd, g, opts)
		},
	}
	opts.input.register(cmd)
	return cmd
}

func runCompare(cmd *cobra.Command, g *globalOpts, opts compareOpts) error {
	ws, ok, err := openWorkspace(cmd, g, opts.input, opts.dataFile, defaultRepoPath)
	if err != nil || !ok {
		return err
	}

	c := link.CompareDataset(ws.dataset)
	if err := ws.renderer.RenderComparison(ws.stdout, &c); err != nil {
		return fmt.Errorf("rendering: %w", err)
	}
	return nil
}
