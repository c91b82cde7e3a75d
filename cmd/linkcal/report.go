package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/linkcal/linkcal/pkg/calibrate"
)

type reportOpts struct {
	dataFile     string
	repoPath     string
	cutoff       float64
	maxEvalLinks int
	phantoms     int
	jaccard      float64
	noProgress   bool
	input        inputFlags
}

func newReportCmd(g *globalOpts) *cobra.Command {
	var opts reportOpts

	cmd := &cobra.Command{
		Use:   "report [data-file] [repo-path]",
		Short: "Report link quality at a fixed score cutoff",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.dataFile, opts.repoPath = dataArgs(args)
			return runReport(withContext(cmd.Context()), cmd, g, opts)
		},
	}

	d := calibrate.DefaultParams()
	cmd.Flags().Float64Var(&opts.cutoff, "cutoff", 0, "Score cutoff; links scoring at least this are kept")
	cmd.Flags().IntVar(&opts.maxEvalLinks, "max-eval-links", d.MaxEvalLinks, "Highest-scored kept links to classify (0 = all)")
	cmd.Flags().IntVar(&opts.phantoms, "phantoms", d.PhantomSamples, "Phantom links to list")
	cmd.Flags().Float64Var(&opts.jaccard, "jaccard", d.JaccardThreshold, "Co-change similarity needed to count an unconfirmed link as real")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Disable the progress bar")
	_ = cmd.MarkFlagRequired("cutoff")
	opts.input.register(cmd)

	return cmd
}

func runReport(ctx context.Context, cmd *cobra.Command, g *globalOpts, opts reportOpts) error {
	if opts.cutoff < 0 {
		return fmt.Errorf("cutoff must be >= 0, got %v", opts.cutoff)
	}
	ws, ok, err := openWorkspace(cmd, g, opts.input, opts.dataFile, opts.repoPath)
	if err != nil || !ok {
		return err
	}

	params := ws.cfg.Params()
	if cmd.Flags().Changed("max-eval-links") {
		params.MaxEvalLinks = opts.maxEvalLinks
	}
	if cmd.Flags().Changed("phantoms") {
		params.PhantomSamples = opts.phantoms
	}
	if cmd.Flags().Changed("jaccard") {
		params.JaccardThreshold = opts.jaccard
	}
	if err := params.Validate(); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}

	classifier, cache := ws.classifier(params)
	rep, err := calibrate.Report(ctx, calibrate.ReportInput{
		Scores:         ws.dataset.Heuristic,
		Classifier:     classifier,
		Cutoff:         opts.cutoff,
		MaxEvalLinks:   params.MaxEvalLinks,
		PhantomSamples: params.PhantomSamples,
		Progress:       newProgress(ws.stderr, opts.noProgress),
	})
	if err != nil {
		return fmt.Errorf("reporting: %w", err)
	}

	cal := ws.header()
	cal.Params = params
	cal.Reports = []calibrate.QualityReport{*rep}
	cal.Evidence = cache.Stats()
	return ws.render(cal)
}
