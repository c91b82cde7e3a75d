package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/linkcal/linkcal/pkg/calibrate"
)

type bucketsOpts struct {
	dataFile   string
	repoPath   string
	bounds     []float64
	maxLinks   int
	jaccard    float64
	noProgress bool
	input      inputFlags
}

func newBucketsCmd(g *globalOpts) *cobra.Command {
	var opts bucketsOpts

	cmd := &cobra.Command{
		Use:   "buckets [data-file] [repo-path]",
		Short: "Tabulate hallucination rate by score range",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.dataFile, opts.repoPath = dataArgs(args)
			return runBuckets(withContext(cmd.Context()), cmd, g, opts)
		},
	}

	d := calibrate.DefaultParams()
	cmd.Flags().Float64SliceVar(&opts.bounds, "buckets", d.BucketBounds, "Ascending bucket lower bounds, starting at 0")
	cmd.Flags().IntVar(&opts.maxLinks, "max-links", d.BucketMaxLinks, "Highest-scored links to classify (0 = all)")
	cmd.Flags().Float64Var(&opts.jaccard, "jaccard", d.JaccardThreshold, "Co-change similarity needed to count an unconfirmed link as real")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Disable the progress bar")
	opts.input.register(cmd)

	return cmd
}

func runBuckets(ctx context.Context, cmd *cobra.Command, g *globalOpts, opts bucketsOpts) error {
	ws, ok, err := openWorkspace(cmd, g, opts.input, opts.dataFile, opts.repoPath)
	if err != nil || !ok {
		return err
	}

	params := ws.cfg.Params()
	if cmd.Flags().Changed("buckets") {
		params.BucketBounds = opts.bounds
	}
	if cmd.Flags().Changed("max-links") {
		params.BucketMaxLinks = opts.maxLinks
	}
	if cmd.Flags().Changed("jaccard") {
		params.JaccardThreshold = opts.jaccard
	}
	if err := params.Validate(); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}

	classifier, cache := ws.classifier(params)
	table, err := calibrate.AnalyzeBuckets(ctx, calibrate.BucketInput{
		Scores:     ws.dataset.Heuristic,
		Classifier: classifier,
		Bounds:     params.BucketBounds,
		MaxLinks:   params.BucketMaxLinks,
		Progress:   newProgress(ws.stderr, opts.noProgress),
	})
	if err != nil {
		return fmt.Errorf("analyzing buckets: %w", err)
	}

	cal := ws.header()
	cal.Params = params
	cal.Buckets = *table
	cal.Evidence = cache.Stats()
	return ws.render(cal)
}
