package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/linkcal/linkcal/internal/storage"
	"github.com/linkcal/linkcal/pkg/calibrate"
	"github.com/linkcal/linkcal/pkg/config"
)

// paramFlags are the calibration overrides shared by calibrate, buckets and report.
type paramFlags struct {
	jaccard        float64
	targets        []float64
	maxCandidates  int
	maxEvalLinks   int
	minKept        int
	minCoverage    float64
	coverageWeight float64
}

func (f *paramFlags) register(cmd *cobra.Command) {
	d := calibrate.DefaultParams()
	cmd.Flags().Float64Var(&f.jaccard, "jaccard", d.JaccardThreshold, "Co-change similarity needed to count an unconfirmed link as real")
	cmd.Flags().Float64SliceVar(&f.targets, "target", d.TargetNoiseRatios, "Target noise ratios to pick cutoffs for")
	cmd.Flags().IntVar(&f.maxCandidates, "max-candidates", d.MaxCandidates, "Links sampled by the cutoff search (0 = all)")
	cmd.Flags().IntVar(&f.maxEvalLinks, "max-eval-links", d.MaxEvalLinks, "Links evaluated per quality report (0 = all)")
	cmd.Flags().IntVar(&f.minKept, "min-kept", d.MinKeptLinks, "Minimum links a cutoff must keep")
	cmd.Flags().Float64Var(&f.minCoverage, "min-coverage", d.MinSrcCoverage, "Minimum share of source files a cutoff must keep linked")
	cmd.Flags().Float64Var(&f.coverageWeight, "coverage-weight", d.CoverageWeight, "Weight of coverage in the fallback utility")
}

// apply overlays flags the user set on params from config.
func (f *paramFlags) apply(cmd *cobra.Command, p calibrate.Params) calibrate.Params {
	flags := cmd.Flags()
	if flags.Changed("jaccard") {
		p.JaccardThreshold = f.jaccard
	}
	if flags.Changed("target") {
		p.TargetNoiseRatios = f.targets
	}
	if flags.Changed("max-candidates") {
		p.MaxCandidates = f.maxCandidates
	}
	if flags.Changed("max-eval-links") {
		p.MaxEvalLinks = f.maxEvalLinks
	}
	if flags.Changed("min-kept") {
		p.MinKeptLinks = f.minKept
	}
	if flags.Changed("min-coverage") {
		p.MinSrcCoverage = f.minCoverage
	}
	if flags.Changed("coverage-weight") {
		p.CoverageWeight = f.coverageWeight
	}
	return p
}

type calibrateOpts struct {
	dataFile   string
	repoPath   string
	store      string
	noProgress bool
	input      inputFlags
	params     paramFlags
}

func newCalibrateCmd(g *globalOpts) *cobra.Command {
	var opts calibrateOpts

	cmd := &cobra.Command{
		Use:   "calibrate [data-file] [repo-path]",
		Short: "Suggest score cutoffs and report link quality",
		Long: `Classifies every heuristic link as confirmed, true bonus or phantom,
searches for the lowest score cutoff meeting each target noise ratio, reports
quality at each suggested cutoff, and tabulates hallucination by score range.

data-file defaults to eval/aligned_data.json and repo-path to the current directory.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.dataFile, opts.repoPath = dataArgs(args)
			return runCalibrate(withContext(cmd.Context()), cmd, g, opts)
		},
	}

	cmd.Flags().StringVar(&opts.store, "store", "", "Archive the JSON report to a directory, s3://bucket/prefix or gs://bucket/prefix")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Disable the progress bar")
	opts.input.register(cmd)
	opts.params.register(cmd)

	return cmd
}

func runCalibrate(ctx context.Context, cmd *cobra.Command, g *globalOpts, opts calibrateOpts) error {
	ws, ok, err := openWorkspace(cmd, g, opts.input, opts.dataFile, opts.repoPath)
	if err != nil || !ok {
		return err
	}

	params := opts.params.apply(cmd, ws.cfg.Params())
	if err := params.Validate(); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}

	fmt.Fprintf(ws.stderr, "Calibrating %d heuristic links against %d truth links...\n",
		ws.dataset.Stats.HeuristicLinks, ws.dataset.Stats.TruthLinks)

	cal, err := calibrate.Run(ctx, calibrate.RunInput{
		Dataset:   ws.dataset,
		RepoRoot:  ws.repoRoot,
		Collector: ws.cfg.Collector(ws.logger),
		Params:    params,
		Progress:  newProgress(ws.stderr, opts.noProgress),
		Logger:    ws.logger,
	})
	if err != nil {
		return fmt.Errorf("calibrating: %w", err)
	}

	if err := ws.render(cal); err != nil {
		return err
	}

	archiveURI := opts.store
	if archiveURI == "" && ws.cfg.Archive.Enabled {
		archiveURI = firstNonEmpty(ws.cfg.Archive.URI, config.CacheDir(ws.repoRoot))
	}
	if archiveURI != "" {
		archiveReport(ctx, ws, archiveURI, cal)
	}
	return nil
}

// archiveReport stores the JSON calibration. Failures only warn: the report
// has already been printed.
func archiveReport(ctx context.Context, ws *workspace, uri string, cal *calibrate.Calibration) {
	store, err := storage.Open(ctx, uri, storage.S3Config{})
	if err != nil {
		fmt.Fprintf(ws.stderr, "Warning: failed to open report store: %v\n", err)
		return
	}
	data, err := json.MarshalIndent(cal, "", "  ")
	if err != nil {
		fmt.Fprintf(ws.stderr, "Warning: failed to marshal report: %v\n", err)
		return
	}
	if err := store.PutReport(ctx, cal.ID, data); err != nil {
		fmt.Fprintf(ws.stderr, "Warning: failed to archive report: %v\n", err)
		return
	}
	fmt.Fprintf(ws.stderr, "Report archived: %s (%s)\n", cal.ID, uri)
}
