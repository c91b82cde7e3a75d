package calibrate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/linkcal/linkcal/pkg/evidence"
	"github.com/linkcal/linkcal/pkg/link"
)

// RunInput configures one calibration run.
type RunInput struct {
	ID        string // empty gets a fresh UUID
	Dataset   *link.Dataset
	RepoRoot  string
	Collector evidence.Collector // nil disables co-change evidence
	Params    Params
	Progress  Progress
	Logger    *slog.Logger
}

// Run picks a cutoff per target noise ratio, reports quality for each
// distinct cutoff found and analyzes score buckets. All stages share one
// commit cache, so every file's history is queried at most once.
func Run(ctx context.Context, in RunInput) (*Calibration, error) {
	if in.Dataset == nil {
		return nil, fmt.Errorf("dataset is nil")
	}
	if err := in.Params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	logger := in.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var cache *evidence.Cache
	if in.Collector != nil {
		cache = evidence.NewCache(in.Collector, in.RepoRoot)
	}
	classifier := NewClassifier(in.Dataset.Truth, cache, in.Params.JaccardThreshold)
	allSources := in.Dataset.Heuristic.Sources()

	id := in.ID
	if id == "" {
		id = uuid.New().String()
	}

	cal := &Calibration{
		ID:        id,
		Dataset:   in.Dataset.Source,
		RepoRoot:  in.RepoRoot,
		Stats:     in.Dataset.Stats,
		Params:    in.Params,
		CreatedAt: time.Now().UTC(),
	}

	minKept := in.Params.MinKeptLinks
	if in.Params.MinKeptFloor {
		minKept = EffectiveMinKept(len(in.Dataset.Heuristic), minKept)
	}

	for _, target := range in.Params.TargetNoiseRatios {
		res, err := PickCutoff(ctx, SearchInput{
			Scores:           in.Dataset.Heuristic,
			Classifier:       classifier,
			AllSources:       allSources,
			TargetNoiseRatio: target,
			MaxCandidates:    in.Params.MaxCandidates,
			MinKeptLinks:     minKept,
			MinSrcCoverage:   in.Params.MinSrcCoverage,
			CoverageWeight:   in.Params.CoverageWeight,
			Progress:         in.Progress,
		})
		if err != nil {
			return nil, fmt.Errorf("picking cutoff for target %v: %w", target, err)
		}
		row, found := res.Selected()
		logger.Debug("cutoff search done",
			"target", target,
			"found", found,
			"cutoff", row.Cutoff,
			"satisfied", row.Satisfied,
			"sample", res.SampleSize,
		)
		cal.Suggested = append(cal.Suggested, Suggestion{
			TargetNoiseRatio: target,
			MinKeptLinks:     minKept,
			Search:           res,
		})
	}

	seen := make(map[float64]bool)
	for _, s := range cal.Suggested {
		row, ok := s.Search.Selected()
		if !ok || seen[row.Cutoff] {
			continue
		}
		seen[row.Cutoff] = true

		rep, err := Report(ctx, ReportInput{
			Scores:         in.Dataset.Heuristic,
			Classifier:     classifier,
			AllSources:     allSources,
			Cutoff:         row.Cutoff,
			MaxEvalLinks:   in.Params.MaxEvalLinks,
			PhantomSamples: in.Params.PhantomSamples,
			Progress:       in.Progress,
		})
		if err != nil {
			return nil, fmt.Errorf("reporting cutoff %v: %w", row.Cutoff, err)
		}
		cal.Reports = append(cal.Reports, *rep)
	}

	buckets, err := AnalyzeBuckets(ctx, BucketInput{
		Scores:     in.Dataset.Heuristic,
		Classifier: classifier,
		Bounds:     in.Params.BucketBounds,
		MaxLinks:   in.Params.BucketMaxLinks,
		Progress:   in.Progress,
	})
	if err != nil {
		return nil, fmt.Errorf("analyzing buckets: %w", err)
	}
	cal.Buckets = *buckets

	if cache != nil {
		cal.Evidence = cache.Stats()
	}
	logger.Info("calibration finished",
		"id", cal.ID,
		"links", len(in.Dataset.Heuristic),
		"reports", len(cal.Reports),
		"evidence_files", cal.Evidence.Files,
	)
	return cal, nil
}

// Headline returns the suggestion to summarize the run with: the first one
// whose cutoff met every constraint, else the first with any cutoff.
func (c *Calibration) Headline() (Suggestion, bool) {
	for _, s := range c.Suggested {
		if row, ok := s.Search.Selected(); ok && row.Satisfied {
			return s, true
		}
	}
	for _, s := range c.Suggested {
		if !s.Search.NoCutoffFound() {
			return s, true
		}
	}
	return Suggestion{}, false
}
