package calibrate

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/linkcal/linkcal/pkg/link"
)

// ErrNilClassifier is returned when a search or report has no classifier.
var ErrNilClassifier = errors.New("classifier is nil")

// candidateQuantiles are the quantiles of the sampled score distribution
// tried as cutoffs, in addition to 0.
var candidateQuantiles = []float64{0, 0.5, 0.7, 0.8, 0.9, 0.95}

// SearchInput is everything PickCutoff needs.
type SearchInput struct {
	Scores     link.ScoredSet
	Classifier *Classifier
	// AllSources is the full source-file universe for coverage. When nil it
	// is derived from Scores before sampling.
	AllSources map[string]struct{}

	TargetNoiseRatio float64
	MaxCandidates    int     // 0 = no sampling
	MinKeptLinks     int     // <= 0 disables the constraint
	MinSrcCoverage   float64 // <= 0 disables the constraint
	CoverageWeight   float64

	Progress Progress
}

// PickCutoff scans ascending candidate cutoffs and returns the lowest one
// whose kept links satisfy the noise, volume and coverage constraints. When
// none does, the candidate with the highest utility
// (precision - noise + CoverageWeight*coverage) is returned instead, ties
// going to the lowest cutoff.
func PickCutoff(ctx context.Context, in SearchInput) (SearchResult, error) {
	if in.Classifier == nil {
		return SearchResult{}, ErrNilClassifier
	}

	allSources := in.AllSources
	if allSources == nil {
		allSources = in.Scores.Sources()
	}

	sample := in.Scores.Ranked()
	var result SearchResult
	if in.MaxCandidates > 0 && len(sample) > in.MaxCandidates {
		sample = sample[:in.MaxCandidates]
		result.Truncated = true
	}
	result.SampleSize = len(sample)

	distinct := distinctScores(sample)
	if len(distinct) == 0 {
		return result, nil
	}
	candidates := cutoffCandidates(distinct)

	verdicts, err := classifyAll(ctx, in.Classifier, sample, progressOrNop(in.Progress), "Classifying sample")
	if err != nil {
		return SearchResult{}, err
	}

	var best *CutoffRow
	for _, cutoff := range candidates {
		if err := ctx.Err(); err != nil {
			return SearchResult{}, err
		}

		row, ok := evaluateCutoff(cutoff, sample, verdicts, allSources, in.CoverageWeight)
		if !ok {
			continue
		}

		row.Satisfied = row.NoiseRatio <= in.TargetNoiseRatio &&
			(in.MinKeptLinks <= 0 || row.Kept >= in.MinKeptLinks) &&
			(in.MinSrcCoverage <= 0 || row.Coverage.Ratio >= in.MinSrcCoverage)
		result.Evaluated = append(result.Evaluated, row)

		if row.Satisfied {
			result.selectRow(row)
			return result, nil
		}
		if best == nil || row.Utility > best.Utility {
			r := row
			best = &r
		}
	}

	if best != nil {
		result.selectRow(*best)
	}
	return result, nil
}

// evaluateCutoff scores the sample links at or above cutoff. It reports
// false when nothing survives.
func evaluateCutoff(cutoff float64, sample []link.Scored, verdicts []Verdict, allSources map[string]struct{}, coverageWeight float64) (CutoffRow, bool) {
	row := CutoffRow{Cutoff: cutoff}
	var kept []link.Link
	for i, s := range sample {
		if s.Score < cutoff {
			continue
		}
		kept = append(kept, s.Link)
		row.Counts.Add(verdicts[i].Label)
	}
	if len(kept) == 0 {
		return row, false
	}

	row.Kept = len(kept)
	row.NoiseRatio = row.Counts.NoiseRatio()
	row.Precision = row.Counts.EffectiveRatio()
	row.Coverage = ComputeCoverage(kept, allSources)
	row.Utility = row.Precision - row.NoiseRatio + coverageWeight*row.Coverage.Ratio
	return row, true
}

// classifyAll labels every link once, in order.
func classifyAll(ctx context.Context, c *Classifier, items []link.Scored, p Progress, title string) ([]Verdict, error) {
	p.Start(title, len(items))
	defer p.Done()

	verdicts := make([]Verdict, len(items))
	for i, s := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		verdicts[i] = c.Classify(ctx, s.Link)
		p.Step()
	}
	return verdicts, nil
}

// distinctScores returns the distinct scores in ascending order.
func distinctScores(items []link.Scored) []float64 {
	seen := make(map[float64]struct{}, len(items))
	var out []float64
	for _, s := range items {
		if _, ok := seen[s.Score]; ok {
			continue
		}
		seen[s.Score] = struct{}{}
		out = append(out, s.Score)
	}
	sort.Float64s(out)
	return out
}

// cutoffCandidates returns {0} ∪ quantiles of sorted, ascending and deduplicated.
func cutoffCandidates(sorted []float64) []float64 {
	set := map[float64]struct{}{0: {}}
	for _, q := range candidateQuantiles {
		set[quantile(sorted, q)] = struct{}{}
	}
	out := make([]float64, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}

// quantile is the nearest-rank quantile of an ascending, non-empty slice.
func quantile(sorted []float64, q float64) float64 {
	idx := int(math.Round(q * float64(len(sorted)-1)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
