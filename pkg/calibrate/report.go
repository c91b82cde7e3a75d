package calibrate

import (
	"context"

	"github.com/linkcal/linkcal/pkg/link"
)

// ReportInput is everything Report needs.
type ReportInput struct {
	Scores     link.ScoredSet
	Classifier *Classifier
	AllSources map[string]struct{} // nil derives it from Scores
	Cutoff     float64

	MaxEvalLinks   int // 0 = evaluate every kept link
	PhantomSamples int // phantom links to keep for display

	Progress Progress
}

// Report applies the cutoff to the full link set and classifies the
// surviving links. When more than MaxEvalLinks survive, only the highest
// scored ones are evaluated and the report is marked truncated.
func Report(ctx context.Context, in ReportInput) (*QualityReport, error) {
	if in.Classifier == nil {
		return nil, ErrNilClassifier
	}

	allSources := in.AllSources
	if allSources == nil {
		allSources = in.Scores.Sources()
	}

	var kept []link.Scored
	for _, s := range in.Scores.Ranked() {
		if s.Score >= in.Cutoff {
			kept = append(kept, s)
		}
	}

	rep := &QualityReport{
		Cutoff:    in.Cutoff,
		KeptLinks: len(kept),
	}
	if in.MaxEvalLinks > 0 && len(kept) > in.MaxEvalLinks {
		kept = kept[:in.MaxEvalLinks]
		rep.Truncated = true
	}
	rep.EvaluatedLinks = len(kept)

	verdicts, err := classifyAll(ctx, in.Classifier, kept, progressOrNop(in.Progress), "Evaluating cutoff")
	if err != nil {
		return nil, err
	}

	links := make([]link.Link, len(kept))
	for i, s := range kept {
		links[i] = s.Link
		rep.Counts.Add(verdicts[i].Label)
		if verdicts[i].Label == LabelPhantom && len(rep.PhantomSamples) < in.PhantomSamples {
			rep.PhantomSamples = append(rep.PhantomSamples, s)
		}
	}

	rep.NoiseRatio = rep.Counts.NoiseRatio()
	rep.EffectiveRatio = rep.Counts.EffectiveRatio()
	rep.Coverage = ComputeCoverage(links, allSources)
	return rep, nil
}
