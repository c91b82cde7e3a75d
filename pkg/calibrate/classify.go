package calibrate

import (
	"context"

	"github.com/linkcal/linkcal/pkg/evidence"
	"github.com/linkcal/linkcal/pkg/link"
)

// Verdict is the classification of one link. Similarity is nil for
// ground-truth links, whose label never consults co-change evidence.
type Verdict struct {
	Label      Label    `json:"label"`
	Similarity *float64 `json:"similarity,omitempty"`
}

// Classifier labels links: ground truth first, then co-change similarity,
// otherwise phantom. Verdicts are memoized, which is sound because the
// evidence cache is never invalidated during a run. Not safe for concurrent use.
type Classifier struct {
	Truth            link.TruthSet
	Evidence         *evidence.Cache // nil means no co-change evidence
	JaccardThreshold float64

	verdicts map[link.Link]Verdict
}

// NewClassifier creates a classifier over the given truth set and cache.
func NewClassifier(truth link.TruthSet, cache *evidence.Cache, jaccardThreshold float64) *Classifier {
	return &Classifier{
		Truth:            truth,
		Evidence:         cache,
		JaccardThreshold: jaccardThreshold,
	}
}

// Classify returns the verdict for l, querying evidence for both endpoints
// on first use.
func (c *Classifier) Classify(ctx context.Context, l link.Link) Verdict {
	if v, ok := c.verdicts[l]; ok {
		return v
	}
	v := c.classify(ctx, l)
	if c.verdicts == nil {
		c.verdicts = make(map[link.Link]Verdict)
	}
	c.verdicts[l] = v
	return v
}

func (c *Classifier) classify(ctx context.Context, l link.Link) Verdict {
	if c.Truth.Contains(l) {
		return Verdict{Label: LabelConfirmed}
	}

	var sim float64
	if c.Evidence != nil {
		sim = evidence.Jaccard(c.Evidence.Get(ctx, l.Src), c.Evidence.Get(ctx, l.Dst))
	}
	if sim >= c.JaccardThreshold {
		return Verdict{Label: LabelTrueBonus, Similarity: &sim}
	}
	return Verdict{Label: LabelPhantom, Similarity: &sim}
}
