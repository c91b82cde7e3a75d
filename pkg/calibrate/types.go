// Package calibrate implements the link calibration engine: it labels
// heuristic links against ground truth and co-change evidence, searches for a
// score cutoff meeting a hallucination bound, and reports resulting quality.
package calibrate

import (
	"time"

	"github.com/linkcal/linkcal/pkg/evidence"
	"github.com/linkcal/linkcal/pkg/link"
)

// Label is the classification of one heuristic link.
type Label string

const (
	// LabelConfirmed marks a link present in the ground truth.
	LabelConfirmed Label = "confirmed"
	// LabelTrueBonus marks a link missing from ground truth but backed by
	// co-change evidence.
	LabelTrueBonus Label = "true_bonus"
	// LabelPhantom marks a link with no support at all.
	LabelPhantom Label = "phantom"
)

// LabelCounts tallies labels over a set of links.
type LabelCounts struct {
	Confirmed int `json:"confirmed"`
	TrueBonus int `json:"true_bonus"`
	Phantom   int `json:"phantom"`
	Total     int `json:"total"`
}

// Add counts one link with the given label.
func (c *LabelCounts) Add(l Label) {
	switch l {
	case LabelConfirmed:
		c.Confirmed++
	case LabelTrueBonus:
		c.TrueBonus++
	default:
		c.Phantom++
	}
	c.Total++
}

// Merge adds o into c.
func (c *LabelCounts) Merge(o LabelCounts) {
	c.Confirmed += o.Confirmed
	c.TrueBonus += o.TrueBonus
	c.Phantom += o.Phantom
	c.Total += o.Total
}

// NoiseRatio is phantom/total, 0 for an empty tally.
func (c LabelCounts) NoiseRatio() float64 {
	return safeRatio(c.Phantom, c.Total)
}

// EffectiveRatio is (confirmed+true_bonus)/total, 0 for an empty tally.
func (c LabelCounts) EffectiveRatio() float64 {
	return safeRatio(c.Confirmed+c.TrueBonus, c.Total)
}

// Coverage is the share of source files keeping at least one link.
type Coverage struct {
	Ratio   float64 `json:"ratio"`
	Covered int     `json:"covered"`
	Total   int     `json:"total"`
}

// CutoffRow is the evaluation of one candidate cutoff.
type CutoffRow struct {
	Cutoff     float64     `json:"cutoff"`
	Kept       int         `json:"kept"`
	Counts     LabelCounts `json:"counts"`
	NoiseRatio float64     `json:"noise_ratio"`
	Precision  float64     `json:"precision"`
	Coverage   Coverage    `json:"coverage"`
	Utility    float64     `json:"utility"`
	Satisfied  bool        `json:"satisfied"` // met every search constraint
}

// SearchResult is the outcome of a cutoff search: either a selected row or
// NoCutoffFound when no candidate could be evaluated. Read the row through
// Selected; Found and Row are exported for JSON only. A selected row is the
// lowest cutoff satisfying all constraints (Row.Satisfied) or the
// best-utility fallback.
type SearchResult struct {
	Found      bool        `json:"found"`
	Row        CutoffRow   `json:"row"`
	Evaluated  []CutoffRow `json:"evaluated"`
	SampleSize int         `json:"sample_size"`
	Truncated  bool        `json:"truncated"`
}

// Selected returns the chosen row, or false for NoCutoffFound.
func (r SearchResult) Selected() (CutoffRow, bool) {
	if !r.Found {
		return CutoffRow{}, false
	}
	return r.Row, true
}

// NoCutoffFound reports whether the search had nothing to evaluate.
func (r SearchResult) NoCutoffFound() bool {
	return !r.Found
}

// selectRow marks row as the search outcome.
func (r *SearchResult) selectRow(row CutoffRow) {
	r.Found = true
	r.Row = row
}

// QualityReport describes the links surviving one cutoff on the full set.
type QualityReport struct {
	Cutoff         float64       `json:"cutoff"`
	Counts         LabelCounts   `json:"counts"`
	NoiseRatio     float64       `json:"noise_ratio"`
	EffectiveRatio float64       `json:"effective_ratio"`
	Coverage       Coverage      `json:"coverage"`
	KeptLinks      int           `json:"kept_links"`
	EvaluatedLinks int           `json:"evaluated_links"`
	Truncated      bool          `json:"truncated"`
	PhantomSamples []link.Scored `json:"phantom_samples,omitempty"`
}

// BucketRow holds the label tally for one score range. A nil Upper means the
// range is unbounded above.
type BucketRow struct {
	Name              string      `json:"name"`
	Lower             float64     `json:"lower"`
	Upper             *float64    `json:"upper,omitempty"`
	Counts            LabelCounts `json:"counts"`
	HallucinationRate float64     `json:"hallucination_rate"`
}

// BucketTable is the score-range correlation analysis.
type BucketTable struct {
	Rows           []BucketRow `json:"rows"`
	Aggregate      BucketRow   `json:"aggregate"`
	EvaluatedLinks int         `json:"evaluated_links"`
	Truncated      bool        `json:"truncated"`
}

// Suggestion is the cutoff picked for one target noise ratio.
type Suggestion struct {
	TargetNoiseRatio float64      `json:"target_noise_ratio"`
	MinKeptLinks     int          `json:"min_kept_links"`
	Search           SearchResult `json:"search"`
}

// Calibration is the complete output of one calibration run.
type Calibration struct {
	ID        string              `json:"id"`
	Dataset   string              `json:"dataset"`
	RepoRoot  string              `json:"repo_root"`
	Stats     link.Stats          `json:"stats"`
	Params    Params              `json:"params"`
	Suggested []Suggestion        `json:"suggested"`
	Reports   []QualityReport     `json:"reports"`
	Buckets   BucketTable         `json:"buckets"`
	Evidence  evidence.CacheStats `json:"evidence"`
	CreatedAt time.Time           `json:"created_at"`
}

func safeRatio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
