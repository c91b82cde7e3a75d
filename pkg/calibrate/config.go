package calibrate

import (
	"fmt"
	"math"
)

// Params holds every tunable of a calibration run.
type Params struct {
	// Classification
	JaccardThreshold float64 `json:"jaccard_threshold"`

	// Cutoff search
	TargetNoiseRatios []float64 `json:"target_noise_ratios"`
	MaxCandidates     int       `json:"max_candidates"`   // sample cap; 0 = no cap
	MinKeptLinks      int       `json:"min_kept_links"`   // 0 = no constraint
	MinKeptFloor      bool      `json:"min_kept_floor"`   // raise MinKeptLinks to EffectiveMinKept
	MinSrcCoverage    float64   `json:"min_src_coverage"` // 0 = no constraint
	CoverageWeight    float64   `json:"coverage_weight"`  // fallback utility weight

	// Reporting
	MaxEvalLinks   int       `json:"max_eval_links"`   // 0 = no cap
	PhantomSamples int       `json:"phantom_samples"`  // phantom links listed per report
	BucketBounds   []float64 `json:"bucket_bounds"`    // ascending lower bounds, first is 0
	BucketMaxLinks int       `json:"bucket_max_links"` // 0 = every link
}

// DefaultBucketBounds are the lower bounds of [0,10) [10,50) [50,100) [100,500) [500,∞).
var DefaultBucketBounds = []float64{0, 10, 50, 100, 500}

// Minimum kept-link floor applied when MinKeptFloor is set.
const (
	minKeptAbsolute = 50
	minKeptFraction = 0.01
)

// DefaultParams returns the default calibration parameters.
func DefaultParams() Params {
	return Params{
		JaccardThreshold:  0.2,
		TargetNoiseRatios: []float64{0.1, 0.2, 0.3},
		MaxCandidates:     20000,
		MinKeptFloor:      true,
		CoverageWeight:    0.15,
		MaxEvalLinks:      20000,
		PhantomSamples:    5,
		BucketBounds:      append([]float64(nil), DefaultBucketBounds...),
	}
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	if p.JaccardThreshold <= 0 || p.JaccardThreshold > 1 {
		return fmt.Errorf("jaccard threshold %v outside (0,1]", p.JaccardThreshold)
	}
	if len(p.TargetNoiseRatios) == 0 {
		return fmt.Errorf("at least one target noise ratio is required")
	}
	for _, t := range p.TargetNoiseRatios {
		if t < 0 || t > 1 {
			return fmt.Errorf("target noise ratio %v outside [0,1]", t)
		}
	}
	if p.MaxCandidates < 0 || p.MaxEvalLinks < 0 || p.BucketMaxLinks < 0 || p.MinKeptLinks < 0 {
		return fmt.Errorf("link limits must not be negative")
	}
	if p.MinSrcCoverage < 0 || p.MinSrcCoverage > 1 {
		return fmt.Errorf("min source coverage %v outside [0,1]", p.MinSrcCoverage)
	}
	return ValidateBucketBounds(p.BucketBounds)
}

// ValidateBucketBounds requires strictly ascending bounds starting at 0.
func ValidateBucketBounds(bounds []float64) error {
	if len(bounds) == 0 {
		return fmt.Errorf("bucket bounds are empty")
	}
	if bounds[0] != 0 {
		return fmt.Errorf("first bucket bound must be 0, got %v", bounds[0])
	}
	for i := 1; i < len(bounds); i++ {
		if bounds[i] <= bounds[i-1] {
			return fmt.Errorf("bucket bounds must be strictly ascending: %v", bounds)
		}
	}
	return nil
}

// EffectiveMinKept applies the kept-link floor max(50, 1% of total) to the
// configured minimum, capped at total so the constraint stays reachable.
func EffectiveMinKept(total, configured int) int {
	floor := int(math.Ceil(float64(total) * minKeptFraction))
	if floor < minKeptAbsolute {
		floor = minKeptAbsolute
	}
	if floor > total {
		floor = total
	}
	if configured > floor {
		return configured
	}
	return floor
}
