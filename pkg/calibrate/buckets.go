package calibrate

import (
	"context"
	"fmt"
	"strconv"

	"github.com/linkcal/linkcal/pkg/link"
)

// BucketInput is everything AnalyzeBuckets needs.
type BucketInput struct {
	Scores     link.ScoredSet
	Classifier *Classifier
	Bounds     []float64 // ascending lower bounds; nil uses DefaultBucketBounds
	MaxLinks   int       // 0 = every link

	Progress Progress
}

// AnalyzeBuckets tallies labels per score range to show how well the score
// correlates with hallucination. Each link lands in the single range
// containing its score.
func AnalyzeBuckets(ctx context.Context, in BucketInput) (*BucketTable, error) {
	if in.Classifier == nil {
		return nil, ErrNilClassifier
	}
	bounds := in.Bounds
	if bounds == nil {
		bounds = DefaultBucketBounds
	}
	if err := ValidateBucketBounds(bounds); err != nil {
		return nil, err
	}

	items := in.Scores.Ranked()
	table := &BucketTable{Rows: make([]BucketRow, len(bounds))}
	if in.MaxLinks > 0 && len(items) > in.MaxLinks {
		items = items[:in.MaxLinks]
		table.Truncated = true
	}
	table.EvaluatedLinks = len(items)

	for i, lower := range bounds {
		row := BucketRow{Lower: lower}
		if i+1 < len(bounds) {
			upper := bounds[i+1]
			row.Upper = &upper
		}
		row.Name = bucketName(row.Lower, row.Upper)
		table.Rows[i] = row
	}

	verdicts, err := classifyAll(ctx, in.Classifier, items, progressOrNop(in.Progress), "Bucketing links")
	if err != nil {
		return nil, err
	}

	for i, s := range items {
		idx := bucketIndex(bounds, s.Score)
		table.Rows[idx].Counts.Add(verdicts[i].Label)
	}

	table.Aggregate = BucketRow{Name: "all", Lower: 0}
	for i := range table.Rows {
		table.Rows[i].HallucinationRate = table.Rows[i].Counts.NoiseRatio()
		table.Aggregate.Counts.Merge(table.Rows[i].Counts)
	}
	table.Aggregate.HallucinationRate = table.Aggregate.Counts.NoiseRatio()
	return table, nil
}

// bucketIndex returns the last bucket whose lower bound is <= score.
// Scores are never negative, so bucket 0 always qualifies.
func bucketIndex(bounds []float64, score float64) int {
	idx := 0
	for i, lower := range bounds {
		if score >= lower {
			idx = i
		}
	}
	return idx
}

func bucketName(lower float64, upper *float64) string {
	if upper == nil {
		return fmt.Sprintf("[%s,inf)", formatBound(lower))
	}
	return fmt.Sprintf("[%s,%s)", formatBound(lower), formatBound(*upper))
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
