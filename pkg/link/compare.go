package link

// Comparison is the set-level agreement between the ground truth and the
// heuristic links, ignoring scores.
type Comparison struct {
	TruthLinks     int     `json:"truth_links"`
	HeuristicLinks int     `json:"heuristic_links"`
	Hits           int     `json:"hits"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	Bonus          []Link  `json:"bonus"`  // heuristic only
	Missed         []Link  `json:"missed"` // truth only

	// Symbols is filled by CompareDataset.
	Symbols SymbolComparison `json:"symbols"`
}

// Compare computes precision and recall of the heuristic set against truth.
func Compare(truth TruthSet, heuristic ScoredSet) Comparison {
	c := Comparison{
		TruthLinks:     len(truth),
		HeuristicLinks: len(heuristic),
	}

	for l := range heuristic {
		if truth.Contains(l) {
			c.Hits++
		} else {
			c.Bonus = append(c.Bonus, l)
		}
	}
	for l := range truth {
		if _, ok := heuristic[l]; !ok {
			c.Missed = append(c.Missed, l)
		}
	}
	sortLinks(c.Bonus)
	sortLinks(c.Missed)

	c.Precision = ratio(c.Hits, c.HeuristicLinks)
	c.Recall = ratio(c.Hits, c.TruthLinks)
	return c
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
