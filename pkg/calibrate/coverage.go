package calibrate

import "github.com/linkcal/linkcal/pkg/link"

// ComputeCoverage measures how many files of the source universe keep at
// least one outgoing link in kept. Sources outside the universe are ignored.
func ComputeCoverage(kept []link.Link, allSources map[string]struct{}) Coverage {
	cov := Coverage{Total: len(allSources)}
	if cov.Total == 0 {
		return cov
	}
	covered := make(map[string]struct{})
	for _, l := range kept {
		if _, ok := allSources[l.Src]; ok {
			covered[l.Src] = struct{}{}
		}
	}
	cov.Covered = len(covered)
	cov.Ratio = float64(cov.Covered) / float64(cov.Total)
	return cov
}
