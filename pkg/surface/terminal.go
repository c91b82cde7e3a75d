package surface

import (
	"fmt"
	"io"
	"os"

	"github.com/linkcal/linkcal/pkg/calibrate"
	"github.com/linkcal/linkcal/pkg/link"
)

// TerminalRenderer renders results as colored terminal output.
type TerminalRenderer struct{}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

// rateColor grades a hallucination rate.
func rateColor(rate float64) string {
	if noColor() {
		return ""
	}
	switch {
	case rate < 0.1:
		return colorGreen
	case rate < 0.3:
		return colorYellow
	default:
		return colorRed
	}
}

func noColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

func bold(s string) string {
	if noColor() {
		return s
	}
	return colorBold + s + colorReset
}

func dim(s string) string {
	if noColor() {
		return s
	}
	return colorDim + s + colorReset
}

func colored(s, color string) string {
	if noColor() || color == "" {
		return s
	}
	return color + s + colorReset
}

func (r *TerminalRenderer) Render(w io.Writer, cal *calibrate.Calibration) error {
	title := "linkcal"
	if cal.Dataset != "" {
		title += ": " + cal.Dataset
	}
	fmt.Fprintf(w, "%s\n\n", bold(title))

	st := cal.Stats
	fmt.Fprintf(w, "Dataset: %d truth links / %d heuristic links (%d records) / %d source files\n",
		st.TruthLinks, st.HeuristicLinks, st.HeuristicRecords, st.SourceFiles)
	if st.Dropped > 0 {
		fmt.Fprintf(w, "         %s\n", dim(fmt.Sprintf("%d links dropped by input filters", st.Dropped)))
	}
	if cal.Evidence.Files > 0 {
		fmt.Fprintf(w, "Evidence: %d files queried (%d without history), %d unique commits\n",
			cal.Evidence.Files, cal.Evidence.EmptyFiles, cal.Evidence.UniqueCommits)
	}
	fmt.Fprintln(w)

	if len(cal.Suggested) > 0 {
		renderSuggestions(w, cal.Suggested)
	}
	for i := range cal.Reports {
		renderReport(w, &cal.Reports[i])
	}
	if len(cal.Buckets.Rows) > 0 {
		renderBuckets(w, &cal.Buckets)
	}
	return nil
}

func renderSuggestions(w io.Writer, suggestions []calibrate.Suggestion) {
	fmt.Fprintln(w, bold("Suggested cutoffs:"))
	for _, s := range suggestions {
		fmt.Fprintf(w, "  target <= %-6s ", pct(s.TargetNoiseRatio))
		row, ok := s.Search.Selected()
		if !ok {
			fmt.Fprintln(w, dim("no cutoff found (no scored links)"))
			continue
		}
		fmt.Fprintf(w, "cutoff %s  kept %d  noise %s  precision %s  coverage %s (%d/%d)",
			bold(formatScore(row.Cutoff)), row.Kept,
			colored(pct(row.NoiseRatio), rateColor(row.NoiseRatio)),
			pct(row.Precision), pct(row.Coverage.Ratio), row.Coverage.Covered, row.Coverage.Total)
		if !row.Satisfied {
			fmt.Fprintf(w, "  %s", colored("(best effort: constraints not met)", colorYellow))
		}
		fmt.Fprintln(w)
		if s.Search.Truncated {
			fmt.Fprintf(w, "    %s\n", dim(fmt.Sprintf("searched the top %d links", s.Search.SampleSize)))
		}
	}
	fmt.Fprintln(w)
}

func renderReport(w io.Writer, rep *calibrate.QualityReport) {
	fmt.Fprintln(w, bold(fmt.Sprintf("Quality at cutoff %s:", formatScore(rep.Cutoff))))
	fmt.Fprintf(w, "  kept %d links", rep.KeptLinks)
	if rep.Truncated {
		fmt.Fprintf(w, " %s", dim(fmt.Sprintf("(evaluated top %d)", rep.EvaluatedLinks)))
	}
	fmt.Fprintln(w)

	c := rep.Counts
	fmt.Fprintf(w, "  confirmed %d (%s) / true bonus %d (%s) / phantom %d (%s)\n",
		c.Confirmed, pct(safeShare(c.Confirmed, c.Total)),
		c.TrueBonus, pct(safeShare(c.TrueBonus, c.Total)),
		c.Phantom, pct(safeShare(c.Phantom, c.Total)))
	fmt.Fprintf(w, "  effective ratio %s, noise ratio %s\n",
		pct(rep.EffectiveRatio), colored(pct(rep.NoiseRatio), rateColor(rep.NoiseRatio)))
	fmt.Fprintf(w, "  source coverage %s (%d/%d)\n",
		pct(rep.Coverage.Ratio), rep.Coverage.Covered, rep.Coverage.Total)

	if len(rep.PhantomSamples) > 0 {
		fmt.Fprintln(w, "  sample phantom links:")
		for _, s := range rep.PhantomSamples {
			fmt.Fprintf(w, "    %s %s\n", colored("●", colorRed), dim(fmt.Sprintf("%s (score %s)", s.Link, formatScore(s.Score))))
		}
	}
	fmt.Fprintln(w)
}

func renderBuckets(w io.Writer, table *calibrate.BucketTable) {
	fmt.Fprintln(w, bold("Score buckets:"))
	fmt.Fprintf(w, "  %-12s %7s %10s %11s %8s %14s\n",
		"range", "total", "confirmed", "true_bonus", "phantom", "hallucination")
	rows := make([]calibrate.BucketRow, 0, len(table.Rows)+1)
	rows = append(rows, table.Rows...)
	rows = append(rows, table.Aggregate)
	for _, row := range rows {
		rate := pct(row.HallucinationRate)
		if row.Counts.Total == 0 {
			rate = "-"
		}
		fmt.Fprintf(w, "  %-12s %7d %10d %11d %8d %14s\n",
			row.Name, row.Counts.Total, row.Counts.Confirmed, row.Counts.TrueBonus, row.Counts.Phantom,
			colored(rate, rateColorIf(row.Counts.Total > 0, row.HallucinationRate)))
	}
	if table.Truncated {
		fmt.Fprintf(w, "  %s\n", dim(fmt.Sprintf("bucketed the top %d links", table.EvaluatedLinks)))
	}
	fmt.Fprintln(w)
}

func rateColorIf(ok bool, rate float64) string {
	if !ok {
		return ""
	}
	return rateColor(rate)
}

func (r *TerminalRenderer) RenderComparison(w io.Writer, c *link.Comparison) error {
	fmt.Fprintf(w, "%s\n\n", bold("linkcal: truth vs heuristic"))
	fmt.Fprintf(w, "Truth links: %d  Heuristic links: %d  Hits: %d\n", c.TruthLinks, c.HeuristicLinks, c.Hits)
	fmt.Fprintf(w, "Precision: %s  Recall: %s\n\n", bold(pct(c.Precision)), bold(pct(c.Recall)))

	if sym := c.Symbols; sym.TruthSymbols > 0 || sym.TruthRelations > 0 {
		fmt.Fprintf(w, "Symbols: %d truth / %d heuristic  Recall: %s\n",
			sym.TruthSymbols, sym.HeuristicSymbols, bold(pct(sym.SymbolRecall)))
		fmt.Fprintf(w, "Symbol relations: %d truth / %d heuristic  Recall: %s\n\n",
			sym.TruthRelations, sym.HeuristicRelations, bold(pct(sym.RelationRecall)))
	}

	renderLinkList(w, "Heuristic-only links", c.Bonus)
	renderLinkList(w, "Missed truth links", c.Missed)
	return nil
}

func renderLinkList(w io.Writer, title string, links []link.Link) {
	fmt.Fprintf(w, "%s: %d\n", title, len(links))
	n := len(links)
	if n > maxListed {
		n = maxListed
	}
	for _, l := range links[:n] {
		fmt.Fprintf(w, "  %s\n", l)
	}
	if len(links) > maxListed {
		fmt.Fprintf(w, "  %s\n", dim(fmt.Sprintf("... and %d more", len(links)-maxListed)))
	}
	fmt.Fprintln(w)
}

func safeShare(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
