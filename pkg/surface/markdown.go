package surface

import (
	"fmt"
	"io"
	"strings"

	"github.com/linkcal/linkcal/pkg/calibrate"
	"github.com/linkcal/linkcal/pkg/link"
)

// MarkdownRenderer produces a markdown summary suitable for PR comments and
// CI job summaries.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) Render(w io.Writer, cal *calibrate.Calibration) error {
	_, err := io.WriteString(w, buildMarkdownSummary(cal))
	return err
}

func (r *MarkdownRenderer) RenderComparison(w io.Writer, c *link.Comparison) error {
	var sb strings.Builder

	sb.WriteString("## linkcal: truth vs heuristic\n\n")
	sb.WriteString("| Metric | Value |\n|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Truth links | %d |\n", c.TruthLinks))
	sb.WriteString(fmt.Sprintf("| Heuristic links | %d |\n", c.HeuristicLinks))
	sb.WriteString(fmt.Sprintf("| Hits | %d |\n", c.Hits))
	sb.WriteString(fmt.Sprintf("| Precision | %s |\n", pct(c.Precision)))
	sb.WriteString(fmt.Sprintf("| Recall | %s |\n", pct(c.Recall)))
	sb.WriteString(fmt.Sprintf("| Symbol recall | %s (%d/%d) |\n", pct(c.Symbols.SymbolRecall), c.Symbols.SymbolHits, c.Symbols.TruthSymbols))
	sb.WriteString(fmt.Sprintf("| Symbol relation recall | %s (%d/%d) |\n", pct(c.Symbols.RelationRecall), c.Symbols.RelationHits, c.Symbols.TruthRelations))
	sb.WriteString("\n")

	writeMarkdownLinks(&sb, "Heuristic-only links", c.Bonus)
	writeMarkdownLinks(&sb, "Missed truth links", c.Missed)

	_, err := io.WriteString(w, sb.String())
	return err
}

func buildMarkdownSummary(cal *calibrate.Calibration) string {
	var sb strings.Builder

	title := "linkcal calibration"
	if cal.Dataset != "" {
		title += ": `" + cal.Dataset + "`"
	}
	sb.WriteString("## " + title + "\n\n")

	sb.WriteString("### Dataset\n\n")
	sb.WriteString("| Metric | Count |\n|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Truth links | %d |\n", cal.Stats.TruthLinks))
	sb.WriteString(fmt.Sprintf("| Heuristic links | %d |\n", cal.Stats.HeuristicLinks))
	sb.WriteString(fmt.Sprintf("| Source files | %d |\n", cal.Stats.SourceFiles))
	if cal.Stats.Dropped > 0 {
		sb.WriteString(fmt.Sprintf("| Dropped by filters | %d |\n", cal.Stats.Dropped))
	}
	sb.WriteString("\n")

	if len(cal.Suggested) > 0 {
		sb.WriteString("### Suggested cutoffs\n\n")
		sb.WriteString("| Target noise | Cutoff | Kept | Noise | Precision | Coverage | Constraints met |\n")
		sb.WriteString("|---|---|---|---|---|---|---|\n")
		for _, s := range cal.Suggested {
			row, ok := s.Search.Selected()
			if !ok {
				sb.WriteString(fmt.Sprintf("| %s | - | - | - | - | - | no cutoff found |\n", pct(s.TargetNoiseRatio)))
				continue
			}
			met := "yes"
			if !row.Satisfied {
				met = "no (best effort)"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %s | %s | %s | %s |\n",
				pct(s.TargetNoiseRatio), formatScore(row.Cutoff), row.Kept,
				pct(row.NoiseRatio), pct(row.Precision), pct(row.Coverage.Ratio), met))
		}
		sb.WriteString("\n")
	}

	if len(cal.Reports) > 0 {
		sb.WriteString("### Quality per cutoff\n\n")
		sb.WriteString("| Cutoff | Kept | Confirmed | True bonus | Phantom | Noise | Coverage |\n")
		sb.WriteString("|---|---|---|---|---|---|---|\n")
		for _, rep := range cal.Reports {
			kept := fmt.Sprintf("%d", rep.KeptLinks)
			if rep.Truncated {
				kept += fmt.Sprintf(" (top %d)", rep.EvaluatedLinks)
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %d | %s | %s |\n",
				formatScore(rep.Cutoff), kept, rep.Counts.Confirmed, rep.Counts.TrueBonus,
				rep.Counts.Phantom, pct(rep.NoiseRatio), pct(rep.Coverage.Ratio)))
		}
		sb.WriteString("\n")
	}

	if len(cal.Buckets.Rows) > 0 {
		sb.WriteString("### Score buckets\n\n")
		sb.WriteString("| Range | Total | Confirmed | True bonus | Phantom | Hallucination |\n")
		sb.WriteString("|---|---|---|---|---|---|\n")
		rows := make([]calibrate.BucketRow, 0, len(cal.Buckets.Rows)+1)
		rows = append(rows, cal.Buckets.Rows...)
		rows = append(rows, cal.Buckets.Aggregate)
		for _, row := range rows {
			rate := "-"
			if row.Counts.Total > 0 {
				rate = pct(row.HallucinationRate)
			}
			name := row.Name
			if name == "all" {
				name = "**all**"
			}
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %d | %s |\n",
				name, row.Counts.Total, row.Counts.Confirmed, row.Counts.TrueBonus, row.Counts.Phantom, rate))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func writeMarkdownLinks(sb *strings.Builder, title string, links []link.Link) {
	sb.WriteString(fmt.Sprintf("### %s (%d)\n\n", title, len(links)))
	n := len(links)
	if n > maxListed {
		n = maxListed
	}
	for _, l := range links[:n] {
		sb.WriteString(fmt.Sprintf("- `%s`\n", l))
	}
	if len(links) > maxListed {
		sb.WriteString(fmt.Sprintf("_... and %d more_\n", len(links)-maxListed))
	}
	sb.WriteString("\n")
}
