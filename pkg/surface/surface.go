// Package surface renders calibration results for different output targets:
// terminal, JSON and markdown.
package surface

import (
	"fmt"
	"io"

	"github.com/linkcal/linkcal/pkg/calibrate"
	"github.com/linkcal/linkcal/pkg/link"
)

// Renderer produces formatted output from calibration results. Sections of a
// Calibration that were not computed (no suggestions, no reports, no bucket
// rows) are skipped.
type Renderer interface {
	// Render writes the formatted calibration to the writer.
	Render(w io.Writer, cal *calibrate.Calibration) error
	// RenderComparison writes a set-level truth/heuristic comparison.
	RenderComparison(w io.Writer, c *link.Comparison) error
}

// ForFormat returns the renderer for an --output value.
func ForFormat(format string) (Renderer, error) {
	switch format {
	case "", "text":
		return &TerminalRenderer{}, nil
	case "json":
		return &JSONRenderer{}, nil
	case "markdown", "md":
		return &MarkdownRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want text, json or markdown)", format)
	}
}

// maxListed caps how many links a comparison lists per category.
const maxListed = 10

func pct(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

func formatScore(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
