package surface

import (
	"encoding/json"
	"io"

	"github.com/linkcal/linkcal/pkg/calibrate"
	"github.com/linkcal/linkcal/pkg/link"
)

// JSONRenderer marshals results to indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(w io.Writer, cal *calibrate.Calibration) error {
	return encode(w, cal)
}

func (r *JSONRenderer) RenderComparison(w io.Writer, c *link.Comparison) error {
	return encode(w, c)
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
