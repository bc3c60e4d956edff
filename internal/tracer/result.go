package tracer

import (
	"fmt"
	"strings"
)

// VectorPath is one output unit: all regions of one color, concatenated
// into a compound path resolved by the even-odd fill rule.
type VectorPath struct {
	ID          string
	PathData    string
	FillColor   string
	StrokeColor string
	StrokeWidth float64
	// OffsetX/Y translate the path in source pixel space. Non-zero when
	// the path came from a worker-pool strip.
	OffsetX float64
	OffsetY float64
	// Scale is the residual scale factor. Path data is emitted already
	// rescaled to source pixels, so this is 1 unless a renderer opts
	// into processing-resolution coordinates.
	Scale float64
}

// Result is the output of one trace run. Paths are ordered by descending
// pixel coverage so background-like regions render first.
type Result struct {
	Paths   []VectorPath
	Palette []PaletteItem
	// Width/Height of the source image in pixels.
	Width  int
	Height int
	// Markup is the flattened path-element markup, filled when the
	// engine is configured to emit it.
	Markup string
}

// PathMarkup flattens the paths into SVG <path> elements. Document
// assembly (headers, viewBox) belongs to the caller; the engine does
// not own file output.
func PathMarkup(paths []VectorPath) string {
	var sb strings.Builder
	for _, p := range paths {
		sb.WriteString(`<path d="`)
		sb.WriteString(p.PathData)
		sb.WriteString(`" fill="`)
		sb.WriteString(p.FillColor)
		sb.WriteString(`" fill-rule="evenodd"`)
		if p.StrokeColor != "" {
			fmt.Fprintf(&sb, ` stroke="%s" stroke-width="%s"`, p.StrokeColor, trimFloat(p.StrokeWidth))
		}
		if p.OffsetX != 0 || p.OffsetY != 0 {
			fmt.Fprintf(&sb, ` transform="translate(%s %s)"`, trimFloat(p.OffsetX), trimFloat(p.OffsetY))
		}
		sb.WriteString("/>\n")
	}
	return sb.String()
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "" || s == "-0" {
		return "0"
	}
	return s
}
