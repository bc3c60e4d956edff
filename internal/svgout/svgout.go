// Package svgout assembles trace results into standalone SVG documents.
// The engine owns path geometry; this package owns the document wrapper.
package svgout

import (
	"fmt"
	"io"
	"strings"

	"snapvec/internal/tracer"
)

const xmlns = "http://www.w3.org/2000/svg"

// Document renders a complete SVG file for the result. The viewBox spans
// the source image in pixels so strip offsets and path data line up
// without further scaling.
func Document(result *tracer.Result) string {
	var sb strings.Builder
	writeDocument(&sb, result)
	return sb.String()
}

// Write streams the document to w.
func Write(w io.Writer, result *tracer.Result) error {
	var sb strings.Builder
	writeDocument(&sb, result)
	_, err := io.WriteString(w, sb.String())
	if err != nil {
		return fmt.Errorf("write svg document: %w", err)
	}
	return nil
}

func writeDocument(sb *strings.Builder, result *tracer.Result) {
	fmt.Fprintf(sb, `<svg xmlns="%s" width="%d" height="%d" viewBox="0 0 %d %d">`,
		xmlns, result.Width, result.Height, result.Width, result.Height)
	sb.WriteString("\n")

	markup := result.Markup
	if markup == "" {
		markup = tracer.PathMarkup(result.Paths)
	}
	sb.WriteString(markup)
	sb.WriteString("</svg>\n")
}
