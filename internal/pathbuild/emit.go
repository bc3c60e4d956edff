package pathbuild

import (
	"fmt"
	"strings"

	"snapvec/internal/geometry"
)

// degenerateEdge is the segment length below which Catmull-Rom control
// handles overshoot; such segments fall back to one-third-point handles.
const degenerateEdge = 1.0

// tension derives the Catmull-Rom tension from the fitting strength.
// Stronger fitting pulls the curve closer to the polyline.
func tension(fitting int) float64 {
	return 0.5 + float64(fitting)/200
}

// emitLoop renders one closed loop as SVG path commands. Edges touching
// a hard corner become straight lines; everything else becomes cubic
// segments with Catmull-Rom derived control handles. Coordinates are
// multiplied by invScale to return from processing resolution to source
// pixel space.
func emitLoop(sb *strings.Builder, pts []geometry.Point, corners []bool, fitting int, invScale float64) {
	n := len(pts)
	if n < 3 {
		return
	}

	t := tension(fitting)
	writePoint(sb, "M", pts[0], invScale)

	for i := 0; i < n; i++ {
		p1 := pts[i]
		p2 := pts[(i+1)%n]

		if corners[i] || corners[(i+1)%n] {
			writePoint(sb, "L", p2, invScale)
			continue
		}

		p0 := pts[(i-1+n)%n]
		p3 := pts[(i+2)%n]

		var c1, c2 geometry.Point
		if p1.Dist(p2) < degenerateEdge {
			c1 = geometry.Lerp(p1, p2, 1.0/3)
			c2 = geometry.Lerp(p1, p2, 2.0/3)
		} else {
			c1 = p1.Add(p2.Sub(p0).Scale(t / 6))
			c2 = p2.Sub(p3.Sub(p1).Scale(t / 6))
		}
		writeCubic(sb, c1, c2, p2, invScale)
	}
	sb.WriteString("Z")
}

func writePoint(sb *strings.Builder, cmd string, p geometry.Point, s float64) {
	fmt.Fprintf(sb, "%s%s %s ", cmd, coord(p.X*s), coord(p.Y*s))
}

func writeCubic(sb *strings.Builder, c1, c2, end geometry.Point, s float64) {
	fmt.Fprintf(sb, "C%s %s %s %s %s %s ",
		coord(c1.X*s), coord(c1.Y*s),
		coord(c2.X*s), coord(c2.Y*s),
		coord(end.X*s), coord(end.Y*s))
}

// coord formats with two decimals, trimming trailing zeros so solid
// shapes serialize compactly.
func coord(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "-0" || s == "" {
		return "0"
	}
	return s
}
