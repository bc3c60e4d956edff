// Package pathbuild turns traced polygon loops into compact SVG path
// data: staircase removal, smoothing, Douglas-Peucker simplification,
// corner classification and curve emission.
package pathbuild

import (
	"strings"

	"snapvec/internal/geometry"
)

// Options controls the fit between the traced polygons and the emitted
// curves.
type Options struct {
	// Fitting strength 0–100: higher keeps more points and hugs the
	// traced boundary tighter.
	Fitting int
	// Corner sharpness 0–100: higher marks more points as hard corners.
	Corner int
	// Sampling is the upscale factor the loops were traced at; emitted
	// coordinates are divided back to source pixel space.
	Sampling int
}

// subdivideBelow is the fitting strength under which an extra midpoint
// subdivision runs before post-smoothing.
const subdivideBelow = 70

// Build concatenates all loops of one color into a single compound path
// description. Holes resolve through the even-odd fill rule, so loop
// orientation does not matter.
func Build(loops [][]geometry.Point, opts Options) string {
	if opts.Sampling < 1 {
		opts.Sampling = 1
	}
	invScale := 1.0 / float64(opts.Sampling)

	var sb strings.Builder
	for _, loop := range loops {
		pts, corners := fitLoop(loop, opts)
		emitLoop(&sb, pts, corners, opts.Fitting, invScale)
	}
	return strings.TrimSpace(sb.String())
}

// fitLoop runs the per-loop geometry pipeline and returns the final
// point sequence with its corner classification.
func fitLoop(loop []geometry.Point, opts Options) ([]geometry.Point, []bool) {
	pts := removeStaircase(loop)
	pts = smoothClosed(pts, 0.4, preSmoothPasses(opts.Fitting))
	pts = simplifyClosed(pts, Epsilon(opts.Fitting))

	if opts.Fitting < subdivideBelow && len(pts) >= 3 {
		pts = subdivide(pts)
	}
	pts = smoothClosed(pts, 0.35, postSmoothPasses(opts.Fitting, opts.Corner))

	corners := classifyCorners(pts, CornerThreshold(opts.Corner))
	return pts, corners
}

// LoopArea reports the enclosed area of a fitted loop, used to verify
// that simplification does not collapse regions.
func LoopArea(loop []geometry.Point, opts Options) float64 {
	pts, _ := fitLoop(loop, opts)
	return geometry.PolygonArea(pts)
}
