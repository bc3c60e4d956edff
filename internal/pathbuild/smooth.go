package pathbuild

import "snapvec/internal/geometry"

// staircaseEdge is the length under which adjacent edges count as grid
// tracing artifacts.
const staircaseEdge = 1.6

// removeStaircase drops points whose both adjacent edges are shorter
// than staircaseEdge. Marching squares emits these half-pixel zig-zags
// along any diagonal boundary; collapsing them before smoothing keeps
// the filters from treating the stair pattern as signal.
func removeStaircase(pts []geometry.Point) []geometry.Point {
	if len(pts) < 5 {
		return pts
	}
	out := make([]geometry.Point, 0, len(pts))
	n := len(pts)
	for i := 0; i < n; i++ {
		prev := pts[(i-1+n)%n]
		next := pts[(i+1)%n]
		p := pts[i]
		if p.Dist(prev) < staircaseEdge && p.Dist(next) < staircaseEdge {
			// Keep every other artifact point so the loop cannot collapse.
			if i%2 == 1 {
				continue
			}
		}
		out = append(out, p)
	}
	if len(out) < 4 {
		return pts
	}
	return out
}

// smoothClosed applies a weighted 3-point averaging filter over the
// closed point sequence: p' = (1−w)·p + w·(prev+next)/2.
func smoothClosed(pts []geometry.Point, weight float64, passes int) []geometry.Point {
	if len(pts) < 3 || passes <= 0 || weight <= 0 {
		return pts
	}
	current := pts
	for pass := 0; pass < passes; pass++ {
		n := len(current)
		next := make([]geometry.Point, n)
		for i := 0; i < n; i++ {
			prev := current[(i-1+n)%n]
			nxt := current[(i+1)%n]
			avg := geometry.Midpoint(prev, nxt)
			next[i] = geometry.Lerp(current[i], avg, weight)
		}
		current = next
	}
	return current
}

// subdivide inserts the midpoint of every edge, giving later smoothing
// passes more freedom at low fitting strengths.
func subdivide(pts []geometry.Point) []geometry.Point {
	n := len(pts)
	out := make([]geometry.Point, 0, 2*n)
	for i := 0; i < n; i++ {
		out = append(out, pts[i], geometry.Midpoint(pts[i], pts[(i+1)%n]))
	}
	return out
}

// preSmoothPasses and postSmoothPasses derive pass counts from the
// fitting and corner parameters. Lower fitting and softer corners get
// more smoothing.
func preSmoothPasses(fitting int) int {
	if fitting < 50 {
		return 2
	}
	return 1
}

func postSmoothPasses(fitting, corner int) int {
	passes := (100 - fitting + (100 - corner)) / 80
	if passes > 3 {
		passes = 3
	}
	return passes
}
