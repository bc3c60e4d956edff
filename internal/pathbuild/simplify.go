package pathbuild

import (
	"math"

	"snapvec/internal/geometry"
)

// Epsilon derives the Douglas-Peucker tolerance from the path-fitting
// strength (0–100): stronger fitting keeps more points.
func Epsilon(fitting int) float64 {
	return math.Max(0.1, 2.0*(1-float64(fitting)/100))
}

// simplifyClosed runs Ramer–Douglas-Peucker on a closed loop. The loop
// is split at its first point and at the point farthest from it so both
// halves have stable anchors.
func simplifyClosed(pts []geometry.Point, epsilon float64) []geometry.Point {
	if len(pts) < 4 {
		return pts
	}

	far := 0
	farDist := -1.0
	for i, p := range pts {
		if d := p.Dist(pts[0]); d > farDist {
			farDist = d
			far = i
		}
	}
	if far == 0 {
		return pts
	}

	first := douglasPeucker(pts[:far+1], epsilon)

	back := make([]geometry.Point, 0, len(pts)-far+1)
	back = append(back, pts[far:]...)
	back = append(back, pts[0])
	second := douglasPeucker(back, epsilon)

	out := make([]geometry.Point, 0, len(first)+len(second))
	out = append(out, first...)
	// Drop the shared anchors at both seams.
	if len(second) > 2 {
		out = append(out, second[1:len(second)-1]...)
	}
	return out
}

// douglasPeucker simplifies an open polyline, keeping both endpoints.
func douglasPeucker(pts []geometry.Point, epsilon float64) []geometry.Point {
	if len(pts) < 3 {
		return pts
	}

	maxDist := 0.0
	maxIdx := 0
	last := len(pts) - 1
	for i := 1; i < last; i++ {
		if d := geometry.PerpDist(pts[i], pts[0], pts[last]); d > maxDist {
			maxDist = d
			maxIdx = i
		}
	}

	if maxDist <= epsilon {
		return []geometry.Point{pts[0], pts[last]}
	}

	left := douglasPeucker(pts[:maxIdx+1], epsilon)
	right := douglasPeucker(pts[maxIdx:], epsilon)
	return append(left[:len(left)-1], right...)
}
