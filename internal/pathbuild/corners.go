package pathbuild

import "snapvec/internal/geometry"

// microEdge is the edge length under which a point can never be a
// corner; half-pixel jitter would otherwise classify noise as corners.
const microEdge = 2.5

// CornerThreshold converts the corner-sharpness parameter (0–100) into
// the turning-angle threshold in degrees. Sharpness 0 disables corner
// detection entirely (threshold 180 is unreachable).
func CornerThreshold(corner int) float64 {
	return 180 - float64(corner)*1.5
}

// classifyCorners marks each point of the closed loop whose turning
// angle deviates from straight by more than the threshold.
func classifyCorners(pts []geometry.Point, thresholdDeg float64) []bool {
	n := len(pts)
	corners := make([]bool, n)
	if n < 3 {
		return corners
	}
	for i := 0; i < n; i++ {
		prev := pts[(i-1+n)%n]
		next := pts[(i+1)%n]
		if pts[i].Dist(prev) < microEdge && pts[i].Dist(next) < microEdge {
			continue
		}
		if geometry.TurnAngle(prev, pts[i], next) > thresholdDeg {
			corners[i] = true
		}
	}
	return corners
}
