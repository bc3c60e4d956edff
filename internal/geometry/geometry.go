// Package geometry holds the small set of planar primitives shared by the
// contour tracer and the path builder.
package geometry

import "math"

// Point is a location in pixel space. Contour points sit on half-pixel
// boundaries; path-builder output is continuous.
type Point struct {
	X, Y float64
}

func (p Point) Sub(q Point) Point {
	return Point{p.X - q.X, p.Y - q.Y}
}

func (p Point) Add(q Point) Point {
	return Point{p.X + q.X, p.Y + q.Y}
}

func (p Point) Scale(s float64) Point {
	return Point{p.X * s, p.Y * s}
}

func (p Point) Dist(q Point) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Lerp returns the point a fraction t along the segment p→q.
func Lerp(p, q Point, t float64) Point {
	return Point{p.X + (q.X-p.X)*t, p.Y + (q.Y-p.Y)*t}
}

// Midpoint of the segment p→q.
func Midpoint(p, q Point) Point {
	return Lerp(p, q, 0.5)
}

// PolygonArea returns the absolute shoelace area of a closed loop. The
// closing edge last→first is implied.
func PolygonArea(pts []Point) float64 {
	if len(pts) < 3 {
		return 0
	}
	sum := 0.0
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return math.Abs(sum) / 2
}

// PerpDist returns the perpendicular distance from p to the line a→b.
// Degenerate a==b lines fall back to point distance.
func PerpDist(p, a, b Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	norm := math.Sqrt(dx*dx + dy*dy)
	if norm == 0 {
		return p.Dist(a)
	}
	return math.Abs(dy*p.X-dx*p.Y+b.X*a.Y-b.Y*a.X) / norm
}

// TurnAngle returns the deviation from a straight continuation at point b
// on the polyline a→b→c, in degrees. 0 means collinear, 180 means a full
// reversal.
func TurnAngle(a, b, c Point) float64 {
	v1 := b.Sub(a)
	v2 := c.Sub(b)
	n1 := math.Sqrt(v1.X*v1.X + v1.Y*v1.Y)
	n2 := math.Sqrt(v2.X*v2.X + v2.Y*v2.Y)
	if n1 == 0 || n2 == 0 {
		return 0
	}
	cos := (v1.X*v2.X + v1.Y*v2.Y) / (n1 * n2)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}
