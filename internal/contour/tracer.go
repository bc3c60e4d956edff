package contour

import (
	"context"

	"snapvec/internal/geometry"
)

const traceChunkRows = 256

// segment is one boundary edge between two doubled-coordinate points.
type segment struct {
	a, b uint64
}

// TraceLabel extracts the closed boundary loops of every region carrying
// target in the label map. Loops with shoelace area below minArea are
// discarded as speckle. Points are returned at half-pixel resolution in
// label-map pixel units.
func TraceLabel(ctx context.Context, labels []byte, w, h int, target byte, minArea float64) ([][]geometry.Point, error) {
	// Occupancy grid padded by one empty cell on every side so regions
	// touching the image edge still close.
	gw, gh := w+2, h+2
	grid := make([]bool, gw*gh)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if labels[y*w+x] == target {
				grid[(y+1)*gw+x+1] = true
			}
		}
	}

	segments, adjacency, err := marchCells(ctx, grid, gw, gh)
	if err != nil {
		return nil, err
	}

	loops := walkLoops(segments, adjacency)

	kept := loops[:0]
	for _, loop := range loops {
		if geometry.PolygonArea(loop) >= minArea {
			kept = append(kept, loop)
		}
	}
	return kept, nil
}

// marchCells sweeps every 2×2 window of the grid and collects boundary
// segments into an adjacency multimap keyed by packed endpoint.
func marchCells(ctx context.Context, grid []bool, gw, gh int) ([]segment, map[uint64][]int, error) {
	var segments []segment
	adjacency := make(map[uint64][]int)

	addSegment := func(a, b uint64) {
		idx := len(segments)
		segments = append(segments, segment{a: a, b: b})
		adjacency[a] = append(adjacency[a], idx)
		adjacency[b] = append(adjacency[b], idx)
	}

	for gy := 0; gy < gh-1; gy++ {
		if gy%traceChunkRows == 0 {
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			default:
			}
		}
		for gx := 0; gx < gw-1; gx++ {
			config := 0
			if grid[gy*gw+gx] {
				config |= cornerTL
			}
			if grid[gy*gw+gx+1] {
				config |= cornerTR
			}
			if grid[(gy+1)*gw+gx+1] {
				config |= cornerBR
			}
			if grid[(gy+1)*gw+gx] {
				config |= cornerBL
			}

			for _, seg := range segmentTable[config] {
				a := packPoint(2*gx+seg[0].dx, 2*gy+seg[0].dy)
				b := packPoint(2*gx+seg[1].dx, 2*gy+seg[1].dy)
				addSegment(a, b)
			}
		}
	}
	return segments, adjacency, nil
}

// walkLoops repeatedly picks the first unused segment (insertion order,
// for determinism) and walks the adjacency graph until the walk returns
// to its start, consuming edges as it goes.
func walkLoops(segments []segment, adjacency map[uint64][]int) [][]geometry.Point {
	used := make([]bool, len(segments))
	var loops [][]geometry.Point

	nextUnused := func(at uint64) int {
		for _, idx := range adjacency[at] {
			if !used[idx] {
				return idx
			}
		}
		return -1
	}

	for start := range segments {
		if used[start] {
			continue
		}

		used[start] = true
		origin := segments[start].a
		current := segments[start].b
		points := []uint64{origin}

		for current != origin {
			points = append(points, current)
			idx := nextUnused(current)
			if idx < 0 {
				// Dangling chain; cannot happen with a complete table but
				// guard against dropping into an infinite walk.
				break
			}
			used[idx] = true
			if segments[idx].a == current {
				current = segments[idx].b
			} else {
				current = segments[idx].a
			}
		}

		if current != origin || len(points) < 3 {
			continue
		}

		loop := make([]geometry.Point, len(points))
		for i, pk := range points {
			x, y := unpackPoint(pk)
			// Halve the doubled coordinates and undo the one-cell pad.
			loop[i] = geometry.Point{
				X: float64(x)/2 - 1,
				Y: float64(y)/2 - 1,
			}
		}
		loops = append(loops, loop)
	}
	return loops
}

// MinLoopArea scales the user-facing noise threshold (0–100, px² at 1×)
// to the processing resolution.
func MinLoopArea(noise, sampling int) float64 {
	if noise < 0 {
		noise = 0
	}
	return float64(noise) * float64(sampling) * float64(sampling)
}
