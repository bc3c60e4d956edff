// Package contour extracts closed boundary polygons from a label map
// using marching squares over a padded occupancy grid.
package contour

// Cell corner bits for the 2×2 marching-squares window.
const (
	cornerTL = 1 << 0
	cornerTR = 1 << 1
	cornerBR = 1 << 2
	cornerBL = 1 << 3
)

// Edge midpoints of a cell, in doubled coordinates relative to the
// cell's top-left corner (gx, gy) → (2gx+dx, 2gy+dy).
type edgePoint struct {
	dx, dy int
}

var (
	edgeTop    = edgePoint{1, 0}
	edgeRight  = edgePoint{2, 1}
	edgeBottom = edgePoint{1, 2}
	edgeLeft   = edgePoint{0, 1}
)

// segmentTable maps the 4-bit corner configuration to 0, 1 or 2 boundary
// segments with endpoints at edge midpoints. The two saddle
// configurations (5 and 10) use a fixed complementary diagonal pairing;
// the tie-break is deliberate, not value-interpolated.
var segmentTable = [16][][2]edgePoint{
	0:  nil,
	1:  {{edgeLeft, edgeTop}},
	2:  {{edgeTop, edgeRight}},
	3:  {{edgeLeft, edgeRight}},
	4:  {{edgeRight, edgeBottom}},
	5:  {{edgeLeft, edgeTop}, {edgeRight, edgeBottom}},
	6:  {{edgeTop, edgeBottom}},
	7:  {{edgeLeft, edgeBottom}},
	8:  {{edgeBottom, edgeLeft}},
	9:  {{edgeTop, edgeBottom}},
	10: {{edgeTop, edgeRight}, {edgeBottom, edgeLeft}},
	11: {{edgeRight, edgeBottom}},
	12: {{edgeLeft, edgeRight}},
	13: {{edgeTop, edgeRight}},
	14: {{edgeLeft, edgeTop}},
	15: nil,
}

// packPoint encodes a doubled-coordinate grid point into a map key.
func packPoint(x, y int) uint64 {
	return uint64(uint32(x))<<32 | uint64(uint32(y))
}

func unpackPoint(k uint64) (x, y int) {
	return int(int32(k >> 32)), int(int32(uint32(k)))
}
