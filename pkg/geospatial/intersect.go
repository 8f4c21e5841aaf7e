package geospatial

import "github.com/paulmach/orb"

// SegmentsIntersect reports whether segments p1-p2 and q1-q2 share a point.
// Computed in the lon/lat plane, the same way map drawing tools test it.
func SegmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	d1 := orientation(q1, q2, p1)
	d2 := orientation(q1, q2, p2)
	d3 := orientation(p1, p2, q1)
	d4 := orientation(p1, p2, q2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	switch {
	case d1 == 0 && onSegment(q1, q2, p1):
		return true
	case d2 == 0 && onSegment(q1, q2, p2):
		return true
	case d3 == 0 && onSegment(p1, p2, q1):
		return true
	case d4 == 0 && onSegment(p1, p2, q2):
		return true
	}
	return false
}

// NewEdgeIntersects reports whether appending next to the open path would
// make the new edge cross one of the path's existing edges.
func NewEdgeIntersects(path []orb.Point, next orb.Point) bool {
	if len(path) < 3 {
		return false
	}
	last := path[len(path)-1]
	// the edge ending at last shares an endpoint with the new edge
	for i := 0; i < len(path)-2; i++ {
		if SegmentsIntersect(path[i], path[i+1], last, next) {
			return true
		}
	}
	return false
}

// ClosingEdgeIntersects reports whether closing the open path back to its
// first vertex would cross an existing edge.
func ClosingEdgeIntersects(path []orb.Point) bool {
	if len(path) < 4 {
		return false
	}
	first, last := path[0], path[len(path)-1]
	for i := 1; i < len(path)-2; i++ {
		if SegmentsIntersect(path[i], path[i+1], last, first) {
			return true
		}
	}
	return false
}

// RingSelfIntersects reports whether any two non-adjacent edges of a closed ring cross.
func RingSelfIntersects(ring orb.Ring) bool {
	closed := CloseRing(ring)
	n := len(closed) - 1
	if n < 4 {
		return false
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			if SegmentsIntersect(closed[i], closed[i+1], closed[j], closed[j+1]) {
				return true
			}
		}
	}
	return false
}

func orientation(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func onSegment(a, b, p orb.Point) bool {
	return min(a[0], b[0]) <= p[0] && p[0] <= max(a[0], b[0]) &&
		min(a[1], b[1]) <= p[1] && p[1] <= max(a[1], b[1])
}
