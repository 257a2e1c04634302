package geo

import (
	"github.com/twpayne/go-geom"
)

// Spatial predicates over planar polygonal geometry. There is deliberately no
// polygon clipping here: joins assign whole features by containment or
// intersection, never by overlap fraction.

// Contains reports whether the polygonal geometry g contains the point (x, y).
// Points inside a hole are outside. Boundary points count as inside, which
// keeps centroid joins stable for parcels that abut a district boundary.
func Contains(g geom.T, x, y float64) bool {
	for _, p := range polygons(g) {
		if p.NumLinearRings() == 0 {
			continue
		}
		if !pointInRing(p.LinearRing(0), x, y) {
			continue
		}
		inHole := false
		for r := 1; r < p.NumLinearRings(); r++ {
			if pointInRing(p.LinearRing(r), x, y) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

// Intersects reports whether two polygonal geometries share any point. It
// tests bounding boxes, then vertex containment in both directions, then
// edge crossings.
func Intersects(a, b geom.T) bool {
	if a == nil || b == nil {
		return false
	}
	if !boundsOverlap(a.Bounds(), b.Bounds()) {
		return false
	}
	if anyVertexInside(a, b) || anyVertexInside(b, a) {
		return true
	}
	return edgesCross(a, b)
}

func boundsOverlap(a, b *geom.Bounds) bool {
	return a.Min(0) <= b.Max(0) && b.Min(0) <= a.Max(0) &&
		a.Min(1) <= b.Max(1) && b.Min(1) <= a.Max(1)
}

// pointInRing ray-casts from (x, y) to the right, counting crossings.
// On-edge points are treated as inside.
func pointInRing(ring *geom.LinearRing, x, y float64) bool {
	flat := ring.FlatCoords()
	stride := ring.Stride()
	n := len(flat) / stride
	if n < 3 {
		return false
	}
	inside := false
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		xi, yi := flat[i*stride], flat[i*stride+1]
		xj, yj := flat[j*stride], flat[j*stride+1]

		if onSegment(xi, yi, xj, yj, x, y) {
			return true
		}
		if (yi > y) != (yj > y) {
			xCross := xi + (y-yi)/(yj-yi)*(xj-xi)
			if x < xCross {
				inside = !inside
			}
		}
	}
	return inside
}

// anyVertexInside reports whether any exterior-ring vertex of a lies inside b.
func anyVertexInside(a, b geom.T) bool {
	for _, p := range polygons(a) {
		if p.NumLinearRings() == 0 {
			continue
		}
		ring := p.LinearRing(0)
		flat := ring.FlatCoords()
		stride := ring.Stride()
		for i := 0; i+1 < len(flat); i += stride {
			if Contains(b, flat[i], flat[i+1]) {
				return true
			}
		}
	}
	return false
}

// edgesCross reports whether any exterior-ring edge of a crosses one of b.
func edgesCross(a, b geom.T) bool {
	aEdges := exteriorEdges(a)
	bEdges := exteriorEdges(b)
	for _, ea := range aEdges {
		for _, eb := range bEdges {
			if segmentsIntersect(ea, eb) {
				return true
			}
		}
	}
	return false
}

type segment struct {
	x1, y1, x2, y2 float64
}

func exteriorEdges(g geom.T) []segment {
	var segs []segment
	for _, p := range polygons(g) {
		if p.NumLinearRings() == 0 {
			continue
		}
		ring := p.LinearRing(0)
		flat := ring.FlatCoords()
		stride := ring.Stride()
		n := len(flat) / stride
		for i := 0; i < n; i++ {
			j := (i + 1) % n
			segs = append(segs, segment{
				x1: flat[i*stride], y1: flat[i*stride+1],
				x2: flat[j*stride], y2: flat[j*stride+1],
			})
		}
	}
	return segs
}

// segmentsIntersect uses orientation tests, handling collinear overlap.
func segmentsIntersect(a, b segment) bool {
	d1 := orientation(b.x1, b.y1, b.x2, b.y2, a.x1, a.y1)
	d2 := orientation(b.x1, b.y1, b.x2, b.y2, a.x2, a.y2)
	d3 := orientation(a.x1, a.y1, a.x2, a.y2, b.x1, b.y1)
	d4 := orientation(a.x1, a.y1, a.x2, a.y2, b.x2, b.y2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	if d1 == 0 && onSegment(b.x1, b.y1, b.x2, b.y2, a.x1, a.y1) {
		return true
	}
	if d2 == 0 && onSegment(b.x1, b.y1, b.x2, b.y2, a.x2, a.y2) {
		return true
	}
	if d3 == 0 && onSegment(a.x1, a.y1, a.x2, a.y2, b.x1, b.y1) {
		return true
	}
	if d4 == 0 && onSegment(a.x1, a.y1, a.x2, a.y2, b.x2, b.y2) {
		return true
	}
	return false
}

// orientation returns >0 if (px, py) is left of the segment, <0 if right,
// 0 if collinear.
func orientation(x1, y1, x2, y2, px, py float64) float64 {
	return (x2-x1)*(py-y1) - (y2-y1)*(px-x1)
}

// onSegment reports whether (px, py) lies on the segment, assuming it is
// collinear with it or nearly so.
func onSegment(x1, y1, x2, y2, px, py float64) bool {
	if orientation(x1, y1, x2, y2, px, py) != 0 {
		return false
	}
	return min(x1, x2) <= px && px <= max(x1, x2) &&
		min(y1, y2) <= py && py <= max(y1, y2)
}
