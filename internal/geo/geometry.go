package geo

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Area returns the planar area of a polygonal geometry in square CRS units
// (square meters in the UTM working reference). Holes subtract; ring
// orientation does not matter.
func Area(g geom.T) float64 {
	var total float64
	for _, p := range polygons(g) {
		for r := 0; r < p.NumLinearRings(); r++ {
			a := math.Abs(ringSignedArea(p.LinearRing(r)))
			if r == 0 {
				total += a
			} else {
				total -= a
			}
		}
	}
	if total < 0 {
		return 0
	}
	return total
}

// Centroid returns a deterministic representative point for a polygonal
// geometry: the area-weighted centroid of its exterior rings, falling back to
// the bounding-box center for degenerate geometry.
func Centroid(g geom.T) (geom.Coord, error) {
	if g == nil {
		return nil, eris.New("geo: centroid of nil geometry")
	}
	polys := polygons(g)
	if len(polys) == 0 {
		return nil, eris.Errorf("geo: centroid of non-polygonal geometry %T", g)
	}

	var cx, cy, totalArea float64
	for _, p := range polys {
		if p.NumLinearRings() == 0 {
			continue
		}
		ring := p.LinearRing(0)
		a, x, y := ringCentroid(ring)
		cx += x * a
		cy += y * a
		totalArea += a
	}

	if totalArea == 0 {
		b := g.Bounds()
		return geom.Coord{(b.Min(0) + b.Max(0)) / 2, (b.Min(1) + b.Max(1)) / 2}, nil
	}
	return geom.Coord{cx / totalArea, cy / totalArea}, nil
}

// polygons flattens a polygonal geometry into its component polygons.
func polygons(g geom.T) []*geom.Polygon {
	switch g := g.(type) {
	case *geom.Polygon:
		return []*geom.Polygon{g}
	case *geom.MultiPolygon:
		out := make([]*geom.Polygon, 0, g.NumPolygons())
		for i := 0; i < g.NumPolygons(); i++ {
			out = append(out, g.Polygon(i))
		}
		return out
	default:
		return nil
	}
}

// ringSignedArea computes the shoelace area of a linear ring. Positive for
// counter-clockwise winding.
func ringSignedArea(ring *geom.LinearRing) float64 {
	flat := ring.FlatCoords()
	stride := ring.Stride()
	n := len(flat) / stride
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		xi, yi := flat[i*stride], flat[i*stride+1]
		xj, yj := flat[j*stride], flat[j*stride+1]
		sum += xi*yj - xj*yi
	}
	return sum / 2
}

// ringCentroid returns the unsigned area and centroid of a ring.
func ringCentroid(ring *geom.LinearRing) (area, cx, cy float64) {
	flat := ring.FlatCoords()
	stride := ring.Stride()
	n := len(flat) / stride
	if n < 3 {
		return 0, 0, 0
	}
	var a, sx, sy float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		xi, yi := flat[i*stride], flat[i*stride+1]
		xj, yj := flat[j*stride], flat[j*stride+1]
		cross := xi*yj - xj*yi
		a += cross
		sx += (xi + xj) * cross
		sy += (yi + yj) * cross
	}
	a /= 2
	if a == 0 {
		return 0, 0, 0
	}
	return math.Abs(a), sx / (6 * a), sy / (6 * a)
}
