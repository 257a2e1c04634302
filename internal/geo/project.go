// Package geo is the geometry store and spatial association engine: one
// planar working reference for all layers, planar area and representative
// points, and predicate-driven joins between layers.
package geo

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/upzone-cli/internal/layer"
)

// GRS80 ellipsoid (NAD83).
const (
	semiMajorAxis = 6378137.0
	flattening    = 1.0 / 298.257222101

	utmScaleFactor   = 0.9996
	utmFalseEasting  = 500000.0
	utmFalseNorthing = 0.0 // northern hemisphere

	degToRad = math.Pi / 180.0
	radToDeg = 180.0 / math.Pi
)

// UTM is a northern-hemisphere NAD83 UTM zone, the planar working reference
// for all area and intersection math.
type UTM struct {
	zone int
}

// NewUTM returns the projection for the given UTM zone (1-60).
func NewUTM(zone int) UTM {
	return UTM{zone: zone}
}

// SRID returns the EPSG code of the zone (NAD83 northern zones).
func (u UTM) SRID() int {
	return 26900 + u.zone
}

func (u UTM) centralMeridian() float64 {
	return float64(-183+6*u.zone) * degToRad
}

// Forward projects geographic lon/lat degrees to planar easting/northing meters.
func (u UTM) Forward(lon, lat float64) (x, y float64) {
	e2 := flattening * (2 - flattening)
	ep2 := e2 / (1 - e2)

	phi := lat * degToRad
	lam := lon * degToRad
	lam0 := u.centralMeridian()

	sinPhi := math.Sin(phi)
	cosPhi := math.Cos(phi)
	tanPhi := math.Tan(phi)

	n := semiMajorAxis / math.Sqrt(1-e2*sinPhi*sinPhi)
	t := tanPhi * tanPhi
	c := ep2 * cosPhi * cosPhi
	a := (lam - lam0) * cosPhi
	m := meridionalArc(phi, e2)

	x = utmFalseEasting + utmScaleFactor*n*(a+
		(1-t+c)*a*a*a/6+
		(5-18*t+t*t+72*c-58*ep2)*math.Pow(a, 5)/120)
	y = utmFalseNorthing + utmScaleFactor*(m+n*tanPhi*(a*a/2+
		(5-t+9*c+4*c*c)*math.Pow(a, 4)/24+
		(61-58*t+t*t+600*c-330*ep2)*math.Pow(a, 6)/720))
	return x, y
}

// Inverse projects planar easting/northing meters back to lon/lat degrees.
func (u UTM) Inverse(x, y float64) (lon, lat float64) {
	e2 := flattening * (2 - flattening)
	ep2 := e2 / (1 - e2)
	e1 := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))

	m := (y - utmFalseNorthing) / utmScaleFactor
	mu := m / (semiMajorAxis * (1 - e2/4 - 3*e2*e2/64 - 5*e2*e2*e2/256))

	phi1 := mu +
		(3*e1/2-27*math.Pow(e1, 3)/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*math.Pow(e1, 4)/32)*math.Sin(4*mu) +
		(151*math.Pow(e1, 3)/96)*math.Sin(6*mu) +
		(1097*math.Pow(e1, 4)/512)*math.Sin(8*mu)

	sinPhi1 := math.Sin(phi1)
	cosPhi1 := math.Cos(phi1)
	tanPhi1 := math.Tan(phi1)

	c1 := ep2 * cosPhi1 * cosPhi1
	t1 := tanPhi1 * tanPhi1
	n1 := semiMajorAxis / math.Sqrt(1-e2*sinPhi1*sinPhi1)
	r1 := semiMajorAxis * (1 - e2) / math.Pow(1-e2*sinPhi1*sinPhi1, 1.5)
	d := (x - utmFalseEasting) / (n1 * utmScaleFactor)

	phi := phi1 - (n1*tanPhi1/r1)*(d*d/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*math.Pow(d, 4)/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*math.Pow(d, 6)/720)
	lam := u.centralMeridian() + (d-
		(1+2*t1+c1)*math.Pow(d, 3)/6+
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*math.Pow(d, 5)/120)/cosPhi1

	return lam * radToDeg, phi * radToDeg
}

// meridionalArc returns the meridional arc length from the equator to phi.
func meridionalArc(phi, e2 float64) float64 {
	e4 := e2 * e2
	e6 := e4 * e2
	return semiMajorAxis * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))
}

// Reproject returns the layer expressed in the target SRID. Only geographic
// (4326) and NAD83 UTM (269xx) references are supported, which covers every
// layer the pipeline consumes. A layer with no defined source reference is a
// hard error; a single untransformable feature is skipped and logged.
func Reproject(l *layer.Layer, targetSRID int) (*layer.Layer, error) {
	if l == nil {
		return nil, nil
	}
	if l.SRID == 0 {
		return nil, eris.Errorf("geo: layer %s has no source coordinate reference", l.Name)
	}
	if l.SRID == targetSRID {
		return l, nil
	}

	var fn func(x, y float64) (float64, float64)
	switch {
	case l.SRID == layer.SRIDGeographic && isUTMSRID(targetSRID):
		u := NewUTM(targetSRID - 26900)
		fn = u.Forward
	case isUTMSRID(l.SRID) && targetSRID == layer.SRIDGeographic:
		u := NewUTM(l.SRID - 26900)
		fn = u.Inverse
	default:
		return nil, eris.Errorf("geo: unsupported reprojection %d -> %d for layer %s",
			l.SRID, targetSRID, l.Name)
	}

	out := &layer.Layer{Name: l.Name, SRID: targetSRID}
	var skipped int
	for _, f := range l.Features {
		g, err := transformGeom(f.Geom, fn, targetSRID)
		if err != nil {
			skipped++
			continue
		}
		out.Features = append(out.Features, &layer.Feature{ID: f.ID, Geom: g, Props: f.Props})
	}
	if skipped > 0 {
		zap.L().Warn("geo: skipped untransformable features",
			zap.String("layer", l.Name),
			zap.Int("skipped", skipped),
			zap.Int("kept", len(out.Features)),
		)
	}
	return out, nil
}

func isUTMSRID(srid int) bool {
	return srid > 26900 && srid <= 26960
}

// transformGeom applies a coordinate transform to a geometry, producing a new
// geometry of the same type.
func transformGeom(g geom.T, fn func(x, y float64) (float64, float64), srid int) (geom.T, error) {
	if g == nil {
		return nil, eris.New("geo: nil geometry")
	}
	switch g := g.(type) {
	case *geom.Point:
		return geom.NewPointFlat(g.Layout(), transformFlat(g.FlatCoords(), g.Stride(), fn)).SetSRID(srid), nil
	case *geom.Polygon:
		return geom.NewPolygonFlat(g.Layout(), transformFlat(g.FlatCoords(), g.Stride(), fn), g.Ends()).SetSRID(srid), nil
	case *geom.MultiPolygon:
		return geom.NewMultiPolygonFlat(g.Layout(), transformFlat(g.FlatCoords(), g.Stride(), fn), g.Endss()).SetSRID(srid), nil
	default:
		return nil, eris.Errorf("geo: unsupported geometry type %T", g)
	}
}

func transformFlat(flat []float64, stride int, fn func(x, y float64) (float64, float64)) []float64 {
	out := make([]float64, len(flat))
	copy(out, flat)
	for i := 0; i+1 < len(out); i += stride {
		out[i], out[i+1] = fn(out[i], out[i+1])
	}
	return out
}
