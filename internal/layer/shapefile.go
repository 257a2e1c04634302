package layer

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// ReadFile loads a layer from a local file. GeoJSON and shapefile sources are
// supported; both are assumed to carry geographic coordinates.
func ReadFile(path, name string) (*Layer, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return readShapefile(path, name)
	case ".geojson", ".json":
		return readGeoJSONFile(path, name)
	default:
		return nil, eris.Errorf("layer: unsupported file type %s", path)
	}
}

func readGeoJSONFile(path, name string) (*Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "layer: read %s", path)
	}
	return DecodeGeoJSON(name, data)
}

// readShapefile reads a shapefile into a Layer, carrying every attribute as a
// trimmed string property. Records with missing or unsupported geometry are
// skipped, not fatal.
func readShapefile(path, name string) (*Layer, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "layer: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	// Build field name → index map.
	fields := reader.Fields()
	fieldNames := make([]string, len(fields))
	for i, f := range fields {
		fieldNames[i] = strings.TrimRight(f.String(), "\x00")
	}

	l := &Layer{Name: name, SRID: SRIDGeographic}
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()
		g := shapeToGeom(shape)
		if g == nil {
			skipped++
			continue
		}

		props := make(map[string]any, len(fieldNames))
		for i, fn := range fieldNames {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if val != "" {
				props[fn] = val
			}
		}

		l.Features = append(l.Features, &Feature{
			ID:    int64(len(l.Features)),
			Geom:  g,
			Props: props,
		})
	}

	if skipped > 0 {
		zap.L().Debug("layer: skipped shapefile records",
			zap.String("layer", name),
			zap.Int("skipped", skipped),
		)
	}

	return l, nil
}

// shapeToGeom converts a go-shp shape to a go-geom geometry. Only polygonal
// shapes are meaningful for overlay layers; anything else returns nil.
func shapeToGeom(shape shp.Shape) geom.T {
	p, ok := shape.(*shp.Polygon)
	if !ok || p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(SRIDGeographic)

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		var end int32
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		} else {
			end = int32(len(p.Points))
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		ring := geom.NewLinearRingFlat(geom.XY, flat)
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("layer: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("layer: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
