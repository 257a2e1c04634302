// Package layer models input feature collections: polygon geometries plus
// attribute maps, tagged with the source layer name and coordinate reference.
package layer

import (
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// SRID values the pipeline knows about.
const (
	SRIDGeographic = 4326
)

// Feature is one geometry with its attributes. ID is assigned at ingestion,
// stable and unique within the layer.
type Feature struct {
	ID    int64
	Geom  geom.T
	Props map[string]any
}

// Layer is an ordered feature collection from one source layer. SRID 0 means
// the source reference is undefined; reprojection fails fast on it.
type Layer struct {
	Name     string
	SRID     int
	Features []*Feature
}

// Float returns the first numeric attribute found under the given keys.
// ArcGIS services are inconsistent about numeric typing, so strings holding
// numbers count too.
func (f *Feature) Float(keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := f.Props[k]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case float32:
			return float64(n), true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		case json.Number:
			if p, err := n.Float64(); err == nil {
				return p, true
			}
		case string:
			if p, err := strconv.ParseFloat(n, 64); err == nil {
				return p, true
			}
		}
	}
	return 0, false
}

// String returns the first non-empty string attribute found under the given keys.
func (f *Feature) String(keys ...string) (string, bool) {
	for _, k := range keys {
		v, ok := f.Props[k]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// Tag sets an attribute on every feature in the layer.
func (l *Layer) Tag(key string, value any) {
	for _, f := range l.Features {
		if f.Props == nil {
			f.Props = map[string]any{}
		}
		f.Props[key] = value
	}
}

// Merge appends the features of other, renumbering ids so they stay unique
// within the merged layer. Both layers must share an SRID.
func (l *Layer) Merge(other *Layer) error {
	if other == nil || len(other.Features) == 0 {
		return nil
	}
	if l.SRID != other.SRID {
		return eris.Errorf("layer: cannot merge %s (SRID %d) into %s (SRID %d)",
			other.Name, other.SRID, l.Name, l.SRID)
	}
	next := int64(len(l.Features))
	for _, f := range other.Features {
		l.Features = append(l.Features, &Feature{ID: next, Geom: f.Geom, Props: f.Props})
		next++
	}
	return nil
}

// DecodeGeoJSON parses a GeoJSON feature collection into a Layer. GeoJSON
// coordinates are geographic by convention, so the layer SRID is 4326.
func DecodeGeoJSON(name string, data []byte) (*Layer, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrapf(err, "layer: decode geojson %s", name)
	}
	l := &Layer{Name: name, SRID: SRIDGeographic}
	for i, gf := range fc.Features {
		if gf == nil || gf.Geometry == nil {
			continue
		}
		l.Features = append(l.Features, &Feature{
			ID:    int64(i),
			Geom:  gf.Geometry,
			Props: gf.Properties,
		})
	}
	return l, nil
}

// EncodeGeoJSON renders a layer back to a GeoJSON feature collection.
func EncodeGeoJSON(l *Layer) ([]byte, error) {
	fc := geojson.FeatureCollection{}
	for _, f := range l.Features {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         strconv.FormatInt(f.ID, 10),
			Geometry:   f.Geom,
			Properties: f.Props,
		})
	}
	data, err := json.Marshal(&fc)
	if err != nil {
		return nil, eris.Wrapf(err, "layer: encode geojson %s", l.Name)
	}
	return data, nil
}
