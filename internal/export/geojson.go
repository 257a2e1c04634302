// Package export writes the finished parcel dataset to files: GeoJSON for
// mapping tools and an XLSX workbook for the summary tables.
package export

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/upzone-cli/internal/geo"
	"github.com/sells-group/upzone-cli/internal/layer"
	"github.com/sells-group/upzone-cli/internal/parcel"
)

// ToLayer renders parcels into a feature layer carrying the full exported
// attribute map. Geometry keeps the parcels' current reference.
func ToLayer(parcels []*parcel.Parcel, srid int) *layer.Layer {
	l := &layer.Layer{Name: "upzone_parcels", SRID: srid}
	for _, p := range parcels {
		l.Features = append(l.Features, &layer.Feature{
			ID:    p.ID,
			Geom:  p.Geom,
			Props: p.Properties(),
		})
	}
	return l
}

// ToGeographic rewrites parcel geometries into the geographic reference and
// returns the parcels that transformed. Reprojection can skip individual
// features, so geometries are matched back by parcel id; parcels whose
// geometry did not survive are dropped with a warning.
func ToGeographic(parcels []*parcel.Parcel, workingSRID int) ([]*parcel.Parcel, error) {
	l, err := geo.Reproject(ToLayer(parcels, workingSRID), layer.SRIDGeographic)
	if err != nil {
		return nil, eris.Wrap(err, "export: reproject to geographic")
	}

	byID := make(map[int64]geom.T, len(l.Features))
	for _, f := range l.Features {
		byID[f.ID] = f.Geom
	}

	kept := make([]*parcel.Parcel, 0, len(parcels))
	for _, p := range parcels {
		g, ok := byID[p.ID]
		if !ok {
			zap.L().Warn("export: parcel geometry not transformable, dropped",
				zap.Int64("parcel_id", p.ID),
			)
			continue
		}
		p.Geom = g
		kept = append(kept, p)
	}
	return kept, nil
}

// WriteGeoJSON reprojects the dataset to the geographic reference and writes
// a FeatureCollection to path.
func WriteGeoJSON(path string, parcels []*parcel.Parcel, workingSRID int) error {
	l := ToLayer(parcels, workingSRID)

	l, err := geo.Reproject(l, layer.SRIDGeographic)
	if err != nil {
		return eris.Wrap(err, "export: reproject for geojson")
	}

	data, err := layer.EncodeGeoJSON(l)
	if err != nil {
		return eris.Wrap(err, "export: encode geojson")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}

	zap.L().Info("export: wrote geojson",
		zap.String("path", path),
		zap.Int("features", len(l.Features)),
	)
	return nil
}
