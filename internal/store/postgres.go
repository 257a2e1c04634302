package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/upzone-cli/internal/db"
	"github.com/sells-group/upzone-cli/internal/parcel"
)

// PostGISExporter loads a finished run into a PostGIS table for downstream
// mapping. Geometry is written as EWKB, carrying whatever SRID the parcels
// hold at export time.
type PostGISExporter struct {
	pool db.Pool
}

// NewPostGISExporter creates an exporter over an existing pool.
func NewPostGISExporter(pool db.Pool) *PostGISExporter {
	return &PostGISExporter{pool: pool}
}

const postgisMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS upzone_parcels (
	run_id                TEXT NOT NULL,
	parcel_id             BIGINT NOT NULL,
	geom                  geometry NOT NULL,
	zoning                TEXT,
	tz                    TEXT,
	baseline_units        DOUBLE PRECISION NOT NULL DEFAULT 0,
	upzoned_units         DOUBLE PRECISION NOT NULL DEFAULT 0,
	added_units_realistic DOUBLE PRECISION NOT NULL DEFAULT 0,
	props                 JSONB NOT NULL,
	PRIMARY KEY (run_id, parcel_id)
);

CREATE INDEX IF NOT EXISTS idx_upzone_parcels_geom ON upzone_parcels USING GIST (geom);
CREATE INDEX IF NOT EXISTS idx_upzone_parcels_tz ON upzone_parcels(run_id, tz);
`

var parcelColumns = []string{
	"run_id", "parcel_id", "geom", "zoning", "tz",
	"baseline_units", "upzoned_units", "added_units_realistic", "props",
}

// Migrate creates the output table and its indexes.
func (e *PostGISExporter) Migrate(ctx context.Context) error {
	_, err := e.pool.Exec(ctx, postgisMigration)
	return eris.Wrap(err, "postgis: migrate")
}

// Export bulk-loads one run's parcels via COPY. Any existing rows for the run
// are replaced.
func (e *PostGISExporter) Export(ctx context.Context, runID string, parcels []*parcel.Parcel) (int64, error) {
	if _, err := e.pool.Exec(ctx,
		`DELETE FROM upzone_parcels WHERE run_id = $1`, runID,
	); err != nil {
		return 0, eris.Wrapf(err, "postgis: clear run %s", runID)
	}

	rows := make([][]any, 0, len(parcels))
	for _, p := range parcels {
		geomBytes, err := ewkb.Marshal(p.Geom, ewkb.NDR)
		if err != nil {
			return 0, eris.Wrapf(err, "postgis: encode parcel %d", p.ID)
		}
		propsJSON, err := json.Marshal(p.Properties())
		if err != nil {
			return 0, eris.Wrapf(err, "postgis: marshal parcel %d", p.ID)
		}
		tz := ""
		if p.Tier != nil {
			tz = p.Tier.Code
		}
		rows = append(rows, []any{
			runID, p.ID, geomBytes, p.ZoningCode, tz,
			p.BaselineUnits, p.UpzonedUnits, p.AddedUnitsRealistic, propsJSON,
		})
	}

	n, err := db.CopyFrom(ctx, e.pool, "upzone_parcels", parcelColumns, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "postgis: export run %s", runID)
	}
	return n, nil
}
