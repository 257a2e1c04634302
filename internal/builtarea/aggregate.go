// Package builtarea aggregates building footprints into existing gross floor
// area and building counts per parcel.
package builtarea

import (
	"go.uber.org/zap"

	"github.com/sells-group/upzone-cli/internal/config"
	"github.com/sells-group/upzone-cli/internal/geo"
	"github.com/sells-group/upzone-cli/internal/layer"
	"github.com/sells-group/upzone-cli/internal/parcel"
)

// Height attribute variants on the footprint layer: a median height in
// meters, or the same value published in centimeters.
const (
	attrHeightM  = "hgt_median_m"
	attrHeightCM = "hgt_mediancm"
)

// Footprint is one building footprint with its derived measurements.
type Footprint struct {
	ID             int64
	AreaSqFt       float64
	HeightM        float64
	Floors         float64
	GrossFloorSqFt float64
}

// HeightM picks the best available height estimate for a footprint feature:
// the meters attribute, the centimeters attribute divided by 100, then a
// fixed two-story default.
func HeightM(f *layer.Feature, c config.Constants) float64 {
	if m, ok := f.Float(attrHeightM); ok && m > 0 {
		return m
	}
	if cm, ok := f.Float(attrHeightCM); ok && cm > 0 {
		return cm / 100
	}
	return c.DefaultHeightM
}

// Derive computes the per-footprint measurements: planar footprint area in
// square feet, estimated floor count (never below one), and gross floor area.
func Derive(f *layer.Feature, c config.Constants) Footprint {
	areaSqFt := geo.Area(f.Geom) * c.SqFtPerSqM
	heightM := HeightM(f, c)
	floors := heightM / c.FloorHeightM
	if floors < 1 {
		floors = 1
	}
	return Footprint{
		ID:             f.ID,
		AreaSqFt:       areaSqFt,
		HeightM:        heightM,
		Floors:         floors,
		GrossFloorSqFt: areaSqFt * floors,
	}
}

// Totals is the per-parcel aggregation result.
type Totals struct {
	BuiltSqFt    float64
	NumBuildings int
}

// Aggregate joins footprints to parcels and sums gross floor area per parcel.
// The join is intersects, not within: footprints commonly cross cadastral
// boundaries. Each building counts for exactly one parcel (first match), so a
// straddling footprint is never double-counted. Parcels with no footprint get
// explicit zero totals.
func Aggregate(parcels []*parcel.Parcel, buildings *layer.Layer, c config.Constants) map[int64]Totals {
	totals := make(map[int64]Totals, len(parcels))
	for _, p := range parcels {
		totals[p.ID] = Totals{}
	}
	if buildings == nil || len(buildings.Features) == 0 {
		return totals
	}

	// Buildings are the join subjects: CardinalityOne dedups by building id
	// before aggregation.
	subjects := make([]geo.Subject, 0, len(buildings.Features))
	footprints := make(map[int64]Footprint, len(buildings.Features))
	for _, f := range buildings.Features {
		if f.Geom == nil {
			continue
		}
		subjects = append(subjects, geo.Subject{ID: f.ID, Geom: f.Geom})
		footprints[f.ID] = Derive(f, c)
	}

	parcelLayer := &layer.Layer{Name: "parcels", SRID: buildings.SRID}
	for _, p := range parcels {
		parcelLayer.Features = append(parcelLayer.Features, &layer.Feature{
			ID:   p.ID,
			Geom: p.Geom,
		})
	}

	matches := geo.Associate(subjects, parcelLayer, geo.Options{
		Predicate:   geo.PredicateIntersects,
		Cardinality: geo.CardinalityOne,
	})

	matched := 0
	for _, m := range matches {
		fp, ok := footprints[m.SubjectID]
		if !ok {
			continue
		}
		t := totals[m.Feature.ID]
		t.BuiltSqFt += fp.GrossFloorSqFt
		t.NumBuildings++
		totals[m.Feature.ID] = t
		matched++
	}

	zap.L().Info("builtarea: aggregated building footprints",
		zap.Int("buildings", len(subjects)),
		zap.Int("matched", matched),
	)

	return totals
}
