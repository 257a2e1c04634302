package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/upzone-cli/internal/config"
	"github.com/sells-group/upzone-cli/internal/layer"
	"github.com/sells-group/upzone-cli/internal/parcel"
)

const testSRID = 26910

func poly(x, y, w, h float64) *geom.Polygon {
	p := geom.NewPolygonFlat(geom.XY, []float64{
		x, y,
		x + w, y,
		x + w, y + h,
		x, y + h,
		x, y,
	}, []int{10})
	p.SetSRID(testSRID)
	return p
}

func testLayer(name string, features ...*layer.Feature) *layer.Layer {
	for i, f := range features {
		f.ID = int64(i)
		if f.Props == nil {
			f.Props = map[string]any{}
		}
	}
	return &layer.Layer{Name: name, SRID: testSRID, Features: features}
}

// testLayers builds a five-parcel scenario, all in the planar working
// reference so no reprojection happens:
//
//	parcel 0: 20x20 m, one two-story building, tier T1Z1
//	parcel 1: 20x20 m, inside open space
//	parcel 2: 70x70 m, over the parcel-size ceiling
//	parcel 3: 20x20 m, a large building pushes utilization over the limit
//	parcel 4: 20x20 m, vacant, inside the historic survey
func testLayers() Layers {
	covering := poly(-50, -50, 4200, 4200)

	return Layers{
		Parcels: testLayer("parcels",
			&layer.Feature{Geom: poly(0, 0, 20, 20)},
			&layer.Feature{Geom: poly(1000, 0, 20, 20)},
			&layer.Feature{Geom: poly(2000, 0, 70, 70)},
			&layer.Feature{Geom: poly(3000, 0, 20, 20)},
			&layer.Feature{Geom: poly(4000, 0, 20, 20)},
		),
		Zoning: testLayer("zoning",
			&layer.Feature{Geom: covering, Props: map[string]any{"zoning": "RH-1"}},
		),
		Height: testLayer("height",
			&layer.Feature{Geom: covering, Props: map[string]any{"height": "40-X", "gen_hght": 40.0}},
		),
		Tiers: testLayer("transit_tiers",
			&layer.Feature{Geom: covering, Props: map[string]any{
				"TZ":             "T1Z1",
				"Tier":           "Tier 1",
				"DistanceRange":  "0-0.25mi",
				"HeightLimit":    65.0,
				"MaxDensity":     150.0,
				"FloorAreaRatio": 3.5,
			}},
		),
		Historic: []*layer.Layer{
			testLayer("historic_survey",
				&layer.Feature{Geom: poly(3990, -10, 40, 40)},
			),
		},
		OpenSpace: testLayer("open_space",
			&layer.Feature{Geom: poly(990, -10, 40, 40)},
		),
		Buildings: testLayer("buildings",
			&layer.Feature{Geom: poly(5, 5, 10, 10), Props: map[string]any{"hgt_median_m": 6.0}},
			&layer.Feature{Geom: poly(3001, 1, 18, 18), Props: map[string]any{"hgt_median_m": 30.0}},
		),
	}
}

func TestRun(t *testing.T) {
	pl := New(config.DefaultPolicy(), testSRID)

	res, err := pl.Run(testLayers())
	require.NoError(t, err)

	assert.Equal(t, Stats{
		ParcelsIngested:      5,
		ExcludedOpenSpace:    1,
		ExcludedOversized:    1,
		ExcludedOverUtilized: 1,
		ParcelsFinal:         2,
	}, res.Stats)

	require.Len(t, res.Parcels, 2)
	byID := make(map[int64]*parcel.Parcel, len(res.Parcels))
	for _, p := range res.Parcels {
		byID[p.ID] = p
	}
	require.Contains(t, byID, int64(0))
	require.Contains(t, byID, int64(4))
}

func TestRun_BuiltParcel(t *testing.T) {
	pl := New(config.DefaultPolicy(), testSRID)
	res, err := pl.Run(testLayers())
	require.NoError(t, err)

	var p *parcel.Parcel
	for _, cand := range res.Parcels {
		if cand.ID == 0 {
			p = cand
		}
	}
	require.NotNil(t, p)

	// 400 sqm at 10.764 sqft per sqm.
	assert.InDelta(t, 4305.6, p.AreaSqFt, 0.01)
	assert.Equal(t, "RH-1", p.ZoningCode)
	assert.Equal(t, "40-X", p.HeightDistrict)
	require.NotNil(t, p.HeightLimitFt)
	assert.InDelta(t, 40.0, *p.HeightLimitFt, 1e-9)

	require.NotNil(t, p.Tier)
	assert.Equal(t, "T1Z1", p.Tier.Code)
	require.NotNil(t, p.Tier.MaxDensity)
	assert.InDelta(t, 150.0, *p.Tier.MaxDensity, 1e-9)
	require.NotNil(t, p.Tier.FAR)
	assert.InDelta(t, 3.5, *p.Tier.FAR, 1e-9)

	// One 10x10 m two-story building: 2152.8 sqft gross floor area.
	assert.Equal(t, 1, p.NumBuildings)
	assert.InDelta(t, 2152.8, p.TotalBuiltSqFt, 0.01)
	assert.InDelta(t, 0.5, p.ExistingFAR, 1e-6)
	assert.InDelta(t, 0.5/3.5, p.Utilization, 1e-6)

	// RH-1 is density-bound at both baseline and overlay densities.
	assert.InDelta(t, 1.5, p.BaselineFAR, 1e-9)
	assert.InDelta(t, 2.96529, p.BaselineUnits, 0.001)
	assert.InDelta(t, 14.82645, p.UpzonedUnits, 0.001)
	assert.InDelta(t, 11.86116, p.AddedUnitsTheoretical, 0.001)

	assert.Equal(t, "top_tier", p.FeasibilityRule)
	assert.InDelta(t, 0.25, p.FeasibilityFactor, 1e-9)
	assert.InDelta(t, 11.86116*0.25, p.AddedUnitsRealistic, 0.001)
}

func TestRun_HistoricParcel(t *testing.T) {
	pl := New(config.DefaultPolicy(), testSRID)
	res, err := pl.Run(testLayers())
	require.NoError(t, err)

	var p *parcel.Parcel
	for _, cand := range res.Parcels {
		if cand.ID == 4 {
			p = cand
		}
	}
	require.NotNil(t, p)

	assert.True(t, p.IsHistoric)
	assert.Equal(t, "surveyed", p.HistoricType)
	assert.Equal(t, 0, p.NumBuildings)
	assert.Equal(t, 0.0, p.Utilization)

	// Historic status outranks the tier rule.
	assert.Equal(t, "surveyed", p.FeasibilityRule)
	assert.InDelta(t, 0.18, p.FeasibilityFactor, 1e-9)
	assert.InDelta(t, 11.86116*0.18, p.AddedUnitsRealistic, 0.001)
}

func TestRun_OptionalLayersDegrade(t *testing.T) {
	in := testLayers()
	in.Height = nil
	in.Historic = nil
	in.OpenSpace = nil
	in.Buildings = nil

	res, err := New(config.DefaultPolicy(), testSRID).Run(in)
	require.NoError(t, err)

	// Without the open-space layer the park parcel survives; without
	// footprints nothing is over-utilized.
	assert.Equal(t, 4, res.Stats.ParcelsFinal)
	for _, p := range res.Parcels {
		assert.Nil(t, p.HeightLimitFt)
		assert.False(t, p.IsHistoric)
		assert.Equal(t, 0.0, p.TotalBuiltSqFt)
	}
}

// A 4,000 sqft vacant parcel zoned at 45 du/acre and FAR 1.8, upzoned by a
// lower-tier overlay to 80 du/acre and FAR 3.0. Both bounds are density-bound,
// and the default feasibility factor applies.
func TestRun_CanonicalParcel(t *testing.T) {
	covering := poly(-50, -50, 200, 200)
	in := Layers{
		// 19.2772 m squared is 4,000 sqft.
		Parcels: testLayer("parcels",
			&layer.Feature{Geom: poly(0, 0, 19.2772, 19.2772)},
		),
		Zoning: testLayer("zoning",
			&layer.Feature{Geom: covering, Props: map[string]any{"zoning": "RH-2"}},
		),
		Tiers: testLayer("transit_tiers",
			&layer.Feature{Geom: covering, Props: map[string]any{
				"TZ":             "T3Z2",
				"Tier":           "Tier 3",
				"MaxDensity":     80.0,
				"FloorAreaRatio": 3.0,
			}},
		),
	}

	res, err := New(config.DefaultPolicy(), testSRID).Run(in)
	require.NoError(t, err)
	require.Len(t, res.Parcels, 1)
	p := res.Parcels[0]

	assert.InDelta(t, 4000.0, p.AreaSqFt, 0.1)
	assert.InDelta(t, 4.13, p.BaselineUnits, 0.01)
	assert.InDelta(t, 7.34, p.UpzonedUnits, 0.01)
	assert.InDelta(t, 3.21, p.AddedUnitsTheoretical, 0.01)
	assert.Equal(t, "default", p.FeasibilityRule)
	assert.InDelta(t, 0.64, p.AddedUnitsRealistic, 0.01)
}

func TestRun_MissingRequiredLayers(t *testing.T) {
	base := testLayers()

	tests := []struct {
		name   string
		mutate func(*Layers)
		want   string
	}{
		{"no parcels", func(l *Layers) { l.Parcels = nil }, "parcel layer"},
		{"empty parcels", func(l *Layers) { l.Parcels = &layer.Layer{Name: "parcels"} }, "parcel layer"},
		{"no zoning", func(l *Layers) { l.Zoning = nil }, "zoning layer"},
		{"no tiers", func(l *Layers) { l.Tiers = nil }, "transit-tier layer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mutate(&in)
			_, err := New(config.DefaultPolicy(), testSRID).Run(in)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

// A required layer whose features never carry the attributes the joins key on
// must abort the run and name the attribute instead of silently producing
// fallback numbers for every parcel.
func TestRun_MissingRequiredAttributes(t *testing.T) {
	covering := poly(-50, -50, 4200, 4200)

	tests := []struct {
		name   string
		mutate func(*Layers)
		want   string
	}{
		{
			"zoning without zoning code",
			func(l *Layers) {
				l.Zoning = testLayer("zoning",
					&layer.Feature{Geom: covering, Props: map[string]any{"district": "RH-1"}},
				)
			},
			"zoning or zoning_sim",
		},
		{
			"tiers without any attributes",
			func(l *Layers) {
				l.Tiers = testLayer("transit_tiers",
					&layer.Feature{Geom: covering},
				)
			},
			"TZ",
		},
		{
			"tiers without density",
			func(l *Layers) {
				l.Tiers = testLayer("transit_tiers",
					&layer.Feature{Geom: covering, Props: map[string]any{
						"TZ":             "T1Z1",
						"FloorAreaRatio": 3.5,
					}},
				)
			},
			"MaxDensity",
		},
		{
			"tiers without floor area ratio",
			func(l *Layers) {
				l.Tiers = testLayer("transit_tiers",
					&layer.Feature{Geom: covering, Props: map[string]any{
						"TZ":         "T1Z1",
						"MaxDensity": 150.0,
					}},
				)
			},
			"FloorAreaRatio",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := testLayers()
			tt.mutate(&in)
			_, err := New(config.DefaultPolicy(), testSRID).Run(in)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
