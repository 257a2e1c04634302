// Package parcel defines the unit of analysis: one cadastral parcel enriched
// in place by successive join and classification stages until it is exported
// or removed by an exclusion rule.
package parcel

import (
	"github.com/twpayne/go-geom"

	"github.com/sells-group/upzone-cli/internal/layer"
)

// Tier holds the transit-tier overlay attributes attached to a parcel.
type Tier struct {
	Code          string   `json:"tz"`
	Tier          string   `json:"tier,omitempty"`
	DistanceRange string   `json:"distance_range,omitempty"`
	HeightLimitFt *float64 `json:"height_limit_ft,omitempty"`
	MaxDensity    *float64 `json:"max_density,omitempty"`
	FAR           *float64 `json:"floor_area_ratio,omitempty"`
}

// Parcel is one cadastral parcel and everything the pipeline derives for it.
// Geometry stays in the planar working reference until export.
type Parcel struct {
	ID       int64
	Geom     geom.T
	Centroid geom.Coord

	AreaSqFt float64

	ZoningCode     string
	HeightDistrict string
	HeightLimitFt  *float64

	TotalBuiltSqFt float64
	NumBuildings   int
	ExistingFAR    float64

	Tier *Tier

	IsHistoric      bool
	HistoricType    string // one of the Historic* constants, or empty
	IsSteepSlope    bool
	IsModerateSlope bool
	IsOpenSpace     bool

	Utilization         float64
	BaselineFAR         float64
	BaselineUtilization float64

	BaselineUnits         float64
	UpzonedUnits          float64
	AddedUnitsTheoretical float64
	AddedUnitsRealistic   float64

	FeasibilityFactor float64
	FeasibilityRule   string
}

// FromLayer creates parcels from the cadastral layer, assigning ids once at
// ingestion. Features without geometry are dropped here, before any join.
func FromLayer(l *layer.Layer) []*Parcel {
	out := make([]*Parcel, 0, len(l.Features))
	for _, f := range l.Features {
		if f.Geom == nil {
			continue
		}
		out = append(out, &Parcel{ID: int64(len(out)), Geom: f.Geom})
	}
	return out
}

// Properties renders the exportable attribute map for one parcel.
func (p *Parcel) Properties() map[string]any {
	props := map[string]any{
		"parcel_id":               p.ID,
		"parcel_area_sf":          p.AreaSqFt,
		"zoning":                  nullableString(p.ZoningCode),
		"height_district":         nullableString(p.HeightDistrict),
		"height_limit_ft":         nullableFloat(p.HeightLimitFt),
		"total_built_sqft":        p.TotalBuiltSqFt,
		"num_buildings":           p.NumBuildings,
		"existing_far":            p.ExistingFAR,
		"is_historic":             p.IsHistoric,
		"historic_type":           nullableString(p.HistoricType),
		"is_steep_slope":          p.IsSteepSlope,
		"is_moderate_slope":       p.IsModerateSlope,
		"is_open_space":           p.IsOpenSpace,
		"utilization":             p.Utilization,
		"baseline_far":            p.BaselineFAR,
		"baseline_utilization":    p.BaselineUtilization,
		"baseline_units":          p.BaselineUnits,
		"upzoned_units":           p.UpzonedUnits,
		"added_units_theoretical": p.AddedUnitsTheoretical,
		"added_units_realistic":   p.AddedUnitsRealistic,
		"feasibility_factor":      p.FeasibilityFactor,
		"feasibility_rule":        p.FeasibilityRule,
	}
	if p.Tier != nil {
		props["tz"] = p.Tier.Code
		props["tier"] = nullableString(p.Tier.Tier)
		props["distance_range"] = nullableString(p.Tier.DistanceRange)
		props["tier_height_limit_ft"] = nullableFloat(p.Tier.HeightLimitFt)
		props["tier_max_density"] = nullableFloat(p.Tier.MaxDensity)
		props["tier_far"] = nullableFloat(p.Tier.FAR)
	} else {
		props["tz"] = nil
	}
	return props
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
