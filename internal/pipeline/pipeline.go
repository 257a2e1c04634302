// Package pipeline sequences the per-parcel analysis: reprojection, spatial
// joins, constraint classification, built-area aggregation, hard exclusions,
// capacity math, and feasibility scoring.
package pipeline

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/upzone-cli/internal/builtarea"
	"github.com/sells-group/upzone-cli/internal/capacity"
	"github.com/sells-group/upzone-cli/internal/classify"
	"github.com/sells-group/upzone-cli/internal/config"
	"github.com/sells-group/upzone-cli/internal/feasibility"
	"github.com/sells-group/upzone-cli/internal/geo"
	"github.com/sells-group/upzone-cli/internal/layer"
	"github.com/sells-group/upzone-cli/internal/parcel"
)

// Tier layer attribute names.
const (
	attrTierCode      = "TZ"
	attrTierName      = "Tier"
	attrDistanceRange = "DistanceRange"
	attrHeightLimit   = "HeightLimit"
	attrMaxDensity    = "MaxDensity"
	attrFAR           = "FloorAreaRatio"
)

// Layers holds every materialized input layer. Parcels, zoning, and the tier
// overlay are required; the rest are optional and degrade to empty
// contributions when nil.
type Layers struct {
	Parcels    *layer.Layer
	Zoning     *layer.Layer
	Height     *layer.Layer
	Historic   []*layer.Layer // tagged with their source-layer names
	SlopeSteep *layer.Layer
	SlopeMod   *layer.Layer
	OpenSpace  *layer.Layer
	Tiers      *layer.Layer
	Buildings  *layer.Layer
}

// Stats reports per-stage counts for the run.
type Stats struct {
	ParcelsIngested      int `json:"parcels_ingested"`
	ExcludedOpenSpace    int `json:"excluded_open_space"`
	ExcludedOversized    int `json:"excluded_oversized"`
	ExcludedOverUtilized int `json:"excluded_over_utilized"`
	ParcelsFinal         int `json:"parcels_final"`
}

// Result is the final per-parcel dataset plus run stats.
type Result struct {
	Parcels []*parcel.Parcel
	Stats   Stats
}

// Pipeline runs the analysis over materialized layers.
type Pipeline struct {
	policy      config.Policy
	workingSRID int
}

// New creates a pipeline with an explicit policy set and planar working SRID.
func New(policy config.Policy, workingSRID int) *Pipeline {
	return &Pipeline{policy: policy, workingSRID: workingSRID}
}

// Run executes the full sequence and returns the surviving parcels.
func (pl *Pipeline) Run(in Layers) (*Result, error) {
	if err := pl.validate(in); err != nil {
		return nil, err
	}

	layers, err := pl.reproject(in)
	if err != nil {
		return nil, err
	}

	parcels := pl.ingest(layers.Parcels)
	if len(parcels) == 0 {
		return nil, eris.New("pipeline: parcel layer yielded no usable parcels")
	}

	subjects := pointSubjects(parcels)
	polySubjects := polygonSubjects(parcels)

	pl.joinZoning(parcels, subjects, layers.Zoning)
	pl.joinHeight(parcels, subjects, layers.Height)
	pl.joinTiers(parcels, polySubjects, layers.Tiers)
	historicSets := pl.joinHistoric(polySubjects, layers.Historic)
	steepIDs := intersectedIDs(polySubjects, layers.SlopeSteep)
	moderateIDs := intersectedIDs(polySubjects, layers.SlopeMod)
	openSpaceIDs := intersectedIDs(polySubjects, layers.OpenSpace)

	for _, p := range parcels {
		c := classify.Classify(historicSets[p.ID], steepIDs[p.ID], moderateIDs[p.ID], openSpaceIDs[p.ID])
		p.HistoricType = c.HistoricType
		p.IsHistoric = c.IsHistoric
		p.IsSteepSlope = c.IsSteepSlope
		p.IsModerateSlope = c.IsModerateSlope
		p.IsOpenSpace = c.IsOpenSpace
	}

	totals := builtarea.Aggregate(parcels, layers.Buildings, pl.policy.Constants)
	for _, p := range parcels {
		t := totals[p.ID]
		p.TotalBuiltSqFt = t.BuiltSqFt
		p.NumBuildings = t.NumBuildings
		p.ExistingFAR = capacity.ExistingFAR(p.TotalBuiltSqFt, p.AreaSqFt)
		p.Utilization = capacity.Utilization(p.ExistingFAR, p.Tier, pl.policy.Constants)
		p.BaselineFAR = capacity.BaselineFAR(p, pl.policy)
		p.BaselineUtilization = capacity.BaselineUtilization(p.ExistingFAR, p.BaselineFAR, pl.policy.Constants)
	}

	stats := Stats{ParcelsIngested: len(parcels)}
	parcels, stats.ExcludedOpenSpace = exclude(parcels, "open_space", func(p *parcel.Parcel) bool {
		return p.IsOpenSpace
	})
	parcels, stats.ExcludedOversized = exclude(parcels, "oversized", func(p *parcel.Parcel) bool {
		return p.AreaSqFt > pl.policy.Constants.MaxParcelSqFt
	})
	parcels, stats.ExcludedOverUtilized = exclude(parcels, "over_utilized", func(p *parcel.Parcel) bool {
		return p.Utilization > pl.policy.Constants.UtilizationLimit
	})
	stats.ParcelsFinal = len(parcels)

	for _, p := range parcels {
		p.BaselineUnits = capacity.BaselineUnits(p, pl.policy)
		p.UpzonedUnits = capacity.UpzonedUnits(p, pl.policy)
		p.AddedUnitsTheoretical = capacity.AddedUnits(p.BaselineUnits, p.UpzonedUnits)
		p.FeasibilityFactor, p.FeasibilityRule = feasibility.Score(p, pl.policy)
		p.AddedUnitsRealistic = p.AddedUnitsTheoretical * p.FeasibilityFactor
	}

	zap.L().Info("pipeline: run complete",
		zap.Int("ingested", stats.ParcelsIngested),
		zap.Int("final", stats.ParcelsFinal),
	)

	return &Result{Parcels: parcels, Stats: stats}, nil
}

// validate enforces the mandatory schema: missing required layers, or
// required layers whose features carry none of the attributes the joins and
// capacity math key on, make the run meaningless, so they abort it by name.
func (pl *Pipeline) validate(in Layers) error {
	switch {
	case in.Parcels == nil || len(in.Parcels.Features) == 0:
		return eris.New("pipeline: required parcel layer is missing or empty")
	case in.Zoning == nil || len(in.Zoning.Features) == 0:
		return eris.New("pipeline: required zoning layer is missing or empty")
	case in.Tiers == nil || len(in.Tiers.Features) == 0:
		return eris.New("pipeline: required transit-tier layer is missing or empty")
	}

	if !hasStringAttr(in.Zoning, "zoning", "zoning_sim") {
		return eris.Errorf("pipeline: zoning layer %q has no feature with a zoning or zoning_sim attribute", in.Zoning.Name)
	}
	if !hasStringAttr(in.Tiers, attrTierCode) {
		return eris.Errorf("pipeline: transit-tier layer %q has no feature with a %s attribute", in.Tiers.Name, attrTierCode)
	}
	if !hasFloatAttr(in.Tiers, attrMaxDensity) {
		return eris.Errorf("pipeline: transit-tier layer %q has no feature with a %s attribute", in.Tiers.Name, attrMaxDensity)
	}
	if !hasFloatAttr(in.Tiers, attrFAR) {
		return eris.Errorf("pipeline: transit-tier layer %q has no feature with a %s attribute", in.Tiers.Name, attrFAR)
	}
	return nil
}

func hasStringAttr(l *layer.Layer, keys ...string) bool {
	for _, f := range l.Features {
		if _, ok := f.String(keys...); ok {
			return true
		}
	}
	return false
}

func hasFloatAttr(l *layer.Layer, keys ...string) bool {
	for _, f := range l.Features {
		if _, ok := f.Float(keys...); ok {
			return true
		}
	}
	return false
}

// reproject brings every layer into the planar working reference. Required
// layers fail the run; optional layers degrade to nil with a warning.
func (pl *Pipeline) reproject(in Layers) (Layers, error) {
	out := Layers{}
	var err error

	if out.Parcels, err = geo.Reproject(in.Parcels, pl.workingSRID); err != nil {
		return out, err
	}
	if out.Zoning, err = geo.Reproject(in.Zoning, pl.workingSRID); err != nil {
		return out, err
	}
	if out.Tiers, err = geo.Reproject(in.Tiers, pl.workingSRID); err != nil {
		return out, err
	}

	out.Height = pl.reprojectOptional(in.Height)
	out.SlopeSteep = pl.reprojectOptional(in.SlopeSteep)
	out.SlopeMod = pl.reprojectOptional(in.SlopeMod)
	out.OpenSpace = pl.reprojectOptional(in.OpenSpace)
	out.Buildings = pl.reprojectOptional(in.Buildings)
	for _, h := range in.Historic {
		if r := pl.reprojectOptional(h); r != nil {
			out.Historic = append(out.Historic, r)
		}
	}
	return out, nil
}

func (pl *Pipeline) reprojectOptional(l *layer.Layer) *layer.Layer {
	if l == nil {
		return nil
	}
	r, err := geo.Reproject(l, pl.workingSRID)
	if err != nil {
		zap.L().Warn("pipeline: optional layer dropped",
			zap.String("layer", l.Name),
			zap.Error(err),
		)
		return nil
	}
	return r
}

// ingest creates parcels and computes per-parcel area and centroid.
func (pl *Pipeline) ingest(l *layer.Layer) []*parcel.Parcel {
	parcels := parcel.FromLayer(l)
	kept := parcels[:0]
	for _, p := range parcels {
		centroid, err := geo.Centroid(p.Geom)
		if err != nil {
			continue
		}
		p.Centroid = centroid
		p.AreaSqFt = geo.Area(p.Geom) * pl.policy.Constants.SqFtPerSqM
		kept = append(kept, p)
	}
	zap.L().Info("pipeline: ingested parcels", zap.Int("count", len(kept)))
	return kept
}

func pointSubjects(parcels []*parcel.Parcel) []geo.Subject {
	out := make([]geo.Subject, len(parcels))
	for i, p := range parcels {
		out[i] = geo.Subject{ID: p.ID, Point: p.Centroid}
	}
	return out
}

func polygonSubjects(parcels []*parcel.Parcel) []geo.Subject {
	out := make([]geo.Subject, len(parcels))
	for i, p := range parcels {
		out[i] = geo.Subject{ID: p.ID, Geom: p.Geom}
	}
	return out
}

// joinZoning attaches one zoning code per parcel by centroid containment.
func (pl *Pipeline) joinZoning(parcels []*parcel.Parcel, subjects []geo.Subject, zoning *layer.Layer) {
	byID := geo.OneByID(geo.Associate(subjects, zoning, geo.Options{
		Predicate:   geo.PredicateWithin,
		Cardinality: geo.CardinalityOne,
	}))
	for _, p := range parcels {
		if f, ok := byID[p.ID]; ok {
			p.ZoningCode, _ = f.String("zoning", "zoning_sim")
		}
	}
	zap.L().Info("pipeline: joined zoning", zap.Int("matched", len(byID)))
}

// joinHeight attaches the height-district limit by centroid containment,
// accepting either published attribute name.
func (pl *Pipeline) joinHeight(parcels []*parcel.Parcel, subjects []geo.Subject, height *layer.Layer) {
	if height == nil {
		return
	}
	byID := geo.OneByID(geo.Associate(subjects, height, geo.Options{
		Predicate:   geo.PredicateWithin,
		Cardinality: geo.CardinalityOne,
	}))
	for _, p := range parcels {
		f, ok := byID[p.ID]
		if !ok {
			continue
		}
		p.HeightDistrict, _ = f.String("height")
		if v, ok := f.Float("gen_hght", "height"); ok {
			limit := v
			p.HeightLimitFt = &limit
		}
	}
	zap.L().Info("pipeline: joined height districts", zap.Int("matched", len(byID)))
}

// joinTiers attaches tier attributes by full-polygon intersection with the
// most-permissive-wins resolver: candidates sorted by density then FAR,
// descending, missing values last.
func (pl *Pipeline) joinTiers(parcels []*parcel.Parcel, subjects []geo.Subject, tiers *layer.Layer) {
	byID := geo.OneByID(geo.Associate(subjects, tiers, geo.Options{
		Predicate:   geo.PredicateIntersects,
		Cardinality: geo.CardinalityOne,
		Resolver:    geo.MostPermissive(attrMaxDensity, attrFAR),
	}))
	for _, p := range parcels {
		f, ok := byID[p.ID]
		if !ok {
			continue
		}
		code, ok := f.String(attrTierCode)
		if !ok {
			continue
		}
		t := &parcel.Tier{Code: code}
		t.Tier, _ = f.String(attrTierName)
		t.DistanceRange, _ = f.String(attrDistanceRange)
		if v, ok := f.Float(attrHeightLimit); ok {
			h := v
			t.HeightLimitFt = &h
		}
		if v, ok := f.Float(attrMaxDensity); ok {
			d := v
			t.MaxDensity = &d
		}
		if v, ok := f.Float(attrFAR); ok {
			far := v
			t.FAR = &far
		}
		p.Tier = t
	}
	zap.L().Info("pipeline: joined transit tiers", zap.Int("matched", len(byID)))
}

// joinHistoric collapses all intersected historic layers per parcel into a
// layer-name set for the classifier.
func (pl *Pipeline) joinHistoric(subjects []geo.Subject, historic []*layer.Layer) map[int64]classify.LayerSet {
	sets := make(map[int64]classify.LayerSet)
	for _, h := range historic {
		matches := geo.Associate(subjects, h, geo.Options{
			Predicate:   geo.PredicateIntersects,
			Cardinality: geo.CardinalityMany,
		})
		for _, m := range matches {
			if sets[m.SubjectID] == nil {
				sets[m.SubjectID] = classify.LayerSet{}
			}
			sets[m.SubjectID][h.Name] = true
		}
	}
	return sets
}

// intersectedIDs returns the set of subject ids intersecting any feature of
// the layer. Nil layers contribute nothing.
func intersectedIDs(subjects []geo.Subject, l *layer.Layer) map[int64]bool {
	if l == nil {
		return nil
	}
	ids := make(map[int64]bool)
	matches := geo.Associate(subjects, l, geo.Options{
		Predicate:   geo.PredicateIntersects,
		Cardinality: geo.CardinalityOne,
	})
	for _, m := range matches {
		ids[m.SubjectID] = true
	}
	return ids
}

// exclude permanently removes parcels matching the predicate and logs the
// before/after counts.
func exclude(parcels []*parcel.Parcel, reason string, drop func(*parcel.Parcel) bool) ([]*parcel.Parcel, int) {
	kept := parcels[:0]
	for _, p := range parcels {
		if !drop(p) {
			kept = append(kept, p)
		}
	}
	removed := len(parcels) - len(kept)
	zap.L().Info("pipeline: applied exclusion",
		zap.String("reason", reason),
		zap.Int("before", len(parcels)),
		zap.Int("removed", removed),
		zap.Int("after", len(kept)),
	)
	return kept, removed
}
