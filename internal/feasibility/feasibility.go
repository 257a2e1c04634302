// Package feasibility maps constraint tags and parcel characteristics to a
// redevelopment-probability discount factor.
package feasibility

import (
	"slices"

	"github.com/sells-group/upzone-cli/internal/classify"
	"github.com/sells-group/upzone-cli/internal/config"
	"github.com/sells-group/upzone-cli/internal/parcel"
)

// Rule names, reported per parcel so the discount is auditable.
const (
	RuleLandmark      = "landmark"
	RuleIndividual    = "individual"
	RuleDistrict      = "district"
	RuleSurveyed      = "surveyed"
	RuleSteepSlope    = "steep_slope"
	RuleModerateSlope = "moderate_slope"
	RuleSmallLot      = "small_lot"
	RuleTopTier       = "top_tier"
	RuleDefault       = "default"
)

// rule is one row of the decision table: a predicate over the parcel and the
// factor it yields.
type rule struct {
	name    string
	matches func(*parcel.Parcel, config.Policy) bool
	factor  func(config.Feasibility) float64
}

// table is evaluated top-down, first match wins. Slope rules require a vacant
// parcel: an existing building is proof the site is physically buildable, so
// slope discounts apply only to vacant or under-built steep parcels.
var table = []rule{
	{RuleLandmark, historicIs(classify.HistoricLandmark), func(f config.Feasibility) float64 { return f.Landmark }},
	{RuleIndividual, historicIs(classify.HistoricIndividual), func(f config.Feasibility) float64 { return f.Individual }},
	{RuleDistrict, historicIs(classify.HistoricDistrict), func(f config.Feasibility) float64 { return f.District }},
	{RuleSurveyed, historicIs(classify.HistoricSurveyed), func(f config.Feasibility) float64 { return f.Surveyed }},
	{RuleSteepSlope, vacantAnd(func(p *parcel.Parcel) bool { return p.IsSteepSlope }), func(f config.Feasibility) float64 { return f.SteepSlope }},
	{RuleModerateSlope, vacantAnd(func(p *parcel.Parcel) bool { return p.IsModerateSlope }), func(f config.Feasibility) float64 { return f.ModerateSlope }},
	{RuleSmallLot, isSmallLot, func(f config.Feasibility) float64 { return f.SmallLot }},
	{RuleTopTier, isTopTier, func(f config.Feasibility) float64 { return f.TopTier }},
}

func historicIs(t string) func(*parcel.Parcel, config.Policy) bool {
	return func(p *parcel.Parcel, _ config.Policy) bool {
		return p.HistoricType == t
	}
}

func vacantAnd(cond func(*parcel.Parcel) bool) func(*parcel.Parcel, config.Policy) bool {
	return func(p *parcel.Parcel, _ config.Policy) bool {
		return cond(p) && p.NumBuildings == 0
	}
}

func isSmallLot(p *parcel.Parcel, pol config.Policy) bool {
	return p.AreaSqFt < pol.Constants.SmallLotSqFt
}

func isTopTier(p *parcel.Parcel, pol config.Policy) bool {
	return p.Tier != nil && slices.Contains(pol.Feasibility.TopTierCodes, p.Tier.Code)
}

// Score returns the feasibility factor for a parcel and the name of the rule
// that produced it. The default factor is the fallthrough, so every parcel
// gets a factor in (0,1].
func Score(p *parcel.Parcel, pol config.Policy) (float64, string) {
	for _, r := range table {
		if r.matches(p, pol) {
			return r.factor(pol.Feasibility), r.name
		}
	}
	return pol.Feasibility.Default, RuleDefault
}
