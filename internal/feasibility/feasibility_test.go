package feasibility

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/upzone-cli/internal/classify"
	"github.com/sells-group/upzone-cli/internal/config"
	"github.com/sells-group/upzone-cli/internal/parcel"
)

func TestScore(t *testing.T) {
	pol := config.DefaultPolicy()
	f := pol.Feasibility

	tests := []struct {
		name       string
		p          *parcel.Parcel
		wantFactor float64
		wantRule   string
	}{
		{
			"landmark",
			&parcel.Parcel{HistoricType: classify.HistoricLandmark, AreaSqFt: 5000},
			f.Landmark, RuleLandmark,
		},
		{
			"individual resource",
			&parcel.Parcel{HistoricType: classify.HistoricIndividual, AreaSqFt: 5000},
			f.Individual, RuleIndividual,
		},
		{
			"historic district",
			&parcel.Parcel{HistoricType: classify.HistoricDistrict, AreaSqFt: 5000},
			f.District, RuleDistrict,
		},
		{
			"surveyed",
			&parcel.Parcel{HistoricType: classify.HistoricSurveyed, AreaSqFt: 5000},
			f.Surveyed, RuleSurveyed,
		},
		{
			"landmark beats steep slope",
			&parcel.Parcel{HistoricType: classify.HistoricLandmark, IsSteepSlope: true, AreaSqFt: 5000},
			f.Landmark, RuleLandmark,
		},
		{
			"steep slope when vacant",
			&parcel.Parcel{IsSteepSlope: true, AreaSqFt: 5000},
			f.SteepSlope, RuleSteepSlope,
		},
		{
			"steep slope with building is not discounted",
			&parcel.Parcel{IsSteepSlope: true, NumBuildings: 1, AreaSqFt: 5000},
			f.Default, RuleDefault,
		},
		{
			"moderate slope when vacant",
			&parcel.Parcel{IsModerateSlope: true, AreaSqFt: 5000},
			f.ModerateSlope, RuleModerateSlope,
		},
		{
			"small lot",
			&parcel.Parcel{AreaSqFt: 2000},
			f.SmallLot, RuleSmallLot,
		},
		{
			"steep slope beats small lot",
			&parcel.Parcel{IsSteepSlope: true, AreaSqFt: 2000},
			f.SteepSlope, RuleSteepSlope,
		},
		{
			"top tier",
			&parcel.Parcel{AreaSqFt: 5000, Tier: &parcel.Tier{Code: "T1Z1"}},
			f.TopTier, RuleTopTier,
		},
		{
			"lower tier falls through",
			&parcel.Parcel{AreaSqFt: 5000, Tier: &parcel.Tier{Code: "T3Z2"}},
			f.Default, RuleDefault,
		},
		{
			"unconstrained",
			&parcel.Parcel{AreaSqFt: 5000},
			f.Default, RuleDefault,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factor, rule := Score(tt.p, pol)
			assert.Equal(t, tt.wantRule, rule)
			assert.InDelta(t, tt.wantFactor, factor, 1e-9)
		})
	}
}
