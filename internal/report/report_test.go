package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/upzone-cli/internal/parcel"
	"github.com/sells-group/upzone-cli/internal/pipeline"
)

func testResult() *pipeline.Result {
	return &pipeline.Result{
		Stats: pipeline.Stats{
			ParcelsIngested:   4,
			ExcludedOpenSpace: 1,
			ParcelsFinal:      3,
		},
		Parcels: []*parcel.Parcel{
			{
				ID:                    0,
				BaselineUnits:         3,
				UpzonedUnits:          15,
				AddedUnitsTheoretical: 12,
				AddedUnitsRealistic:   3,
				NumBuildings:          1,
				Tier:                  &parcel.Tier{Code: "T1Z1"},
				FeasibilityRule:       "top_tier",
				FeasibilityFactor:     0.25,
				Utilization:           0.14,
				BaselineUtilization:   0.33,
			},
			{
				ID:                    1,
				BaselineUnits:         2,
				UpzonedUnits:          10,
				AddedUnitsTheoretical: 8,
				AddedUnitsRealistic:   1.44,
				IsHistoric:            true,
				HistoricType:          "surveyed",
				Tier:                  &parcel.Tier{Code: "T2Z1"},
				FeasibilityRule:       "surveyed",
				FeasibilityFactor:     0.18,
				Utilization:           0.0,
				BaselineUtilization:   0.0,
			},
			{
				ID:                  2,
				IsSteepSlope:        true,
				FeasibilityRule:     "steep_slope",
				FeasibilityFactor:   0.12,
				Utilization:         0.75,
				BaselineUtilization: 1.2,
			},
		},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(testResult())

	assert.InDelta(t, 5.0, s.BaselineUnits, 1e-9)
	assert.InDelta(t, 25.0, s.UpzonedUnits, 1e-9)
	assert.InDelta(t, 20.0, s.AddedUnitsTheoretical, 1e-9)
	assert.InDelta(t, 4.44, s.AddedUnitsRealistic, 1e-6)

	assert.Equal(t, 1, s.HistoricCount)
	assert.Equal(t, map[string]int{"surveyed": 1}, s.HistoricCounts)
	assert.Equal(t, 1, s.SteepSlopeCount)
	assert.Equal(t, 0, s.ModerateSlopeCount)
	assert.Equal(t, 2, s.VacantCount)

	assert.Equal(t, map[string]int{"T1Z1": 1, "T2Z1": 1}, s.TierCounts)

	require.Contains(t, s.FeasibilityRules, "top_tier")
	assert.Equal(t, RuleStat{Count: 1, Factor: 0.25}, s.FeasibilityRules["top_tier"])
	assert.Equal(t, RuleStat{Count: 1, Factor: 0.18}, s.FeasibilityRules["surveyed"])

	// 0.14 and 0.0 land in the first bin, 0.75 in the fourth.
	assert.Equal(t, []int{2, 0, 0, 1, 0}, s.UtilizationHist)
	// 0.33 in the second, 1.2 in the open-ended last bin.
	assert.Equal(t, []int{1, 1, 0, 0, 1}, s.BaselineUtilizationHist)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(&pipeline.Result{})
	assert.Equal(t, 0.0, s.BaselineUnits)
	assert.Empty(t, s.TierCounts)
	assert.Equal(t, []int{0, 0, 0, 0, 0}, s.UtilizationHist)
}

func TestRender(t *testing.T) {
	s := Summarize(testResult())

	var buf bytes.Buffer
	s.Render(&buf)
	out := buf.String()

	assert.Contains(t, out, "Run summary")
	assert.Contains(t, out, "Capacity")
	assert.Contains(t, out, "Constraints")
	assert.Contains(t, out, "Historic classification")
	assert.Contains(t, out, "Transit tiers")
	assert.Contains(t, out, "T1Z1")
	assert.Contains(t, out, "top_tier")
	assert.Contains(t, out, "0.8 +")
	// One of three final parcels is historic.
	assert.Contains(t, out, "33.3%")
}

func TestRender_EmptyRun(t *testing.T) {
	s := Summarize(&pipeline.Result{})

	var buf bytes.Buffer
	s.Render(&buf)
	out := buf.String()

	assert.Contains(t, out, "Run summary")
	assert.NotContains(t, out, "Historic classification")
	assert.NotContains(t, out, "Transit tiers")
	assert.Contains(t, out, "0.0%")
}
