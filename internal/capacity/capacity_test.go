package capacity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/upzone-cli/internal/config"
	"github.com/sells-group/upzone-cli/internal/parcel"
)

func ptr(f float64) *float64 { return &f }

func TestUnitsAllowed(t *testing.T) {
	c := config.DefaultPolicy().Constants

	// 5000 sqft at 30 du/acre: the density cap binds before the FAR cap.
	got := UnitsAllowed(5000, 30, 1.5, c)
	assert.InDelta(t, 3.4435, got, 0.001)

	// Same lot at 150 du/acre: now the FAR cap binds.
	got = UnitsAllowed(5000, 150, 1.5, c)
	assert.InDelta(t, 5000*1.5*c.Efficiency/c.AvgUnitSqFt, got, 1e-9)

	assert.Equal(t, 0.0, UnitsAllowed(0, 150, 1.5, c))
}

func TestBaselineFAR(t *testing.T) {
	pol := config.DefaultPolicy()

	tests := []struct {
		name string
		p    *parcel.Parcel
		want float64
	}{
		{"table FAR, generous height", &parcel.Parcel{ZoningCode: "RH-1", HeightLimitFt: ptr(40)}, 1.5},
		{"height tighter than table", &parcel.Parcel{ZoningCode: "RH-1", HeightLimitFt: ptr(10)}, 0.8},
		{"table FAR, no height", &parcel.Parcel{ZoningCode: "RM-3"}, 3.5},
		{"unknown code, height derived", &parcel.Parcel{ZoningCode: "NC-2", HeightLimitFt: ptr(50)}, 4.0},
		{"unknown code, special height code", &parcel.Parcel{ZoningCode: "C-3-O", HeightLimitFt: ptr(1000)}, 32.0},
		{"unknown code, no height", &parcel.Parcel{ZoningCode: "PDR-1"}, pol.Constants.DefaultFAR},
		{"zero height ignored", &parcel.Parcel{ZoningCode: "RH-1", HeightLimitFt: ptr(0)}, 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, BaselineFAR(tt.p, pol), 1e-9)
		})
	}
}

func TestBaselineUnits(t *testing.T) {
	pol := config.DefaultPolicy()

	// In-table RH-1 on 5000 sqft: density-bound at 30 du/acre.
	p := &parcel.Parcel{ZoningCode: "RH-1", AreaSqFt: 5000}
	assert.InDelta(t, 3.4435, BaselineUnits(p, pol), 0.001)

	// Unknown code uses the fallback density with the default FAR.
	p = &parcel.Parcel{ZoningCode: "NC-2", AreaSqFt: 5000}
	want := UnitsAllowed(5000, pol.Constants.FallbackDensity, pol.Constants.DefaultFAR, pol.Constants)
	assert.InDelta(t, want, BaselineUnits(p, pol), 1e-9)
}

func TestUpzonedUnits(t *testing.T) {
	pol := config.DefaultPolicy()

	p := &parcel.Parcel{AreaSqFt: 5000, Tier: &parcel.Tier{
		Code:       "T1Z1",
		MaxDensity: ptr(150),
		FAR:        ptr(3.5),
	}}
	want := UnitsAllowed(5000, 150, 3.5, pol.Constants)
	assert.InDelta(t, want, UpzonedUnits(p, pol), 1e-9)

	assert.Equal(t, 0.0, UpzonedUnits(&parcel.Parcel{AreaSqFt: 5000}, pol))
	assert.Equal(t, 0.0, UpzonedUnits(&parcel.Parcel{AreaSqFt: 5000, Tier: &parcel.Tier{Code: "T3Z2", FAR: ptr(2.0)}}, pol))
	assert.Equal(t, 0.0, UpzonedUnits(&parcel.Parcel{AreaSqFt: 5000, Tier: &parcel.Tier{Code: "T3Z2", MaxDensity: ptr(80)}}, pol))
}

func TestAddedUnits(t *testing.T) {
	assert.Equal(t, 5.0, AddedUnits(3, 8))
	assert.Equal(t, 0.0, AddedUnits(8, 3))
	assert.Equal(t, 0.0, AddedUnits(3, 3))
}

func TestExistingFAR(t *testing.T) {
	assert.InDelta(t, 0.5, ExistingFAR(2500, 5000), 1e-9)
	assert.Equal(t, 0.0, ExistingFAR(2500, 0))
}

func TestUtilization(t *testing.T) {
	c := config.DefaultPolicy().Constants
	tier := &parcel.Tier{FAR: ptr(3.0)}

	assert.InDelta(t, 0.5, Utilization(1.5, tier, c), 1e-9)

	// Outside any tier zone utilization is always zero.
	assert.Equal(t, 0.0, Utilization(1.5, nil, c))
	assert.Equal(t, 0.0, Utilization(0, tier, c))
	assert.Equal(t, 0.0, Utilization(1.5, &parcel.Tier{}, c))

	// Clipped at the cap.
	assert.Equal(t, c.UtilizationCap, Utilization(10, tier, c))
}

func TestBaselineUtilization(t *testing.T) {
	c := config.DefaultPolicy().Constants
	assert.InDelta(t, 0.25, BaselineUtilization(0.5, 2.0, c), 1e-9)
	assert.Equal(t, 0.0, BaselineUtilization(0, 2.0, c))
	assert.Equal(t, 0.0, BaselineUtilization(0.5, 0, c))
	assert.Equal(t, c.UtilizationCap, BaselineUtilization(10, 1.0, c))
}
