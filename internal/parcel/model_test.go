package parcel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/upzone-cli/internal/layer"
)

func TestFromLayer(t *testing.T) {
	poly := geom.NewPolygonFlat(geom.XY, []float64{0, 0, 10, 0, 10, 10, 0, 10, 0, 0}, []int{10})
	l := &layer.Layer{
		Name: "parcels",
		SRID: 26910,
		Features: []*layer.Feature{
			{ID: 100, Geom: poly},
			{ID: 101, Geom: nil},
			{ID: 102, Geom: poly},
		},
	}

	parcels := FromLayer(l)
	require.Len(t, parcels, 2)

	// Ids are assigned densely at ingestion, not carried from the source.
	assert.Equal(t, int64(0), parcels[0].ID)
	assert.Equal(t, int64(1), parcels[1].ID)
	assert.Same(t, poly, parcels[0].Geom)
}

func TestProperties_NoTier(t *testing.T) {
	p := &Parcel{
		ID:       3,
		AreaSqFt: 4305.6,
	}

	props := p.Properties()
	assert.Equal(t, int64(3), props["parcel_id"])
	assert.Equal(t, 4305.6, props["parcel_area_sf"])
	assert.Nil(t, props["zoning"])
	assert.Nil(t, props["tz"])
	assert.NotContains(t, props, "tier_max_density")
}

func TestProperties_WithTier(t *testing.T) {
	density := 150.0
	p := &Parcel{
		ID:         1,
		ZoningCode: "RH-1",
		Tier: &Tier{
			Code:       "T1Z1",
			MaxDensity: &density,
		},
	}

	props := p.Properties()
	assert.Equal(t, "RH-1", props["zoning"])
	assert.Equal(t, "T1Z1", props["tz"])
	assert.Equal(t, 150.0, props["tier_max_density"])
	assert.Nil(t, props["tier_far"])
	assert.Nil(t, props["tier"])
}
