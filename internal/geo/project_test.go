package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/upzone-cli/internal/layer"
)

func TestUTM_SRID(t *testing.T) {
	assert.Equal(t, 26910, NewUTM(10).SRID())
	assert.Equal(t, 26917, NewUTM(17).SRID())
}

func TestUTM_CentralMeridianMapsToFalseEasting(t *testing.T) {
	// Zone 10's central meridian is 123°W; any point on it projects to the
	// false easting exactly.
	u := NewUTM(10)
	x, _ := u.Forward(-123.0, 37.7749)
	assert.InDelta(t, 500000.0, x, 0.001)
}

func TestUTM_RoundTrip(t *testing.T) {
	u := NewUTM(10)
	points := [][2]float64{
		{-122.4194, 37.7749}, // San Francisco
		{-122.2711, 37.8044}, // Oakland
		{-123.0000, 38.0000}, // on the central meridian
		{-121.4944, 38.5816}, // Sacramento
	}

	for _, pt := range points {
		x, y := u.Forward(pt[0], pt[1])
		lon, lat := u.Inverse(x, y)
		assert.InDelta(t, pt[0], lon, 1e-6)
		assert.InDelta(t, pt[1], lat, 1e-6)
	}
}

func TestUTM_ForwardPlausibleCoordinates(t *testing.T) {
	// San Francisco sits east of the zone-10 central meridian at ~37.8°N;
	// easting must exceed 500km and northing must be around 4.18Mm.
	u := NewUTM(10)
	x, y := u.Forward(-122.4194, 37.7749)
	assert.Greater(t, x, 500000.0)
	assert.Less(t, x, 600000.0)
	assert.InDelta(t, 4.18e6, y, 2e4)
}

func squareLayer(name string, srid int, coords ...float64) *layer.Layer {
	poly := geom.NewPolygonFlat(geom.XY, coords, []int{len(coords)}).SetSRID(srid)
	return &layer.Layer{
		Name:     name,
		SRID:     srid,
		Features: []*layer.Feature{{ID: 0, Geom: poly}},
	}
}

func TestReproject_GeographicToUTM(t *testing.T) {
	l := squareLayer("parcels", layer.SRIDGeographic,
		-122.42, 37.77,
		-122.41, 37.77,
		-122.41, 37.78,
		-122.42, 37.78,
		-122.42, 37.77,
	)

	got, err := Reproject(l, 26910)
	require.NoError(t, err)
	require.Len(t, got.Features, 1)
	assert.Equal(t, 26910, got.SRID)

	// ~0.01° of longitude at 37.8°N is on the order of 880m.
	b := got.Features[0].Geom.Bounds()
	assert.InDelta(t, 880, b.Max(0)-b.Min(0), 20)
}

func TestReproject_NoOpWhenSameSRID(t *testing.T) {
	l := squareLayer("parcels", 26910, 0, 0, 10, 0, 10, 10, 0, 10, 0, 0)
	got, err := Reproject(l, 26910)
	require.NoError(t, err)
	assert.Same(t, l, got)
}

func TestReproject_UndefinedSourceSRID(t *testing.T) {
	l := squareLayer("parcels", 0, 0, 0, 1, 0, 1, 1, 0, 1, 0, 0)
	l.SRID = 0
	_, err := Reproject(l, 26910)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no source coordinate reference")
}

func TestReproject_UnsupportedPair(t *testing.T) {
	l := squareLayer("parcels", 3857, 0, 0, 1, 0, 1, 1, 0, 1, 0, 0)
	_, err := Reproject(l, 26910)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported reprojection")
}

func TestReproject_Nil(t *testing.T) {
	got, err := Reproject(nil, 26910)
	require.NoError(t, err)
	assert.Nil(t, got)
}
