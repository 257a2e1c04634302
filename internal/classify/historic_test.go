package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistoricType(t *testing.T) {
	tests := []struct {
		name   string
		layers LayerSet
		want   string
	}{
		{"none", nil, ""},
		{"empty set", LayerSet{}, ""},
		{"landmark", LayerSet{LayerLandmarks: true}, HistoricLandmark},
		{"individual resource", LayerSet{LayerHistoricResources: true}, HistoricIndividual},
		{"national register district", LayerSet{"national_register": true}, HistoricDistrict},
		{"article 10 district", LayerSet{"article10_districts": true}, HistoricDistrict},
		{"survey only", LayerSet{LayerHistoricSurvey: true}, HistoricSurveyed},
		{"landmark inside district", LayerSet{LayerLandmarks: true, "california_register": true}, HistoricLandmark},
		{"resource beats survey", LayerSet{LayerHistoricResources: true, LayerHistoricSurvey: true}, HistoricIndividual},
		{"district beats survey", LayerSet{"article11_districts": true, LayerHistoricSurvey: true}, HistoricDistrict},
		{"unknown layer", LayerSet{"some_other_layer": true}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HistoricType(tt.layers))
		})
	}
}

func TestClassify(t *testing.T) {
	c := Classify(LayerSet{LayerHistoricSurvey: true}, true, false, true)
	assert.Equal(t, HistoricSurveyed, c.HistoricType)
	assert.True(t, c.IsHistoric)
	assert.True(t, c.IsSteepSlope)
	assert.False(t, c.IsModerateSlope)
	assert.True(t, c.IsOpenSpace)

	c = Classify(nil, false, true, false)
	assert.False(t, c.IsHistoric)
	assert.Empty(t, c.HistoricType)
	assert.True(t, c.IsModerateSlope)
}
