package layer

import (
	"strings"

	"go.uber.org/zap"
)

// Two of the historic layers are not historic-constraint layers as published:
// historic_resources covers every building in the city and historic_survey
// covers everything ever surveyed. Both need filtering to records that carry
// an actual historic signal before they can be used as constraints.
const (
	LayerHistoricResources = "historic_resources"
	LayerHistoricSurvey    = "historic_survey"
)

// surveySignificantRatings are the survey ratings that indicate historic
// significance. D, E and F ratings mean "not historic" and are dropped.
var surveySignificantRatings = map[string]bool{
	"A": true, "B": true, "C": true,
	"1A": true, "1B": true, "1C": true,
	"2A": true, "2B": true, "2C": true,
	"3A": true, "3B": true, "3C": true,
}

// PrefilterHistoric reduces a historic layer to features that actually carry
// a historic constraint. Layers other than the two known over-broad ones pass
// through unchanged.
func PrefilterHistoric(l *Layer) *Layer {
	switch l.Name {
	case LayerHistoricResources:
		return filterLayer(l, isRatedHistoric)
	case LayerHistoricSurvey:
		return filterLayer(l, hasSignificantRating)
	default:
		return l
	}
}

// isRatedHistoric keeps buildings with a historic resource rating or a CEQA
// code of "A" (known historic resource). Codes B (needs evaluation) and C
// (not historic) do not qualify.
func isRatedHistoric(f *Feature) bool {
	if s, ok := f.String("hrrrating"); ok && strings.TrimSpace(s) != "" {
		return true
	}
	if s, ok := f.String("ceqacode"); ok && strings.TrimSpace(s) == "A" {
		return true
	}
	return false
}

// hasSignificantRating keeps surveyed properties with a significant rating.
func hasSignificantRating(f *Feature) bool {
	s, ok := f.String("Rating", "rating")
	if !ok {
		return false
	}
	return surveySignificantRatings[strings.TrimSpace(s)]
}

func filterLayer(l *Layer, keep func(*Feature) bool) *Layer {
	out := &Layer{Name: l.Name, SRID: l.SRID}
	for _, f := range l.Features {
		if keep(f) {
			out.Features = append(out.Features, f)
		}
	}
	zap.L().Info("layer: prefiltered historic layer",
		zap.String("layer", l.Name),
		zap.Int("before", len(l.Features)),
		zap.Int("after", len(out.Features)),
	)
	return out
}
