// Package classify converts raw per-layer intersections into categorical
// constraint tags: the historic-type ladder, slope classes, and the
// open-space flag.
package classify

// Historic classification constants, ordered most to least restrictive.
const (
	HistoricLandmark   = "landmark"
	HistoricIndividual = "individual"
	HistoricDistrict   = "district"
	HistoricSurveyed   = "surveyed"
)

// Source-layer names feeding the ladder.
const (
	LayerLandmarks         = "landmarks"
	LayerHistoricResources = "historic_resources"
	LayerHistoricSurvey    = "historic_survey"
)

// districtLayers are the district-level designations: in one of these but not
// individually designated means design review friction, not a hard block.
var districtLayers = map[string]bool{
	"national_register":   true,
	"california_register": true,
	"article10_districts": true,
	"article11_districts": true,
}

// LayerSet is the set of historic-layer names a parcel intersected.
type LayerSet map[string]bool

// historicRule is one rung of the ladder: a predicate over the intersected
// layer set and the classification it yields.
type historicRule struct {
	matches func(LayerSet) bool
	result  string
}

// historicLadder is evaluated top-down, first match wins. The ordering is the
// strict priority of protection levels: an individually designated landmark
// inside a district classifies as a landmark.
var historicLadder = []historicRule{
	{func(s LayerSet) bool { return s[LayerLandmarks] }, HistoricLandmark},
	{func(s LayerSet) bool { return s[LayerHistoricResources] }, HistoricIndividual},
	{anyDistrict, HistoricDistrict},
	{func(s LayerSet) bool { return s[LayerHistoricSurvey] }, HistoricSurveyed},
}

func anyDistrict(s LayerSet) bool {
	for name := range s {
		if districtLayers[name] {
			return true
		}
	}
	return false
}

// HistoricType collapses the intersected historic layers into the single
// most restrictive classification, or "" when none applies.
func HistoricType(layers LayerSet) string {
	if len(layers) == 0 {
		return ""
	}
	for _, rule := range historicLadder {
		if rule.matches(layers) {
			return rule.result
		}
	}
	return ""
}

// Constraints is the full per-parcel constraint classification.
type Constraints struct {
	HistoricType    string
	IsHistoric      bool
	IsSteepSlope    bool
	IsModerateSlope bool
	IsOpenSpace     bool
}

// Classify derives the constraint tags for one parcel. A parcel is historic
// exactly when the ladder produced a classification for it. Steep and
// moderate slope are independent booleans; the source bands are normally
// disjoint but nothing here assumes it.
func Classify(historic LayerSet, steep, moderate, openSpace bool) Constraints {
	t := HistoricType(historic)
	return Constraints{
		HistoricType:    t,
		IsHistoric:      t != "",
		IsSteepSlope:    steep,
		IsModerateSlope: moderate,
		IsOpenSpace:     openSpace,
	}
}
