package geo

import (
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/upzone-cli/internal/layer"
)

// Predicate selects how a subject is matched against layer features.
type Predicate string

// Cardinality selects how many matches each subject may keep.
type Cardinality string

const (
	// PredicateWithin matches on the subject's representative point falling
	// inside a feature. Used for single-valued district joins.
	PredicateWithin Predicate = "within"
	// PredicateIntersects matches on full-geometry intersection. Used for
	// constraint layers and for footprints that straddle parcel boundaries.
	PredicateIntersects Predicate = "intersects"

	// CardinalityOne keeps exactly one match per subject, chosen by the
	// resolver (or first in feature order without one).
	CardinalityOne Cardinality = "one"
	// CardinalityMany keeps every match.
	CardinalityMany Cardinality = "many"
)

// Subject is one primary geometry entering a join: its stable id, full
// geometry, and representative point.
type Subject struct {
	ID    int64
	Geom  geom.T
	Point geom.Coord
}

// Match pairs a subject id with a matched feature.
type Match struct {
	SubjectID int64
	Feature   *layer.Feature
}

// Resolver ranks two candidate features for a CardinalityOne join; it
// returns true when a should win over b. Nil means first-in-layer-order.
type Resolver func(a, b *layer.Feature) bool

// Options configures one join.
type Options struct {
	Predicate   Predicate
	Cardinality Cardinality
	Resolver    Resolver
}

// Associate joins subjects against a layer's features. An empty subject set
// or nil layer yields an empty result, not an error; a subject or feature
// with unusable geometry is skipped from this join only and counted in the
// log line.
func Associate(subjects []Subject, l *layer.Layer, opts Options) []Match {
	if len(subjects) == 0 || l == nil || len(l.Features) == 0 {
		return nil
	}

	idx := newGridIndex(l.Features)

	var matches []Match
	var skippedSubjects, skippedFeatures int
	seenBadFeature := make(map[int64]bool)

	for _, s := range subjects {
		var candidates []int
		switch opts.Predicate {
		case PredicateWithin:
			if len(s.Point) < 2 {
				skippedSubjects++
				continue
			}
			candidates = idx.queryPoint(s.Point[0], s.Point[1])
		default:
			if s.Geom == nil {
				skippedSubjects++
				continue
			}
			candidates = idx.queryBounds(s.Geom.Bounds())
		}

		var best *layer.Feature
		for _, ci := range candidates {
			f := l.Features[ci]
			if f.Geom == nil || len(polygons(f.Geom)) == 0 {
				if !seenBadFeature[f.ID] {
					seenBadFeature[f.ID] = true
					skippedFeatures++
				}
				continue
			}

			var hit bool
			if opts.Predicate == PredicateWithin {
				hit = Contains(f.Geom, s.Point[0], s.Point[1])
			} else {
				hit = Intersects(s.Geom, f.Geom)
			}
			if !hit {
				continue
			}

			if opts.Cardinality == CardinalityMany {
				matches = append(matches, Match{SubjectID: s.ID, Feature: f})
				continue
			}

			switch {
			case best == nil:
				best = f
			case opts.Resolver != nil && opts.Resolver(f, best):
				best = f
			}
			// Without a resolver the first match in feature order stands.
			if opts.Resolver == nil {
				break
			}
		}

		if opts.Cardinality != CardinalityMany && best != nil {
			matches = append(matches, Match{SubjectID: s.ID, Feature: best})
		}
	}

	if skippedSubjects > 0 || skippedFeatures > 0 {
		zap.L().Warn("geo: join skipped invalid geometry",
			zap.String("layer", l.Name),
			zap.String("predicate", string(opts.Predicate)),
			zap.Int("skipped_subjects", skippedSubjects),
			zap.Int("skipped_features", skippedFeatures),
		)
	}

	return matches
}

// OneByID collapses a CardinalityOne match list into a subject-id lookup.
// Exactly one entry per matched subject id.
func OneByID(matches []Match) map[int64]*layer.Feature {
	out := make(map[int64]*layer.Feature, len(matches))
	for _, m := range matches {
		if _, dup := out[m.SubjectID]; !dup {
			out[m.SubjectID] = m.Feature
		}
	}
	return out
}

// MostPermissive ranks transit-tier candidates by maximum density then FAR,
// descending, with missing values ranked last. When a parcel straddles two
// tier polygons the more generous one wins.
func MostPermissive(densityKey, farKey string) Resolver {
	val := func(f *layer.Feature, key string) (float64, bool) {
		return f.Float(key)
	}
	return func(a, b *layer.Feature) bool {
		ad, aok := val(a, densityKey)
		bd, bok := val(b, densityKey)
		if aok != bok {
			return aok
		}
		if aok && bok && ad != bd {
			return ad > bd
		}
		af, aok := val(a, farKey)
		bf, bok := val(b, farKey)
		if aok != bok {
			return aok
		}
		if aok && bok && af != bf {
			return af > bf
		}
		return false
	}
}
