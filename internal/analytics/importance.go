// Package analytics turns datasets into chart-ready numbers: ranked feature
// importances, histogram buckets and linear scales for chart geometry.
// Every function here is pure; nothing keeps state between calls.
package analytics

import (
	"errors"
	"sort"

	"mlstudio/internal/dataset"
)

var (
	ErrUnknownFeature   = errors.New("analytics: unknown feature")
	ErrDegenerateDomain = errors.New("analytics: degenerate scale domain")
	ErrNonNumericValue  = errors.New("analytics: non-numeric value")
)

// RankByImportance returns the features sorted by descending importance.
// Equal scores keep their original order. The input slice is left untouched.
func RankByImportance(features []dataset.Feature) []dataset.Feature {
	ranked := make([]dataset.Feature, len(features))
	copy(ranked, features)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Importance > ranked[j].Importance
	})
	return ranked
}

// TopFeatures returns at most n features from the top of the ranking.
func TopFeatures(features []dataset.Feature, n int) []dataset.Feature {
	ranked := RankByImportance(features)
	if n >= 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}

// ImportancePoints converts ranked features into (name, importance) chart points.
func ImportancePoints(features []dataset.Feature) []Point {
	ranked := RankByImportance(features)
	points := make([]Point, len(ranked))
	for i, f := range ranked {
		points[i] = Point{Label: f.Name, Value: f.Importance}
	}
	return points
}
