// Package search finds runners by approximate name.
package search

import (
	"cmp"
	"slices"
	"utmbindex-backend/internal/records"
	"utmbindex-backend/lib/textutil"

	"github.com/antzucaro/matchr"
)

const (
	DefaultLimit = 10
	// DefaultMinSimilarity drops matches that only share a few letters.
	DefaultMinSimilarity = 0.75
)

type Match struct {
	Profile records.RunnerProfile `json:"runner"`
	// Position is the 1-based place of the runner in the ranked list.
	Position   int     `json:"position"`
	Similarity float64 `json:"similarity"`
}

type Options struct {
	Limit         int
	MinSimilarity float64
}

// Runners scores every named runner against query and returns the best matches, most
// similar first. Equal scores keep ranking order.
func Runners(ranked []records.RunnerProfile, query string, opts Options) []Match {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.MinSimilarity <= 0 {
		opts.MinSimilarity = DefaultMinSimilarity
	}
	query = textutil.NormalizeName(query)
	if query == "" {
		return nil
	}

	var matches []Match
	for i, profile := range ranked {
		name, ok := profile.Name.Get()
		if !ok {
			continue
		}
		similarity := matchr.JaroWinkler(query, textutil.NormalizeName(name), false)
		if similarity < opts.MinSimilarity {
			continue
		}
		matches = append(matches, Match{
			Profile:    profile,
			Position:   i + 1,
			Similarity: similarity,
		})
	}

	slices.SortStableFunc(matches, func(a, b Match) int {
		return cmp.Compare(b.Similarity, a.Similarity)
	})
	if len(matches) > opts.Limit {
		matches = matches[:opts.Limit]
	}
	return matches
}
