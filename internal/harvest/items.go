package harvest

import (
	"iter"
	"slices"
	"utmbindex-backend/internal/records"
)

// Range is an inclusive range of integers.
type Range struct {
	Min int
	Max int
}

func (r Range) Len() int {
	if r.Max < r.Min {
		return 0
	}
	return r.Max - r.Min + 1
}

// RaceItems enumerates every (uid, year) pair, all years of a uid before the next uid.
func RaceItems(uids, years Range) iter.Seq[records.RaceKey] {
	return func(yield func(records.RaceKey) bool) {
		for uid := uids.Min; uid <= uids.Max; uid++ {
			for year := years.Min; year <= years.Max; year++ {
				if !yield(records.RaceKey{UID: uid, Year: year}) {
					return
				}
			}
		}
	}
}

func ProfileItems(ids []string) iter.Seq[string] {
	return slices.Values(ids)
}

// Skip leaves out the items that done reports as already collected, so a run seeded
// with an earlier checkpoint only fetches what is missing.
func Skip[I any](items iter.Seq[I], done func(item I) bool) iter.Seq[I] {
	return func(yield func(I) bool) {
		for item := range items {
			if done(item) {
				continue
			}
			if !yield(item) {
				return
			}
		}
	}
}
