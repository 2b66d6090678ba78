// Package merge folds the partial files written by harvest runs into one canonical file
// per kind of record.
//
// Inputs are read in lexical file name order and later files win conflicts, so merging
// is deterministic and merging the merged output again changes nothing.
package merge

import (
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"utmbindex-backend/internal/records"
)

// FileError is an input that could not be merged.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Err)
}

func (e FileError) Unwrap() error {
	return e.Err
}

// Discover lists the .json files directly inside dir in lexical order.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	slices.Sort(paths)
	return paths, nil
}

func decodeFile[T any](path string) (T, error) {
	var out T
	contents, err := os.ReadFile(path)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(contents, &out)
	return out, err
}

// MergeRaces merges race files, a race in a later file replaces the whole record from
// an earlier one.
func MergeRaces(paths []string) (map[string]records.Race, []FileError) {
	merged := map[string]records.Race{}
	var errs []FileError
	for _, path := range paths {
		races, err := decodeFile[map[string]records.Race](path)
		if err != nil {
			errs = append(errs, FileError{Path: path, Err: err})
			continue
		}
		for key, race := range races {
			merged[key] = race
		}
	}
	return merged, errs
}

// MergeRunnerIDs concatenates id lists and keeps only the last occurrence of each id.
func MergeRunnerIDs(paths []string) ([]string, []FileError) {
	var all []string
	var errs []FileError
	for _, path := range paths {
		ids, err := decodeFile[[]string](path)
		if err != nil {
			errs = append(errs, FileError{Path: path, Err: err})
			continue
		}
		all = append(all, ids...)
	}
	return DedupLast(all), errs
}

// DedupLast keeps the last occurrence of every id: [a b a c b] -> [a c b].
func DedupLast(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if _, ok := seen[ids[i]]; ok {
			continue
		}
		seen[ids[i]] = struct{}{}
		out = append(out, ids[i])
	}
	slices.Reverse(out)
	return out
}

// MergeProfiles folds profiles by id, the last occurrence replaces the whole record at
// the position of the first one, the way harvest.ProfileSet does. A file holding a
// profile without an id is rejected entirely.
func MergeProfiles(paths []string) ([]records.RunnerProfile, []FileError) {
	var all []records.RunnerProfile
	var errs []FileError
	for _, path := range paths {
		profiles, err := decodeFile[[]records.RunnerProfile](path)
		if err == nil {
			for i, p := range profiles {
				if p.ID == "" {
					err = fmt.Errorf("profile %d has no id", i)
					break
				}
			}
		}
		if err != nil {
			errs = append(errs, FileError{Path: path, Err: err})
			continue
		}
		all = append(all, profiles...)
	}

	index := make(map[string]int, len(all))
	var out []records.RunnerProfile
	for _, p := range all {
		i, ok := index[p.ID]
		if ok {
			out[i] = p
			continue
		}
		index[p.ID] = len(out)
		out = append(out, p)
	}
	return out, errs
}

// Rank orders profiles by General index, then by the sum of the distance indexes, both
// descending. The sort is stable: equal scores keep their input order.
func Rank(profiles []records.RunnerProfile) []records.RunnerProfile {
	type scored struct {
		profile   records.RunnerProfile
		primary   int
		secondary int
	}
	items := make([]scored, len(profiles))
	for i, p := range profiles {
		primary, secondary := p.RankingScore()
		items[i] = scored{profile: p, primary: primary, secondary: secondary}
	}
	slices.SortStableFunc(items, func(a, b scored) int {
		c := cmp.Compare(b.primary, a.primary)
		if c != 0 {
			return c
		}
		return cmp.Compare(b.secondary, a.secondary)
	})

	out := make([]records.RunnerProfile, len(items))
	for i, item := range items {
		out[i] = item.profile
	}
	return out
}
