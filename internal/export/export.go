// Package export loads the cleaned files and writes them into SQL tables so the data
// can be queried without reading the JSON files.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"utmbindex-backend/internal/datafile"
	"utmbindex-backend/internal/merge"
	"utmbindex-backend/internal/records"
)

// Dataset is the content of one set of cleaned files. Runners keep the order of the
// cleaned runner file, which is already ranked.
type Dataset struct {
	Races     map[string]records.Race
	Runners   []records.RunnerProfile
	RunnerIDs []string
}

// LoadDataset reads the cleaned files in dir. A missing file leaves its part of the
// dataset empty, but at least one of them has to exist.
func LoadDataset(dir string) (Dataset, error) {
	var data Dataset
	found := 0

	races, err := datafile.ReadJSON[map[string]records.Race](filepath.Join(dir, merge.CleanedRaceFile))
	switch {
	case err == nil:
		data.Races = races
		found++
	case !errors.Is(err, os.ErrNotExist):
		return Dataset{}, err
	}

	runners, err := datafile.ReadJSON[[]records.RunnerProfile](filepath.Join(dir, merge.CleanedRunnerFile))
	switch {
	case err == nil:
		data.Runners = runners
		found++
	case !errors.Is(err, os.ErrNotExist):
		return Dataset{}, err
	}

	ids, err := datafile.ReadJSON[[]string](filepath.Join(dir, merge.CleanedRunnerIDFile))
	switch {
	case err == nil:
		data.RunnerIDs = ids
		found++
	case !errors.Is(err, os.ErrNotExist):
		return Dataset{}, err
	}

	if found == 0 {
		return Dataset{}, fmt.Errorf("no cleaned files in '%s': %w", dir, os.ErrNotExist)
	}
	return data, nil
}

// Counts is how many rows of each table a sink wrote.
type Counts struct {
	Races          int
	Results        int
	Runners        int
	Participations int
	RunnerIDs      int
}

type Sink interface {
	Write(ctx context.Context, data Dataset) (Counts, error)
}

type raceRow struct {
	Key           string
	UID           int
	Year          int
	Location      *string
	Date          *string
	Distance      *string
	ElevationGain *string
}

type resultRow struct {
	Race        string
	Position    int
	Rank        *int
	Status      *string
	Time        *string
	Name        string
	RunnerID    *string
	Nationality *string
	AgeCategory *string
}

type runnerRow struct {
	ID             string
	RankPosition   int
	Name           *string
	AgeGroup       *string
	Nationality    *string
	Club           *string
	Sponsor        *string
	GeneralIndex   int
	SecondaryIndex int
	UTMBIndex      *string
}

type participationRow struct {
	RunnerID   string
	Position   int
	Race       string
	Category   *string
	Time       *string
	Rank       *string
	GenderRank *string
}

func ptr(o records.Optional[string]) *string {
	v, ok := o.Get()
	if !ok {
		return nil
	}
	return &v
}

// raceRows returns the races ordered by key, with their results.
func raceRows(races map[string]records.Race) ([]raceRow, []resultRow) {
	keys := make([]string, 0, len(races))
	for key := range races {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	var outRaces []raceRow
	var outResults []resultRow
	for _, key := range keys {
		race := races[key]
		row := raceRow{
			Key:           key,
			Location:      ptr(race.Location),
			Date:          ptr(race.Date),
			Distance:      ptr(race.Distance),
			ElevationGain: ptr(race.ElevationGain),
		}
		parsed, err := records.ParseRaceKey(key)
		if err == nil {
			row.UID = parsed.UID
			row.Year = parsed.Year
		}
		outRaces = append(outRaces, row)

		for i, result := range race.Results {
			rr := resultRow{
				Race:        key,
				Position:    i + 1,
				Time:        ptr(result.Time),
				Name:        result.Name,
				RunnerID:    ptr(result.RunnerID),
				Nationality: ptr(result.Nationality),
				AgeCategory: ptr(result.AgeCategory),
			}
			if result.Rank > 0 {
				rank := result.Rank
				rr.Rank = &rank
			}
			if result.Status != "" {
				status := string(result.Status)
				rr.Status = &status
			}
			outResults = append(outResults, rr)
		}
	}
	return outRaces, outResults
}

func runnerRows(runners []records.RunnerProfile) ([]runnerRow, []participationRow, error) {
	var outRunners []runnerRow
	var outParticipations []participationRow
	for i, profile := range runners {
		primary, secondary := profile.RankingScore()
		row := runnerRow{
			ID:             profile.ID,
			RankPosition:   i + 1,
			Name:           ptr(profile.Name),
			AgeGroup:       ptr(profile.AgeGroup),
			Nationality:    ptr(profile.Nationality),
			Club:           ptr(profile.Club),
			Sponsor:        ptr(profile.Sponsor),
			GeneralIndex:   primary,
			SecondaryIndex: secondary,
		}
		if len(profile.Index) > 0 {
			encoded, err := json.Marshal(profile.Index)
			if err != nil {
				return nil, nil, fmt.Errorf("encode index of runner '%s': %w", profile.ID, err)
			}
			index := string(encoded)
			row.UTMBIndex = &index
		}
		outRunners = append(outRunners, row)

		for j, p := range profile.Races {
			outParticipations = append(outParticipations, participationRow{
				RunnerID:   profile.ID,
				Position:   j + 1,
				Race:       p.Race,
				Category:   ptr(p.Category),
				Time:       ptr(p.Time),
				Rank:       ptr(p.Rank),
				GenderRank: ptr(p.GenderRank),
			})
		}
	}
	return outRunners, outParticipations, nil
}

// statements splits a schema file on ';', not every driver accepts several statements
// in one Exec.
func statements(schema string) []string {
	var out []string
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}
