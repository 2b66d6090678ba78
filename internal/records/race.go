package records

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RaceKey is the natural key of a race edition.
type RaceKey struct {
	UID  int
	Year int
}

// String returns the storage form "<uid>.<year>".
func (k RaceKey) String() string {
	return fmt.Sprintf("%d.%d", k.UID, k.Year)
}

// Slug returns the form used in race page urls, "<uid>..<year>".
func (k RaceKey) Slug() string {
	return fmt.Sprintf("%d..%d", k.UID, k.Year)
}

// ParseRaceKey accepts both the storage form and the url slug form.
func ParseRaceKey(s string) (RaceKey, error) {
	sep := "."
	if strings.Contains(s, "..") {
		sep = ".."
	}
	uidStr, yearStr, found := strings.Cut(s, sep)
	if !found {
		return RaceKey{}, fmt.Errorf("parse race key '%s': missing separator", s)
	}
	uid, err := strconv.Atoi(uidStr)
	if err != nil {
		return RaceKey{}, fmt.Errorf("parse race key '%s': uid: %w", s, err)
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return RaceKey{}, fmt.Errorf("parse race key '%s': year: %w", s, err)
	}
	return RaceKey{UID: uid, Year: year}, nil
}

// Race is a single race edition with its results. Meta fields keep the key names the
// frontend has always read.
type Race struct {
	Location      Optional[string] `json:"City/Country,omitzero"`
	Date          Optional[string] `json:"Date,omitzero"`
	Distance      Optional[string] `json:"Distance,omitzero"`
	ElevationGain Optional[string] `json:"Elevation Gain,omitzero"`
	Results       []Result         `json:"Results"`
}

// Complete reports whether the race should be kept: every meta field is present and
// there is at least one result.
func (r Race) Complete() bool {
	return r.Location.Present() &&
		r.Date.Present() &&
		r.Distance.Present() &&
		r.ElevationGain.Present() &&
		len(r.Results) > 0
}

type Status string

const StatusDNF Status = "DNF"

// Result is either a finisher (Rank >= 1, Status empty) or a non-finisher
// (Rank 0, Status set).
type Result struct {
	Rank        int              `json:"Rank,omitempty"`
	Status      Status           `json:"Status,omitempty"`
	Time        Optional[string] `json:"Time,omitzero"`
	Name        string           `json:"Name"`
	RunnerID    Optional[string] `json:"Id,omitzero"`
	Nationality Optional[string] `json:"Nationality,omitzero"`
	AgeCategory Optional[string] `json:"Age,omitzero"`
}

func (r Result) Finished() bool {
	return r.Status == "" && r.Rank >= 1
}

type resultAlias Result

// UnmarshalJSON also reads the older non-finisher shape, which stored "DNF" in Time
// and had no Status.
func (r *Result) UnmarshalJSON(data []byte) error {
	var alias resultAlias
	err := json.Unmarshal(data, &alias)
	if err != nil {
		return err
	}
	if alias.Rank == 0 && alias.Status == "" {
		if t, ok := alias.Time.Get(); ok && t == string(StatusDNF) {
			alias.Status = StatusDNF
			alias.Time = None[string]()
		}
	}
	*r = Result(alias)
	return nil
}
