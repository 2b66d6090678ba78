package harvest

import (
	"utmbindex-backend/internal/records"
)

// Collection accumulates the records of a run. It is only ever touched by the goroutine
// running the harvest, so implementations need no locking.
type Collection[R any] interface {
	Add(record R)
	Len() int
	// Snapshot is the value written to a checkpoint.
	Snapshot() any
}

// RaceSet holds races by key, a race fetched twice keeps the later version.
type RaceSet struct {
	races map[string]records.Race
}

func NewRaceSet(seed map[string]records.Race) *RaceSet {
	races := make(map[string]records.Race, len(seed))
	for key, race := range seed {
		races[key] = race
	}
	return &RaceSet{races: races}
}

func (s *RaceSet) Add(record KeyedRace) {
	s.races[record.Key.String()] = record.Race
}

func (s *RaceSet) Len() int {
	return len(s.races)
}

func (s *RaceSet) Races() map[string]records.Race {
	return s.races
}

// encoding/json sorts map keys, which keeps race checkpoints stable
func (s *RaceSet) Snapshot() any {
	return s.races
}

// ProfileSet holds profiles in insertion order, a profile added again replaces the
// earlier one in place.
type ProfileSet struct {
	profiles []records.RunnerProfile
	index    map[string]int
}

func NewProfileSet(seed []records.RunnerProfile) *ProfileSet {
	s := &ProfileSet{index: map[string]int{}}
	for _, p := range seed {
		s.Add(p)
	}
	return s
}

func (s *ProfileSet) Add(profile records.RunnerProfile) {
	i, ok := s.index[profile.ID]
	if ok {
		s.profiles[i] = profile
		return
	}
	s.index[profile.ID] = len(s.profiles)
	s.profiles = append(s.profiles, profile)
}

func (s *ProfileSet) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

func (s *ProfileSet) Len() int {
	return len(s.profiles)
}

func (s *ProfileSet) Profiles() []records.RunnerProfile {
	return s.profiles
}

func (s *ProfileSet) Snapshot() any {
	if s.profiles == nil {
		return []records.RunnerProfile{}
	}
	return s.profiles
}

// IDList is an ordered set of runner ids, each id keeps the position it was first
// added at.
type IDList struct {
	ids  []string
	seen map[string]struct{}
}

func NewIDList(seed []string) *IDList {
	l := &IDList{seen: map[string]struct{}{}}
	l.AddAll(seed)
	return l
}

func (l *IDList) Add(id string) {
	l.AddAll([]string{id})
}

// AddAll returns how many of ids were new.
func (l *IDList) AddAll(ids []string) int {
	added := 0
	for _, id := range ids {
		if _, ok := l.seen[id]; ok {
			continue
		}
		l.seen[id] = struct{}{}
		l.ids = append(l.ids, id)
		added++
	}
	return added
}

func (l *IDList) Contains(id string) bool {
	_, ok := l.seen[id]
	return ok
}

func (l *IDList) Len() int {
	return len(l.ids)
}

func (l *IDList) IDs() []string {
	return l.ids
}

func (l *IDList) Snapshot() any {
	if l.ids == nil {
		return []string{}
	}
	return l.ids
}
