package harvest

import (
	"context"
	"fmt"
	"strings"
	"utmbindex-backend/internal/extract"
	"utmbindex-backend/internal/records"
)

const (
	DefaultRaceBaseURL   = "https://utmb.world/utmb-index/races"
	DefaultRunnerBaseURL = "https://utmb.world/en/runner"
	DefaultSearchURL     = "https://utmb.world/utmb-index/runner-search"
)

// Job describes how one kind of record is located and parsed.
type Job[I, R any] struct {
	Name string
	URL  func(item I) string
	// Parse returns ok == false when the page holds no usable record, which is an
	// expected absence rather than a failure.
	Parse func(ctx context.Context, item I, body []byte) (record R, ok bool, err error)
}

// KeyedRace is a race with the key it was fetched under.
type KeyedRace struct {
	Key  records.RaceKey
	Race records.Race
}

func joinURL(base, path string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(base, "/"), path)
}

func RaceJob(baseURL string) Job[records.RaceKey, KeyedRace] {
	if baseURL == "" {
		baseURL = DefaultRaceBaseURL
	}
	return Job[records.RaceKey, KeyedRace]{
		Name: "race",
		URL: func(key records.RaceKey) string {
			return joinURL(baseURL, key.Slug())
		},
		Parse: func(ctx context.Context, key records.RaceKey, body []byte) (KeyedRace, bool, error) {
			race, err := extract.Race(ctx, body)
			if err != nil {
				return KeyedRace{}, false, err
			}
			if !race.Complete() {
				return KeyedRace{}, false, nil
			}
			return KeyedRace{Key: key, Race: race}, true, nil
		},
	}
}

// ProfileJob fetches runner profiles, a page without a runner name is treated as absent.
func ProfileJob(baseURL string) Job[string, records.RunnerProfile] {
	if baseURL == "" {
		baseURL = DefaultRunnerBaseURL
	}
	return Job[string, records.RunnerProfile]{
		Name: "runner",
		URL: func(id string) string {
			return joinURL(baseURL, id)
		},
		Parse: func(ctx context.Context, id string, body []byte) (records.RunnerProfile, bool, error) {
			profile, err := extract.RunnerProfile(ctx, id, body)
			if err != nil {
				return records.RunnerProfile{}, false, err
			}
			return profile, profile.Name.Present(), nil
		},
	}
}
