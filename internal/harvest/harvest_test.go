package harvest

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"utmbindex-backend/internal/components/telemetry"
	"utmbindex-backend/internal/datafile"
	"utmbindex-backend/internal/fetch"
	"utmbindex-backend/internal/records"
	"utmbindex-backend/internal/retry"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type fetcherFunc func(ctx context.Context, url string) (fetch.Page, error)

func (f fetcherFunc) Fetch(ctx context.Context, url string) (fetch.Page, error) {
	return f(ctx, url)
}

func factoryOf(f fetch.Fetcher) fetch.Factory {
	return func() (fetch.Fetcher, error) {
		return f, nil
	}
}

func okPage(url, body string) fetch.Page {
	return fetch.Page{URL: url, Status: fetch.StatusOK, Code: 200, Body: []byte(body)}
}

// intJob treats the url as the item and finds every item not divisible by 5
var intJob = Job[int, int]{
	Name: "int",
	URL:  strconv.Itoa,
	Parse: func(_ context.Context, item int, _ []byte) (int, bool, error) {
		return item, item%5 != 0, nil
	},
}

type intSet struct {
	items []int
}

func (s *intSet) Add(item int)  { s.items = append(s.items, item) }
func (s *intSet) Len() int      { return len(s.items) }
func (s *intSet) Snapshot() any { return slices.Clone(s.items) }

type memSaver struct {
	snapshots []any
	err       error
}

func (s *memSaver) Save(value any) error {
	if s.err != nil {
		return s.err
	}
	s.snapshots = append(s.snapshots, value)
	return nil
}

func intRange(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func TestRaceItemsOrder(t *testing.T) {
	keys := slices.Collect(RaceItems(Range{Min: 1, Max: 2}, Range{Min: 2023, Max: 2024}))
	expect := []records.RaceKey{
		{UID: 1, Year: 2023},
		{UID: 1, Year: 2024},
		{UID: 2, Year: 2023},
		{UID: 2, Year: 2024},
	}
	require.Empty(t, cmp.Diff(expect, keys))

	require.Empty(t, slices.Collect(RaceItems(Range{Min: 3, Max: 2}, Range{Min: 2024, Max: 2024})))
	require.Equal(t, 0, Range{Min: 3, Max: 2}.Len())
	require.Equal(t, 3, Range{Min: 1, Max: 3}.Len())
}

func TestSkipKnownItems(t *testing.T) {
	known := map[string]bool{"500.2023": true, "501.2024": true}
	items := Skip(
		RaceItems(Range{Min: 500, Max: 501}, Range{Min: 2023, Max: 2024}),
		func(key records.RaceKey) bool { return known[key.String()] },
	)
	expect := []records.RaceKey{{UID: 500, Year: 2024}, {UID: 501, Year: 2023}}
	require.Empty(t, cmp.Diff(expect, slices.Collect(items)))

	// stopping early stops the underlying sequence too
	for range items {
		break
	}
}

func TestProcessOutcomes(t *testing.T) {
	policy := retry.Policy{MaxAttempts: 4}

	cases := []struct {
		name          string
		pages         []fetch.Status
		item          int
		expect        OutcomeKind
		expectFetches int
	}{
		{name: "found", pages: []fetch.Status{fetch.StatusOK}, item: 1, expect: OutcomeFound, expectFetches: 1},
		{name: "not found is absent", pages: []fetch.Status{fetch.StatusNotFound}, item: 1, expect: OutcomeAbsent, expectFetches: 1},
		{name: "incomplete is absent", pages: []fetch.Status{fetch.StatusOK}, item: 5, expect: OutcomeAbsent, expectFetches: 1},
		{name: "other error is not retried", pages: []fetch.Status{fetch.StatusOtherError}, item: 1, expect: OutcomeFailed, expectFetches: 1},
		{
			name:          "unavailable then ok",
			pages:         []fetch.Status{fetch.StatusUnavailable, fetch.StatusUnavailable, fetch.StatusOK},
			item:          1,
			expect:        OutcomeFound,
			expectFetches: 3,
		},
		{
			name:          "unavailable until exhausted",
			pages:         []fetch.Status{fetch.StatusUnavailable},
			item:          1,
			expect:        OutcomeFailed,
			expectFetches: 4,
		},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			fetches := 0
			fetcher := fetcherFunc(func(_ context.Context, url string) (fetch.Page, error) {
				status := test.pages[min(fetches, len(test.pages)-1)]
				fetches++
				return fetch.Page{URL: url, Status: status}, nil
			})

			outcome := Process(context.Background(), fetcher, intJob, test.item, policy)
			require.Equal(t, test.expect, outcome.Kind)
			require.Equal(t, test.expectFetches, fetches)
			if test.expect == OutcomeFound {
				require.Equal(t, test.item, outcome.Record)
			}
			if test.name == "unavailable until exhausted" {
				require.ErrorIs(t, outcome.Err, retry.ErrExhausted)
			}
		})
	}
}

func TestRunOutOfOrderCompletion(t *testing.T) {
	fetcher := fetcherFunc(func(ctx context.Context, url string) (fetch.Page, error) {
		time.Sleep(time.Duration(rand.IntN(3)) * time.Millisecond)
		return okPage(url, "x"), nil
	})
	coll := &intSet{}
	saver := &memSaver{}
	rec := &telemetry.Recorder{}

	stats, err := Run(
		context.Background(),
		slices.Values(intRange(40)),
		intJob,
		factoryOf(fetcher),
		coll,
		saver,
		Options{Workers: 4, CheckpointEvery: 8, Tel: rec},
	)
	require.NoError(t, err)

	require.Equal(t, Stats{Processed: 40, Found: 32, Absent: 8, Checkpoints: 5}, stats)

	found := slices.Sorted(slices.Values(coll.items))
	expect := slices.DeleteFunc(intRange(40), func(i int) bool { return i%5 == 0 })
	require.Equal(t, expect, found)

	last := saver.snapshots[len(saver.snapshots)-1].([]int)
	require.Len(t, last, 32)

	count, ok := rec.LastCount("harvest: " + report_run_found)
	require.True(t, ok)
	require.EqualValues(t, 32, count)

	var checkpoints []telemetry.Report
	for _, report := range rec.Reports("debug") {
		if report.ID == "harvest: checkpoint" {
			checkpoints = append(checkpoints, report)
		}
	}
	require.Len(t, checkpoints, 5)
	require.Equal(t, []any{slog.Int("records", 32), slog.Int("processed", 40)}, checkpoints[4].Params)
}

func TestRunSingleWorkerKeepsItemOrder(t *testing.T) {
	fetcher := fetcherFunc(func(ctx context.Context, url string) (fetch.Page, error) {
		return okPage(url, "x"), nil
	})
	coll := &intSet{}
	_, err := Run(context.Background(), slices.Values(intRange(12)), intJob, factoryOf(fetcher), coll, &memSaver{}, Options{})
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3, 4, 6, 7, 8, 9, 11, 12}, coll.items)
}

func TestRunCheckpointThenCrash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw_runner", "runner.json")
	cp, err := ClaimCheckpoint(path)
	require.NoError(t, err)
	defer cp.Release()

	// reading the checkpoint while item 8 is fetched is what a crash at that moment
	// would leave behind
	var onDisk []records.RunnerProfile
	var readErr error
	fetcher := fetcherFunc(func(ctx context.Context, url string) (fetch.Page, error) {
		if url == "8" {
			onDisk, readErr = datafile.ReadJSON[[]records.RunnerProfile](path)
		}
		return okPage(url, "x"), nil
	})
	job := Job[int, records.RunnerProfile]{
		Name: "runner",
		URL:  strconv.Itoa,
		Parse: func(_ context.Context, item int, _ []byte) (records.RunnerProfile, bool, error) {
			return records.RunnerProfile{ID: strconv.Itoa(item)}, true, nil
		},
	}

	profiles := NewProfileSet(nil)
	stats, err := Run(
		context.Background(),
		slices.Values(intRange(10)),
		job,
		factoryOf(fetcher),
		profiles,
		cp,
		Options{Workers: 1, CheckpointEvery: 3},
	)
	require.NoError(t, err)
	require.NoError(t, readErr)
	require.Equal(t, 4, stats.Checkpoints)
	require.Equal(t, 4, cp.Saves())

	require.Len(t, onDisk, 6)
	for i, p := range onDisk {
		require.Equal(t, strconv.Itoa(i+1), p.ID)
	}

	final, err := datafile.ReadJSON[[]records.RunnerProfile](path)
	require.NoError(t, err)
	require.Len(t, final, 10)
}

func TestRunCancelSavesProgress(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetcher := fetcherFunc(func(ctx context.Context, url string) (fetch.Page, error) {
		if url == "5" {
			cancel()
			return fetch.Page{}, ctx.Err()
		}
		return okPage(url, "x"), nil
	})
	coll := &intSet{}
	saver := &memSaver{}

	stats, err := Run(ctx, slices.Values(intRange(100)), intJob, factoryOf(fetcher), coll, saver, Options{CheckpointEvery: 50})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 4, stats.Found)
	require.Equal(t, 0, stats.Failed)
	require.Len(t, saver.snapshots, 1)
	require.Equal(t, []int{1, 2, 3, 4}, saver.snapshots[0])
}

func TestRunSaveFailure(t *testing.T) {
	fetcher := fetcherFunc(func(ctx context.Context, url string) (fetch.Page, error) {
		return okPage(url, "x"), nil
	})
	saveErr := errors.New("disk full")
	_, err := Run(
		context.Background(),
		slices.Values(intRange(30)),
		intJob,
		factoryOf(fetcher),
		&intSet{},
		&memSaver{err: saveErr},
		Options{Workers: 3, CheckpointEvery: 2},
	)
	require.ErrorIs(t, err, saveErr)
}

func TestRunFactoryFailure(t *testing.T) {
	setupErr := errors.New("no proxy")
	_, err := Run(
		context.Background(),
		slices.Values(intRange(3)),
		intJob,
		func() (fetch.Fetcher, error) { return nil, setupErr },
		&intSet{},
		&memSaver{},
		Options{Workers: 2},
	)
	require.ErrorIs(t, err, setupErr)
}

func TestRunEachWorkerOwnsAFetcher(t *testing.T) {
	var created atomic.Int32
	var mutex sync.Mutex
	owners := map[fetch.Fetcher]bool{}
	factory := func() (fetch.Fetcher, error) {
		created.Add(1)
		f := &countingFetcher{}
		mutex.Lock()
		owners[f] = true
		mutex.Unlock()
		return f, nil
	}
	_, err := Run(context.Background(), slices.Values(intRange(20)), intJob, factory, &intSet{}, &memSaver{}, Options{Workers: 3})
	require.NoError(t, err)
	require.EqualValues(t, 3, created.Load())

	total := 0
	for f := range owners {
		total += f.(*countingFetcher).n
	}
	require.Equal(t, 20, total)
}

// countingFetcher is deliberately not synchronized, sharing it between workers would
// be caught by the race detector.
type countingFetcher struct {
	n int
}

func (f *countingFetcher) Fetch(_ context.Context, url string) (fetch.Page, error) {
	f.n++
	return okPage(url, "x"), nil
}

func TestCheckpointLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "race.json")
	cp, err := ClaimCheckpoint(path)
	require.NoError(t, err)

	_, err = ClaimCheckpoint(path)
	require.ErrorIs(t, err, ErrCheckpointLocked)

	require.NoError(t, cp.Save(map[string]int{"b": 2, "a": 1}))
	require.NoError(t, cp.Release())

	again, err := ClaimCheckpoint(path)
	require.NoError(t, err)
	require.NoError(t, again.Release())

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "{\n    \"a\": 1,\n    \"b\": 2\n}\n", string(contents))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp or lock files are left behind")
}

func TestRunPath(t *testing.T) {
	now := time.Date(2024, 10, 18, 10, 15, 0, 0, time.UTC)
	a, err := RunPath("raw_race", "race", now)
	require.NoError(t, err)
	b, err := RunPath("raw_race", "race", now)
	require.NoError(t, err)

	require.Equal(t, "raw_race", filepath.Dir(a))
	require.Regexp(t, `^race_20241018T101500_[^/_]{6}\.json$`, filepath.Base(a))
	require.NotEqual(t, a, b)
}

func TestCollections(t *testing.T) {
	ids := NewIDList([]string{"a", "b"})
	require.Equal(t, 1, ids.AddAll([]string{"b", "c", "a"}))
	require.Equal(t, []string{"a", "b", "c"}, ids.IDs())
	require.Equal(t, []string{}, NewIDList(nil).Snapshot())

	profiles := NewProfileSet(nil)
	profiles.Add(records.RunnerProfile{ID: "1", Name: records.Some("old")})
	profiles.Add(records.RunnerProfile{ID: "2"})
	profiles.Add(records.RunnerProfile{ID: "1", Name: records.Some("new")})
	require.Equal(t, 2, profiles.Len())
	require.Equal(t, "new", profiles.Profiles()[0].Name.Or(""))

	races := NewRaceSet(nil)
	key := records.RaceKey{UID: 500, Year: 2024}
	races.Add(KeyedRace{Key: key, Race: records.Race{Distance: records.Some("170 km")}})
	races.Add(KeyedRace{Key: key, Race: records.Race{Distance: records.Some("176 km")}})
	require.Equal(t, 1, races.Len())
	require.Equal(t, "176 km", races.Races()["500.2024"].Distance.Or(""))
}
