package extract

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"utmbindex-backend/internal/records"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	body, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return body
}

func TestRaceFinisherAndDNF(t *testing.T) {
	race, err := Race(context.Background(), readFixture(t, "race_500_2024.html"))
	require.NoError(t, err)
	require.True(t, race.Complete())

	require.Len(t, race.Results, 2)
	require.Equal(t, 1, race.Results[0].Rank)
	require.True(t, race.Results[0].Finished())
	require.Equal(t, records.StatusDNF, race.Results[1].Status)
	require.False(t, race.Results[1].Finished())

	encoded, err := json.Marshal(race)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"City/Country": "Chamonix, France",
		"Date": "30 Aug 2024",
		"Distance": "176 km",
		"Elevation Gain": "10 000 m+",
		"Results": [
			{"Rank": 1, "Time": "19:54:23", "Name": "Vincent BOUILLARD", "Id": "2704.vincent.bouillard", "Nationality": "FRA", "Age": "SE H"},
			{"Status": "DNF", "Name": "Pau CAPELL", "Nationality": "ESP", "Age": "V1 H"}
		]
	}`, string(encoded))
}

func TestRaceMissingMetaIsIncomplete(t *testing.T) {
	race, err := Race(context.Background(), readFixture(t, "race_no_distance.html"))
	require.NoError(t, err)
	require.False(t, race.Distance.Present())
	require.Len(t, race.Results, 1)
	require.False(t, race.Complete())
}

func TestRaceEmptyPage(t *testing.T) {
	race, err := Race(context.Background(), []byte("<html><body><h1>Not found</h1></body></html>"))
	require.NoError(t, err)
	require.Empty(t, race.Results)
	require.False(t, race.Complete())
}

func TestRunnerIDPage(t *testing.T) {
	cases := []struct {
		fixture string
		expect  IDPage
	}{
		{
			fixture: "runner_search_page1.html",
			expect: IDPage{
				IDs:     []string{"2704.vincent.bouillard", "1016.pau.capell"},
				HasNext: true,
				MaxPage: 4120,
			},
		},
		{
			fixture: "runner_search_last.html",
			expect: IDPage{
				IDs:     []string{"999.last.one"},
				HasNext: false,
				MaxPage: 4120,
			},
		},
	}
	for _, test := range cases {
		page, err := RunnerIDPage(context.Background(), readFixture(t, test.fixture))
		require.NoError(t, err)
		diff := cmp.Diff(test.expect, page)
		require.Empty(t, diff, test.fixture)
	}
}

func TestRunnerIDPageLinks(t *testing.T) {
	body := `<html><body>
		<div class="my-table_row__nlm_j">
			<div class="my-table_cell__z__zN"><a href="/en/runner/1.first.runner?lang=en">First</a></div>
			<div class="my-table_cell__z__zN"><a href="/en/runner/1.first.runner/">Profile</a></div>
		</div>
		<div class="my-table_row__nlm_j">
			<div class="my-table_cell__z__zN">no link</div>
		</div>
		<div class="my-table_row__nlm_j">
			<div class="my-table_cell__z__zN"><a href="https://utmb.world/en/runner/2.second.runner">Second</a></div>
		</div>
		<a rel="next" aria-disabled="true">Next</a>
	</body></html>`

	page, err := RunnerIDPage(context.Background(), []byte(body))
	require.NoError(t, err)
	require.Equal(t, []string{"1.first.runner", "2.second.runner"}, page.IDs)
	require.False(t, page.HasNext)
}

func TestRunnerProfile(t *testing.T) {
	profile, err := RunnerProfile(context.Background(), "2704.vincent.bouillard", readFixture(t, "runner.html"))
	require.NoError(t, err)

	primary, secondary := profile.RankingScore()
	require.Equal(t, 935, primary)
	require.Equal(t, 821+912+935, secondary)

	encoded, err := json.Marshal(profile)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"id": "2704.vincent.bouillard",
		"name": "Vincent BOUILLARD",
		"age_group": "SE H",
		"nationality": "France",
		"UTMB Index": {"General": "935", "20K": "821", "100K": "912", "100M": "935"},
		"club": "Team Hoka",
		"races": [
			{"race": "500.2024", "category": "100M", "time": "19:54:23", "rank": "1", "gender_rank": "1"}
		]
	}`, string(encoded))
}

func TestRunnerProfileSparse(t *testing.T) {
	profile, err := RunnerProfile(context.Background(), "1", []byte("<html><body></body></html>"))
	require.NoError(t, err)

	encoded, err := json.Marshal(profile)
	require.NoError(t, err)
	require.JSONEq(t, `{"id": "1"}`, string(encoded))
}
