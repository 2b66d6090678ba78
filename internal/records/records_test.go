package records

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestParseRaceKey(t *testing.T) {
	cases := []struct {
		input  string
		expect RaceKey
		fails  bool
	}{
		{input: "500.2024", expect: RaceKey{UID: 500, Year: 2024}},
		{input: "500..2024", expect: RaceKey{UID: 500, Year: 2024}},
		{input: "12", fails: true},
		{input: "abc.2024", fails: true},
		{input: "12.20x4", fails: true},
	}

	for _, test := range cases {
		key, err := ParseRaceKey(test.input)
		if test.fails {
			require.Error(t, err, test.input)
			continue
		}
		require.NoError(t, err, test.input)
		require.Equal(t, test.expect, key)
		require.Equal(t, "500.2024", key.String())
		require.Equal(t, "500..2024", key.Slug())
	}
}

func TestOptionalOmittedWhenAbsent(t *testing.T) {
	profile := RunnerProfile{
		ID:      "1234.jane",
		Name:    Some("Jane"),
		Club:    Text("   "),
		Sponsor: Some(""),
	}
	encoded, err := json.Marshal(profile)
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"1234.jane","name":"Jane","sponsor":""}`, string(encoded))

	var decoded RunnerProfile
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	require.False(t, decoded.Club.Present())
	sponsor, ok := decoded.Sponsor.Get()
	require.True(t, ok)
	require.Equal(t, "", sponsor)
}

func TestRaceComplete(t *testing.T) {
	full := Race{
		Location:      Some("Chamonix, FRA"),
		Date:          Some("30 Aug 2024"),
		Distance:      Some("174 km"),
		ElevationGain: Some("10000 m+"),
		Results:       []Result{{Rank: 1, Time: Some("19:37:43"), Name: "A"}},
	}
	require.True(t, full.Complete())

	noResults := full
	noResults.Results = nil
	require.False(t, noResults.Complete())

	noDate := full
	noDate.Date = None[string]()
	require.False(t, noDate.Complete())
}

func TestResultReadsOlderDNFShape(t *testing.T) {
	var results []Result
	err := json.Unmarshal([]byte(`[
		{"Rank": 1, "Time": "20:00:00", "Name": "A", "Id": "1.a", "Nationality": "FRA", "Age": "SE H"},
		{"Name": "B", "Time": "DNF", "Nationality": "ESP", "Age": "V1 H"},
		{"Status": "DNF", "Name": "C"}
	]`), &results)
	require.NoError(t, err)

	expect := []Result{
		{
			Rank:        1,
			Time:        Some("20:00:00"),
			Name:        "A",
			RunnerID:    Some("1.a"),
			Nationality: Some("FRA"),
			AgeCategory: Some("SE H"),
		},
		{Status: StatusDNF, Name: "B", Nationality: Some("ESP"), AgeCategory: Some("V1 H")},
		{Status: StatusDNF, Name: "C"},
	}
	diff := cmp.Diff(expect, results, cmp.AllowUnexported(Optional[string]{}))
	if diff != "" {
		t.Fatal(diff)
	}
	require.True(t, results[0].Finished())
	require.False(t, results[1].Finished())

	encoded, err := json.Marshal(results[1])
	require.NoError(t, err)
	require.JSONEq(t, `{"Status":"DNF","Name":"B","Nationality":"ESP","Age":"V1 H"}`, string(encoded))
}

func TestIndexScore(t *testing.T) {
	cases := []struct {
		raw    string
		expect int
	}{
		{raw: `"712"`, expect: 712},
		{raw: `712`, expect: 712},
		{raw: `"-"`, expect: 0},
		{raw: `""`, expect: 0},
		{raw: `null`, expect: 0},
		{raw: `"-3"`, expect: 0},
		{raw: `12.5`, expect: 0},
		{raw: `" 700"`, expect: 0},
	}

	for _, test := range cases {
		var v IndexValue
		require.NoError(t, json.Unmarshal([]byte(test.raw), &v))
		require.Equal(t, test.expect, v.Score(), test.raw)

		encoded, err := json.Marshal(v)
		require.NoError(t, err)
		require.Equal(t, test.raw, string(encoded))
	}
}

func TestRankingScore(t *testing.T) {
	profile := RunnerProfile{
		ID: "1",
		Index: UTMBIndex{
			"General": IndexText("700"),
			"20K":     IndexText("600"),
			"50K":     IndexText("-"),
			"100M":    IndexText("650"),
		},
	}
	primary, secondary := profile.RankingScore()
	require.Equal(t, 700, primary)
	require.Equal(t, 1250, secondary)
}
