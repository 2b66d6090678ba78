package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLastPathSegment(t *testing.T) {
	cases := []struct {
		input  string
		expect string
	}{
		{input: "/en/runner/1234.jane.doe", expect: "1234.jane.doe"},
		{input: "https://utmb.world/en/runner/77.x/", expect: "77.x"},
		{input: "/en/runner/5?tab=results#top", expect: "5"},
		{input: "plain", expect: "plain"},
		{input: "", expect: ""},
	}
	for _, test := range cases {
		require.Equal(t, test.expect, LastPathSegment(test.input), test.input)
	}
}

func TestLastField(t *testing.T) {
	require.Equal(t, "FRA", LastField("  France   FRA "))
	require.Equal(t, "", LastField("   "))
}

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "kilian jornet", NormalizeName("  Kilian \n JORNET "))
}

func TestNormalizeSpace(t *testing.T) {
	require.Equal(t, "Courmayeur - Champex - Chamonix", NormalizeSpace("\n  Courmayeur -\tChampex - Chamonix  "))
}
