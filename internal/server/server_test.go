package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"utmbindex-backend/internal/merge"
	"utmbindex-backend/internal/search"

	"github.com/stretchr/testify/require"
)

const cleanedRunners = `[
    {"id": "1.kilian.jornet", "name": "Kilian JORNET", "UTMB Index": {"General": "950"}},
    {"id": "2.jim.walmsley", "name": "Jim WALMSLEY"}
]
`

func setupServer(t testing.TB) (*httptest.Server, string) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, merge.CleanedRunnerFile), []byte(cleanedRunners), 0666)
	require.NoError(t, err)
	srv := httptest.NewServer(New(Options{DataDir: dir}).Handler())
	t.Cleanup(srv.Close)
	return srv, dir
}

func get(t testing.TB, url string) (*http.Response, string) {
	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, string(body)
}

func TestData(t *testing.T) {
	srv, _ := setupServer(t)

	cases := []struct {
		query  string
		status int
		body   string
	}{
		{query: "?type=runners", status: http.StatusOK, body: cleanedRunners},
		{query: "", status: http.StatusOK, body: cleanedRunners},
		{query: "?type=races", status: http.StatusNotFound, body: `{"error":"File not found"}`},
		{query: "?type=secrets", status: http.StatusBadRequest, body: `{"error":"Invalid type"}`},
	}
	for _, test := range cases {
		res, body := get(t, srv.URL+"/data"+test.query)
		require.Equal(t, test.status, res.StatusCode, test.query)
		require.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"), test.query)
		require.Equal(t, "application/json", res.Header.Get("Content-Type"), test.query)
		require.JSONEq(t, test.body, body, test.query)
	}
}

func TestSearch(t *testing.T) {
	srv, dir := setupServer(t)

	res, body := get(t, srv.URL+"/runners/search?q=kilian+jornet&limit=1")
	require.Equal(t, http.StatusOK, res.StatusCode)
	var matches []search.Match
	require.NoError(t, json.Unmarshal([]byte(body), &matches))
	require.Len(t, matches, 1)
	require.Equal(t, "1.kilian.jornet", matches[0].Profile.ID)
	require.Equal(t, 1, matches[0].Position)

	res, body = get(t, srv.URL+"/runners/search?q=nobody+like+this")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.JSONEq(t, `[]`, body)

	res, _ = get(t, srv.URL+"/runners/search")
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	res, _ = get(t, srv.URL+"/runners/search?q=x&limit=zero")
	require.Equal(t, http.StatusBadRequest, res.StatusCode)

	require.NoError(t, os.Remove(filepath.Join(dir, merge.CleanedRunnerFile)))
	res, body = get(t, srv.URL+"/runners/search?q=kilian")
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	require.JSONEq(t, `{"error":"File not found"}`, body)
}
