package commands

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	"utmbindex-backend/internal/fetch"
	"utmbindex-backend/internal/retry"
	"utmbindex-backend/lib/configutil"

	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "utmb.json5")
	err := os.WriteFile(path, []byte(`{
		// only what differs from the defaults
		data_dir: "/srv/utmb",
		workers: 8,
		retry: { base_delay: "1s" },
	}`), 0666)
	require.NoError(t, err)

	cfg, err := configutil.ReadConfigOr(path, defaultConfig())
	require.NoError(t, err)
	require.Equal(t, "/srv/utmb", cfg.DataDir)
	require.Equal(t, 8, cfg.Workers)
	require.Equal(t, 10, cfg.CheckpointEvery)
	require.Equal(t, 8000, cfg.Port)

	policy, err := cfg.Policy()
	require.NoError(t, err)
	require.Equal(t, retry.DefaultMaxAttempts, policy.MaxAttempts)
	require.Equal(t, time.Second, policy.BaseDelay)
	require.Equal(t, retry.DefaultMaxDelay, policy.MaxDelay)

	cfg, err = configutil.ReadConfigOr(filepath.Join(t.TempDir(), "missing.json5"), defaultConfig())
	require.NoError(t, err)
	require.Equal(t, defaultConfig(), cfg)
}

func TestConfigInvalidDurations(t *testing.T) {
	cfg := defaultConfig()
	cfg.Retry.MaxDelay = "soon"
	_, err := cfg.Policy()
	require.Error(t, err)

	cfg = defaultConfig()
	cfg.RequestTimeout = "10 seconds"
	_, err = cfg.Fetchers(nil, nil)
	require.Error(t, err)
}

func TestConfigPagesDir(t *testing.T) {
	cfg := defaultConfig()
	cfg.PagesDir = t.TempDir()
	factory, err := cfg.Fetchers(nil, nil)
	require.NoError(t, err)
	fetcher, err := factory()
	require.NoError(t, err)
	require.IsType(t, fetch.DirFetcher{}, fetcher)
}

func TestParsePages(t *testing.T) {
	cases := []struct {
		input  string
		expect int
		fails  bool
	}{
		{input: "max", expect: 0},
		{input: "12", expect: 12},
		{input: "0", fails: true},
		{input: "-3", fails: true},
		{input: "all", fails: true},
	}
	for _, test := range cases {
		pages, err := parsePages(test.input)
		if test.fails {
			require.Error(t, err, test.input)
			continue
		}
		require.NoError(t, err, test.input)
		require.Equal(t, test.expect, pages, test.input)
	}
}
