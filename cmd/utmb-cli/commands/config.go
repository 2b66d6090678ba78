package commands

import (
	"fmt"
	"time"
	"utmbindex-backend/internal/components/telemetry"
	"utmbindex-backend/internal/fetch"
	"utmbindex-backend/internal/harvest"
	"utmbindex-backend/internal/notify"
	"utmbindex-backend/internal/retry"
	"utmbindex-backend/lib/dbutil"

	"golang.org/x/time/rate"
)

type RetryConfig struct {
	MaxAttempts int  `json:"max_attempts"`
	Forever     bool `json:"forever"`
	// durations are written like "500ms" or "30s"
	BaseDelay string `json:"base_delay"`
	MaxDelay  string `json:"max_delay"`
}

type Config struct {
	DataDir         string `json:"data_dir"`
	RaceBaseURL     string `json:"race_base_url"`
	RunnerBaseURL   string `json:"runner_base_url"`
	RunnerSearchURL string `json:"runner_search_url"`

	Workers           int     `json:"workers"`
	CheckpointEvery   int     `json:"checkpoint_every"`
	RequestTimeout    string  `json:"request_timeout"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	CloudflareBypass  bool    `json:"cloudflare_bypass"`
	// PagesDir serves pages from saved html files instead of the network.
	PagesDir string `json:"pages_dir"`

	Retry       RetryConfig       `json:"retry"`
	Smtp        notify.SmtpConfig `json:"smtp"`
	Database    dbutil.Config     `json:"database"`
	PostgresDSN string            `json:"postgres_dsn"`
	Port        int               `json:"port"`
}

func defaultConfig() Config {
	return Config{
		DataDir:         "data",
		RaceBaseURL:     harvest.DefaultRaceBaseURL,
		RunnerBaseURL:   harvest.DefaultRunnerBaseURL,
		RunnerSearchURL: harvest.DefaultSearchURL,
		Workers:         4,
		CheckpointEvery: harvest.DefaultCheckpointEvery,
		RequestTimeout:  fetch.DefaultTimeout.String(),
		Retry: RetryConfig{
			MaxAttempts: retry.DefaultMaxAttempts,
			BaseDelay:   retry.DefaultBaseDelay.String(),
			MaxDelay:    retry.DefaultMaxDelay.String(),
		},
		Port: 8000,
	}
}

func (c Config) Policy() (retry.Policy, error) {
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = c.Retry.MaxAttempts
	policy.Forever = c.Retry.Forever

	var err error
	if c.Retry.BaseDelay != "" {
		policy.BaseDelay, err = time.ParseDuration(c.Retry.BaseDelay)
		if err != nil {
			return retry.Policy{}, fmt.Errorf("retry.base_delay: %w", err)
		}
	}
	if c.Retry.MaxDelay != "" {
		policy.MaxDelay, err = time.ParseDuration(c.Retry.MaxDelay)
		if err != nil {
			return retry.Policy{}, fmt.Errorf("retry.max_delay: %w", err)
		}
	}
	return policy, nil
}

// Fetchers returns the factory every harvest command creates its fetchers from. The rate
// limit is shared by all of them.
func (c Config) Fetchers(tel telemetry.API, dump telemetry.MessageDump) (fetch.Factory, error) {
	if c.PagesDir != "" {
		return fetch.DirFactory(c.PagesDir), nil
	}

	timeout, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("request_timeout: %w", err)
	}
	opts := fetch.HTTPOptions{
		Timeout:          timeout,
		CloudflareBypass: c.CloudflareBypass,
		Tel:              tel,
		Dump:             dump,
	}
	if c.RequestsPerSecond > 0 {
		opts.Limiter = rate.NewLimiter(rate.Limit(c.RequestsPerSecond), 1)
	}
	return fetch.HTTPFactory(opts), nil
}
