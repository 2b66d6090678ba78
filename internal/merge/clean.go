package merge

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"utmbindex-backend/internal/components/telemetry"
	"utmbindex-backend/internal/datafile"
)

const (
	RaceDir     = "raw_race"
	RunnerDir   = "raw_runner"
	RunnerIDDir = "raw_runner_id"

	CleanedRaceFile     = "cleaned_race.json"
	CleanedRunnerFile   = "cleaned_runner.json"
	CleanedRunnerIDFile = "cleaned_runner_id.json"

	report_clean_input  = "clean.input"
	report_clean_output = "clean.output"
)

type Options struct {
	// InputDir holds the raw_race, raw_runner and raw_runner_id directories.
	InputDir string
	// OutputDir receives the cleaned files, InputDir when empty.
	OutputDir string
	Tel       telemetry.API
}

type KindReport struct {
	Kind   string
	Dir    string
	Output string
	// Missing is set when Dir does not exist, nothing is written for the kind then.
	Missing bool
	Inputs  int
	Records int
	Errors  []FileError
}

type Report struct {
	Kinds []KindReport
}

func (r Report) FileErrors() []FileError {
	var out []FileError
	for _, kind := range r.Kinds {
		out = append(out, kind.Errors...)
	}
	return out
}

// Err joins every input that could not be merged, nil if all were.
func (r Report) Err() error {
	var errs []error
	for _, fe := range r.FileErrors() {
		errs = append(errs, fe)
	}
	return errors.Join(errs...)
}

type kind struct {
	name   string
	dir    string
	output string
	// merge returns the value to write and how many records it holds
	merge func(paths []string) (any, int, []FileError)
}

var kinds = []kind{
	{
		name:   "race",
		dir:    RaceDir,
		output: CleanedRaceFile,
		merge: func(paths []string) (any, int, []FileError) {
			races, errs := MergeRaces(paths)
			return races, len(races), errs
		},
	},
	{
		name:   "runner",
		dir:    RunnerDir,
		output: CleanedRunnerFile,
		merge: func(paths []string) (any, int, []FileError) {
			profiles, errs := MergeProfiles(paths)
			return Rank(profiles), len(profiles), errs
		},
	},
	{
		name:   "runner_id",
		dir:    RunnerIDDir,
		output: CleanedRunnerIDFile,
		merge: func(paths []string) (any, int, []FileError) {
			ids, errs := MergeRunnerIDs(paths)
			return ids, len(ids), errs
		},
	},
}

// Clean merges every kind of raw file under opts.InputDir into its cleaned file. Inputs
// that fail to parse are skipped and listed in the report, the returned error is only
// for failures to read a directory or write an output.
func Clean(opts Options) (Report, error) {
	if opts.OutputDir == "" {
		opts.OutputDir = opts.InputDir
	}
	if opts.Tel == nil {
		opts.Tel = telemetry.Nop{}
	}
	tel := telemetry.NewScopedAPI("merge", opts.Tel)

	err := os.MkdirAll(opts.OutputDir, 0777)
	if err != nil {
		return Report{}, fmt.Errorf("create output dir: %w", err)
	}

	report := Report{}
	for _, k := range kinds {
		kr := KindReport{
			Kind:   k.name,
			Dir:    filepath.Join(opts.InputDir, k.dir),
			Output: filepath.Join(opts.OutputDir, k.output),
		}

		paths, err := Discover(kr.Dir)
		if errors.Is(err, os.ErrNotExist) {
			kr.Missing = true
			tel.ReportWarning(report_clean_input, "missing input directory", kr.Dir)
			report.Kinds = append(report.Kinds, kr)
			continue
		}
		if err != nil {
			return report, fmt.Errorf("discover %s: %w", kr.Dir, err)
		}
		kr.Inputs = len(paths)

		value, count, errs := k.merge(paths)
		kr.Records = count
		kr.Errors = errs
		for _, fe := range errs {
			tel.ReportWarning(report_clean_input, fe.Err, fe.Path)
		}

		err = datafile.WriteJSON(kr.Output, value)
		if err != nil {
			tel.ReportBroken(report_clean_output, err, kr.Output)
			return report, err
		}
		tel.ReportDebug(
			"cleaned",
			slog.String("kind", k.name),
			slog.Int("inputs", kr.Inputs),
			slog.Int("records", kr.Records),
		)
		report.Kinds = append(report.Kinds, kr)
	}
	return report, nil
}
