package commands

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"
	"utmbindex-backend/internal/fetch"
	"utmbindex-backend/internal/harvest"
	"utmbindex-backend/internal/notify"
	"utmbindex-backend/internal/retry"
	"utmbindex-backend/lib/serviceutil"
)

func fetchSetup() (fetch.Factory, retry.Policy) {
	policy, err := config.Policy()
	if err != nil {
		serviceutil.Fatal("invalid retry config", err)
	}
	factory, err := config.Fetchers(tel, dump)
	if err != nil {
		serviceutil.Fatal("invalid fetch config", err)
	}
	return factory, policy
}

// claimCheckpoint takes out when set, otherwise a new run file in <data_dir>/<dir>.
func claimCheckpoint(dir, prefix, out string) *harvest.Checkpoint {
	path := out
	if path == "" {
		var err error
		path, err = harvest.RunPath(filepath.Join(config.DataDir, dir), prefix, time.Now())
		if err != nil {
			serviceutil.Fatal("failed to create checkpoint path", err)
		}
	}
	checkpoint, err := harvest.ClaimCheckpoint(path)
	if err != nil {
		serviceutil.Fatal("failed to claim checkpoint", err)
	}
	slog.Info("writing checkpoints", "path", path)
	return checkpoint
}

// finishHarvest releases the checkpoint, mails the summary and exits non-zero when the
// run did not complete.
func finishHarvest(ctx context.Context, checkpoint *harvest.Checkpoint, summary notify.Summary) {
	summary.Output = checkpoint.Path()
	summary.Finished = time.Now()

	err := checkpoint.Release()
	if err != nil {
		tel.ReportWarning("cli.checkpoint", err, checkpoint.Path())
	}

	notify.NewNotifier(config.Smtp, tel).Deliver(context.WithoutCancel(ctx), summary)

	if summary.Err != nil {
		if errors.Is(summary.Err, context.Canceled) {
			slog.Warn("interrupted, progress was saved", "path", checkpoint.Path(), "saves", checkpoint.Saves())
		}
		serviceutil.Fatal(summary.Command+" did not complete", summary.Err)
	}
	slog.Info(
		summary.Command+" complete",
		"path", checkpoint.Path(),
		"duration", summary.Finished.Sub(summary.Started).Round(time.Second),
	)
}

func statsFields(stats harvest.Stats) []notify.Field {
	return []notify.Field{
		{Name: "processed", Value: stats.Processed},
		{Name: "found", Value: stats.Found},
		{Name: "absent", Value: stats.Absent},
		{Name: "failed", Value: stats.Failed},
		{Name: "checkpoints", Value: stats.Checkpoints},
	}
}

func runOptions(policy retry.Policy, workers, every int) harvest.Options {
	if workers <= 0 {
		workers = config.Workers
	}
	if every <= 0 {
		every = config.CheckpointEvery
	}
	return harvest.Options{
		Workers:         workers,
		CheckpointEvery: every,
		Policy:          policy,
		Tel:             tel,
	}
}
