// Package harvest fetches pages for a stream of work items, parses them into records
// and accumulates the records into a collection that is checkpointed to disk as the run
// progresses.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"utmbindex-backend/internal/assert"
	"utmbindex-backend/internal/components/telemetry"
	"utmbindex-backend/internal/fetch"
	"utmbindex-backend/internal/retry"
)

const (
	DefaultWorkers         = 1
	DefaultCheckpointEvery = 10

	report_run_process    = "run.process"
	report_run_checkpoint = "run.checkpoint"
	report_run_found      = "run.found"
	report_run_absent     = "run.absent"
	report_run_failed     = "run.failed"
)

type Options struct {
	// Workers is the number of concurrent fetches, each worker owns its own fetcher.
	Workers int
	// CheckpointEvery saves the collection after this many found records.
	CheckpointEvery int
	Policy          retry.Policy
	Tel             telemetry.API
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.CheckpointEvery <= 0 {
		o.CheckpointEvery = DefaultCheckpointEvery
	}
	if o.Tel == nil {
		o.Tel = telemetry.Nop{}
	}
	return o
}

type Stats struct {
	Processed   int
	Found       int
	Absent      int
	Failed      int
	Checkpoints int
}

func (s Stats) report(tel telemetry.API) {
	tel.ReportCount(report_run_found, int64(s.Found))
	tel.ReportCount(report_run_absent, int64(s.Absent))
	tel.ReportCount(report_run_failed, int64(s.Failed))
}

// Run processes every item and folds the found records into coll. The collection is
// saved every CheckpointEvery found records, once more when the items run out and once
// more when ctx is canceled, in which case the context's error is returned alongside
// the stats.
//
// Outcomes arrive in completion order, not item order. Only the calling goroutine
// touches coll.
func Run[I, R any](
	ctx context.Context,
	items iter.Seq[I],
	job Job[I, R],
	factory fetch.Factory,
	coll Collection[R],
	saver Saver,
	opts Options,
) (Stats, error) {
	assert.NotNil(factory, "fetcher factory")
	assert.NotNil(coll, "collection")
	assert.NotNil(saver, "saver")
	opts = opts.withDefaults()
	tel := telemetry.NewScopedAPI("harvest", opts.Tel)

	fetchers := make([]fetch.Fetcher, opts.Workers)
	for i := range fetchers {
		f, err := factory()
		if err != nil {
			return Stats{}, fmt.Errorf("create fetcher: %w", err)
		}
		fetchers[i] = f
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	itemCh := make(chan I)
	outcomeCh := make(chan Outcome[I, R])

	go func() {
		defer close(itemCh)
		for item := range items {
			select {
			case itemCh <- item:
			case <-runCtx.Done():
				return
			}
		}
	}()

	wg := sync.WaitGroup{}
	for _, f := range fetchers {
		wg.Add(1)
		go func(f fetch.Fetcher) {
			defer wg.Done()
			for item := range itemCh {
				outcomeCh <- Process(runCtx, f, job, item, opts.Policy)
			}
		}(f)
	}
	go func() {
		wg.Wait()
		close(outcomeCh)
	}()

	stats := Stats{}
	sinceSave := 0
	var saveErr error
	save := func() error {
		err := saver.Save(coll.Snapshot())
		if err != nil {
			tel.ReportBroken(report_run_checkpoint, err)
			return err
		}
		stats.Checkpoints++
		sinceSave = 0
		stats.report(tel)
		tel.ReportDebug("checkpoint", slog.Int("records", coll.Len()), slog.Int("processed", stats.Processed))
		return nil
	}

	for outcome := range outcomeCh {
		if saveErr != nil {
			// draining after a failed save
			continue
		}
		switch outcome.Kind {
		case OutcomeFound:
			stats.Processed++
			stats.Found++
			coll.Add(outcome.Record)
			sinceSave++
			if sinceSave >= opts.CheckpointEvery {
				saveErr = save()
				if saveErr != nil {
					cancel()
				}
			}
		case OutcomeAbsent:
			stats.Processed++
			stats.Absent++
			tel.ReportDebug("absent", slog.String("url", outcome.URL))
		case OutcomeFailed:
			stats.Processed++
			stats.Failed++
			tel.ReportWarning(report_run_process, outcome.Err, outcome.URL)
		case OutcomeCanceled:
		}
	}

	if saveErr != nil {
		return stats, fmt.Errorf("save checkpoint: %w", saveErr)
	}
	err := save()
	if err != nil {
		err = fmt.Errorf("save checkpoint: %w", err)
	}
	return stats, errors.Join(ctx.Err(), err)
}
