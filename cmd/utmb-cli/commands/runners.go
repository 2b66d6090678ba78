package commands

import (
	"fmt"
	"time"
	"utmbindex-backend/internal/datafile"
	"utmbindex-backend/internal/harvest"
	"utmbindex-backend/internal/merge"
	"utmbindex-backend/internal/notify"
	"utmbindex-backend/internal/records"
	"utmbindex-backend/lib/serviceutil"

	"github.com/spf13/cobra"
)

var (
	runnerIDsFile *string
	runnerLimit   *int
	runnerEvery   *int
	runnerWorkers *int
	runnerOut     *string
	runnerSeed    *string
)

func init() {
	runnerIDsFile = runnersCmd.Flags().String("ids", "", "A JSON list of runner ids, like the cleaned runner id file or one of its chunks.")
	runnerLimit = runnersCmd.Flags().Int("limit", 0, "Only fetch the first N ids, 0 fetches all of them.")
	runnerEvery = runnersCmd.Flags().Int("every", 0, "Checkpoint after this many profiles were found, defaults to checkpoint_every.")
	runnerWorkers = runnersCmd.Flags().Int("workers", 0, "Concurrent fetches, defaults to workers.")
	runnerOut = runnersCmd.Flags().String("out", "", "The checkpoint file, defaults to a new file in <data_dir>/raw_runner.")
	runnerSeed = runnersCmd.Flags().String("seed", "", "A runner file from an earlier run, its profiles are kept and not fetched again.")
	runnersCmd.MarkFlagRequired("ids")
	rootCmd.AddCommand(runnersCmd)
}

var runnersCmd = &cobra.Command{
	Use:   "runners --ids <ids.json> [--limit N] [--every K] [--workers P]",
	Short: "Fetches the profile of every runner id in a file.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ids, err := datafile.ReadJSON[[]string](*runnerIDsFile)
		if err != nil {
			serviceutil.Fatal("failed to read runner ids", err)
		}
		if *runnerLimit > 0 && *runnerLimit < len(ids) {
			ids = ids[:*runnerLimit]
		}

		var seed []records.RunnerProfile
		if *runnerSeed != "" {
			seed, err = datafile.ReadJSON[[]records.RunnerProfile](*runnerSeed)
			if err != nil {
				serviceutil.Fatal("failed to read seed", err)
			}
		}
		profiles := harvest.NewProfileSet(seed)
		items := harvest.Skip(harvest.ProfileItems(ids), profiles.Has)

		factory, policy := fetchSetup()
		checkpoint := claimCheckpoint(merge.RunnerDir, "runner", *runnerOut)

		started := time.Now()
		stats, err := harvest.Run(
			cmd.Context(),
			items,
			harvest.ProfileJob(config.RunnerBaseURL),
			factory,
			profiles,
			checkpoint,
			runOptions(policy, *runnerWorkers, *runnerEvery),
		)
		finishHarvest(cmd.Context(), checkpoint, notify.Summary{
			Command: "runners",
			Started: started,
			Fields: append(
				statsFields(stats),
				notify.Field{Name: "ids", Value: fmt.Sprintf("%d from %s", len(ids), *runnerIDsFile)},
			),
			Err: err,
		})
	},
}
