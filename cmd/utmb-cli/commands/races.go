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
	raceUIDMin  *int
	raceUIDMax  *int
	raceYearMin *int
	raceYearMax *int
	raceEvery   *int
	raceWorkers *int
	raceOut     *string
	raceSeed    *string
)

func init() {
	raceUIDMin = racesCmd.Flags().Int("uid-min", 1, "The first race uid.")
	raceUIDMax = racesCmd.Flags().Int("uid-max", 100000, "The last race uid.")
	raceYearMin = racesCmd.Flags().Int("year-min", 2003, "The first year.")
	raceYearMax = racesCmd.Flags().Int("year-max", time.Now().Year(), "The last year.")
	raceEvery = racesCmd.Flags().Int("every", 0, "Checkpoint after this many races were found, defaults to checkpoint_every.")
	raceWorkers = racesCmd.Flags().Int("workers", 0, "Concurrent fetches, defaults to workers.")
	raceOut = racesCmd.Flags().String("out", "", "The checkpoint file, defaults to a new file in <data_dir>/raw_race.")
	raceSeed = racesCmd.Flags().String("seed", "", "A race file from an earlier run, its races are kept and not fetched again.")
	rootCmd.AddCommand(racesCmd)
}

var racesCmd = &cobra.Command{
	Use:   "races [--uid-min N] [--uid-max N] [--year-min Y] [--year-max Y] [--every K] [--workers P]",
	Short: "Fetches the results of every race edition in the uid and year ranges.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		uids := harvest.Range{Min: *raceUIDMin, Max: *raceUIDMax}
		years := harvest.Range{Min: *raceYearMin, Max: *raceYearMax}
		if uids.Len() == 0 || years.Len() == 0 {
			serviceutil.Fatal("invalid ranges", fmt.Errorf("uids %v and years %v must not be empty", uids, years))
		}

		seed := map[string]records.Race{}
		if *raceSeed != "" {
			var err error
			seed, err = datafile.ReadJSON[map[string]records.Race](*raceSeed)
			if err != nil {
				serviceutil.Fatal("failed to read seed", err)
			}
		}
		items := harvest.Skip(harvest.RaceItems(uids, years), func(key records.RaceKey) bool {
			_, ok := seed[key.String()]
			return ok
		})

		factory, policy := fetchSetup()
		checkpoint := claimCheckpoint(merge.RaceDir, "race", *raceOut)

		started := time.Now()
		stats, err := harvest.Run(
			cmd.Context(),
			items,
			harvest.RaceJob(config.RaceBaseURL),
			factory,
			harvest.NewRaceSet(seed),
			checkpoint,
			runOptions(policy, *raceWorkers, *raceEvery),
		)
		finishHarvest(cmd.Context(), checkpoint, notify.Summary{
			Command: "races",
			Started: started,
			Fields: append(
				statsFields(stats),
				notify.Field{Name: "uids", Value: fmt.Sprintf("%d-%d", uids.Min, uids.Max)},
				notify.Field{Name: "years", Value: fmt.Sprintf("%d-%d", years.Min, years.Max)},
			),
			Err: err,
		})
	},
}
