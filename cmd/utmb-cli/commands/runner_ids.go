package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"
	"utmbindex-backend/internal/datafile"
	"utmbindex-backend/internal/harvest"
	"utmbindex-backend/internal/merge"
	"utmbindex-backend/internal/notify"
	"utmbindex-backend/lib/serviceutil"

	"github.com/spf13/cobra"
)

var (
	idPages      *string
	idEvery      *int
	idResumeID   *string
	idResumePage *int
	idSkipGaps   *bool
	idOut        *string
	idSeed       *string
)

func init() {
	idPages = runnerIDsCmd.Flags().String("pages", "max", "How many listing pages to read, 'max' reads them all.")
	idEvery = runnerIDsCmd.Flags().Int("every", harvest.DefaultListingCheckpointAt, "Checkpoint after this many pages.")
	idResumeID = runnerIDsCmd.Flags().String("resume-id", "", "The last id collected by an earlier run.")
	idResumePage = runnerIDsCmd.Flags().Int("resume-page", 1, "The page the resume id was on.")
	idSkipGaps = runnerIDsCmd.Flags().Bool("skip-gaps", false, "Skip pages that stay empty instead of stopping.")
	idOut = runnerIDsCmd.Flags().String("out", "", "The checkpoint file, defaults to a new file in <data_dir>/raw_runner_id.")
	idSeed = runnerIDsCmd.Flags().String("seed", "", "A runner id file from an earlier run, new ids are appended to it.")
	rootCmd.AddCommand(runnerIDsCmd)
}

func parsePages(value string) (int, error) {
	if value == "max" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("--pages must be 'max' or a positive integer, got '%s'", value)
	}
	return n, nil
}

var runnerIDsCmd = &cobra.Command{
	Use:   "runner-ids [--pages N|max] [--every K] [--resume-id ID --resume-page P] [--skip-gaps]",
	Short: "Collects runner ids from the ranked runner listing.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		maxPages, err := parsePages(*idPages)
		if err != nil {
			serviceutil.Fatal("invalid flags", err)
		}

		var seed []string
		if *idSeed != "" {
			seed, err = datafile.ReadJSON[[]string](*idSeed)
			if err != nil {
				serviceutil.Fatal("failed to read seed", err)
			}
		}
		var resume *harvest.ResumePoint
		if *idResumeID != "" || *idResumePage > 1 {
			resume = &harvest.ResumePoint{LastID: *idResumeID, Page: *idResumePage}
		}

		factory, policy := fetchSetup()
		fetcher, err := factory()
		if err != nil {
			serviceutil.Fatal("failed to create fetcher", err)
		}
		checkpoint := claimCheckpoint(merge.RunnerIDDir, "runner_id", *idOut)

		ids := harvest.NewIDList(seed)
		started := time.Now()
		result, err := harvest.RunIDListing(cmd.Context(), fetcher, ids, checkpoint, harvest.ListingOptions{
			BaseURL:         config.RunnerSearchURL,
			MaxPages:        maxPages,
			SkipGaps:        *idSkipGaps,
			CheckpointEvery: *idEvery,
			Resume:          resume,
			Policy:          policy,
			Tel:             tel,
		})
		if len(result.Gaps) > 0 {
			slog.Warn("pages skipped because they stayed empty", "pages", result.Gaps)
		}
		if errors.Is(err, harvest.ErrResumePointNotFound) {
			slog.Error("the resume id was not found, check --resume-id and --resume-page", "id", *idResumeID)
		}

		finishHarvest(cmd.Context(), checkpoint, notify.Summary{
			Command: "runner-ids",
			Started: started,
			Fields: []notify.Field{
				{Name: "pages", Value: result.Pages},
				{Name: "last page", Value: result.LastPage},
				{Name: "new ids", Value: result.Added},
				{Name: "total ids", Value: ids.Len()},
				{Name: "gaps", Value: result.Gaps},
				{Name: "restarts", Value: result.Restarts},
			},
			Err: err,
		})
	},
}
