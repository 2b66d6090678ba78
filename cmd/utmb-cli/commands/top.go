package commands

import (
	"fmt"
	"path/filepath"
	"utmbindex-backend/internal/datafile"
	"utmbindex-backend/internal/merge"
	"utmbindex-backend/internal/records"
	"utmbindex-backend/internal/search"
	"utmbindex-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	topInput    *string
	topCount    *int
	searchInput *string
	searchLimit *int
)

func init() {
	topInput = topCmd.Flags().String("input", "", "The cleaned runner file, defaults to the one in data_dir.")
	topCount = topCmd.Flags().IntP("count", "n", 20, "How many runners to show.")
	searchInput = searchCmd.Flags().String("input", "", "The cleaned runner file, defaults to the one in data_dir.")
	searchLimit = searchCmd.Flags().IntP("limit", "n", search.DefaultLimit, "How many matches to show.")
	rootCmd.AddCommand(topCmd)
	rootCmd.AddCommand(searchCmd)
}

func readRanked(path string) []records.RunnerProfile {
	if path == "" {
		path = filepath.Join(config.DataDir, merge.CleanedRunnerFile)
	}
	runners, err := datafile.ReadJSON[[]records.RunnerProfile](path)
	if err != nil {
		serviceutil.Fatal("failed to read cleaned runners", err)
	}
	return runners
}

func runnerRow(position int, profile records.RunnerProfile) table.Row {
	primary, secondary := profile.RankingScore()
	return table.Row{
		position,
		profile.Name.Or("-"),
		profile.Nationality.Or("-"),
		primary,
		secondary,
		profile.ID,
	}
}

var runnerHeader = table.Row{"#", "Name", "Nationality", "General", "Other", "Id"}

var topCmd = &cobra.Command{
	Use:   "top [--input <cleaned_runner.json>] [-n N]",
	Short: "Prints the highest ranked runners.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runners := readRanked(*topInput)

		t := newTable()
		t.AppendHeader(runnerHeader)
		count := max(0, min(*topCount, len(runners)))
		for i, profile := range runners[:count] {
			t.AppendRow(runnerRow(i+1, profile))
		}
		t.Render()
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <name>",
	Short: "Finds runners by approximate name.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runners := readRanked(*searchInput)
		matches := search.Runners(runners, args[0], search.Options{Limit: *searchLimit})

		t := newTable()
		t.AppendHeader(append(table.Row{"Similarity"}, runnerHeader...))
		for _, match := range matches {
			t.AppendRow(append(
				table.Row{fmt.Sprintf("%.2f", match.Similarity)},
				runnerRow(match.Position, match.Profile)...,
			))
		}
		t.Render()
	},
}
