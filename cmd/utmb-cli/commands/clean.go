package commands

import (
	"utmbindex-backend/internal/merge"
	"utmbindex-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	cleanInput  *string
	cleanOutput *string
)

func init() {
	cleanInput = cleanCmd.Flags().String("input", "", "The directory holding raw_race, raw_runner and raw_runner_id, defaults to data_dir.")
	cleanOutput = cleanCmd.Flags().String("output", "", "Where the cleaned files are written, defaults to the input directory.")
	rootCmd.AddCommand(cleanCmd)
}

var cleanCmd = &cobra.Command{
	Use:   "clean [--input <dir>] [--output <dir>]",
	Short: "Merges the raw files of every run into one cleaned file per kind.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		input := *cleanInput
		if input == "" {
			input = config.DataDir
		}

		report, err := merge.Clean(merge.Options{
			InputDir:  input,
			OutputDir: *cleanOutput,
			Tel:       tel,
		})

		t := newTable()
		t.AppendHeader(table.Row{"Kind", "Inputs", "Records", "Failed", "Output"})
		for _, kind := range report.Kinds {
			output := kind.Output
			if kind.Missing {
				output = "(no " + kind.Dir + ")"
			}
			t.AppendRow(table.Row{kind.Kind, kind.Inputs, kind.Records, len(kind.Errors), output})
		}
		t.Render()

		if err != nil {
			serviceutil.Fatal("failed to clean", err)
		}
		fileErr := report.Err()
		if fileErr != nil {
			serviceutil.Fatal("some files could not be merged", fileErr)
		}
	},
}
