package commands

import (
	"fmt"
	"log/slog"
	"strconv"
	"utmbindex-backend/internal/split"
	"utmbindex-backend/lib/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(splitCmd)
}

var splitCmd = &cobra.Command{
	Use:   "split <ids.json> <size>",
	Short: "Cuts a runner id list into chunks of at most <size> ids.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		size, err := strconv.Atoi(args[1])
		if err != nil {
			serviceutil.Fatal("invalid size", fmt.Errorf("%w: '%s'", split.ErrInvalidSize, args[1]))
		}
		paths, err := split.Split(args[0], size)
		if err != nil {
			serviceutil.Fatal("failed to split", err)
		}
		for _, path := range paths {
			fmt.Println(path)
		}
		slog.Info("split complete", "chunks", len(paths))
	},
}
