package commands

import (
	"utmbindex-backend/internal/server"
	"utmbindex-backend/lib/serviceutil"

	"github.com/spf13/cobra"
)

var (
	serveData *string
	servePort *int
)

func init() {
	serveData = serveCmd.Flags().String("data", "", "The directory holding the cleaned files, defaults to data_dir.")
	servePort = serveCmd.Flags().Int("port", 0, "The port to listen on, defaults to port from the config.")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve [--data <dir>] [--port N]",
	Short: "Serves the cleaned files and runner search over HTTP.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		dir := *serveData
		if dir == "" {
			dir = config.DataDir
		}
		port := *servePort
		if port == 0 {
			port = config.Port
		}

		srv := server.New(server.Options{DataDir: dir, Tel: tel})
		err := serviceutil.StartHttpServer(cmd.Context(), port, srv.Handler())
		if err != nil {
			serviceutil.Fatal("http server stopped", err)
		}
	},
}
