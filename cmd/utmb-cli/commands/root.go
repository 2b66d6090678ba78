package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"utmbindex-backend/internal/components/telemetry"
	"utmbindex-backend/lib/configutil"
	"utmbindex-backend/lib/restyutil"
	"utmbindex-backend/lib/serviceutil"
	libtelemetry "utmbindex-backend/lib/telemetry"

	"github.com/spf13/cobra"
)

// state shared by every command, filled in before any of them runs
var (
	config  Config
	tel     telemetry.API = telemetry.SlogAPI{}
	dump    telemetry.MessageDump
	otelEnv libtelemetry.Telemetry
)

var (
	configPath *string
	verbose    *bool
	dataDir    *string
)

var rootCmd = &cobra.Command{
	Use:   "utmb-cli",
	Short: "utmb-cli harvests UTMB race results and runner profiles and merges them into clean datasets.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		libtelemetry.InitSlog(os.Stderr, *verbose)

		var err error
		config, err = configutil.ReadConfigOr(*configPath, defaultConfig())
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		if *dataDir != "" {
			config.DataDir = *dataDir
		}

		otelEnv, err = libtelemetry.SetupFromEnv(cmd.Context(), "utmb-cli")
		if err != nil {
			serviceutil.Fatal("failed to setup telemetry", err)
		}
		if otelEnv.Enabled() {
			metered, err := telemetry.NewMeteredAPI(telemetry.SlogAPI{})
			if err != nil {
				serviceutil.Fatal("failed to create metered telemetry", err)
			}
			tel = metered
			libtelemetry.InstrumentPerfStats(cmd.Context(), 15*time.Second)
		}

		if *verbose {
			out, err := restyutil.NewFilesystemOutput(filepath.Join(config.DataDir, ".resty"))
			if err != nil {
				serviceutil.Fatal("failed to create http dump directory", err)
			}
			dump = out
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := otelEnv.Shutdown(ctx)
		if err != nil {
			tel.ReportWarning("cli.telemetry", err)
		}
	},
}

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "utmb.json5", "The config file, utmb.local.json5 next to it overrides it.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug messages and dump every http exchange to <data_dir>/.resty.")
	dataDir = rootCmd.PersistentFlags().String("data-dir", "", "Overrides data_dir from the config.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
