package commands

import (
	"fmt"
	"log/slog"
	"utmbindex-backend/internal/export"
	"utmbindex-backend/lib/dbutil"
	"utmbindex-backend/lib/serviceutil"

	"github.com/spf13/cobra"
)

var (
	exportInput    *string
	exportSqlite   *string
	exportLibsql   *string
	exportPostgres *string
	exportBouncer  *bool
)

func init() {
	exportInput = exportCmd.Flags().String("input", "", "The directory holding the cleaned files, defaults to data_dir.")
	exportSqlite = exportCmd.Flags().String("sqlite", "", "A sqlite database file.")
	exportLibsql = exportCmd.Flags().String("libsql", "", "A libsql database url, the token is read from database.auth_token.")
	exportPostgres = exportCmd.Flags().String("postgres", "", "A postgres dsn.")
	exportBouncer = exportCmd.Flags().Bool("pgbouncer", false, "The postgres dsn points at pgbouncer.")
	exportCmd.MarkFlagsMutuallyExclusive("sqlite", "libsql", "postgres")
	rootCmd.AddCommand(exportCmd)
}

// sink picks the database from the flags, falling back to the config.
func sink(cmd *cobra.Command) (export.Sink, func(), error) {
	dsn := *exportPostgres
	if dsn == "" && *exportSqlite == "" && *exportLibsql == "" {
		dsn = config.PostgresDSN
	}
	if dsn != "" {
		pg, err := export.NewPgSink(cmd.Context(), export.PgOptions{
			DSN:        dsn,
			ViaBouncer: *exportBouncer,
			Tel:        tel,
		})
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	}

	dbConfig := config.Database
	switch {
	case *exportSqlite != "":
		dbConfig = dbutil.Config{File: *exportSqlite}
	case *exportLibsql != "":
		dbConfig.File = ""
		dbConfig.Url = *exportLibsql
	}
	db, err := dbConfig.OpenDB()
	if err != nil {
		return nil, nil, fmt.Errorf("open %s database: %w", dbConfig.Dialect(), err)
	}
	return export.NewSQLSink(db, tel), func() { db.Close() }, nil
}

var exportCmd = &cobra.Command{
	Use:   "export [--input <dir>] (--sqlite <path> | --libsql <url> | --postgres <dsn>)",
	Short: "Writes the cleaned files into a SQL database.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		input := *exportInput
		if input == "" {
			input = config.DataDir
		}
		data, err := export.LoadDataset(input)
		if err != nil {
			serviceutil.Fatal("failed to load cleaned files", err)
		}

		out, closeSink, err := sink(cmd)
		if err != nil {
			serviceutil.Fatal("failed to open database", err)
		}
		defer closeSink()

		counts, err := out.Write(cmd.Context(), data)
		if err != nil {
			serviceutil.Fatal("failed to export", err)
		}
		slog.Info(
			"export complete",
			"races", counts.Races,
			"results", counts.Results,
			"runners", counts.Runners,
			"participations", counts.Participations,
			"runner_ids", counts.RunnerIDs,
		)
	},
}
