package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/DrugEx/internal/infrastructure/database/postgres"
	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DrugEx/pkg/errors"
)

type migrationState struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

func (s migrationState) TableHeaders() []string { return []string{"VERSION", "DIRTY"} }

func (s migrationState) TableRows() [][]string {
	return [][]string{{strconv.FormatUint(uint64(s.Version), 10), strconv.FormatBool(s.Dirty)}}
}

func newMigrateCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the run store schema",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "migrations directory (default: database.postgres.migration_path)")

	target := func(cmd *cobra.Command) (dbURL, source string, cliCtx *CLIContext, err error) {
		cliCtx, err = GetCLIContext(cmd)
		if err != nil {
			return "", "", nil, err
		}
		pg := cliCtx.Config.Database.Postgres
		path := pg.MigrationPath
		if dir != "" {
			path = dir
		}
		return postgres.DSN(pg), postgres.SourceURL(path), cliCtx, nil
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbURL, source, cliCtx, err := target(cmd)
			if err != nil {
				return err
			}
			if err := postgres.RunMigrations(dbURL, source); err != nil {
				return err
			}
			cliCtx.Logger.Info("Migrations applied", logging.String("source", source))
			return printMigrationState(cmd, dbURL, source)
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbURL, source, cliCtx, err := target(cmd)
			if err != nil {
				return err
			}
			if steps < 1 {
				return errors.Newf(errors.ErrCodeValidation, "steps must be >= 1, got %d", steps)
			}
			if err := postgres.RollbackMigration(dbURL, source, steps); err != nil {
				return err
			}
			cliCtx.Logger.Info("Migrations rolled back", logging.Int("steps", steps))
			return printMigrationState(cmd, dbURL, source)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbURL, source, _, err := target(cmd)
			if err != nil {
				return err
			}
			return printMigrationState(cmd, dbURL, source)
		},
	}

	force := &cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations, clearing the dirty flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeValidation, "version must be an integer").WithDetail(args[0])
			}
			dbURL, source, cliCtx, err := target(cmd)
			if err != nil {
				return err
			}
			if err := postgres.ForceMigrationVersion(dbURL, source, version); err != nil {
				return err
			}
			cliCtx.Logger.Warn("Migration version forced", logging.Int("version", version))
			return printMigrationState(cmd, dbURL, source)
		},
	}

	cmd.AddCommand(up, down, status, force)
	return cmd
}

func printMigrationState(cmd *cobra.Command, dbURL, source string) error {
	version, dirty, err := postgres.MigrationStatus(dbURL, source)
	if err != nil {
		return err
	}
	return PrintResult(cmd, migrationState{Version: version, Dirty: dirty})
}

//Personal.AI order the ending
