package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/civicplan/planschedule/internal/infrastructure/database/postgres"
)

func newMigrateCmd(opts *RootOptions, out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		newMigrateUpCmd(opts, out),
		newMigrateDownCmd(opts, out),
		newMigrateVersionCmd(opts, out),
	)
	return cmd
}

func newMigrateUpCmd(opts *RootOptions, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			dsn := postgres.BuildDSN(cfg.Database)
			if err := postgres.RunMigrations(dsn, cfg.Database.MigrationPath); err != nil {
				return err
			}
			fmt.Fprintln(out, "schema is up to date")
			return nil
		},
	}
}

func newMigrateDownCmd(opts *RootOptions, out io.Writer) *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			dsn := postgres.BuildDSN(cfg.Database)
			if err := postgres.RollbackMigration(dsn, cfg.Database.MigrationPath, steps); err != nil {
				return err
			}
			fmt.Fprintf(out, "rolled back %d migration(s)\n", steps)
			return nil
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	return cmd
}

func newMigrateVersionCmd(opts *RootOptions, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			dsn := postgres.BuildDSN(cfg.Database)
			version, dirty, err := postgres.MigrationVersion(dsn, cfg.Database.MigrationPath)
			if err != nil {
				return err
			}
			if version == 0 {
				fmt.Fprintln(out, "no migrations applied")
				return nil
			}
			fmt.Fprintf(out, "version %d (dirty: %t)\n", version, dirty)
			return nil
		},
	}
}
