package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/poshstock/poshstock/database"
)

func (c *cli) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.

Migrations are applied in order, each in its own transaction, and
already-applied versions are skipped.`,
		RunE: c.runMigrate,
	}

	cmd.Flags().Bool("status", false, "Show current migration status without applying changes")

	return cmd
}

func (c *cli) runMigrate(cmd *cobra.Command, _ []string) error {
	status, _ := cmd.Flags().GetBool("status")
	ctx := cmd.Context()

	db, err := database.Open(c.cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()

	if status {
		current, err := database.CurrentVersion(ctx, db)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "current version: %d\nlatest version: %d\n", current, database.LatestVersion())
		return nil
	}

	c.log.Info("running database migrations", "latest", database.LatestVersion())
	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	c.log.Info("database migrations completed")
	return nil
}
