package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-budget-must-balance/internal/cli"
	"github.com/Veraticus/the-budget-must-balance/internal/storage"
)

func migrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.

This command ensures your local database has all the required
tables and indexes, and seeds the default categories on first run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, _ := cmd.Flags().GetBool("status")
			if status {
				return runMigrateStatus(cmd)
			}
			return runMigrate(cmd, a)
		},
	}

	cmd.Flags().Bool("status", false, "Show current migration status without applying changes")

	return cmd
}

func runMigrateStatus(cmd *cobra.Command) error {
	dbPath := databasePath()
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	current, err := store.SchemaVersion(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cli.FormatTitle("Database Migration Status"))
	fmt.Fprintf(out, "Database:        %s\n", dbPath)
	fmt.Fprintf(out, "Current version: %d\n", current)
	fmt.Fprintf(out, "Latest version:  %d\n", storage.ExpectedSchemaVersion)

	switch {
	case current < storage.ExpectedSchemaVersion:
		fmt.Fprintln(out, cli.FormatWarning("Pending migrations; run 'budget migrate'"))
	case current > storage.ExpectedSchemaVersion:
		fmt.Fprintln(out, cli.FormatError("Database was written by a newer version of budget"))
	default:
		fmt.Fprintln(out, cli.FormatSuccess("Up to date"))
	}
	return nil
}

func runMigrate(cmd *cobra.Command, a *app) error {
	slog.Info("Running database migrations", "database", databasePath())

	store, err := a.storage(cmd.Context())
	if err != nil {
		return err
	}

	current, err := store.SchemaVersion(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Database is at schema version %d", current)))
	return nil
}
