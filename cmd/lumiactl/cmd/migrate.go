package cmd

import (
	"database/sql"
	"fmt"

	"github.com/lumia-app/lumia/internal/db"
	"github.com/spf13/cobra"
)

func MigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, driver, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := db.RunMigrations(database.DB, driver); err != nil {
				return err
			}
			return printVersion(cmd, database.DB, driver)
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, driver, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := db.MigrateDown(database.DB, driver); err != nil {
				return err
			}
			return printVersion(cmd, database.DB, driver)
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, driver, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer database.Close()

			return printVersion(cmd, database.DB, driver)
		},
	})

	return migrateCmd
}

func printVersion(cmd *cobra.Command, database *sql.DB, driver string) error {
	version, err := db.MigrationVersion(database, driver)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d\n", version)
	return nil
}
