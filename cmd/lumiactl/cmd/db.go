package cmd

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lumia-app/lumia/internal/db"
	"github.com/spf13/cobra"
)

// openDB opens the database named by the root persistent flags.
func openDB(cmd *cobra.Command) (*sqlx.DB, string, error) {
	driver, err := cmd.Flags().GetString("db-driver")
	if err != nil {
		return nil, "", err
	}
	dsn, err := cmd.Flags().GetString("db")
	if err != nil {
		return nil, "", err
	}

	database, err := db.Init(driver, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open database: %w", err)
	}
	return database, driver, nil
}
