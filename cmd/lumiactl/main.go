package main

import (
	"os"

	"github.com/lumia-app/lumia/cmd/lumiactl/cmd"
	"github.com/lumia-app/lumia/internal/logger"

	"github.com/spf13/cobra"
)

func main() {
	logger.Init(logger.Options{
		Development: true,
		Level:       os.Getenv("LOG_LEVEL"),
		Output:      os.Stderr,
	})

	rootCmd := &cobra.Command{
		Use:          "lumiactl",
		Short:        "Operator tools for Lumia",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("db-driver", envOr("DB_DRIVER", "sqlite"), "database driver (sqlite or postgres)")
	rootCmd.PersistentFlags().String("db", envOr("DB_CONNECTION", "./data/lumia.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"), "database connection string")

	rootCmd.AddCommand(cmd.MigrateCmd())
	rootCmd.AddCommand(cmd.UserCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
