package db

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Init opens the database, applies pool defaults and verifies connectivity.
// driver is "sqlite" (modernc) or "pgx"; "postgres" is accepted as an alias.
func Init(driver, connection string) (*sqlx.DB, error) {
	driver = NormalizeDriver(driver)

	// SQLite: create data directory if needed
	if driver == "sqlite" && !isMemoryDSN(connection) {
		dir := filepath.Dir(strings.SplitN(connection, "?", 2)[0])
		err := os.MkdirAll(dir, 0755)
		if err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sqlx.Open(driver, connection)
	if err != nil {
		return nil, fmt.Errorf("failed to open: %w", err)
	}

	// Connection pool configuration (good defaults for all drivers)
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("database connected", "driver", driver)
	return db, nil
}

// NormalizeDriver maps user-facing driver names onto registered sql drivers.
func NormalizeDriver(driver string) string {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql", "pgx":
		return "pgx"
	case "", "sqlite", "sqlite3":
		return "sqlite"
	}
	return driver
}

func isMemoryDSN(connection string) bool {
	return strings.HasPrefix(connection, ":memory:") || strings.HasPrefix(connection, "file::memory:")
}

func Close(db *sqlx.DB) error {
	if db != nil {
		return db.Close()
	}
	return nil
}
