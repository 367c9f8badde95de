package database

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// inMemoryDSN backs the roster when no database url is configured.
const inMemoryDSN = "file:roster?mode=memory&cache=shared"

// ConnectPostgres establishes a connection to the PostgreSQL database using the provided DSN.
func ConnectPostgres(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn must not be empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return db, nil
}

// ConnectSQLite opens a sqlite database. An empty dsn opens a shared in-memory database.
func ConnectSQLite(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = inMemoryDSN
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	return db, nil
}

// ConnectRoster picks the roster store from the url: postgres urls use postgres,
// sqlite: urls use a sqlite file, and an empty url falls back to memory.
func ConnectRoster(url string) (*gorm.DB, error) {
	trimmed := strings.TrimSpace(url)
	switch {
	case trimmed == "":
		return ConnectSQLite("")
	case strings.HasPrefix(trimmed, "sqlite:"):
		return ConnectSQLite(strings.TrimPrefix(trimmed, "sqlite:"))
	default:
		return ConnectPostgres(trimmed)
	}
}
