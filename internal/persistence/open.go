// Package persistence opens the database a migration run targets.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/schema-migrations/internal/migration"
	"github.com/example/schema-migrations/internal/persistence/postgres"
	"github.com/example/schema-migrations/internal/persistence/sqlite"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Target identifies a database by driver and connection string.
type Target struct {
	Driver string
	DSN    string

	// MustExist rejects a SQLite file that does not exist yet instead of
	// creating it. PostgreSQL databases are never created.
	MustExist bool
}

// NormalizeDriver maps driver aliases to DriverSQLite or DriverPostgres.
func NormalizeDriver(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "postgres", "postgresql", "pgx":
		return DriverPostgres, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
}

// Open connects to target and returns the pool with its migration dialect.
// Malformed targets fail here, before any manager is constructed.
func Open(ctx context.Context, target Target) (*sql.DB, migration.Dialect, error) {
	driver, err := NormalizeDriver(target.Driver)
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(target.DSN) == "" {
		return nil, nil, ErrEmptyDSN
	}

	switch driver {
	case DriverPostgres:
		db, err := postgres.Open(ctx, postgres.DefaultConfig(target.DSN))
		if err != nil {
			return nil, nil, err
		}
		return db, migration.PostgresDialect{}, nil
	default:
		cfg := sqlite.DefaultConfig(target.DSN)
		if target.DSN == sqlite.MemoryPath {
			cfg = sqlite.InMemoryConfig()
		}
		cfg.MustExist = target.MustExist
		db, err := sqlite.Open(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return db, migration.SQLiteDialect{}, nil
	}
}
