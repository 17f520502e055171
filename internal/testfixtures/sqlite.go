// Package testfixtures provides databases, migration sources and loggers for tests.
package testfixtures

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/example/schema-migrations/internal/persistence/sqlite"
)

// NewSQLiteDB opens a SQLite database in a temporary file. The database is
// closed automatically when the test finishes.
func NewSQLiteDB(tb testing.TB) *sql.DB {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "migrations.db")
	cfg := sqlite.DefaultConfig(path)
	cfg.BusyTimeout = 0

	db, err := sqlite.Open(context.Background(), cfg)
	if err != nil {
		tb.Fatalf("failed to open sqlite database: %v", err)
	}

	tb.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// TableExists reports whether a table named name exists in a SQLite database.
func TableExists(tb testing.TB, db *sql.DB, name string) bool {
	tb.Helper()

	var count int
	err := db.QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&count)
	if err != nil {
		tb.Fatalf("failed to inspect sqlite_master for %s: %v", name, err)
	}
	return count == 1
}

// CountRows returns the number of rows in table.
func CountRows(tb testing.TB, db *sql.DB, table string) int {
	tb.Helper()

	var count int
	if err := db.QueryRowContext(context.Background(), fmt.Sprintf("SELECT COUNT(*) FROM %q", table)).Scan(&count); err != nil {
		tb.Fatalf("failed to count rows in %s: %v", table, err)
	}
	return count
}

// MustExec runs statements against db and fails the test on error.
func MustExec(tb testing.TB, db *sql.DB, statements ...string) {
	tb.Helper()

	for _, stmt := range statements {
		if _, err := db.ExecContext(context.Background(), stmt); err != nil {
			tb.Fatalf("failed to execute %q: %v", stmt, err)
		}
	}
}
