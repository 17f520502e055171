// Package sqlite opens SQLite databases through the pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	// Package sqlite is a CGo-free port of SQLite.
	_ "modernc.org/sqlite"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

// ErrDatabaseNotFound is returned by Open when Config.MustExist is set and the
// database file does not exist.
var ErrDatabaseNotFound = errors.New("sqlite: database file does not exist")

// Open validates cfg, creates the parent directory of a file database and
// returns a pinged connection pool.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid SQLite configuration: %w", err)
	}

	if cfg.MustExist {
		if err := checkExists(cfg.Path); err != nil {
			return nil, err
		}
	} else if err := ensureDirectory(cfg.Path); err != nil {
		return nil, err
	}

	db, err := sql.Open(DriverName, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	return db, nil
}

// ensureDirectory creates the directory holding a file database.
func ensureDirectory(path string) error {
	if isMemory(path) {
		return nil
	}

	dir := filepath.Dir(filePath(path))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}
	return nil
}

// checkExists verifies that a file database is already present.
func checkExists(path string) error {
	if isMemory(path) {
		return nil
	}

	file := filePath(path)
	info, err := os.Stat(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrDatabaseNotFound, file)
		}
		return fmt.Errorf("failed to stat database file %s: %w", file, err)
	}
	if info.IsDir() {
		return fmt.Errorf("database path %s is a directory", file)
	}
	return nil
}

// filePath strips the "file:" scheme and query parameters from path.
func filePath(path string) string {
	file := strings.TrimPrefix(path, "file:")
	if i := strings.Index(file, "?"); i >= 0 {
		file = file[:i]
	}
	return file
}

func isMemory(path string) bool {
	return path == MemoryPath ||
		strings.HasPrefix(path, "file::memory:") ||
		strings.Contains(path, "mode=memory")
}
