package sqlite

import (
	"fmt"
	"strings"
	"time"
)

// MemoryPath selects a private in-memory database.
const MemoryPath = ":memory:"

// Config holds SQLite-specific database configuration
type Config struct {
	// Path is the database file path, a "file:" URI or MemoryPath
	Path string

	// BusyTimeout sets how long to wait for database locks
	BusyTimeout time.Duration

	// EnableForeignKeys enables foreign key constraint checking
	EnableForeignKeys bool

	// JournalMode sets the SQLite journal mode (WAL, DELETE, TRUNCATE, etc.)
	JournalMode string

	// Synchronous sets the synchronous mode (FULL, NORMAL, OFF)
	Synchronous string

	// MaxOpenConns sets the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns sets the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime sets the maximum lifetime of connections
	ConnMaxLifetime time.Duration

	// MustExist makes Open fail with ErrDatabaseNotFound instead of creating
	// a missing database file
	MustExist bool
}

// DefaultConfig returns a SQLite configuration with sensible defaults
func DefaultConfig(path string) Config {
	return Config{
		Path:              path,
		BusyTimeout:       30 * time.Second,
		EnableForeignKeys: true,
		JournalMode:       "WAL",
		Synchronous:       "NORMAL",
		MaxOpenConns:      4,
		MaxIdleConns:      2,
		ConnMaxLifetime:   5 * time.Minute,
	}
}

// InMemoryConfig returns a configuration for a private in-memory database.
// Every connection to ":memory:" opens a distinct database, so the pool is
// pinned to one connection that never expires.
func InMemoryConfig() Config {
	return Config{
		Path:              MemoryPath,
		BusyTimeout:       5 * time.Second,
		EnableForeignKeys: true,
		JournalMode:       "MEMORY",
		Synchronous:       "OFF",
		MaxOpenConns:      1,
		MaxIdleConns:      1,
	}
}

var (
	validJournalModes = map[string]bool{
		"DELETE":   true,
		"TRUNCATE": true,
		"PERSIST":  true,
		"MEMORY":   true,
		"WAL":      true,
		"OFF":      true,
	}

	validSyncModes = map[string]bool{
		"OFF":    true,
		"NORMAL": true,
		"FULL":   true,
		"EXTRA":  true,
	}
)

// Validate validates the SQLite configuration
func (c Config) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return fmt.Errorf("path cannot be empty")
	}

	if c.BusyTimeout < 0 {
		return fmt.Errorf("BusyTimeout cannot be negative")
	}

	if c.JournalMode != "" && !validJournalModes[strings.ToUpper(c.JournalMode)] {
		return fmt.Errorf("invalid journal mode: %s", c.JournalMode)
	}

	if c.Synchronous != "" && !validSyncModes[strings.ToUpper(c.Synchronous)] {
		return fmt.Errorf("invalid synchronous mode: %s", c.Synchronous)
	}

	if c.MaxOpenConns < 0 {
		return fmt.Errorf("MaxOpenConns cannot be negative")
	}

	if c.MaxIdleConns < 0 {
		return fmt.Errorf("MaxIdleConns cannot be negative")
	}

	if c.ConnMaxLifetime < 0 {
		return fmt.Errorf("ConnMaxLifetime cannot be negative")
	}

	return nil
}

// DSN renders the driver connection string. PRAGMAs are passed as _pragma
// parameters so that every pooled connection is configured the same way.
func (c Config) DSN() string {
	pragmas := make([]string, 0, 4)
	if c.BusyTimeout > 0 {
		pragmas = append(pragmas, fmt.Sprintf("_pragma=busy_timeout(%d)", c.BusyTimeout.Milliseconds()))
	}
	if c.EnableForeignKeys {
		pragmas = append(pragmas, "_pragma=foreign_keys(1)")
	}
	if c.JournalMode != "" {
		pragmas = append(pragmas, fmt.Sprintf("_pragma=journal_mode(%s)", strings.ToUpper(c.JournalMode)))
	}
	if c.Synchronous != "" {
		pragmas = append(pragmas, fmt.Sprintf("_pragma=synchronous(%s)", strings.ToUpper(c.Synchronous)))
	}

	if len(pragmas) == 0 {
		return c.Path
	}

	separator := "?"
	if strings.Contains(c.Path, "?") {
		separator = "&"
	}
	return c.Path + separator + strings.Join(pragmas, "&")
}
