package migration

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strconv"

	"golang.org/x/crypto/blake2b"
)

// MaxVersion is the default migration ceiling: every pending migration is applied.
const MaxVersion int64 = 1<<63 - 1

// DBTX is the database capability a migration is applied with. Both *sql.DB
// and *sql.Tx satisfy it; the manager always passes the migration's own transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Migration is a single versioned schema change.
type Migration interface {
	// Version is the immutable ordering key of the migration.
	Version() int64

	// Apply executes the migration's side effects using tx.
	Apply(ctx context.Context, tx DBTX) error
}

// fileNamePattern matches "1.sql", "2_add_new_table.sql", "3_add-new-table.sql"
// and "4_add new table.sql". Descriptions may use any Unicode letters, marks
// and digits; the version is ASCII digits only.
var fileNamePattern = regexp.MustCompile(`(?i)^(\d+)_?([\p{L}\p{M}\p{N}\p{Pc}\s-]*)\.(sql)$`)

// ParseFileName extracts the version and descriptive suffix from a migration
// filename. ok is false when the name does not match the naming convention or
// the version overflows int64.
func ParseFileName(name string) (version int64, description string, ok bool) {
	matches := fileNamePattern.FindStringSubmatch(name)
	if matches == nil {
		return 0, "", false
	}

	version, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return 0, "", false
	}

	return version, matches[2], true
}

// FileMigration is a migration whose SQL lives in a resource of a Source.
// The content is read when the migration is applied.
type FileMigration struct {
	version     int64
	description string
	locator     string
	source      Source
}

// NewFileMigration builds a file migration for locator. It returns false when
// the last path segment of locator is not a migration filename.
func NewFileMigration(source Source, locator string) (*FileMigration, bool) {
	name := path.Base(filepath.ToSlash(locator))
	version, description, ok := ParseFileName(name)
	if !ok {
		return nil, false
	}

	return &FileMigration{
		version:     version,
		description: description,
		locator:     locator,
		source:      source,
	}, true
}

// Version returns the numeric filename prefix.
func (m *FileMigration) Version() int64 {
	return m.version
}

// Locator returns the source locator the migration reads from.
func (m *FileMigration) Locator() string {
	return m.locator
}

// Description returns the filename suffix after the version, possibly empty.
func (m *FileMigration) Description() string {
	return m.description
}

// Apply reads the migration content and executes it verbatim.
func (m *FileMigration) Apply(ctx context.Context, tx DBTX) error {
	content, err := m.read()
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("execute %s: %w", m.locator, err)
	}

	return nil
}

// Checksum returns the hex encoded BLAKE2b-256 digest of the migration content.
func (m *FileMigration) Checksum() (string, error) {
	content, err := m.read()
	if err != nil {
		return "", err
	}

	sum := blake2b.Sum256(content)
	return hex.EncodeToString(sum[:]), nil
}

func (m *FileMigration) read() ([]byte, error) {
	if m.source == nil {
		return nil, &SourceError{Path: m.locator, Operation: "read", Err: fmt.Errorf("no source attached")}
	}

	content, err := m.source.ReadFile(m.locator)
	if err != nil {
		return nil, &SourceError{Path: m.locator, Operation: "read", Err: err}
	}

	return content, nil
}

func (m *FileMigration) String() string {
	return fmt.Sprintf("FileMigration(%d, %s)", m.version, m.locator)
}

// ApplyFunc is the body of an inline migration.
type ApplyFunc func(ctx context.Context, tx DBTX) error

// FuncMigration is an inline migration backed by Go code.
type FuncMigration struct {
	version     int64
	description string
	fn          ApplyFunc
}

// NewFuncMigration builds an inline migration with an explicit version.
func NewFuncMigration(version int64, description string, fn ApplyFunc) *FuncMigration {
	return &FuncMigration{version: version, description: description, fn: fn}
}

// Version returns the version supplied at construction.
func (m *FuncMigration) Version() int64 {
	return m.version
}

// Description returns the human readable label supplied at construction.
func (m *FuncMigration) Description() string {
	return m.description
}

// Apply invokes the migration function.
func (m *FuncMigration) Apply(ctx context.Context, tx DBTX) error {
	if m.fn == nil {
		return nil
	}
	return m.fn(ctx, tx)
}

func (m *FuncMigration) String() string {
	if m.description == "" {
		return fmt.Sprintf("FuncMigration(%d)", m.version)
	}
	return fmt.Sprintf("FuncMigration(%d, %s)", m.version, m.description)
}

// describe renders a migration for logs and errors.
func describe(m Migration) string {
	if s, ok := m.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("Migration(%d)", m.Version())
}
