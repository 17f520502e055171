package migration

import (
	"errors"
	"fmt"
)

var (
	// ErrNilDatabase indicates that a manager was constructed without a database handle.
	ErrNilDatabase = errors.New("migration: database handle is nil")

	// ErrDuplicateVersion indicates that two registered migrations share a version.
	ErrDuplicateVersion = errors.New("migration: duplicate migration version")

	// ErrInvalidVersion indicates that a migration version is negative.
	ErrInvalidVersion = errors.New("migration: invalid migration version")

	// ErrMigrationsTableMissing indicates that schema_migrations has not been created yet.
	ErrMigrationsTableMissing = errors.New("migration: schema_migrations table does not exist")

	// ErrMigrationFailed matches every *ExecutionError via errors.Is.
	ErrMigrationFailed = errors.New("migration: execution failed")
)

// ExecutionError reports a failed DDL/DML operation, either while creating
// the tracking table or while applying a migration.
type ExecutionError struct {
	Version   int64  // Migration version; zero for table-level operations
	Migration string // String form of the migration, empty for table-level operations
	Operation string // Operation being performed (apply, record version, commit, ...)
	Err       error  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Migration != "" {
		return fmt.Sprintf("migration %d (%s): %s: %v", e.Version, e.Migration, e.Operation, e.Err)
	}
	return fmt.Sprintf("migration: %s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error for error unwrapping
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrMigrationFailed.
func (e *ExecutionError) Is(target error) bool {
	return target == ErrMigrationFailed
}

func newExecutionError(m Migration, operation string, err error) *ExecutionError {
	execErr := &ExecutionError{Operation: operation, Err: err}
	if m != nil {
		execErr.Version = m.Version()
		execErr.Migration = describe(m)
	}
	return execErr
}

// SourceError wraps failures raised while enumerating a migration source.
type SourceError struct {
	Path      string // Directory or locator being read
	Operation string // Source operation (list, read)
	Err       error  // Underlying error
}

// Error implements the error interface
func (e *SourceError) Error() string {
	return fmt.Sprintf("migration source error during %s of %s: %v", e.Operation, e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *SourceError) Unwrap() error {
	return e.Err
}

// ErrorKind maps migration errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrMigrationsTableMissing):
		return "table_missing"
	case errors.Is(err, ErrDuplicateVersion):
		return "duplicate_version"
	case errors.Is(err, ErrInvalidVersion):
		return "invalid_version"
	case errors.Is(err, ErrNilDatabase):
		return "nil_database"
	}

	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return "execution"
	}
	var srcErr *SourceError
	if errors.As(err, &srcErr) {
		return "source"
	}

	return "unexpected"
}
