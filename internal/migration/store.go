package migration

import (
	"context"
	"database/sql"
	"fmt"
)

const (
	currentVersionQuery  = `SELECT MAX(version) FROM schema_migrations`
	originVersionQuery   = `SELECT MIN(version) FROM schema_migrations`
	appliedVersionsQuery = `SELECT version FROM schema_migrations ORDER BY version ASC`
)

// versionStore reads and writes the schema_migrations table. Every method
// reports errors; the fail-safe policy lives in Manager.
type versionStore struct {
	db      DBTX
	dialect Dialect
}

func (s *versionStore) hasTable(ctx context.Context) (bool, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, s.dialect.HasTableQuery()).Scan(&count); err != nil {
		return false, fmt.Errorf("query table catalog: %w", err)
	}
	return count == 1, nil
}

func (s *versionStore) createTable(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.CreateTableQuery()); err != nil {
		return fmt.Errorf("create %s table: %w", TableName, err)
	}
	return nil
}

// aggregate runs MAX/MIN over the table; ok is false for an empty table.
func (s *versionStore) aggregate(ctx context.Context, query string) (version int64, ok bool, err error) {
	var v sql.NullInt64
	if err := s.db.QueryRowContext(ctx, query).Scan(&v); err != nil {
		return 0, false, fmt.Errorf("query %s: %w", TableName, err)
	}
	return v.Int64, v.Valid, nil
}

func (s *versionStore) current(ctx context.Context) (int64, bool, error) {
	return s.aggregate(ctx, currentVersionQuery)
}

func (s *versionStore) origin(ctx context.Context) (int64, bool, error) {
	return s.aggregate(ctx, originVersionQuery)
}

func (s *versionStore) applied(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, appliedVersionsQuery)
	if err != nil {
		return nil, fmt.Errorf("query applied versions: %w", err)
	}
	defer rows.Close()

	versions := make([]int64, 0)
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan applied version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied versions: %w", err)
	}

	return versions, nil
}

// record inserts version using tx so that it commits or rolls back with the
// migration's own effects.
func (s *versionStore) record(ctx context.Context, tx DBTX, version int64) error {
	if _, err := tx.ExecContext(ctx, s.dialect.InsertVersionQuery(), version); err != nil {
		return fmt.Errorf("record version %d: %w", version, err)
	}
	return nil
}
