package migration

// TableName is the tracking table shared with previously migrated databases.
const TableName = "schema_migrations"

// Dialect provides the tracking-table statements that differ between databases.
type Dialect interface {
	// Name identifies the dialect in logs.
	Name() string

	// HasTableQuery returns a query yielding the number of tables named schema_migrations.
	HasTableQuery() string

	// CreateTableQuery returns the idempotent DDL creating schema_migrations.
	CreateTableQuery() string

	// InsertVersionQuery returns the insert taking the version as its only parameter.
	InsertVersionQuery() string
}

// SQLiteDialect targets SQLite databases.
type SQLiteDialect struct{}

var _ Dialect = SQLiteDialect{}

func (SQLiteDialect) Name() string { return "sqlite" }

func (SQLiteDialect) HasTableQuery() string {
	return `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_migrations'`
}

func (SQLiteDialect) CreateTableQuery() string {
	return `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER UNIQUE NOT NULL)`
}

func (SQLiteDialect) InsertVersionQuery() string {
	return `INSERT INTO schema_migrations (version) VALUES (?)`
}

// PostgresDialect targets PostgreSQL databases. The tracking table is looked
// up in the current schema.
type PostgresDialect struct{}

var _ Dialect = PostgresDialect{}

func (PostgresDialect) Name() string { return "postgres" }

func (PostgresDialect) HasTableQuery() string {
	return `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = 'schema_migrations'`
}

func (PostgresDialect) CreateTableQuery() string {
	return `CREATE TABLE IF NOT EXISTS schema_migrations (version BIGINT UNIQUE NOT NULL)`
}

func (PostgresDialect) InsertVersionQuery() string {
	return `INSERT INTO schema_migrations (version) VALUES ($1)`
}
