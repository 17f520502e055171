package migration

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DB is the database handle a Manager works against. *sql.DB satisfies it.
// The handle is owned by the caller and must outlive the Manager.
type DB interface {
	DBTX
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Option configures a Manager.
type Option func(*options)

type options struct {
	migrations []Migration
	source     Source
	dialect    Dialect
	logger     *slog.Logger
}

// WithMigrations registers explicit migrations, typically inline ones.
func WithMigrations(migrations ...Migration) Option {
	return func(o *options) {
		o.migrations = append(o.migrations, migrations...)
	}
}

// WithSource sets the source file migrations are discovered from.
func WithSource(source Source) Option {
	return func(o *options) {
		o.source = source
	}
}

// WithDialect sets the database dialect. SQLiteDialect is used by default.
func WithDialect(dialect Dialect) Option {
	return func(o *options) {
		if dialect != nil {
			o.dialect = dialect
		}
	}
}

// WithLogger sets the logger used when none is attached to the context.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Manager computes pending migrations and applies them.
//
// A Manager does not coordinate concurrent runs: callers must make sure only
// one MigrateDatabase call runs against a database at a time.
type Manager struct {
	db       DB
	registry *registry
	store    *versionStore
	dialect  Dialect
	logger   *slog.Logger
}

// New builds a Manager over db. Migrations discovered from the source are
// merged with the explicit ones and sorted by version. New never touches the
// database; it fails on duplicate or negative versions and on source listing
// errors.
func New(db DB, opts ...Option) (*Manager, error) {
	if db == nil {
		return nil, ErrNilDatabase
	}
	if sqlDB, ok := db.(*sql.DB); ok && sqlDB == nil {
		return nil, ErrNilDatabase
	}

	o := options{dialect: SQLiteDialect{}}
	for _, opt := range opts {
		opt(&o)
	}
	logger := defaultLogger(o.logger)

	discovered, err := discover(o.source, logger)
	if err != nil {
		return nil, err
	}

	reg, err := newRegistry(discovered, o.migrations)
	if err != nil {
		return nil, err
	}

	return &Manager{
		db:       db,
		registry: reg,
		store:    &versionStore{db: db, dialect: o.dialect},
		dialect:  o.dialect,
		logger:   logger,
	}, nil
}

func (m *Manager) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return operationLogger(ctx, m.logger, operation, append([]any{"dialect", m.dialect.Name()}, attrs...)...)
}

// Migrations returns every registered migration in ascending version order.
func (m *Manager) Migrations() []Migration {
	return m.registry.all()
}

// HasMigrationsTable reports whether schema_migrations exists. Query errors
// are logged and reported as false.
func (m *Manager) HasMigrationsTable(ctx context.Context) bool {
	has, err := m.store.hasTable(ctx)
	if err != nil {
		m.loggerWith(ctx, "HasMigrationsTable").WarnContext(ctx, "treating tracking table as absent", "error", err)
		return false
	}
	return has
}

// CreateMigrationsTable creates schema_migrations if it does not exist yet.
func (m *Manager) CreateMigrationsTable(ctx context.Context) error {
	if err := m.store.createTable(ctx); err != nil {
		m.loggerWith(ctx, "CreateMigrationsTable").ErrorContext(ctx, "failed to create tracking table", "error", err)
		return newExecutionError(nil, "create tracking table", err)
	}
	return nil
}

// CurrentVersion returns the highest applied version, or 0 when the table is
// absent, empty or cannot be read.
func (m *Manager) CurrentVersion(ctx context.Context) int64 {
	return m.safeAggregate(ctx, "CurrentVersion", m.store.current)
}

// OriginVersion returns the lowest applied version, or 0 when the table is
// absent, empty or cannot be read.
func (m *Manager) OriginVersion(ctx context.Context) int64 {
	return m.safeAggregate(ctx, "OriginVersion", m.store.origin)
}

func (m *Manager) safeAggregate(ctx context.Context, operation string, query func(context.Context) (int64, bool, error)) int64 {
	if !m.HasMigrationsTable(ctx) {
		return 0
	}

	version, _, err := query(ctx)
	if err != nil {
		m.loggerWith(ctx, operation).WarnContext(ctx, "reporting version 0 after query failure", "error", err)
		return 0
	}
	return version
}

// AppliedVersions returns the recorded versions in ascending order. It is
// empty when the table is absent or cannot be read.
func (m *Manager) AppliedVersions(ctx context.Context) []int64 {
	if !m.HasMigrationsTable(ctx) {
		return []int64{}
	}

	versions, err := m.store.applied(ctx)
	if err != nil {
		m.loggerWith(ctx, "AppliedVersions").WarnContext(ctx, "reporting no applied versions after query failure", "error", err)
		return []int64{}
	}
	return versions
}

// PendingMigrations returns the registered migrations that are not recorded
// as applied, in ascending version order. Without a tracking table every
// migration is pending.
func (m *Manager) PendingMigrations(ctx context.Context) []Migration {
	if !m.HasMigrationsTable(ctx) {
		return m.registry.all()
	}

	applied, err := m.store.applied(ctx)
	if err != nil {
		m.loggerWith(ctx, "PendingMigrations").WarnContext(ctx, "treating every migration as pending after query failure", "error", err)
		return m.registry.all()
	}
	return m.registry.without(applied)
}

// NeedsMigration reports whether the tracking table exists and at least one
// migration is pending. It is false while the table is absent.
func (m *Manager) NeedsMigration(ctx context.Context) bool {
	if !m.HasMigrationsTable(ctx) {
		return false
	}
	return len(m.PendingMigrations(ctx)) > 0
}

// Migrate applies every pending migration.
func (m *Manager) Migrate(ctx context.Context) error {
	return m.MigrateDatabase(ctx, MaxVersion)
}

// MigrateDatabase applies the pending migrations whose version is at most
// toVersion, in ascending order, each in its own transaction together with
// its schema_migrations row. It stops at the first failure and returns an
// *ExecutionError; migrations applied before the failure stay committed.
//
// Unlike the read-only accessors, MigrateDatabase surfaces query errors on
// the tracking table instead of treating it as empty.
func (m *Manager) MigrateDatabase(ctx context.Context, toVersion int64) error {
	runID := uuid.NewString()
	logger := m.loggerWith(ctx, "MigrateDatabase", "run_id", runID, "to_version", toVersion)
	startTime := time.Now()

	has, err := m.store.hasTable(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to inspect tracking table", "error", err)
		return newExecutionError(nil, "check tracking table", err)
	}
	if !has {
		logger.ErrorContext(ctx, "tracking table missing, create it before migrating")
		return newExecutionError(nil, "check tracking table", ErrMigrationsTableMissing)
	}

	applied, err := m.store.applied(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to read applied versions", "error", err)
		return newExecutionError(nil, "read applied versions", err)
	}

	pending := make([]Migration, 0)
	for _, mig := range m.registry.without(applied) {
		if mig.Version() <= toVersion {
			pending = append(pending, mig)
		}
	}

	if len(pending) == 0 {
		logger.InfoContext(ctx, "database is up to date", "applied", len(applied))
		return nil
	}

	logger.InfoContext(ctx, "applying migrations", "pending", len(pending))

	for i, mig := range pending {
		migrationStart := time.Now()
		if err := m.apply(ctx, mig); err != nil {
			logger.ErrorContext(ctx, "migration failed, aborting run",
				"version", mig.Version(),
				"migration", describe(mig),
				"error", err,
				"error_kind", ErrorKind(err),
				"remaining", len(pending)-i-1,
			)
			return err
		}

		logger.InfoContext(ctx, "migration applied",
			"version", mig.Version(),
			"migration", describe(mig),
			"position", i+1,
			"total", len(pending),
			"duration", time.Since(migrationStart),
		)
	}

	logger.InfoContext(ctx, "migrations complete", "applied", len(pending), "duration", time.Since(startTime))
	return nil
}

// apply runs one migration and records its version in a single transaction.
func (m *Manager) apply(ctx context.Context, mig Migration) error {
	err := withTransaction(ctx, m.db, func(tx *sql.Tx) error {
		if err := mig.Apply(ctx, tx); err != nil {
			return newExecutionError(mig, "apply", err)
		}
		if err := m.store.record(ctx, tx, mig.Version()); err != nil {
			return newExecutionError(mig, "record version", err)
		}
		return nil
	})
	if err == nil {
		return nil
	}

	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return err
	}
	return newExecutionError(mig, "transaction", err)
}

// Status is a consistent snapshot of the tracking table.
type Status struct {
	HasTable bool
	Applied  []int64
	Pending  []Migration
}

// Current returns the highest applied version; ok is false when nothing has
// been applied, which keeps a real version 0 distinguishable.
func (s Status) Current() (version int64, ok bool) {
	if len(s.Applied) == 0 {
		return 0, false
	}
	return s.Applied[len(s.Applied)-1], true
}

// Origin returns the lowest applied version; ok is false when nothing has
// been applied.
func (s Status) Origin() (version int64, ok bool) {
	if len(s.Applied) == 0 {
		return 0, false
	}
	return s.Applied[0], true
}

// NeedsMigration mirrors Manager.NeedsMigration for the snapshot.
func (s Status) NeedsMigration() bool {
	return s.HasTable && len(s.Pending) > 0
}

// Status reads the tracking table and reports query errors instead of
// falling back to defaults.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	has, err := m.store.hasTable(ctx)
	if err != nil {
		return Status{}, err
	}
	if !has {
		return Status{HasTable: false, Applied: []int64{}, Pending: m.registry.all()}, nil
	}

	applied, err := m.store.applied(ctx)
	if err != nil {
		return Status{}, err
	}

	return Status{
		HasTable: true,
		Applied:  applied,
		Pending:  m.registry.without(applied),
	}, nil
}
