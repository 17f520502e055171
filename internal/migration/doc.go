// Package migration provides a versioned schema migration manager for
// relational databases.
//
// This package tracks which migrations have been applied and applies the
// pending ones in ascending version order. It supports:
//
//   - File migrations discovered from a directory or an fs.FS bundle
//   - Inline migrations backed by Go functions
//   - One transaction per migration, rolled back on failure
//   - A schema_migrations tracking table shared with previously migrated databases
//
// Migration files follow the naming convention {version}[_description].sql,
// e.g. "1.sql", "2_add_new_table.sql" or "4_add new table.sql". Only the
// numeric prefix determines ordering.
//
// Read-only status accessors (HasMigrationsTable, CurrentVersion,
// OriginVersion, AppliedVersions, PendingMigrations, NeedsMigration) fail
// safe: query errors are logged and reported as "absent" or "empty". Use
// Manager.Status when query failures must be told apart from an empty table.
//
// Example usage:
//
//	manager, err := migration.New(db, migration.WithSource(migration.NewDirSource("migrations")))
//	if err != nil {
//		log.Fatalf("invalid migrations: %v", err)
//	}
//	if err := manager.CreateMigrationsTable(ctx); err != nil {
//		log.Fatalf("create tracking table: %v", err)
//	}
//	if err := manager.Migrate(ctx); err != nil {
//		log.Fatalf("migration failed: %v", err)
//	}
package migration
