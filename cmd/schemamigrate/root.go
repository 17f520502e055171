package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/example/schema-migrations/internal/config"
	"github.com/example/schema-migrations/internal/logging"
	"github.com/example/schema-migrations/internal/migration"
	"github.com/example/schema-migrations/internal/persistence"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	driver     string
	dsn        string
	dir        string

	stdout io.Writer
	stderr io.Writer
}

func (o *rootOptions) addFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&o.configPath, "config", "c", "", "path to a TOML configuration file")
	flags.StringVar(&o.driver, "driver", "", "database driver: sqlite or postgres")
	flags.StringVar(&o.dsn, "dsn", "", "SQLite file path or PostgreSQL URL")
	flags.StringVarP(&o.dir, "dir", "d", "", "directory holding migration files")
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	o := &rootOptions{stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:   "schemamigrate",
		Short: "Apply numbered SQL migrations and track them in schema_migrations",
		Long: `Apply numbered SQL migrations and track them in schema_migrations.

Migration files are named {version}_{description}.sql, for example
2_add_users.sql. Each migration runs in its own transaction together with
the row recording its version.

Settings are read from the optional --config file, then SCHEMA_MIGRATE_*
environment variables, then flags.`,
		SilenceUsage: true,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	o.addFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newInitCommand(o),
		newStatusCommand(o),
		newPendingCommand(o),
		newMigrateCommand(o),
		newConfigCommand(o),
	)

	return cmd
}

// loadConfig merges flags over the file and environment configuration.
func (o *rootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}

	if o.driver != "" {
		cfg.Database.Driver = o.driver
	}
	if o.dsn != "" {
		cfg.Database.DSN = o.dsn
	}
	if o.dir != "" {
		cfg.Migrations.Dir = o.dir
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// session is an open database with a manager built over it.
type session struct {
	cfg     config.Config
	logger  *slog.Logger
	db      *sql.DB
	manager *migration.Manager
}

func (s *session) Close() error {
	return s.db.Close()
}

// sessionOptions selects what a subcommand needs from its session.
type sessionOptions struct {
	withSource bool // discover migration files
	readOnly   bool // fail instead of creating a missing SQLite file
}

// open connects to the configured database.
func (o *rootOptions) open(ctx context.Context, so sessionOptions) (*session, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(o.stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	db, dialect, err := persistence.Open(ctx, persistence.Target{
		Driver:    cfg.Database.Driver,
		DSN:       cfg.Database.DSN,
		MustExist: so.readOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	opts := []migration.Option{migration.WithDialect(dialect), migration.WithLogger(logger)}
	if so.withSource {
		opts = append(opts, migration.WithSource(migration.NewDirSource(cfg.Migrations.Dir)))
	}

	mgr, err := migration.New(db, opts...)
	if err != nil {
		closeErr := db.Close()
		return nil, errors.Join(err, closeErr)
	}

	return &session{cfg: cfg, logger: logger, db: db, manager: mgr}, nil
}

// withSession opens a session, runs fn and closes the database.
func (o *rootOptions) withSession(ctx context.Context, so sessionOptions, fn func(*session) error) error {
	s, err := o.open(ctx, so)
	if err != nil {
		return err
	}

	runErr := fn(s)
	if closeErr := s.Close(); closeErr != nil {
		s.logger.ErrorContext(ctx, "failed to close database", "error", closeErr)
	}
	return runErr
}
