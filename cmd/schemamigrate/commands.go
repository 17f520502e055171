package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/schema-migrations/internal/logging"
	"github.com/example/schema-migrations/internal/migration"
)

func newInitCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the schema_migrations table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return o.withSession(ctx, sessionOptions{}, func(s *session) error {
				if err := s.manager.CreateMigrationsTable(ctx); err != nil {
					return err
				}
				fmt.Fprintf(o.stdout, "%s is ready\n", migration.TableName)
				return nil
			})
		},
	}
}

func newStatusCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return o.withSession(ctx, sessionOptions{withSource: true, readOnly: true}, func(s *session) error {
				status, err := s.manager.Status(ctx)
				if err != nil {
					return fmt.Errorf("read status: %w", err)
				}
				writeStatus(o.stdout, status)
				return nil
			})
		},
	}
}

func newPendingCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List migrations that have not been applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return o.withSession(ctx, sessionOptions{withSource: true, readOnly: true}, func(s *session) error {
				status, err := s.manager.Status(ctx)
				if err != nil {
					return fmt.Errorf("read status: %w", err)
				}
				return writePending(o.stdout, status.Pending)
			})
		},
	}
}

func newConfigCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		Long: `Print the effective configuration as TOML.

The output merges defaults, the --config file, SCHEMA_MIGRATE_* environment
variables and flags, and can be used as a --config file.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := o.loadConfig()
			if err != nil {
				return err
			}

			data, err := cfg.Encode()
			if err != nil {
				return fmt.Errorf("encode configuration: %w", err)
			}
			_, err = o.stdout.Write(data)
			return err
		},
	}
}

func newMigrateCommand(o *rootOptions) *cobra.Command {
	var to int64

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations",
		Long: `Apply pending migrations in ascending version order.

The schema_migrations table is created first when it does not exist. The run
stops at the first failing migration; migrations applied before it stay
committed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("to") && to < 0 {
				return fmt.Errorf("--to cannot be negative: %d", to)
			}

			ctx := cmd.Context()
			return o.withSession(ctx, sessionOptions{withSource: true}, func(s *session) error {
				target := s.cfg.TargetVersion(migration.MaxVersion)
				if cmd.Flags().Changed("to") {
					target = to
				}
				return runMigrate(ctx, o.stdout, s, target)
			})
		},
	}

	cmd.Flags().Int64Var(&to, "to", 0, "highest version to apply (default: all)")

	return cmd
}

func runMigrate(ctx context.Context, out io.Writer, s *session, target int64) error {
	ctx = logging.ContextWithLogger(ctx, s.logger.With("command", "migrate"))

	if err := s.manager.CreateMigrationsTable(ctx); err != nil {
		return err
	}

	before, err := s.manager.Status(ctx)
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}

	migrateErr := s.manager.MigrateDatabase(ctx, target)

	after, err := s.manager.Status(ctx)
	if err != nil {
		return errors.Join(migrateErr, fmt.Errorf("read status: %w", err))
	}

	applied := len(after.Applied) - len(before.Applied)
	fmt.Fprintf(out, "applied %d migration(s), current version %s\n", applied, formatVersion(after.Current()))

	return migrateErr
}

func writeStatus(out io.Writer, status migration.Status) {
	table := "absent"
	if status.HasTable {
		table = "present"
	}

	fmt.Fprintf(out, "tracking table:  %s\n", table)
	fmt.Fprintf(out, "current version: %s\n", formatVersion(status.Current()))
	fmt.Fprintf(out, "origin version:  %s\n", formatVersion(status.Origin()))
	fmt.Fprintf(out, "applied:         %s\n", formatVersions(status.Applied))
	fmt.Fprintf(out, "pending:         %d\n", len(status.Pending))
}

func writePending(out io.Writer, pending []migration.Migration) error {
	if len(pending) == 0 {
		fmt.Fprintln(out, "no pending migrations")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tDESCRIPTION\tSOURCE\tCHECKSUM")

	for _, m := range pending {
		switch mig := m.(type) {
		case *migration.FileMigration:
			checksum, err := mig.Checksum()
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", mig.Version(), orDash(mig.Description()), mig.Locator(), checksum[:16])
		case *migration.FuncMigration:
			fmt.Fprintf(w, "%d\t%s\tinline\t-\n", mig.Version(), orDash(mig.Description()))
		default:
			fmt.Fprintf(w, "%d\t-\t%v\t-\n", m.Version(), m)
		}
	}

	return w.Flush()
}

func formatVersion(version int64, ok bool) string {
	if !ok {
		return "none"
	}
	return strconv.FormatInt(version, 10)
}

func formatVersions(versions []int64) string {
	if len(versions) == 0 {
		return "none"
	}

	parts := make([]string, 0, len(versions))
	for _, v := range versions {
		parts = append(parts, strconv.FormatInt(v, 10))
	}
	return strings.Join(parts, ", ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
