package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/schema-migrations/internal/testfixtures"
)

type cliEnv struct {
	dsn string
	dir string
}

func setupCLIEnv(t *testing.T, files map[string]string) cliEnv {
	t.Helper()

	for _, key := range []string{
		"SCHEMA_MIGRATE_DRIVER",
		"SCHEMA_MIGRATE_DSN",
		"SCHEMA_MIGRATE_DIR",
		"SCHEMA_MIGRATE_TARGET",
		"SCHEMA_MIGRATE_LOG_LEVEL",
		"SCHEMA_MIGRATE_LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}

	tempDir := t.TempDir()
	return cliEnv{
		dsn: filepath.Join(tempDir, "data", "app.db"),
		dir: testfixtures.WriteMigrationFiles(t, filepath.Join(tempDir, "migrations"), files),
	}
}

func (e cliEnv) args(args ...string) []string {
	return append([]string{"--dsn", e.dsn, "--dir", e.dir}, args...)
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(&stdout, &stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

var twoMigrations = map[string]string{
	"1_create_users.sql": "CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL);",
	"2_add_rooms.sql":    "CREATE TABLE rooms (id INTEGER PRIMARY KEY, name TEXT NOT NULL);",
}

// createEmptyDatabase writes a zero-length file, which SQLite opens as an empty database.
func createEmptyDatabase(t *testing.T, path string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create database directory: %v", err)
	}
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("failed to create database file: %v", err)
	}
}

func TestStatusOnFreshDatabase(t *testing.T) {
	env := setupCLIEnv(t, twoMigrations)
	createEmptyDatabase(t, env.dsn)

	out, _, err := execute(t, env.args("status")...)
	if err != nil {
		t.Fatalf("status returned error: %v", err)
	}

	for _, want := range []string{
		"tracking table:  absent",
		"current version: none",
		"applied:         none",
		"pending:         2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestReadOnlyCommandsRequireExistingDatabase(t *testing.T) {
	env := setupCLIEnv(t, twoMigrations)

	for _, command := range []string{"status", "pending"} {
		t.Run(command, func(t *testing.T) {
			_, _, err := execute(t, env.args(command)...)
			if err == nil || !strings.Contains(err.Error(), "does not exist") {
				t.Fatalf("expected missing database error, got %v", err)
			}
			if _, statErr := os.Stat(filepath.Dir(env.dsn)); !os.IsNotExist(statErr) {
				t.Fatalf("expected database directory not to be created, stat error: %v", statErr)
			}
		})
	}
}

func TestInitCreatesTrackingTable(t *testing.T) {
	env := setupCLIEnv(t, twoMigrations)

	out, _, err := execute(t, env.args("init")...)
	if err != nil {
		t.Fatalf("init returned error: %v", err)
	}
	if !strings.Contains(out, "schema_migrations is ready") {
		t.Fatalf("unexpected init output:\n%s", out)
	}

	out, _, err = execute(t, env.args("status")...)
	if err != nil {
		t.Fatalf("status returned error: %v", err)
	}
	if !strings.Contains(out, "tracking table:  present") {
		t.Fatalf("expected table to be present, got:\n%s", out)
	}
}

func TestMigrateAppliesEverything(t *testing.T) {
	env := setupCLIEnv(t, twoMigrations)

	out, logs, err := execute(t, env.args("migrate")...)
	if err != nil {
		t.Fatalf("migrate returned error: %v\nlogs:\n%s", err, logs)
	}
	if !strings.Contains(out, "applied 2 migration(s), current version 2") {
		t.Fatalf("unexpected migrate output:\n%s", out)
	}
	if !strings.Contains(logs, `"msg":"migration applied"`) || !strings.Contains(logs, `"command":"migrate"`) {
		t.Fatalf("expected JSON run logs, got:\n%s", logs)
	}

	out, _, err = execute(t, env.args("status")...)
	if err != nil {
		t.Fatalf("status returned error: %v", err)
	}
	for _, want := range []string{"current version: 2", "origin version:  1", "applied:         1, 2", "pending:         0"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected status to contain %q, got:\n%s", want, out)
		}
	}

	out, _, err = execute(t, env.args("pending")...)
	if err != nil {
		t.Fatalf("pending returned error: %v", err)
	}
	if strings.TrimSpace(out) != "no pending migrations" {
		t.Fatalf("unexpected pending output:\n%s", out)
	}

	out, _, err = execute(t, env.args("migrate")...)
	if err != nil {
		t.Fatalf("second migrate returned error: %v", err)
	}
	if !strings.Contains(out, "applied 0 migration(s), current version 2") {
		t.Fatalf("unexpected second migrate output:\n%s", out)
	}
}

func TestMigrateToVersion(t *testing.T) {
	env := setupCLIEnv(t, twoMigrations)

	out, _, err := execute(t, env.args("migrate", "--to", "1")...)
	if err != nil {
		t.Fatalf("migrate returned error: %v", err)
	}
	if !strings.Contains(out, "applied 1 migration(s), current version 1") {
		t.Fatalf("unexpected migrate output:\n%s", out)
	}

	out, _, err = execute(t, env.args("pending")...)
	if err != nil {
		t.Fatalf("pending returned error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got:\n%s", out)
	}
	fields := strings.Fields(lines[1])
	if len(fields) != 4 || fields[0] != "2" || fields[1] != "add_rooms" || len(fields[3]) != 16 {
		t.Fatalf("unexpected pending row %q", lines[1])
	}

	if _, _, err := execute(t, env.args("migrate", "--to", "-1")...); err == nil {
		t.Fatalf("expected negative --to to be rejected")
	}
}

func TestMigrateReportsFailure(t *testing.T) {
	env := setupCLIEnv(t, map[string]string{
		"1_create_users.sql": "CREATE TABLE users (id INTEGER PRIMARY KEY);",
		"2_broken.sql":       "INSERT INTO missing_table (id) VALUES (1);",
		"3_never.sql":        "CREATE TABLE never (id INTEGER);",
	})

	out, stderr, err := execute(t, env.args("migrate")...)
	if err == nil {
		t.Fatalf("expected migrate to fail")
	}
	if !strings.Contains(err.Error(), "2_broken.sql") {
		t.Fatalf("expected error to name the failing migration, got %v", err)
	}
	if !strings.Contains(out, "applied 1 migration(s), current version 1") {
		t.Fatalf("unexpected migrate output:\n%s", out)
	}
	if !strings.Contains(stderr, "Error:") {
		t.Fatalf("expected cobra to report the error, got:\n%s", stderr)
	}
}

func TestConfigFileAndFlags(t *testing.T) {
	env := setupCLIEnv(t, twoMigrations)

	configPath := filepath.Join(t.TempDir(), "schemamigrate.toml")
	content := fmt.Sprintf(`[database]
driver = "sqlite"
dsn = %q

[migrations]
dir = %q
target = 1

[log]
level = "warn"
format = "text"
`, env.dsn, env.dir)
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	out, logs, err := execute(t, "--config", configPath, "migrate")
	if err != nil {
		t.Fatalf("migrate returned error: %v", err)
	}
	if !strings.Contains(out, "applied 1 migration(s), current version 1") {
		t.Fatalf("expected configured target to apply, got:\n%s", out)
	}
	if strings.Contains(logs, "migration applied") {
		t.Fatalf("expected info logs to be filtered at warn level, got:\n%s", logs)
	}

	out, _, err = execute(t, "--config", configPath, "migrate", "--to", "2")
	if err != nil {
		t.Fatalf("migrate returned error: %v", err)
	}
	if !strings.Contains(out, "applied 1 migration(s), current version 2") {
		t.Fatalf("expected --to to override the configured target, got:\n%s", out)
	}
}

func TestInvalidSettings(t *testing.T) {
	env := setupCLIEnv(t, twoMigrations)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "unknown driver", args: env.args("--driver", "oracle", "status"), want: "unknown database driver"},
		{name: "missing config file", args: []string{"--config", filepath.Join(t.TempDir(), "missing.toml"), "status"}, want: "config file not found"},
		{name: "missing migrations directory", args: []string{"--dsn", env.dsn, "--dir", filepath.Join(t.TempDir(), "nope"), "migrate"}, want: "list"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestConfigCommandPrintsEffectiveSettings(t *testing.T) {
	env := setupCLIEnv(t, twoMigrations)
	t.Setenv("SCHEMA_MIGRATE_TARGET", "1")
	t.Setenv("SCHEMA_MIGRATE_LOG_FORMAT", "text")

	out, _, err := execute(t, env.args("config")...)
	if err != nil {
		t.Fatalf("config returned error: %v", err)
	}
	for _, want := range []string{"[database]", env.dsn, env.dir, "target = 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected config output to contain %q, got:\n%s", want, out)
		}
	}
	if _, err := os.Stat(env.dsn); !os.IsNotExist(err) {
		t.Fatalf("expected config not to touch the database, stat error: %v", err)
	}

	// The printed settings are accepted back as a config file.
	t.Setenv("SCHEMA_MIGRATE_TARGET", "")
	t.Setenv("SCHEMA_MIGRATE_LOG_FORMAT", "")
	configPath := filepath.Join(t.TempDir(), "effective.toml")
	if err := os.WriteFile(configPath, []byte(out), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	roundTrip, _, err := execute(t, "--config", configPath, "config")
	if err != nil {
		t.Fatalf("config with printed file returned error: %v", err)
	}
	if roundTrip != out {
		t.Fatalf("expected printed config to round-trip, got:\n%s\nwant:\n%s", roundTrip, out)
	}
}
