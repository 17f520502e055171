package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config captures the settings of a migration run.
type Config struct {
	Database   DatabaseConfig   `toml:"database"`
	Migrations MigrationsConfig `toml:"migrations"`
	Log        LogConfig        `toml:"log"`
}

// DatabaseConfig selects the target database.
type DatabaseConfig struct {
	Driver string `toml:"driver" comment:"sqlite or postgres (default: sqlite)"`
	DSN    string `toml:"dsn" comment:"SQLite file path or PostgreSQL URL"`
}

// MigrationsConfig locates migration files and bounds the run.
type MigrationsConfig struct {
	Dir string `toml:"dir" comment:"Directory holding {version}_{description}.sql files"`
	// Target is the highest version to apply; nil applies everything.
	Target *int64 `toml:"target,omitempty" comment:"Highest version to apply (default: all)"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `toml:"level" comment:"debug, info, warn or error"`
	Format string `toml:"format" comment:"json or text"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Database:   DatabaseConfig{Driver: "sqlite", DSN: "schema.db"},
		Migrations: MigrationsConfig{Dir: "migrations"},
		Log:        LogConfig{Level: "info", Format: "json"},
	}
}

// Load builds the configuration from defaults, the optional TOML file at
// path and the SCHEMA_MIGRATE_* environment variables, in increasing priority.
// A missing file is an error only when path was given explicitly.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file not found: %s", path)
		}
		return fmt.Errorf("read config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, col := decodeErr.Position()
			return fmt.Errorf("parse config file %s (line %d, column %d): %w", path, row, col, err)
		}
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	return nil
}

func applyEnv(cfg *Config) error {
	invalid := make([]string, 0, 1)

	if driver := strings.TrimSpace(os.Getenv("SCHEMA_MIGRATE_DRIVER")); driver != "" {
		cfg.Database.Driver = driver
	}

	if dsn := strings.TrimSpace(os.Getenv("SCHEMA_MIGRATE_DSN")); dsn != "" {
		cfg.Database.DSN = dsn
	}

	if dir := strings.TrimSpace(os.Getenv("SCHEMA_MIGRATE_DIR")); dir != "" {
		cfg.Migrations.Dir = dir
	}

	if targetValue := strings.TrimSpace(os.Getenv("SCHEMA_MIGRATE_TARGET")); targetValue != "" {
		target, err := strconv.ParseInt(targetValue, 10, 64)
		if err != nil || target < 0 {
			invalid = append(invalid, "SCHEMA_MIGRATE_TARGET")
		} else {
			cfg.Migrations.Target = &target
		}
	}

	if level := strings.TrimSpace(os.Getenv("SCHEMA_MIGRATE_LOG_LEVEL")); level != "" {
		cfg.Log.Level = level
	}

	if format := strings.TrimSpace(os.Getenv("SCHEMA_MIGRATE_LOG_FORMAT")); format != "" {
		cfg.Log.Format = format
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid environment values: %s", strings.Join(invalid, ", "))
	}
	return nil
}

// Validate reports every missing or malformed setting at once.
func (c Config) Validate() error {
	problems := make([]string, 0, 2)

	if strings.TrimSpace(c.Database.DSN) == "" {
		problems = append(problems, "database.dsn is required")
	}
	if strings.TrimSpace(c.Migrations.Dir) == "" {
		problems = append(problems, "migrations.dir is required")
	}
	if c.Migrations.Target != nil && *c.Migrations.Target < 0 {
		problems = append(problems, "migrations.target cannot be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// TargetVersion returns the configured ceiling, or max when unset.
func (c Config) TargetVersion(max int64) int64 {
	if c.Migrations.Target == nil {
		return max
	}
	return *c.Migrations.Target
}

// Encode renders the configuration as TOML.
func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
