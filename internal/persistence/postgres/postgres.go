// Package postgres opens PostgreSQL databases through the pgx database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// Config holds PostgreSQL connection settings.
type Config struct {
	// URL is a postgres:// URL or a keyword/value connection string
	URL string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns a configuration with conservative pool limits.
func DefaultConfig(url string) Config {
	return Config{
		URL:             url,
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// ParseConfig validates the connection string without connecting.
func ParseConfig(cfg Config) (*pgx.ConnConfig, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("connection URL cannot be empty")
	}
	if cfg.MaxOpenConns < 0 || cfg.MaxIdleConns < 0 || cfg.ConnMaxLifetime < 0 {
		return nil, fmt.Errorf("pool settings cannot be negative")
	}

	connConfig, err := pgx.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse connection URL: %w", err)
	}
	return connConfig, nil
}

// Open parses cfg, opens a pool through pgx's stdlib adapter and pings the server.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	connConfig, err := ParseConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid PostgreSQL configuration: %w", err)
	}

	db := stdlib.OpenDB(*connConfig)
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL database: %w", err)
	}

	return db, nil
}
