// Package database persists the trade journal in PostgreSQL. The
// journal is optional: with no pool configured every write is a no-op
// so the bot runs identically without a database.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Config holds database connection settings.
type Config struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// DB wraps the PostgreSQL connection pool.
type DB struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewDB creates a database connection pool and verifies connectivity.
func NewDB(cfg Config, log zerolog.Logger) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	dblog := log.With().Str("component", "database").Logger()
	dblog.Info().Str("database", cfg.Database).Msg("connected to postgres")

	return &DB{Pool: pool, log: dblog}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	if db != nil && db.Pool != nil {
		db.Pool.Close()
		db.log.Info().Msg("database connection closed")
	}
}

// RunMigrations creates the journal tables if they do not exist.
func (db *DB) RunMigrations(ctx context.Context) error {
	if db == nil || db.Pool == nil {
		return nil
	}

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS journal_setups (
			setup_id TEXT PRIMARY KEY,
			prefix TEXT NOT NULL,
			symbol TEXT NOT NULL,
			direction TEXT NOT NULL,
			strategy TEXT NOT NULL,
			opened_at TIMESTAMPTZ NOT NULL,
			closed_at TIMESTAMPTZ,
			close_reason TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS journal_legs (
			setup_id TEXT NOT NULL,
			leg_index INT NOT NULL,
			ticket BIGINT NOT NULL,
			volume DOUBLE PRECISION NOT NULL,
			entry_price DOUBLE PRECISION NOT NULL,
			opened_at TIMESTAMPTZ NOT NULL,
			closed_at TIMESTAMPTZ,
			close_price DOUBLE PRECISION,
			close_reason TEXT,
			PRIMARY KEY (setup_id, leg_index)
		)`,
		`CREATE TABLE IF NOT EXISTS journal_events (
			id BIGSERIAL PRIMARY KEY,
			event_type TEXT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL,
			payload JSONB NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_journal_events_occurred
			ON journal_events (occurred_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_journal_setups_symbol
			ON journal_setups (symbol, opened_at DESC)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	db.log.Info().Msg("journal migrations complete")
	return nil
}
