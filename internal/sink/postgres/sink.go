// Package pgsink appends records to a Postgres table.
package pgsink

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/moviemeter-scraper/internal/scraper"
)

const defaultTable = "movies"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool and target table.
type Config struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Sink inserts one row per record. Each insert is its own statement, so
// concurrent appends from the pool's connections never produce partial rows.
type Sink struct {
	pool   execCloser
	table  string
	insert string
	logger *zap.Logger
}

// Open connects to Postgres and makes sure the table exists.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Sink, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sink.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, &scraper.IOError{Op: "connect", Err: err}
	}
	s, err := NewWithPool(pool, cfg.Table, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool constructs a sink from an existing pool (primarily for testing).
func NewWithPool(pool execCloser, table string, logger *zap.Logger) (*Sink, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Sink{
		pool:   pool,
		table:  table,
		insert: fmt.Sprintf(`INSERT INTO %s (title, release_date, rating, synopsis) VALUES ($1, $2, $3, $4)`, table),
		logger: logger,
	}, nil
}

// EnsureSchema creates the target table when missing.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	release_date TEXT NOT NULL,
	rating TEXT NOT NULL,
	synopsis TEXT NOT NULL,
	inserted_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return &scraper.IOError{Op: "create table", Err: err}
	}
	return nil
}

// Append inserts one complete record.
func (s *Sink) Append(ctx context.Context, record scraper.Record) error {
	if missing := record.Missing(); len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", scraper.ErrIncompleteRecord, strings.Join(missing, ","))
	}
	tag, err := s.pool.Exec(ctx, s.insert, record.Title, record.ReleaseDate, record.Rating, record.Synopsis)
	if err != nil {
		return &scraper.IOError{Op: "insert", Err: err}
	}
	if tag.RowsAffected() != 1 {
		return &scraper.IOError{Op: "insert", Err: fmt.Errorf("expected 1 row affected, got %d", tag.RowsAffected())}
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *Sink) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}
