// Package postgres records run summaries in Postgres.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "carsnbids_runs"

// RunStoreConfig controls the Postgres connection pool used for run rows.
type RunStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// RunRecord is one row of the run ledger.
type RunRecord struct {
	RunID      string
	RunDate    time.Time
	ObjectKey  string
	ObjectSHA  string
	Discovered int
	Attempted  int
	Succeeded  int
	Failed     int
	Persisted  bool
	StartedAt  time.Time
	FinishedAt time.Time
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// RunStore writes run rows into Postgres.
type RunStore struct {
	pool  execCloser
	table string
}

// NewRunStore creates a Postgres-backed RunStore using the provided config.
func NewRunStore(ctx context.Context, cfg RunStoreConfig) (*RunStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("runlog.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
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
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RunStore{pool: pool, table: table}, nil
}

// NewRunStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRunStoreWithPool(pool execCloser, table string) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &RunStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *RunStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureTable creates the ledger table when it does not exist.
func (s *RunStore) EnsureTable(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id      TEXT PRIMARY KEY,
	run_date    DATE NOT NULL,
	object_key  TEXT NOT NULL,
	object_sha  TEXT NOT NULL,
	discovered  INTEGER NOT NULL,
	attempted   INTEGER NOT NULL,
	succeeded   INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	persisted   BOOLEAN NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create run table: %w", err)
	}
	return nil
}

// RecordRun inserts one run row.
func (s *RunStore) RecordRun(ctx context.Context, record RunRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("run store is not configured")
	}
	if record.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	run_date,
	object_key,
	object_sha,
	discovered,
	attempted,
	succeeded,
	failed,
	persisted,
	started_at,
	finished_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)`, s.table)

	args := []any{
		record.RunID,
		record.RunDate,
		record.ObjectKey,
		record.ObjectSHA,
		record.Discovered,
		record.Attempted,
		record.Succeeded,
		record.Failed,
		record.Persisted,
		record.StartedAt,
		record.FinishedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}
