// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/konut-crawler/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "listing_snapshots"

// Config controls the Postgres connection pool used for snapshot rows.
type Config struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// columns lists the snapshot table layout in COPY order.
var columns = []string{"run_id", "mode", "snapshot_label", "final", "position", "record", "persisted_at"}

type copyExecer interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error)
	Close()
}

// Sink writes every record of a snapshot as one row, with the record itself
// stored as jsonb.
type Sink struct {
	pool  copyExecer
	table string
	now   func() time.Time
}

var _ crawler.Sink = (*Sink)(nil)

// New creates a Postgres-backed Sink using the provided config and ensures the
// snapshot table exists.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres.dsn is required")
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
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sink := &Sink{pool: pool, table: table, now: time.Now}
	if err := sink.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return sink, nil
}

// NewWithPool constructs a sink from an existing pool (primarily for testing).
func NewWithPool(pool copyExecer, table string) (*Sink, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &Sink{pool: pool, table: name, now: time.Now}, nil
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

// EnsureSchema creates the snapshot table when it is missing.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id TEXT NOT NULL,
	mode TEXT NOT NULL,
	snapshot_label TEXT NOT NULL,
	final BOOLEAN NOT NULL,
	position INTEGER NOT NULL,
	record JSONB NOT NULL,
	persisted_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, snapshot_label, position)
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *Sink) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Persist copies the snapshot rows into the table. Rows of an earlier write of the
// same run and label are replaced.
func (s *Sink) Persist(ctx context.Context, snap crawler.Snapshot) (string, error) {
	if s == nil || s.pool == nil {
		return "", fmt.Errorf("postgres sink is not configured")
	}
	if snap.Label == "" {
		return "", fmt.Errorf("snapshot label is required")
	}
	persistedAt := s.now().UTC()
	rows := make([][]any, 0, len(snap.Records))
	for i, rec := range snap.Records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return "", fmt.Errorf("marshal record %d: %w", i, err)
		}
		rows = append(rows, []any{snap.RunID, string(snap.Mode), snap.Label, snap.Final, i, payload, persistedAt})
	}

	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE run_id = $1 AND snapshot_label = $2`, s.table)
	if _, err := s.pool.Exec(ctx, deleteQuery, snap.RunID, snap.Label); err != nil {
		return "", fmt.Errorf("clear snapshot %s: %w", snap.Label, err)
	}
	n, err := s.pool.CopyFrom(ctx, pgx.Identifier{s.table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return "", fmt.Errorf("copy snapshot %s: %w", snap.Label, err)
	}
	if int(n) != len(rows) {
		return "", fmt.Errorf("copy snapshot %s: wrote %d of %d rows", snap.Label, n, len(rows))
	}
	return fmt.Sprintf("postgres://%s/%s/%s", s.table, snap.RunID, snap.Label), nil
}
