// Package sqlite stores crawl snapshots in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/JakeFAU/konut-crawler/internal/crawler"
)

// Sink writes snapshot records into a single listing_snapshots table.
type Sink struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

var _ crawler.Sink = (*Sink)(nil)

// Open opens (or creates) the database at path and migrates it.
func Open(path string) (*Sink, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s := &Sink{db: db, path: path, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Sink) Close() error {
	return s.db.Close()
}

func (s *Sink) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS listing_snapshots (
		run_id TEXT NOT NULL,
		mode TEXT NOT NULL,
		snapshot_label TEXT NOT NULL,
		final BOOLEAN NOT NULL,
		position INTEGER NOT NULL,
		record JSON NOT NULL,
		persisted_at DATETIME NOT NULL,
		PRIMARY KEY (run_id, snapshot_label, position)
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_run ON listing_snapshots(run_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	return nil
}

// Persist replaces any earlier rows of the same run and label with snap's records
// inside one transaction.
func (s *Sink) Persist(ctx context.Context, snap crawler.Snapshot) (string, error) {
	if snap.Label == "" {
		return "", fmt.Errorf("snapshot label is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM listing_snapshots WHERE run_id = ? AND snapshot_label = ?`,
		snap.RunID, snap.Label); err != nil {
		return "", fmt.Errorf("clear snapshot %s: %w", snap.Label, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO listing_snapshots (run_id, mode, snapshot_label, final, position, record, persisted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	persistedAt := s.now().UTC()
	for i, rec := range snap.Records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return "", fmt.Errorf("marshal record %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, snap.RunID, string(snap.Mode), snap.Label, snap.Final, i, string(payload), persistedAt); err != nil {
			return "", fmt.Errorf("insert record %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit snapshot %s: %w", snap.Label, err)
	}
	return fmt.Sprintf("sqlite://%s#%s/%s", s.path, snap.RunID, snap.Label), nil
}

// Records loads the records persisted for runID and label in position order.
func (s *Sink) Records(ctx context.Context, runID, label string) ([]crawler.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record FROM listing_snapshots
		WHERE run_id = ? AND snapshot_label = ?
		ORDER BY position`, runID, label)
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	var out []crawler.Record
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		var rec crawler.Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
