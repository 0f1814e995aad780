package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite implementation of Store.
//
// It keeps execution records in a single-file database. Designed for:
//   - Development and testing with zero setup
//   - Single-process deployments
//   - Local post-mortem inspection before migrating to a shared store
//
// The store auto-migrates its schema on first use and enables WAL mode so
// dashboard reads do not block the runner's writes.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
}

// NewSQLiteStore opens (and if needed creates) the database at path.
// Use ":memory:" for an in-memory database that vanishes on Close.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if err := migrateSQLite(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func migrateSQLite(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS workflow_records (
			run_id       TEXT NOT NULL,
			seq          INTEGER NOT NULL,
			kind         TEXT NOT NULL,
			ref          TEXT NOT NULL,
			ts           TIMESTAMP NOT NULL,
			state_before BLOB,
			result       BLOB,
			error        TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (run_id, seq)
		)`)
	if err != nil {
		return fmt.Errorf("failed to create workflow_records table: %w", err)
	}
	return nil
}

// SaveRecord implements Store.
func (s *SQLiteStore) SaveRecord(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO workflow_records
			(run_id, seq, kind, ref, ts, state_before, result, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Seq, rec.Kind, rec.Ref, rec.Timestamp,
		rec.StateBefore, rec.Result, rec.Error)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// LoadRun implements Store.
func (s *SQLiteStore) LoadRun(ctx context.Context, runID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, kind, ref, ts, state_before, result, error
		FROM workflow_records WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.RunID, &rec.Seq, &rec.Kind, &rec.Ref,
			&rec.Timestamp, &rec.StateBefore, &rec.Result, &rec.Error); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records, nil
}

// ListRuns implements Store.
func (s *SQLiteStore) ListRuns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id FROM workflow_records
		GROUP BY run_id ORDER BY MAX(ts) DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []string
	for rows.Next() {
		var runID string
		if err := rows.Scan(&runID); err != nil {
			return nil, err
		}
		runs = append(runs, runID)
	}
	return runs, rows.Err()
}

// DeleteRun implements Store.
func (s *SQLiteStore) DeleteRun(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM workflow_records WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
