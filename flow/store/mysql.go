package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL implementation of Store for shared deployments
// where multiple dashboards read the same execution history.
//
// The DSN must enable parseTime so timestamps scan into time.Time:
//
//	user:pass@tcp(host:3306)/agentflow?parseTime=true
type MySQLStore struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
}

// NewMySQLStore connects to MySQL and auto-migrates the records table.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}
	if err := migrateMySQL(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &MySQLStore{db: db}, nil
}

func migrateMySQL(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS workflow_records (
			run_id       VARCHAR(64)  NOT NULL,
			seq          INT          NOT NULL,
			kind         VARCHAR(16)  NOT NULL,
			ref          VARCHAR(255) NOT NULL,
			ts           DATETIME(6)  NOT NULL,
			state_before MEDIUMBLOB,
			result       MEDIUMBLOB,
			error        TEXT,
			PRIMARY KEY (run_id, seq),
			INDEX idx_records_ts (ts)
		)`)
	if err != nil {
		return fmt.Errorf("failed to create workflow_records table: %w", err)
	}
	return nil
}

// SaveRecord implements Store.
func (s *MySQLStore) SaveRecord(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	_, err := s.db.ExecContext(ctx, `
		REPLACE INTO workflow_records
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
func (s *MySQLStore) LoadRun(ctx context.Context, runID string) ([]Record, error) {
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
		var errText sql.NullString
		if err := rows.Scan(&rec.RunID, &rec.Seq, &rec.Kind, &rec.Ref,
			&rec.Timestamp, &rec.StateBefore, &rec.Result, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.Error = errText.String
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
func (s *MySQLStore) ListRuns(ctx context.Context) ([]string, error) {
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
func (s *MySQLStore) DeleteRun(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM workflow_records WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *MySQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
