package memory

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"conduit/internal/agent"
	"conduit/internal/jsonx"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps runs in two tables: workflow_runs and run_records.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the database at path and ensures the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		path = "data/memory.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init(ctx context.Context) error {
	ddl := []string{
		`PRAGMA foreign_keys=ON;`,
		`CREATE TABLE IF NOT EXISTS workflow_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			saved_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS run_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			workflow_id INTEGER NOT NULL,
			position INTEGER NOT NULL,
			agent_name TEXT NOT NULL,
			status TEXT NOT NULL,
			record_json TEXT NOT NULL,
			FOREIGN KEY(workflow_id) REFERENCES workflow_runs(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_run_records_workflow ON run_records(workflow_id, position);`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init sqlite: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, history []agent.RunRecord) error {
	if len(history) == 0 {
		return nil
	}
	run := newRun(history, s.now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO workflow_runs (run_id, saved_at) VALUES (?, ?)`,
		run.RunID, run.Timestamp.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert workflow run: %w", err)
	}
	workflowID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert workflow run: %w", err)
	}
	for i, rec := range run.Records {
		data, err := jsonx.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode record %s: %w", rec.RunID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_records (workflow_id, position, agent_name, status, record_json) VALUES (?, ?, ?, ?, ?)`,
			workflowID, i, rec.AgentName, string(rec.Status), string(data)); err != nil {
			return fmt.Errorf("insert record %s: %w", rec.RunID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) All(ctx context.Context) ([]Run, error) {
	return s.query(ctx, `SELECT id, run_id, saved_at FROM workflow_runs ORDER BY id ASC`)
}

func (s *SQLiteStore) Latest(ctx context.Context) (*Run, bool, error) {
	runs, err := s.query(ctx, `SELECT id, run_id, saved_at FROM workflow_runs ORDER BY id DESC LIMIT 1`)
	if err != nil || len(runs) == 0 {
		return nil, false, err
	}
	return &runs[0], true, nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear: %w", err)
	}
	defer tx.Rollback()
	for _, stmt := range []string{`DELETE FROM run_records`, `DELETE FROM workflow_runs`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear memory: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type runRow struct {
	id  int64
	run Run
}

func (s *SQLiteStore) query(ctx context.Context, stmt string) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("query workflow runs: %w", err)
	}
	var found []runRow
	for rows.Next() {
		var row runRow
		var savedAt string
		if err := rows.Scan(&row.id, &row.run.RunID, &savedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan workflow run: %w", err)
		}
		row.run.Timestamp, err = time.Parse(time.RFC3339Nano, savedAt)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("parse saved_at %q: %w", savedAt, err)
		}
		found = append(found, row)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	runs := make([]Run, 0, len(found))
	for _, row := range found {
		records, err := s.records(ctx, row.id)
		if err != nil {
			return nil, err
		}
		row.run.Records = records
		runs = append(runs, row.run)
	}
	return runs, nil
}

func (s *SQLiteStore) records(ctx context.Context, workflowID int64) ([]agent.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record_json FROM run_records WHERE workflow_id = ? ORDER BY position ASC`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("query run records: %w", err)
	}
	defer rows.Close()

	var records []agent.RunRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan run record: %w", err)
		}
		var rec agent.RunRecord
		if err := jsonx.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("decode run record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
