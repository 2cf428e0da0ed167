package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const timeLayout = "2006-01-02 15:04:05.999999999"

// SQLiteStore is the default backend, one SQLite file with WAL enabled.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the state database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating state dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating state schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS watermarks (
		schema_name TEXT NOT NULL,
		table_name TEXT NOT NULL,
		range_column TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL,
		value TEXT NOT NULL,
		rows INTEGER DEFAULT 0,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (schema_name, table_name)
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		completed_at TEXT,
		status TEXT NOT NULL DEFAULT 'running',
		source TEXT NOT NULL,
		destination TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS table_results (
		run_id TEXT REFERENCES runs(id),
		table_name TEXT NOT NULL,
		strategy TEXT NOT NULL,
		status TEXT NOT NULL,
		rows INTEGER DEFAULT 0,
		source_rows INTEGER DEFAULT 0,
		dest_rows INTEGER DEFAULT 0,
		error_message TEXT,
		duration_ms INTEGER DEFAULT 0,
		completed_at TEXT NOT NULL,
		PRIMARY KEY (run_id, table_name)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetWatermark(schema, table string) (*Watermark, error) {
	var wm Watermark
	var updated string
	err := s.db.QueryRow(`
		SELECT range_column, kind, value, rows, updated_at FROM watermarks
		WHERE schema_name = ? AND table_name = ?
	`, schema, table).Scan(&wm.Column, &wm.Kind, &wm.Value, &wm.Rows, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	wm.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return &wm, nil
}

func (s *SQLiteStore) SetWatermark(schema, table string, wm Watermark) error {
	updated := wm.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO watermarks (schema_name, table_name, range_column, kind, value, rows, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(schema_name, table_name) DO UPDATE SET
			range_column = excluded.range_column,
			kind = excluded.kind,
			value = excluded.value,
			rows = excluded.rows,
			updated_at = excluded.updated_at
	`, schema, table, wm.Column, wm.Kind, wm.Value, wm.Rows, updated.UTC().Format(timeLayout))
	return err
}

func (s *SQLiteStore) CreateRun(r Run) error {
	started := r.StartedAt
	if started.IsZero() {
		started = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO runs (id, started_at, status, source, destination)
		VALUES (?, ?, 'running', ?, ?)
	`, r.ID, started.UTC().Format(timeLayout), r.Source, r.Destination)
	return err
}

func (s *SQLiteStore) CompleteRun(id, status string) error {
	_, err := s.db.Exec(`
		UPDATE runs SET status = ?, completed_at = ? WHERE id = ?
	`, status, time.Now().UTC().Format(timeLayout), id)
	return err
}

func (s *SQLiteStore) RecordTableResult(tr TableResult) error {
	completed := tr.CompletedAt
	if completed.IsZero() {
		completed = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO table_results (run_id, table_name, strategy, status, rows, source_rows, dest_rows, error_message, duration_ms, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, table_name) DO UPDATE SET
			strategy = excluded.strategy,
			status = excluded.status,
			rows = excluded.rows,
			source_rows = excluded.source_rows,
			dest_rows = excluded.dest_rows,
			error_message = excluded.error_message,
			duration_ms = excluded.duration_ms,
			completed_at = excluded.completed_at
	`, tr.RunID, tr.Table, tr.Strategy, tr.Status, tr.Rows, tr.SourceRows, tr.DestRows,
		tr.Error, tr.Duration.Milliseconds(), completed.UTC().Format(timeLayout))
	return err
}

func (s *SQLiteStore) ListRuns(limit int) ([]Run, error) {
	if limit < 1 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, started_at, completed_at, status, source, destination
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started string
		var completed sql.NullString
		if err := rows.Scan(&r.ID, &started, &completed, &r.Status, &r.Source, &r.Destination); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(timeLayout, started)
		if completed.Valid {
			t, _ := time.Parse(timeLayout, completed.String)
			r.CompletedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) ListTableResults(runID string) ([]TableResult, error) {
	rows, err := s.db.Query(`
		SELECT run_id, table_name, strategy, status, rows, source_rows, dest_rows, error_message, duration_ms, completed_at
		FROM table_results WHERE run_id = ? ORDER BY table_name
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []TableResult
	for rows.Next() {
		var tr TableResult
		var durationMS int64
		var completed string
		if err := rows.Scan(&tr.RunID, &tr.Table, &tr.Strategy, &tr.Status, &tr.Rows,
			&tr.SourceRows, &tr.DestRows, &tr.Error, &durationMS, &completed); err != nil {
			return nil, err
		}
		tr.Duration = time.Duration(durationMS) * time.Millisecond
		tr.CompletedAt, _ = time.Parse(timeLayout, completed)
		results = append(results, tr)
	}
	return results, rows.Err()
}

var _ Store = (*SQLiteStore)(nil)
