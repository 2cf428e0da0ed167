// Package duck manages DuckDB destination and staging stores. The
// destination is a single-file analytical database; staging stores are
// throwaway worker-private files merged into the destination after the
// parallel phase.
package duck

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/johndauphine/colsync/internal/driver"
	"github.com/johndauphine/colsync/internal/logging"
	"github.com/johndauphine/colsync/internal/syncerr"
)

// Store is one open DuckDB database file.
type Store struct {
	db      *sql.DB
	path    string
	staging bool
}

// Open opens (creating if needed) the DuckDB file at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, syncerr.Connectivity(path, "open destination", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, syncerr.Connectivity(path, "open destination", err)
	}
	return &Store{db: db, path: path}, nil
}

// OpenStaging creates a uniquely named staging store under dir (the
// temp directory when empty). Callers own cleanup via Remove.
func OpenStaging(dir, prefix string) (*Store, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.duckdb", prefix, uuid.New().String()[:8]))
	s, err := Open(path)
	if err != nil {
		return nil, err
	}
	s.staging = true
	return s, nil
}

func (s *Store) DB() *sql.DB  { return s.db }
func (s *Store) Path() string { return s.path }

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Remove closes the store and deletes its file along with the
// write-ahead log DuckDB leaves beside it. Safe to call on every exit
// path; missing files are not errors.
func (s *Store) Remove() {
	s.Close()
	for _, p := range []string{s.path, s.path + ".wal"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			logging.Warn("removing %s: %v", p, err)
		}
	}
}

// Ensure creates table with the given schema when it does not exist.
func (s *Store) Ensure(ctx context.Context, table string, schema driver.Schema) error {
	_, err := s.db.ExecContext(ctx, CreateTableSQL(table, schema, false))
	return err
}

// Replace creates table with the given schema, dropping any prior
// contents.
func (s *Store) Replace(ctx context.Context, table string, schema driver.Schema) error {
	_, err := s.db.ExecContext(ctx, CreateTableSQL(table, schema, true))
	return err
}

// InsertBatch appends rows inside one transaction using a prepared
// statement.
func (s *Store) InsertBatch(ctx context.Context, table string, cols []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, InsertSQL(table, cols))
	if err != nil {
		tx.Rollback()
		return err
	}
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			stmt.Close()
			tx.Rollback()
			return err
		}
	}
	stmt.Close()
	return tx.Commit()
}

// Count returns the exact row count of table, or an error when the table
// does not exist.
func (s *Store) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", Quote(table))).Scan(&n)
	return n, err
}

// TableExists reports whether table exists in the main catalog.
func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = 'main' AND table_name = ?",
		table).Scan(&n)
	return n > 0, err
}

func (s *Store) DropTable(ctx context.Context, table string) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", Quote(table)))
	return err
}

// MergeStaged combines staging files into table. Each path is attached
// read-only and its contents unioned by column name, so staging files
// written by different workers merge regardless of column ordering.
// replace rebuilds the table; otherwise rows append to the existing one.
// If the combined statement fails, stores are drained one at a time so a
// single bad file cannot halt the merge. Returns the number of merged
// rows.
func (s *Store) MergeStaged(ctx context.Context, table string, schema driver.Schema, paths []string, replace bool) (int64, error) {
	if len(paths) == 0 {
		if replace {
			if err := s.Replace(ctx, table, schema); err != nil {
				return 0, syncerr.Merge(table, "create empty table", err)
			}
		}
		return 0, nil
	}

	aliases := make([]string, len(paths))
	for i, p := range paths {
		aliases[i] = fmt.Sprintf("stg_%d", i)
		if _, err := s.db.ExecContext(ctx, AttachSQL(p, aliases[i])); err != nil {
			return 0, syncerr.Merge(table, "attach staging store", err)
		}
	}
	defer func() {
		for _, a := range aliases {
			if _, err := s.db.Exec(fmt.Sprintf("DETACH %s", a)); err != nil {
				logging.Warn("detaching %s: %v", a, err)
			}
		}
	}()

	before := int64(0)
	if !replace {
		if err := s.Ensure(ctx, table, schema); err != nil {
			return 0, syncerr.Merge(table, "ensure table", err)
		}
		n, err := s.Count(ctx, table)
		if err != nil {
			return 0, syncerr.Merge(table, "count before merge", err)
		}
		before = n
	}

	if _, err := s.db.ExecContext(ctx, MergeSQL(table, aliases, replace)); err != nil {
		logging.Warn("combined merge of %s failed, retrying per store: %v", table, err)
		if err := s.mergePerStore(ctx, table, schema, aliases, replace); err != nil {
			return 0, err
		}
	}

	after, err := s.Count(ctx, table)
	if err != nil {
		return 0, syncerr.Merge(table, "count after merge", err)
	}
	return after - before, nil
}

func (s *Store) mergePerStore(ctx context.Context, table string, schema driver.Schema, aliases []string, replace bool) error {
	if replace {
		if err := s.Replace(ctx, table, schema); err != nil {
			return syncerr.Merge(table, "create table", err)
		}
	}
	for _, a := range aliases {
		stmt := fmt.Sprintf("INSERT INTO %s BY NAME SELECT * FROM %s.%s", Quote(table), a, Quote(table))
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			// A bad store loses only its own rows; the remaining stores
			// still merge.
			var dropped int64
			if cerr := s.db.QueryRowContext(ctx,
				fmt.Sprintf("SELECT COUNT(*) FROM %s.%s", a, Quote(table))).Scan(&dropped); cerr == nil {
				logging.Warn("skipping staging store %s of %s, dropping %d rows: %v", a, table, dropped, err)
			} else {
				logging.Warn("skipping staging store %s of %s: %v", a, table, err)
			}
		}
	}
	return nil
}
