package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/johndauphine/colsync/internal/driver"
	"github.com/johndauphine/colsync/internal/logging"
	"github.com/johndauphine/colsync/internal/syncerr"
)

// Inspector reads PostgreSQL catalog metadata from information_schema and
// pg_catalog.
type Inspector struct {
	db      *sql.DB
	dialect *Dialect
}

func (ins *Inspector) ListTables(ctx context.Context, schema string) ([]string, error) {
	rows, err := ins.db.QueryContext(ctx, `
		SELECT tablename FROM pg_tables
		WHERE schemaname = $1
		ORDER BY tablename`, schema)
	if err != nil {
		return nil, syncerr.Schema("", "list tables", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (ins *Inspector) Inspect(ctx context.Context, schema, table string) (*driver.Table, error) {
	t := &driver.Table{Schema: schema, Name: table}

	cols, err := ins.columns(ctx, schema, table)
	if err != nil {
		return nil, syncerr.Schema(t.FullName(), "columns", err)
	}
	if len(cols) == 0 {
		return nil, syncerr.Schema(t.FullName(), "columns", fmt.Errorf("table not found or no visible columns"))
	}
	t.Columns = cols

	pk, err := ins.primaryKey(ctx, schema, table)
	if err != nil {
		return nil, syncerr.Schema(t.FullName(), "primary key", err)
	}
	t.PrimaryKey = pk

	t.RowCount, err = ins.rowCount(ctx, schema, table)
	if err != nil {
		return nil, syncerr.Schema(t.FullName(), "row count", err)
	}

	t.SizeMB = ins.sizeMB(ctx, schema, table, t.FullName())
	t.Partitions = ins.partitions(ctx, schema, table, t.FullName())
	t.Candidates = ins.candidates(ctx, t)

	return t, nil
}

func (ins *Inspector) columns(ctx context.Context, schema, table string) ([]driver.Column, error) {
	rows, err := ins.db.QueryContext(ctx, `
		SELECT column_name, data_type,
		       COALESCE(numeric_precision, 0), COALESCE(numeric_scale, 0),
		       is_nullable, ordinal_position
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`,
		schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []driver.Column
	for rows.Next() {
		var c driver.Column
		var nullable string
		if err := rows.Scan(&c.Name, &c.DataType, &c.Precision, &c.Scale, &nullable, &c.OrdinalPos); err != nil {
			return nil, err
		}
		c.Nullable = nullable == "YES"
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (ins *Inspector) primaryKey(ctx context.Context, schema, table string) (string, error) {
	rows, err := ins.db.QueryContext(ctx, `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema
		WHERE tc.table_schema = $1 AND tc.table_name = $2
		  AND tc.constraint_type = 'PRIMARY KEY'
		ORDER BY kcu.ordinal_position`,
		schema, table)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var pkCols []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return "", err
		}
		pkCols = append(pkCols, col)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if len(pkCols) == 1 {
		return pkCols[0], nil
	}
	return "", nil
}

// rowCount prefers the planner estimate; reltuples is -1 until the first
// vacuum/analyze, in which case an exact count is taken.
func (ins *Inspector) rowCount(ctx context.Context, schema, table string) (int64, error) {
	var estimate float64
	err := ins.db.QueryRowContext(ctx, `
		SELECT c.reltuples
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relname = $2`,
		schema, table).Scan(&estimate)
	if err != nil {
		return 0, err
	}
	if estimate >= 0 {
		return int64(estimate), nil
	}

	var count int64
	if err := ins.db.QueryRowContext(ctx, ins.dialect.CountQuery(schema, table)).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (ins *Inspector) sizeMB(ctx context.Context, schema, table, fullName string) float64 {
	var sizeMB float64
	err := ins.db.QueryRowContext(ctx, `
		SELECT pg_total_relation_size(c.oid) / 1024.0 / 1024.0
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relname = $2`,
		schema, table).Scan(&sizeMB)
	if err != nil {
		logging.Warn("size lookup degraded for %s: %v",
			fullName, syncerr.Permission(fullName, "relation size", err))
		return 0
	}
	return sizeMB
}

func (ins *Inspector) partitions(ctx context.Context, schema, table, fullName string) []string {
	rows, err := ins.db.QueryContext(ctx, `
		SELECT child.relname
		FROM pg_inherits i
		JOIN pg_class parent ON i.inhparent = parent.oid
		JOIN pg_namespace n ON parent.relnamespace = n.oid
		JOIN pg_class child ON i.inhrelid = child.oid
		WHERE n.nspname = $1 AND parent.relname = $2
		ORDER BY child.relname`,
		schema, table)
	if err != nil {
		logging.Warn("partition lookup degraded for %s: %v", fullName, err)
		return nil
	}
	defer rows.Close()

	var parts []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			logging.Warn("partition scan failed for %s: %v", fullName, err)
			return nil
		}
		parts = append(parts, p)
	}
	return parts
}

func (ins *Inspector) candidates(ctx context.Context, t *driver.Table) []driver.Candidate {
	var eligible []driver.Column
	for _, c := range t.Columns {
		if driver.EligibleCandidate(c) {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	exprs := make([]string, 0, len(eligible)+1)
	exprs = append(exprs, "COUNT(*)")
	for _, c := range eligible {
		exprs = append(exprs, fmt.Sprintf("COUNT(%s)", ins.dialect.QuoteIdentifier(c.Name)))
	}
	query := fmt.Sprintf("SELECT %s FROM %s",
		strings.Join(exprs, ", "), ins.dialect.QualifyTable(t.Schema, t.Name))

	counts := make([]int64, len(eligible)+1)
	ptrs := make([]any, len(counts))
	for i := range counts {
		ptrs[i] = &counts[i]
	}
	if err := ins.db.QueryRowContext(ctx, query).Scan(ptrs...); err != nil {
		logging.Debug("candidate non-null measurement failed for %s: %v", t.FullName(), err)
		return nil
	}

	total := counts[0]
	cands := make([]driver.Candidate, len(eligible))
	for i, c := range eligible {
		pct := 100.0
		if total > 0 {
			pct = float64(counts[i+1]) * 100.0 / float64(total)
		}
		cands[i] = driver.Candidate{
			Name:           c.Name,
			DataType:       c.DataType,
			NonNullPercent: pct,
			Score:          driver.ScoreCandidateName(c.Name),
		}
	}
	return driver.RankCandidates(cands)
}
