package oracle

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/johndauphine/colsync/internal/driver"
	"github.com/johndauphine/colsync/internal/logging"
	"github.com/johndauphine/colsync/internal/syncerr"
)

// Inspector reads Oracle catalog metadata through the ALL_* views, which
// only expose objects the connecting user can see.
type Inspector struct {
	db      *sql.DB
	dialect *Dialect
}

func (ins *Inspector) ListTables(ctx context.Context, schema string) ([]string, error) {
	rows, err := ins.db.QueryContext(ctx,
		`SELECT TABLE_NAME FROM ALL_TABLES WHERE OWNER = :1 ORDER BY TABLE_NAME`,
		strings.ToUpper(schema))
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

// Inspect returns full metadata for one table. Column and primary-key
// lookups are fatal on failure; size and partition lookups degrade with a
// warning because ALL_SEGMENTS is often permission-restricted.
func (ins *Inspector) Inspect(ctx context.Context, schema, table string) (*driver.Table, error) {
	owner := strings.ToUpper(schema)
	name := strings.ToUpper(table)

	t := &driver.Table{Schema: owner, Name: name}

	cols, err := ins.columns(ctx, owner, name)
	if err != nil {
		return nil, syncerr.Schema(t.FullName(), "columns", err)
	}
	if len(cols) == 0 {
		return nil, syncerr.Schema(t.FullName(), "columns", fmt.Errorf("table not found or no visible columns"))
	}
	t.Columns = cols

	pk, err := ins.primaryKey(ctx, owner, name)
	if err != nil {
		return nil, syncerr.Schema(t.FullName(), "primary key", err)
	}
	t.PrimaryKey = pk

	t.RowCount, err = ins.rowCount(ctx, owner, name)
	if err != nil {
		return nil, syncerr.Schema(t.FullName(), "row count", err)
	}

	t.SizeMB = ins.sizeMB(ctx, owner, name, t.FullName())
	t.Partitions = ins.partitions(ctx, owner, name, t.FullName())
	t.Candidates = ins.candidates(ctx, t)

	return t, nil
}

func (ins *Inspector) columns(ctx context.Context, owner, table string) ([]driver.Column, error) {
	rows, err := ins.db.QueryContext(ctx, `
		SELECT COLUMN_NAME, DATA_TYPE, NVL(DATA_PRECISION, 0), NVL(DATA_SCALE, 0), NULLABLE, COLUMN_ID
		FROM ALL_TAB_COLUMNS
		WHERE OWNER = :1 AND TABLE_NAME = :2
		ORDER BY COLUMN_ID`,
		owner, table)
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
		c.Nullable = nullable == "Y"
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (ins *Inspector) primaryKey(ctx context.Context, owner, table string) (string, error) {
	rows, err := ins.db.QueryContext(ctx, `
		SELECT cc.COLUMN_NAME
		FROM ALL_CONSTRAINTS c
		JOIN ALL_CONS_COLUMNS cc
		  ON c.CONSTRAINT_NAME = cc.CONSTRAINT_NAME AND c.OWNER = cc.OWNER
		WHERE c.OWNER = :1 AND c.TABLE_NAME = :2 AND c.CONSTRAINT_TYPE = 'P'
		ORDER BY cc.POSITION`,
		owner, table)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	// A composite key is unusable for range chunking; only the leading
	// column is kept and only when it is the whole key.
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

// rowCount prefers the optimizer statistic and falls back to an exact
// count when statistics were never gathered.
func (ins *Inspector) rowCount(ctx context.Context, owner, table string) (int64, error) {
	var numRows sql.NullInt64
	err := ins.db.QueryRowContext(ctx,
		`SELECT NUM_ROWS FROM ALL_TABLES WHERE OWNER = :1 AND TABLE_NAME = :2`,
		owner, table).Scan(&numRows)
	if err != nil {
		return 0, err
	}
	if numRows.Valid {
		return numRows.Int64, nil
	}

	var count int64
	query := ins.dialect.CountQuery(owner, table)
	if err := ins.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (ins *Inspector) sizeMB(ctx context.Context, owner, table, fullName string) float64 {
	var sizeMB sql.NullFloat64
	err := ins.db.QueryRowContext(ctx, `
		SELECT SUM(BYTES) / 1024 / 1024
		FROM ALL_SEGMENTS
		WHERE OWNER = :1 AND SEGMENT_NAME = :2`,
		owner, table).Scan(&sizeMB)
	if err != nil {
		// ORA-00942 when ALL_SEGMENTS is restricted. Non-fatal.
		logging.Warn("size lookup degraded for %s: %v",
			fullName, syncerr.Permission(fullName, "segments", err))
		return 0
	}
	if !sizeMB.Valid {
		return 0
	}
	return sizeMB.Float64
}

func (ins *Inspector) partitions(ctx context.Context, owner, table, fullName string) []string {
	rows, err := ins.db.QueryContext(ctx, `
		SELECT PARTITION_NAME
		FROM ALL_TAB_PARTITIONS
		WHERE TABLE_OWNER = :1 AND TABLE_NAME = :2
		ORDER BY PARTITION_POSITION`,
		owner, table)
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

// candidates measures the non-null percentage of every eligible column in
// a single scan and ranks them. Measurement failure demotes to an empty
// list rather than failing inspection.
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

	// One pass: COUNT(*) plus COUNT(col) per eligible column. Column
	// names come straight from ALL_TAB_COLUMNS, so quoting them is safe.
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
