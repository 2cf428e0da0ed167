package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/johndauphine/colsync/internal/driver"
	"github.com/johndauphine/colsync/internal/logging"
	"github.com/johndauphine/colsync/internal/syncerr"
)

// Inspector reads SQL Server catalog metadata from INFORMATION_SCHEMA and
// the sys catalog views.
type Inspector struct {
	db      *sql.DB
	dialect *Dialect
}

func (ins *Inspector) ListTables(ctx context.Context, schema string) ([]string, error) {
	rows, err := ins.db.QueryContext(ctx, `
		SELECT t.TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES t
		WHERE t.TABLE_TYPE = 'BASE TABLE' AND t.TABLE_SCHEMA = @schema
		ORDER BY t.TABLE_NAME`,
		sql.Named("schema", schema))
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
	// Partition-parallel mode is not available for SQL Server sources;
	// see Dialect.PartitionRef.
	t.Candidates = ins.candidates(ctx, t)

	return t, nil
}

func (ins *Inspector) columns(ctx context.Context, schema, table string) ([]driver.Column, error) {
	rows, err := ins.db.QueryContext(ctx, `
		SELECT
			COLUMN_NAME,
			DATA_TYPE,
			ISNULL(NUMERIC_PRECISION, 0),
			ISNULL(NUMERIC_SCALE, 0),
			CASE WHEN IS_NULLABLE = 'YES' THEN 1 ELSE 0 END,
			ORDINAL_POSITION
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = @schema AND TABLE_NAME = @table
		ORDER BY ORDINAL_POSITION`,
		sql.Named("schema", schema), sql.Named("table", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []driver.Column
	for rows.Next() {
		var c driver.Column
		var nullable int
		if err := rows.Scan(&c.Name, &c.DataType, &c.Precision, &c.Scale, &nullable, &c.OrdinalPos); err != nil {
			return nil, err
		}
		c.Nullable = nullable == 1
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (ins *Inspector) primaryKey(ctx context.Context, schema, table string) (string, error) {
	rows, err := ins.db.QueryContext(ctx, `
		SELECT c.COLUMN_NAME
		FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE c
			ON c.CONSTRAINT_NAME = tc.CONSTRAINT_NAME
			AND c.TABLE_SCHEMA = tc.TABLE_SCHEMA
			AND c.TABLE_NAME = tc.TABLE_NAME
		WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
		  AND tc.TABLE_SCHEMA = @schema
		  AND tc.TABLE_NAME = @table
		ORDER BY c.ORDINAL_POSITION`,
		sql.Named("schema", schema), sql.Named("table", table))
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

// rowCount uses sys.partitions for a fast approximate count.
func (ins *Inspector) rowCount(ctx context.Context, schema, table string) (int64, error) {
	var count int64
	err := ins.db.QueryRowContext(ctx, `
		SELECT SUM(p.rows)
		FROM sys.partitions p
		JOIN sys.tables t ON p.object_id = t.object_id
		JOIN sys.schemas s ON t.schema_id = s.schema_id
		WHERE s.name = @schema AND t.name = @table AND p.index_id IN (0, 1)`,
		sql.Named("schema", schema), sql.Named("table", table)).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (ins *Inspector) sizeMB(ctx context.Context, schema, table, fullName string) float64 {
	var sizeMB sql.NullFloat64
	err := ins.db.QueryRowContext(ctx, `
		SELECT SUM(ps.used_page_count) * 8.0 / 1024.0
		FROM sys.dm_db_partition_stats ps
		INNER JOIN sys.tables t ON ps.object_id = t.object_id
		INNER JOIN sys.schemas s ON t.schema_id = s.schema_id
		WHERE s.name = @schema AND t.name = @table`,
		sql.Named("schema", schema), sql.Named("table", table)).Scan(&sizeMB)
	if err != nil {
		// dm_db_partition_stats needs VIEW DATABASE STATE. Non-fatal.
		logging.Warn("size lookup degraded for %s: %v",
			fullName, syncerr.Permission(fullName, "partition stats", err))
		return 0
	}
	if !sizeMB.Valid {
		return 0
	}
	return sizeMB.Float64
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
	exprs = append(exprs, "COUNT_BIG(*)")
	for _, c := range eligible {
		exprs = append(exprs, fmt.Sprintf("COUNT_BIG(%s)", ins.dialect.QuoteIdentifier(c.Name)))
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
