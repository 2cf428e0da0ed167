package postgres

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/johndauphine/colsync/internal/driver"
)

// Dialect implements driver.Dialect for PostgreSQL.
type Dialect struct{}

var _ driver.Dialect = (*Dialect)(nil)

func (d *Dialect) DBType() string { return "postgres" }

func (d *Dialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *Dialect) QualifyTable(schema, table string) string {
	if schema == "" {
		return d.QuoteIdentifier(table)
	}
	return d.QuoteIdentifier(schema) + "." + d.QuoteIdentifier(table)
}

func (d *Dialect) ColumnList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}

func (d *Dialect) BuildDSN(host string, port int, database, user, password string, opts map[string]any) string {
	sslMode := "prefer"
	if s, ok := opts["sslmode"].(string); ok && s != "" {
		sslMode = s
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(user), url.QueryEscape(password), host, port,
		url.QueryEscape(database), sslMode)
}

func (d *Dialect) KeysetQuery(cols, rangeCol, schema, table string, inclusive bool) string {
	cmp := ">"
	if inclusive {
		cmp = ">="
	}
	qCol := d.QuoteIdentifier(rangeCol)
	return fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE %s %s $1
		ORDER BY %s
		LIMIT $2`,
		cols, d.QualifyTable(schema, table), qCol, cmp, qCol)
}

func (d *Dialect) KeysetArgs(watermark any, limit int) []any {
	return []any{watermark, limit}
}

func (d *Dialect) ChunkQuery(cols, rangeCol, schema, table string) string {
	qCol := d.QuoteIdentifier(rangeCol)
	return fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE %s > $1 AND %s <= $2
		ORDER BY %s`,
		cols, d.QualifyTable(schema, table), qCol, qCol, qCol)
}

func (d *Dialect) ChunkArgs(start, end any) []any {
	return []any{start, end}
}

func (d *Dialect) BoundaryQuery(rangeCol, schema, table string) string {
	qCol := d.QuoteIdentifier(rangeCol)
	return fmt.Sprintf(`
		SELECT boundary_val FROM (
			SELECT %s AS boundary_val, ROW_NUMBER() OVER (ORDER BY %s) AS rn
			FROM %s
		) ranked WHERE MOD(rn, $1) = 0
		ORDER BY boundary_val`,
		qCol, qCol, d.QualifyTable(schema, table))
}

func (d *Dialect) BoundaryArgs(step int64) []any {
	return []any{step}
}

func (d *Dialect) MinMaxQuery(rangeCol, schema, table string) string {
	qCol := d.QuoteIdentifier(rangeCol)
	return fmt.Sprintf("SELECT MIN(%s), MAX(%s) FROM %s", qCol, qCol, d.QualifyTable(schema, table))
}

func (d *Dialect) CountQuery(schema, table string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", d.QualifyTable(schema, table))
}

// PartitionRef: PostgreSQL partitions are child tables addressed by name,
// so a partition reference is just the qualified child table.
func (d *Dialect) PartitionRef(schema, table, partition string) string {
	if partition == "" {
		return d.QualifyTable(schema, table)
	}
	return d.QualifyTable(schema, partition)
}

func (d *Dialect) PartitionCountQuery(schema, table, partition string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", d.PartitionRef(schema, table, partition))
}
