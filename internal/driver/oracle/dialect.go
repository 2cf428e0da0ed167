package oracle

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/johndauphine/colsync/internal/driver"
)

// Dialect implements driver.Dialect for Oracle Database.
type Dialect struct{}

var _ driver.Dialect = (*Dialect)(nil)

func (d *Dialect) DBType() string { return "oracle" }

// QuoteIdentifier returns the Oracle-safe identifier. Oracle folds
// unquoted identifiers to uppercase, so names are uppercased for
// consistency and quoted only when they contain special characters, start
// with a digit, or collide with a reserved word.
func (d *Dialect) QuoteIdentifier(name string) string {
	upper := strings.ToUpper(name)

	needsQuote := false
	for i, r := range name {
		if i == 0 && r >= '0' && r <= '9' {
			needsQuote = true
			break
		}
		if !((r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_') {
			needsQuote = true
			break
		}
	}
	if !needsQuote && oracleReservedWords[upper] {
		needsQuote = true
	}

	if needsQuote {
		return `"` + strings.ReplaceAll(upper, `"`, `""`) + `"`
	}
	return upper
}

// oracleReservedWords lists reserved words that commonly show up as column
// names and must be quoted.
var oracleReservedWords = map[string]bool{
	"ACCESS": true, "ADD": true, "ALL": true, "ALTER": true, "AND": true,
	"ANY": true, "AS": true, "ASC": true, "AUDIT": true, "BETWEEN": true,
	"BY": true, "CHAR": true, "CHECK": true, "CLUSTER": true, "COLUMN": true,
	"COMMENT": true, "COMPRESS": true, "CONNECT": true, "CREATE": true,
	"CURRENT": true, "DATE": true, "DECIMAL": true, "DEFAULT": true,
	"DELETE": true, "DESC": true, "DISTINCT": true, "DROP": true,
	"ELSE": true, "EXCLUSIVE": true, "EXISTS": true, "FILE": true,
	"FLOAT": true, "FOR": true, "FROM": true, "GRANT": true, "GROUP": true,
	"HAVING": true, "IDENTIFIED": true, "IMMEDIATE": true, "IN": true,
	"INCREMENT": true, "INDEX": true, "INITIAL": true, "INSERT": true,
	"INTEGER": true, "INTERSECT": true, "INTO": true, "IS": true,
	"LEVEL": true, "LIKE": true, "LOCK": true, "LONG": true,
	"MAXEXTENTS": true, "MINUS": true, "MLSLABEL": true, "MODE": true,
	"MODIFY": true, "NOAUDIT": true, "NOCOMPRESS": true, "NOT": true,
	"NOWAIT": true, "NULL": true, "NUMBER": true, "OF": true,
	"OFFLINE": true, "ON": true, "ONLINE": true, "OPTION": true,
	"OR": true, "ORDER": true, "PCTFREE": true, "PRIOR": true,
	"PUBLIC": true, "RAW": true, "RENAME": true, "RESOURCE": true,
	"REVOKE": true, "ROW": true, "ROWID": true, "ROWNUM": true,
	"ROWS": true, "SELECT": true, "SESSION": true, "SET": true,
	"SHARE": true, "SIZE": true, "SMALLINT": true, "START": true,
	"SUCCESSFUL": true, "SYNONYM": true, "SYSDATE": true, "TABLE": true,
	"THEN": true, "TO": true, "TRIGGER": true, "UID": true, "UNION": true,
	"UNIQUE": true, "UPDATE": true, "USER": true, "VALIDATE": true,
	"VALUES": true, "VARCHAR": true, "VARCHAR2": true, "VIEW": true,
	"WHENEVER": true, "WHERE": true, "WITH": true,
	"NAME": true, "TYPE": true, "VALUE": true, "KEY": true, "TIME": true,
	"TIMESTAMP": true, "YEAR": true, "MONTH": true, "DAY": true,
	"HOUR": true, "MINUTE": true, "SECOND": true, "ZONE": true,
	"DATA": true, "RESULT": true,
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

// BuildDSN builds a godror Easy Connect DSN:
// user/password@host:port/service?param=...
func (d *Dialect) BuildDSN(host string, port int, database, user, password string, opts map[string]any) string {
	encodedUser := url.QueryEscape(user)
	encodedPassword := url.QueryEscape(password)

	serviceName := database
	if sn, ok := opts["service_name"].(string); ok && sn != "" {
		serviceName = sn
	}
	if tnsConnect, ok := opts["tns_connect"].(string); ok && tnsConnect != "" {
		return fmt.Sprintf("%s/%s@%s", encodedUser, encodedPassword, tnsConnect)
	}

	params := []string{}
	if tz, ok := opts["timezone"].(string); ok && tz != "" {
		params = append(params, "timezone="+tz)
	}
	if fetch, ok := opts["fetch_rows"].(int); ok && fetch > 0 {
		params = append(params, fmt.Sprintf("prefetchCount=%d", fetch))
		params = append(params, fmt.Sprintf("fetchArraySize=%d", fetch))
	}

	dsn := fmt.Sprintf("%s/%s@%s:%d/%s", encodedUser, encodedPassword, host, port, serviceName)
	if len(params) > 0 {
		dsn += "?" + strings.Join(params, "&")
	}
	return dsn
}

func (d *Dialect) KeysetQuery(cols, rangeCol, schema, table string, inclusive bool) string {
	cmp := ">"
	if inclusive {
		cmp = ">="
	}
	return fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE %s %s :1
		ORDER BY %s
		FETCH FIRST :2 ROWS ONLY`,
		cols, d.QualifyTable(schema, table),
		d.QuoteIdentifier(rangeCol), cmp,
		d.QuoteIdentifier(rangeCol))
}

func (d *Dialect) KeysetArgs(watermark any, limit int) []any {
	return []any{watermark, limit}
}

func (d *Dialect) ChunkQuery(cols, rangeCol, schema, table string) string {
	qCol := d.QuoteIdentifier(rangeCol)
	return fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE %s > :1 AND %s <= :2
		ORDER BY %s`,
		cols, d.QualifyTable(schema, table), qCol, qCol, qCol)
}

func (d *Dialect) ChunkArgs(start, end any) []any {
	return []any{start, end}
}

// BoundaryQuery samples order statistics of the range column: the value at
// every step-th position in sorted order. MOD over a windowed ROW_NUMBER
// keeps the scan to a single pass.
func (d *Dialect) BoundaryQuery(rangeCol, schema, table string) string {
	qCol := d.QuoteIdentifier(rangeCol)
	return fmt.Sprintf(`
		SELECT boundary_val FROM (
			SELECT %s AS boundary_val, ROW_NUMBER() OVER (ORDER BY %s) AS rn
			FROM %s
		) WHERE MOD(rn, :1) = 0
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

func (d *Dialect) PartitionRef(schema, table, partition string) string {
	return fmt.Sprintf("%s PARTITION (%s)", d.QualifyTable(schema, table), d.QuoteIdentifier(partition))
}

func (d *Dialect) PartitionCountQuery(schema, table, partition string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", d.PartitionRef(schema, table, partition))
}
