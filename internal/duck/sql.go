package duck

import (
	"fmt"
	"strings"

	"github.com/johndauphine/colsync/internal/driver"
)

// Quote quotes a DuckDB identifier, doubling embedded quotes.
func Quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// CreateTableSQL renders the DDL for table from a mapped schema.
func CreateTableSQL(table string, schema driver.Schema, replace bool) string {
	cols := make([]string, len(schema.Names))
	for i, name := range schema.Names {
		cols[i] = fmt.Sprintf("%s %s", Quote(name), schema.Types[i].DuckDBType())
	}
	verb := "CREATE TABLE IF NOT EXISTS"
	if replace {
		verb = "CREATE OR REPLACE TABLE"
	}
	return fmt.Sprintf("%s %s (%s)", verb, Quote(table), strings.Join(cols, ", "))
}

// InsertSQL renders a positional-placeholder INSERT for one row.
func InsertSQL(table string, cols []string) string {
	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = Quote(c)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		Quote(table), strings.Join(quoted, ", "), strings.Join(marks, ", "))
}

// AttachSQL renders a read-only ATTACH of a staging file. The path is a
// string literal, so embedded quotes are doubled.
func AttachSQL(path, alias string) string {
	escaped := strings.ReplaceAll(path, "'", "''")
	return fmt.Sprintf("ATTACH '%s' AS %s (READ_ONLY)", escaped, alias)
}

// MergeSQL renders the union of every attached staging table, by column
// name, either rebuilding table or appending to it.
func MergeSQL(table string, aliases []string, replace bool) string {
	selects := make([]string, len(aliases))
	for i, a := range aliases {
		selects[i] = fmt.Sprintf("SELECT * FROM %s.%s", a, Quote(table))
	}
	union := strings.Join(selects, " UNION ALL BY NAME ")
	if replace {
		return fmt.Sprintf("CREATE OR REPLACE TABLE %s AS %s", Quote(table), union)
	}
	return fmt.Sprintf("INSERT INTO %s BY NAME %s", Quote(table), union)
}
