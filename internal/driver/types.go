package driver

import "strings"

// Table holds the source metadata for one table, produced by an Inspector
// at plan time. It is immutable for the duration of a sync run and never
// persisted.
type Table struct {
	Schema     string      `json:"schema"`
	Name       string      `json:"name"`
	Columns    []Column    `json:"columns"`
	PrimaryKey string      `json:"primary_key"`
	RowCount   int64       `json:"row_count"` // catalog estimate, may be stale
	SizeMB     float64     `json:"size_mb"`   // 0 when segment metadata is restricted
	Partitions []string    `json:"partitions,omitempty"`
	Candidates []Candidate `json:"incremental_candidates,omitempty"`
}

// FullName returns the fully qualified table name (schema.table).
func (t *Table) FullName() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// HasPK returns true if the table has a usable primary key column.
func (t *Table) HasPK() bool {
	return t.PrimaryKey != ""
}

// IsPartitioned returns true if the source table is physically partitioned.
func (t *Table) IsPartitioned() bool {
	return len(t.Partitions) > 0
}

// Column returns the metadata for a named column, nil if absent.
// Lookup is case-insensitive because catalogs disagree on identifier case.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if strings.EqualFold(t.Columns[i].Name, name) {
			return &t.Columns[i]
		}
	}
	return nil
}

// HasColumn reports whether name is a catalog-known column. Every
// identifier interpolated into generated SQL must pass this check first;
// bind values never go through string interpolation.
func (t *Table) HasColumn(name string) bool {
	return t.Column(name) != nil
}

// ColumnNames returns the ordered column name list.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// PKColumn returns the primary key column metadata, nil if none.
func (t *Table) PKColumn() *Column {
	if t.PrimaryKey == "" {
		return nil
	}
	return t.Column(t.PrimaryKey)
}

// SupportsRangeChunking returns true when the primary key is a numeric
// type the chunk planner can split into bounded ranges.
func (t *Table) SupportsRangeChunking() bool {
	pk := t.PKColumn()
	return pk != nil && pk.IsNumeric()
}

// Column is one source column as reported by the catalog.
type Column struct {
	Name       string `json:"name"`
	DataType   string `json:"data_type"`
	Precision  int    `json:"precision"` // 0 means unreported
	Scale      int    `json:"scale"`
	Nullable   bool   `json:"nullable"`
	OrdinalPos int    `json:"ordinal_position"`
}

// IsNumeric returns true for integer, decimal, and float source types.
func (c *Column) IsNumeric() bool {
	switch strings.ToUpper(c.DataType) {
	case "NUMBER", "INTEGER", "INT", "SMALLINT", "BIGINT", "TINYINT",
		"DECIMAL", "NUMERIC", "FLOAT", "REAL", "DOUBLE PRECISION",
		"BINARY_FLOAT", "BINARY_DOUBLE",
		"INT2", "INT4", "INT8", "SERIAL", "BIGSERIAL", "SMALLSERIAL",
		"MONEY", "SMALLMONEY":
		return true
	}
	return false
}

// IsTemporal returns true for date/timestamp source types.
func (c *Column) IsTemporal() bool {
	upper := strings.ToUpper(c.DataType)
	return upper == "DATE" || strings.HasPrefix(upper, "TIMESTAMP") ||
		strings.HasPrefix(upper, "DATETIME") || upper == "SMALLDATETIME"
}

// Candidate is a ranked incremental-column candidate. Candidates below the
// usable non-null threshold are still listed, ranked last, with the
// measured percentage exposed so a caller can reject them.
type Candidate struct {
	Name           string  `json:"name"`
	DataType       string  `json:"data_type"`
	NonNullPercent float64 `json:"non_null_percent"`
	Score          int     `json:"score"`
}
