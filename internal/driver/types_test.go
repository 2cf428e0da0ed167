package driver

import "testing"

func TestTableHelpers(t *testing.T) {
	table := &Table{
		Schema:     "HR",
		Name:       "EMPLOYEES",
		PrimaryKey: "ID",
		Columns: []Column{
			{Name: "ID", DataType: "NUMBER", Precision: 18},
			{Name: "NAME", DataType: "VARCHAR2"},
		},
	}

	if table.FullName() != "HR.EMPLOYEES" {
		t.Errorf("FullName = %s", table.FullName())
	}
	if !table.HasPK() {
		t.Error("expected HasPK")
	}
	if !table.HasColumn("id") {
		t.Error("column lookup should be case-insensitive")
	}
	if table.HasColumn("SALARY; DROP TABLE X") {
		t.Error("unknown identifiers must not validate")
	}
	if !table.SupportsRangeChunking() {
		t.Error("numeric single-column PK should support range chunking")
	}
}

func TestSupportsRangeChunkingRejectsTextPK(t *testing.T) {
	table := &Table{
		Name:       "T",
		PrimaryKey: "CODE",
		Columns:    []Column{{Name: "CODE", DataType: "VARCHAR2"}},
	}
	if table.SupportsRangeChunking() {
		t.Error("varchar PK must not support range chunking")
	}
}

func TestColumnTypeStrings(t *testing.T) {
	tests := []struct {
		ct     ColumnType
		str    string
		duckdb string
	}{
		{Int16, "int16", "SMALLINT"},
		{Int32, "int32", "INTEGER"},
		{Int64, "int64", "BIGINT"},
		{Decimal(38, 0), "decimal(38,0)", "DECIMAL(38,0)"},
		{Float32, "float32", "FLOAT"},
		{Float64, "float64", "DOUBLE"},
		{String, "string", "VARCHAR"},
		{Timestamp(UnitSeconds), "timestamp(s)", "TIMESTAMP_S"},
		{Timestamp(UnitMicroseconds), "timestamp(us)", "TIMESTAMP"},
		{Date, "date", "DATE"},
		{Binary, "binary", "BLOB"},
		{Boolean, "boolean", "BOOLEAN"},
	}

	for _, tt := range tests {
		if got := tt.ct.String(); got != tt.str {
			t.Errorf("String() = %s, want %s", got, tt.str)
		}
		if got := tt.ct.DuckDBType(); got != tt.duckdb {
			t.Errorf("DuckDBType() = %s, want %s", got, tt.duckdb)
		}
	}
}
