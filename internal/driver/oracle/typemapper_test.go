package oracle

import (
	"testing"

	"github.com/johndauphine/colsync/internal/driver"
)

func TestMapType(t *testing.T) {
	m := &TypeMapper{}

	tests := []struct {
		name      string
		dataType  string
		precision int
		scale     int
		want      driver.ColumnType
	}{
		{"number 38,0 stays exact", "NUMBER", 38, 0, driver.Decimal(38, 0)},
		{"number unknown precision stays exact", "NUMBER", 0, 0, driver.Decimal(38, 0)},
		{"number 19,0 exceeds int64", "NUMBER", 19, 0, driver.Decimal(38, 0)},
		{"number 4,0", "NUMBER", 4, 0, driver.Int16},
		{"number 9,0", "NUMBER", 9, 0, driver.Int32},
		{"number 18,0", "NUMBER", 18, 0, driver.Int64},
		{"number 10,2", "NUMBER", 10, 2, driver.Float64},
		{"integer", "INTEGER", 0, 0, driver.Int64},
		{"smallint", "SMALLINT", 0, 0, driver.Int64},
		{"float", "FLOAT", 0, 0, driver.Float32},
		{"binary_float", "BINARY_FLOAT", 0, 0, driver.Float32},
		{"binary_double", "BINARY_DOUBLE", 0, 0, driver.Float64},
		{"date", "DATE", 0, 0, driver.Timestamp(driver.UnitSeconds)},
		{"timestamp", "TIMESTAMP", 0, 0, driver.Timestamp(driver.UnitMicroseconds)},
		{"timestamp(6)", "TIMESTAMP(6)", 0, 0, driver.Timestamp(driver.UnitMicroseconds)},
		{"timestamp with tz", "TIMESTAMP(6) WITH TIME ZONE", 0, 0, driver.Timestamp(driver.UnitMicroseconds)},
		{"varchar2", "VARCHAR2", 0, 0, driver.String},
		{"nvarchar2", "NVARCHAR2", 0, 0, driver.String},
		{"char", "CHAR", 0, 0, driver.String},
		{"clob", "CLOB", 0, 0, driver.String},
		{"long", "LONG", 0, 0, driver.String},
		{"blob", "BLOB", 0, 0, driver.Binary},
		{"raw", "RAW", 0, 0, driver.Binary},
		{"long raw", "LONG RAW", 0, 0, driver.Binary},
		{"unknown falls back to string", "SDO_GEOMETRY", 0, 0, driver.String},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.MapType(driver.Column{
				Name:      "C",
				DataType:  tt.dataType,
				Precision: tt.precision,
				Scale:     tt.scale,
			})
			if got != tt.want {
				t.Errorf("MapType(%s,%d,%d) = %s, want %s",
					tt.dataType, tt.precision, tt.scale, got, tt.want)
			}
		})
	}
}

// Wide integer keys must never be routed through a float: NUMBER(38,0)
// renders as DECIMAL(38,0) in the destination so 20-digit values survive
// the round trip digit-for-digit.
func TestWideIntegerStaysDecimal(t *testing.T) {
	m := &TypeMapper{}
	ct := m.MapType(driver.Column{Name: "ID", DataType: "NUMBER", Precision: 38, Scale: 0})
	if ct.Kind == driver.TypeFloat64 || ct.Kind == driver.TypeFloat32 {
		t.Fatalf("NUMBER(38,0) mapped to %s", ct)
	}
	if got := ct.DuckDBType(); got != "DECIMAL(38,0)" {
		t.Errorf("DuckDB DDL = %s, want DECIMAL(38,0)", got)
	}
}

func TestSchemaIdenticalAcrossPaths(t *testing.T) {
	// Bulk mode maps the schema once up front; sequential mode maps it
	// again before the first batch. Both must agree exactly.
	m := &TypeMapper{}
	table := &driver.Table{
		Schema: "HR",
		Name:   "EMPLOYEES",
		Columns: []driver.Column{
			{Name: "ID", DataType: "NUMBER", Precision: 38, Scale: 0},
			{Name: "NAME", DataType: "VARCHAR2"},
			{Name: "HIRED", DataType: "DATE"},
		},
	}

	first := driver.MapSchema(table, m)
	second := driver.MapSchema(table, m)
	for i := range first.Types {
		if first.Types[i] != second.Types[i] {
			t.Errorf("column %s mapped differently: %s vs %s",
				first.Names[i], first.Types[i], second.Types[i])
		}
	}
}
