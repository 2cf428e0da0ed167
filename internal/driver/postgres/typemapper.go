package postgres

import (
	"strings"

	"github.com/johndauphine/colsync/internal/driver"
)

// TypeMapper maps PostgreSQL declared types to canonical columnar types.
// numeric follows the same precision thresholds as Oracle NUMBER so the
// destination schema is engine-independent.
type TypeMapper struct{}

func (m *TypeMapper) MapType(col driver.Column) driver.ColumnType {
	dataType := strings.ToLower(strings.TrimSpace(col.DataType))

	switch dataType {
	case "smallint", "int2", "smallserial":
		return driver.Int16
	case "integer", "int", "int4", "serial":
		return driver.Int32
	case "bigint", "int8", "bigserial":
		return driver.Int64
	case "numeric", "decimal":
		return mapNumeric(col.Precision, col.Scale)
	case "real", "float4":
		return driver.Float32
	case "double precision", "float8":
		return driver.Float64
	case "boolean", "bool":
		return driver.Boolean
	case "date":
		return driver.Date
	case "bytea":
		return driver.Binary
	}

	if strings.HasPrefix(dataType, "timestamp") {
		return driver.Timestamp(driver.UnitMicroseconds)
	}
	// text, varchar, char, uuid, json, jsonb, inet, interval, enums...
	return driver.String
}

func mapNumeric(precision, scale int) driver.ColumnType {
	if scale != 0 {
		return driver.Float64
	}
	switch {
	case precision <= 0 || precision > 18:
		return driver.Decimal(38, 0)
	case precision <= 4:
		return driver.Int16
	case precision <= 9:
		return driver.Int32
	default:
		return driver.Int64
	}
}
