package oracle

import (
	"strings"

	"github.com/johndauphine/colsync/internal/driver"
)

// TypeMapper maps Oracle declared types to canonical columnar types.
// Total and deterministic: unrecognized types become string, never an
// error. The same mapping feeds both the up-front bulk schema and the
// sequential path, so both produce identical destination schemas.
type TypeMapper struct{}

func (m *TypeMapper) MapType(col driver.Column) driver.ColumnType {
	dataType := strings.ToUpper(strings.TrimSpace(col.DataType))

	switch {
	case dataType == "NUMBER":
		return mapNumber(col.Precision, col.Scale)
	case dataType == "INTEGER" || dataType == "INT" || dataType == "SMALLINT":
		// Oracle implements these as unconstrained NUMBER(38).
		return driver.Int64
	case dataType == "FLOAT" || dataType == "BINARY_FLOAT":
		return driver.Float32
	case dataType == "DOUBLE PRECISION" || dataType == "BINARY_DOUBLE":
		return driver.Float64
	case dataType == "DATE":
		// Oracle DATE carries time-of-day at second resolution.
		return driver.Timestamp(driver.UnitSeconds)
	case strings.HasPrefix(dataType, "TIMESTAMP"):
		return driver.Timestamp(driver.UnitMicroseconds)
	case dataType == "VARCHAR2" || dataType == "NVARCHAR2" ||
		dataType == "CHAR" || dataType == "NCHAR" ||
		dataType == "CLOB" || dataType == "NCLOB" || dataType == "LONG":
		return driver.String
	case dataType == "BLOB" || dataType == "RAW" || dataType == "LONG RAW":
		return driver.Binary
	default:
		return driver.String
	}
}

// mapNumber applies the NUMBER precision rules. Integer columns wider than
// 18 digits, and columns whose precision the catalog does not report, map
// to decimal(38,0) so values never pass through a float.
func mapNumber(precision, scale int) driver.ColumnType {
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
