package mssql

import (
	"strings"

	"github.com/johndauphine/colsync/internal/driver"
)

// TypeMapper maps SQL Server declared types to canonical columnar types.
type TypeMapper struct{}

func (m *TypeMapper) MapType(col driver.Column) driver.ColumnType {
	dataType := strings.ToLower(strings.TrimSpace(col.DataType))

	switch dataType {
	case "tinyint", "smallint":
		return driver.Int16
	case "int":
		return driver.Int32
	case "bigint":
		return driver.Int64
	case "decimal", "numeric", "money", "smallmoney":
		return mapDecimal(col.Precision, col.Scale)
	case "real":
		return driver.Float32
	case "float":
		return driver.Float64
	case "bit":
		return driver.Boolean
	case "date":
		return driver.Date
	case "datetime", "datetime2", "smalldatetime", "datetimeoffset", "time":
		return driver.Timestamp(driver.UnitMicroseconds)
	case "binary", "varbinary", "image", "rowversion", "timestamp":
		return driver.Binary
	default:
		// char, varchar, nchar, nvarchar, text, ntext,
		// uniqueidentifier, xml, sql_variant...
		return driver.String
	}
}

func mapDecimal(precision, scale int) driver.ColumnType {
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
