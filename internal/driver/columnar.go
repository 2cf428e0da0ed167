package driver

import "fmt"

// TypeKind enumerates the canonical columnar type system. Every source
// column maps to exactly one kind; both the bulk path (schema computed up
// front) and the sequential path (schema derived per table before the first
// batch) go through the same mapping so they produce identical destination
// schemas.
type TypeKind int

const (
	TypeInt16 TypeKind = iota
	TypeInt32
	TypeInt64
	TypeDecimal
	TypeFloat32
	TypeFloat64
	TypeString
	TypeTimestamp
	TypeDate
	TypeBinary
	TypeBoolean
)

// TimeUnit is the resolution of a canonical timestamp.
type TimeUnit int

const (
	UnitSeconds TimeUnit = iota
	UnitMicroseconds
)

// ColumnType is a canonical columnar type. Precision/Scale are meaningful
// only for TypeDecimal, Unit only for TypeTimestamp.
type ColumnType struct {
	Kind      TypeKind
	Precision int
	Scale     int
	Unit      TimeUnit
}

var (
	Int16   = ColumnType{Kind: TypeInt16}
	Int32   = ColumnType{Kind: TypeInt32}
	Int64   = ColumnType{Kind: TypeInt64}
	Float32 = ColumnType{Kind: TypeFloat32}
	Float64 = ColumnType{Kind: TypeFloat64}
	String  = ColumnType{Kind: TypeString}
	Date    = ColumnType{Kind: TypeDate}
	Binary  = ColumnType{Kind: TypeBinary}
	Boolean = ColumnType{Kind: TypeBoolean}
)

// Decimal returns a canonical decimal type.
func Decimal(precision, scale int) ColumnType {
	return ColumnType{Kind: TypeDecimal, Precision: precision, Scale: scale}
}

// Timestamp returns a canonical timestamp with the given resolution.
func Timestamp(unit TimeUnit) ColumnType {
	return ColumnType{Kind: TypeTimestamp, Unit: unit}
}

func (ct ColumnType) String() string {
	switch ct.Kind {
	case TypeInt16:
		return "int16"
	case TypeInt32:
		return "int32"
	case TypeInt64:
		return "int64"
	case TypeDecimal:
		return fmt.Sprintf("decimal(%d,%d)", ct.Precision, ct.Scale)
	case TypeFloat32:
		return "float32"
	case TypeFloat64:
		return "float64"
	case TypeString:
		return "string"
	case TypeTimestamp:
		if ct.Unit == UnitSeconds {
			return "timestamp(s)"
		}
		return "timestamp(us)"
	case TypeDate:
		return "date"
	case TypeBinary:
		return "binary"
	case TypeBoolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// DuckDBType renders the canonical type as DuckDB DDL.
func (ct ColumnType) DuckDBType() string {
	switch ct.Kind {
	case TypeInt16:
		return "SMALLINT"
	case TypeInt32:
		return "INTEGER"
	case TypeInt64:
		return "BIGINT"
	case TypeDecimal:
		return fmt.Sprintf("DECIMAL(%d,%d)", ct.Precision, ct.Scale)
	case TypeFloat32:
		return "FLOAT"
	case TypeFloat64:
		return "DOUBLE"
	case TypeString:
		return "VARCHAR"
	case TypeTimestamp:
		if ct.Unit == UnitSeconds {
			return "TIMESTAMP_S"
		}
		return "TIMESTAMP"
	case TypeDate:
		return "DATE"
	case TypeBinary:
		return "BLOB"
	case TypeBoolean:
		return "BOOLEAN"
	default:
		return "VARCHAR"
	}
}

// Schema is an ordered destination schema: column names paired with
// canonical types. Computed once per table and shared by every worker so
// staging stores cannot diverge from each other.
type Schema struct {
	Names []string
	Types []ColumnType
}

// MapSchema applies a type mapper to every column of a table.
func MapSchema(table *Table, mapper TypeMapper) Schema {
	s := Schema{
		Names: make([]string, len(table.Columns)),
		Types: make([]ColumnType, len(table.Columns)),
	}
	for i, c := range table.Columns {
		s.Names[i] = c.Name
		s.Types[i] = mapper.MapType(c)
	}
	return s
}
