package types

import (
	"fmt"
	"strings"
)

/*
The types package defines the closed set of column types and values that flow
through the executor. Values are tagged variants rather than interfaces: every
consumer (expression evaluation, the CSV serializer, output writers) switches
over Kind, and the set of renderings it has to handle is fixed.
*/

////////////////////////////////////////////////////////////////////////////////

// Kind is the type of a column or value.
type Kind uint8

const (
	// Null is the type of an untyped NULL literal.
	Null Kind = iota
	// Boolean is a true/false value.
	Boolean
	// Integer is a signed 64-bit integer.
	Integer
	// Double is a 64-bit float.
	Double
	// Varchar is a UTF-8 string.
	Varchar
	// Timestamp is a point in time with microsecond precision.
	Timestamp
)

// String returns the SQL name of the kind.
func (k Kind) String() string {
	switch k {
	case Null:
		return "NULL"
	case Boolean:
		return "BOOLEAN"
	case Integer:
		return "BIGINT"
	case Double:
		return "DOUBLE"
	case Varchar:
		return "VARCHAR"
	case Timestamp:
		return "TIMESTAMP"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Numeric reports whether the kind is Integer or Double.
func (k Kind) Numeric() bool {
	return k == Integer || k == Double
}

// ParseKind resolves a SQL type name, as written in a cast, to a kind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(name) {
	case "int", "integer", "bigint", "int8", "int4", "long":
		return Integer, nil
	case "double", "float", "float8", "real", "decimal", "numeric":
		return Double, nil
	case "varchar", "text", "string":
		return Varchar, nil
	case "bool", "boolean":
		return Boolean, nil
	case "timestamp", "datetime":
		return Timestamp, nil
	default:
		return Null, fmt.Errorf("unknown type: %s", name)
	}
}
