package types

import (
	"fmt"
	"strings"
)

// Column is a named, typed column of a schema.
type Column struct {
	Name string
	Type Kind
}

// NewColumn constructs a column.
func NewColumn(name string, kind Kind) Column {
	return Column{Name: name, Type: kind}
}

// String returns "name TYPE".
func (c Column) String() string {
	return fmt.Sprintf("%s %s", c.Name, c.Type)
}

// Schema is the ordered column list of a relation. Schemas are built once
// at bind time and not modified afterward.
type Schema []Column

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Kinds returns the column types in order.
func (s Schema) Kinds() []Kind {
	kinds := make([]Kind, len(s))
	for i, c := range s {
		kinds[i] = c.Type
	}
	return kinds
}

// Index returns the position of the named column, matched case-insensitively,
// or -1.
func (s Schema) Index(name string) int {
	for i, c := range s {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// String returns a parenthesized column list.
func (s Schema) String() string {
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Derive returns the output schema of an operator that passes its input
// through unchanged. It is an error for the input to have no columns.
func Derive(input Schema) (Schema, error) {
	if len(input) == 0 {
		return nil, SchemaError{Reason: "input has no columns"}
	}
	out := make(Schema, len(input))
	copy(out, input)
	return out, nil
}
