package plan

import (
	"fmt"
	"strings"
)

// BadPlanError is returned when a query cannot be bound to a plan: unknown
// columns or functions, bad table function arguments, or type mismatches.
type BadPlanError struct {
	Err error
}

func (e BadPlanError) Error() string {
	return e.Err.Error()
}

func (e BadPlanError) Unwrap() error {
	return e.Err
}

func (e BadPlanError) Is(target error) bool {
	_, ok := target.(BadPlanError)
	return ok
}

func badPlan(format string, args ...any) error {
	return BadPlanError{fmt.Errorf(format, args...)}
}

// ColumnNotFoundError is returned when an expression references a column
// that is not present in its input.
type ColumnNotFoundError struct {
	Column    string
	Available []string
}

func (e ColumnNotFoundError) Error() string {
	sb := &strings.Builder{}
	sb.WriteString("column not found: ")
	sb.WriteString(e.Column)
	sb.WriteString(" (available columns: ")
	sb.WriteString(strings.Join(e.Available, ", "))
	sb.WriteString(")")
	return sb.String()
}
