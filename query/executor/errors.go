package executor

import (
	"errors"
	"fmt"

	"github.com/wkalt/teeql/query/types"
)

// ErrDivisionByZero is returned when an integer is divided by zero.
var ErrDivisionByZero = errors.New("division by zero")

// ErrIntegerOverflow is returned when an integer result does not fit in 64
// bits.
var ErrIntegerOverflow = errors.New("integer overflow")

// CastError is returned when a value cannot be converted to the requested
// type.
type CastError struct {
	Value types.Value
	To    types.Kind
}

func (e CastError) Error() string {
	return fmt.Sprintf("cannot cast %s to %s", e.Value, e.To)
}

func (e CastError) Is(target error) bool {
	_, ok := target.(CastError)
	return ok
}

// ParseError is returned when a field of a delimited file does not match the
// column type detected for it.
type ParseError struct {
	Path   string
	Line   int
	Column string
	Field  string
	Kind   types.Kind
}

func (e ParseError) Error() string {
	return fmt.Sprintf("%s:%d: cannot parse %q as %s for column %s", e.Path, e.Line, e.Field, e.Kind, e.Column)
}

func (e ParseError) Is(target error) bool {
	_, ok := target.(ParseError)
	return ok
}
