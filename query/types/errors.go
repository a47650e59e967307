package types

// SchemaError is returned when a relation's schema cannot serve the operator
// consuming it, such as a tee over a zero-column input.
type SchemaError struct {
	Reason string
}

// Error returns a string representation of the error.
func (e SchemaError) Error() string {
	return "schema error: " + e.Reason
}

// Is returns true if the target is a SchemaError.
func (e SchemaError) Is(target error) bool {
	_, ok := target.(SchemaError)
	return ok
}
