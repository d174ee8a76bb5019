package etl

import "fmt"

// SchemaError reports malformed or missing input structure. It is fatal: the
// run aborts before any output table is touched. Parse-level cell problems
// are not schema errors; they are coerced and counted in the run summary.
type SchemaError struct {
	Msg string
}

func (e *SchemaError) Error() string {
	return "schema error: " + e.Msg
}

func schemaErrorf(format string, args ...interface{}) *SchemaError {
	return &SchemaError{Msg: fmt.Sprintf(format, args...)}
}
