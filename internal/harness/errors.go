package harness

import (
	"fmt"
)

// ExpectationError is returned when a result set does not satisfy an
// expectation. It includes enough context to debug the failure from the
// report line alone.
type ExpectationError struct {
	Kind     string // Expectation kind, e.g. "row_count"
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *ExpectationError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Kind, e.Expected, e.Actual)
}

// QueryExecutionError is returned when the engine rejects or fails a
// case's query. It is attributed to the case and never aborts the run.
type QueryExecutionError struct {
	Case string

	// Unsupported is set when the engine does not understand a construct
	// the query uses (syntax error, unknown function).
	Unsupported bool

	Err error
}

// Error implements the error interface.
func (e *QueryExecutionError) Error() string {
	if e.Unsupported {
		return fmt.Sprintf("unsupported feature: %v", e.Err)
	}
	return fmt.Sprintf("query failed: %v", e.Err)
}

func (e *QueryExecutionError) Unwrap() error {
	return e.Err
}
