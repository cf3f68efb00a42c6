package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/sqlconform/internal/store"
)

// QueryCase is one named query and the expectations its result must meet.
// A case is immutable once registered.
type QueryCase struct {
	// Name uniquely identifies the case within a runner.
	Name string

	// Description explains which feature the case exercises.
	Description string

	// Query is the SQL text executed against the fixture.
	Query string

	// Expect lists the predicates the result set must satisfy, checked in
	// order. A case with no expectations passes whenever its query runs.
	Expect []Expectation
}

// validateCase checks that required fields are present.
func validateCase(c QueryCase) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(c.Query) == "" {
		return fmt.Errorf("case %q: query is required", c.Name)
	}
	if err := store.CheckSingleStatement(c.Query); err != nil {
		return fmt.Errorf("case %q: %w", c.Name, err)
	}
	for i, e := range c.Expect {
		if e == nil {
			return fmt.Errorf("case %q: expect[%d] is nil", c.Name, i)
		}
	}
	return nil
}
