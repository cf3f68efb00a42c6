package store

import (
	"errors"
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// ErrMultipleStatements is returned for a query text that holds more than
// one statement.
var ErrMultipleStatements = errors.New("query must be a single statement")

// CheckSingleStatement fails if query holds more than one SQL statement,
// since a leading statement could turn off a view's query_only pragma
// before a later one writes. A trailing semicolon is allowed.
//
// Statements are split with the PostgreSQL scanner: it honors quoted
// strings, quoted identifiers and comments, which SQLite spells the same
// way. Text the scanner rejects is passed through so the engine can report
// it as a case failure.
func CheckSingleStatement(query string) error {
	stmts, err := pg_query.SplitWithScanner(query, true)
	if err != nil {
		return nil
	}

	n := 0
	for _, stmt := range stmts {
		if strings.TrimSpace(stmt) != "" {
			n++
		}
	}
	if n > 1 {
		return fmt.Errorf("%w: found %d", ErrMultipleStatements, n)
	}
	return nil
}
