package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// validIdentifier matches table names accepted by CreateTable.
// Only allows alphanumeric and underscore, must start with letter or underscore.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLite column affinities used for fixture tables.
const (
	AffinityInteger = "INTEGER"
	AffinityReal    = "REAL"
	AffinityText    = "TEXT"
)

// ColumnDef describes one column of a table created by CreateTable.
type ColumnDef struct {
	Name     string
	Affinity string
}

// ValidTableName reports whether name can be used as a fixture table name.
func ValidTableName(name string) bool {
	return validIdentifier.MatchString(name)
}

// QuoteIdent quotes a column name so that names with spaces or punctuation
// ("Customer Name", "Sub-Category") can be used verbatim.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// CreateTable creates table with the given columns and inserts rows in a
// single transaction. Each row must have exactly len(cols) values.
//
// Must be called before the first View: views switch the shared connection
// to read-only.
func (s *Store) CreateTable(ctx context.Context, table string, cols []ColumnDef, rows [][]any) error {
	if !ValidTableName(table) {
		return fmt.Errorf("invalid table name %q: must match pattern %s", table, validIdentifier.String())
	}
	if len(cols) == 0 {
		return fmt.Errorf("table %s: at least one column is required", table)
	}

	defs := make([]string, len(cols))
	names := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, c := range cols {
		names[i] = QuoteIdent(c.Name)
		defs[i] = names[i] + " " + c.Affinity
		placeholders[i] = "?"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(names, ", "), strings.Join(placeholders, ", "))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if len(row) != len(cols) {
			return fmt.Errorf("row %d: has %d values, table %s has %d columns", i+1, len(row), table, len(cols))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("insert row %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// CountRows returns the number of rows in table.
func (s *Store) CountRows(ctx context.Context, table string) (int, error) {
	if !ValidTableName(table) {
		return 0, fmt.Errorf("invalid table name %q", table)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows in %s: %w", table, err)
	}
	return n, nil
}
