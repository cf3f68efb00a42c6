package fixture

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/sqlconform/internal/store"
)

// Load reads and types the dataset described by src. It fails with a
// *LoadError if the source is unreadable, malformed, or a column cannot be
// typed (only possible for declared types).
func Load(src Source) (*Fixture, error) {
	src, err := src.normalized()
	if err != nil {
		return nil, &LoadError{Path: src.Path, Err: err}
	}
	if !store.ValidTableName(src.Table) {
		return nil, loadErrorf(src.Path, "invalid table name %q", src.Table)
	}

	var raw *rawTable
	switch src.Format {
	case FormatParquet:
		raw, err = readParquet(src)
	default:
		raw, err = readDelimited(src)
	}
	if err != nil {
		return nil, err
	}

	header, err := normalizeHeader(raw.header)
	if err != nil {
		return nil, &LoadError{Path: src.Path, Line: 1, Err: err}
	}

	schema, err := buildSchema(src, header, raw.rows)
	if err != nil {
		return nil, err
	}

	rows := make([][]any, len(raw.rows))
	for i, record := range raw.rows {
		row := make([]any, len(schema.Columns))
		for j, col := range schema.Columns {
			v, err := convert(record[j], col)
			if err != nil {
				return nil, &LoadError{Path: src.Path, Line: raw.lines[i], Column: col.Name, Err: err}
			}
			row[j] = v
		}
		rows[i] = row
	}

	return &Fixture{
		Table:  src.Table,
		Path:   src.Path,
		Schema: schema,
		Rows:   rows,
	}, nil
}

// normalizeHeader trims and NFC-normalizes column names and rejects empty
// or duplicate names.
func normalizeHeader(header []string) ([]string, error) {
	names := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := norm.NFC.String(strings.TrimSpace(h))
		if name == "" {
			return nil, fmt.Errorf("column %d has an empty name", i+1)
		}
		if prev, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate column name %q (columns %d and %d)", name, prev+1, i+1)
		}
		seen[name] = i
		names[i] = name
	}
	return names, nil
}

// buildSchema declares or infers a type for every column.
func buildSchema(src Source, header []string, rows [][]string) (Schema, error) {
	declaredTypes, err := matchDeclared(header, src.Types)
	if err != nil {
		return Schema{}, loadErrorf(src.Path, "%w", err)
	}

	schema := Schema{Columns: make([]Column, len(header))}
	values := make([]string, len(rows))
	for j, name := range header {
		for i, record := range rows {
			values[i] = record[j]
		}

		declared, ok := declaredTypes[j]
		if !ok {
			schema.Columns[j] = inferColumn(name, values, src.DateLayouts)
			continue
		}

		typ, err := ParseType(declared)
		if err != nil {
			return Schema{}, &LoadError{Path: src.Path, Column: name, Err: err}
		}
		col, err := declaredColumn(name, typ, values, src.DateLayouts)
		if err != nil {
			return Schema{}, &LoadError{Path: src.Path, Column: name, Err: err}
		}
		schema.Columns[j] = col
	}
	return schema, nil
}

// matchDeclared maps declared types onto header positions. Names match
// exactly, or case-insensitively when that is unambiguous: configuration
// loaders lower-case map keys.
func matchDeclared(header []string, types map[string]string) (map[int]string, error) {
	byIndex := make(map[int]string, len(types))
	for name, typ := range types {
		idx := -1
		for j, h := range header {
			if h == name {
				idx = j
				break
			}
			if strings.EqualFold(h, name) {
				if idx >= 0 {
					return nil, fmt.Errorf("declared type for %q matches several columns", name)
				}
				idx = j
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("declared type for unknown column %q", name)
		}
		byIndex[idx] = typ
	}
	return byIndex, nil
}

// Materialize creates the fixture's table in st and inserts every row.
func Materialize(ctx context.Context, st *store.Store, fx *Fixture) error {
	if err := st.CreateTable(ctx, fx.Table, fx.columnDefs(), fx.Rows); err != nil {
		return fmt.Errorf("materialize fixture %s: %w", fx.Table, err)
	}
	return nil
}
