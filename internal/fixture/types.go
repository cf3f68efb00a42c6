package fixture

import (
	"fmt"
	"strings"

	"github.com/roach88/sqlconform/internal/store"
)

// Type is the semantic type of a fixture column.
type Type int

const (
	TypeText Type = iota
	TypeInteger
	TypeReal
	TypeTemporal
)

var typeNames = map[Type]string{
	TypeText:     "text",
	TypeInteger:  "integer",
	TypeReal:     "real",
	TypeTemporal: "temporal",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Numeric reports whether values of this type are numbers.
func (t Type) Numeric() bool {
	return t == TypeInteger || t == TypeReal
}

// Affinity returns the SQLite column affinity the type is stored with.
// Temporal values are stored as ISO-8601 text so the engine's date
// functions understand them.
func (t Type) Affinity() string {
	switch t {
	case TypeInteger:
		return store.AffinityInteger
	case TypeReal:
		return store.AffinityReal
	default:
		return store.AffinityText
	}
}

// ParseType converts a type name from configuration into a Type.
// "numeric" and "float" are accepted as aliases for real, "date" and
// "datetime" for temporal.
func ParseType(name string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "text", "string":
		return TypeText, nil
	case "integer", "int":
		return TypeInteger, nil
	case "real", "numeric", "float", "double":
		return TypeReal, nil
	case "temporal", "date", "datetime", "timestamp":
		return TypeTemporal, nil
	default:
		return TypeText, fmt.Errorf("unknown column type %q", name)
	}
}

// Column is one named, typed column of a fixture.
type Column struct {
	Name string
	Type Type

	// Layout is the time layout temporal values were parsed with.
	// Empty for non-temporal columns.
	Layout string
}

// Schema is the ordered column list of a fixture. It is inferred (or
// declared) once at load time.
type Schema struct {
	Columns []Column
}

// Index returns the position of the named column, or -1.
func (s Schema) Index(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Fixture is an immutable, typed dataset ready to be materialized into a
// backend. Row values are int64, float64, string or nil.
type Fixture struct {
	// Table is the name queries refer to the dataset by.
	Table string

	// Path is the file the fixture was loaded from.
	Path string

	Schema Schema
	Rows   [][]any
}

// Len returns the number of rows.
func (f *Fixture) Len() int {
	return len(f.Rows)
}

// columnDefs converts the schema into table column definitions.
func (f *Fixture) columnDefs() []store.ColumnDef {
	defs := make([]store.ColumnDef, len(f.Schema.Columns))
	for i, c := range f.Schema.Columns {
		defs[i] = store.ColumnDef{Name: c.Name, Affinity: c.Type.Affinity()}
	}
	return defs
}
