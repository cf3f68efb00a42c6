package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/sqlconform/internal/fixture"
	"github.com/roach88/sqlconform/internal/store"
)

// ColumnInfo is one inferred column.
type ColumnInfo struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Layout string `json:"layout,omitempty"`
}

// SchemaResult describes a loaded fixture.
type SchemaResult struct {
	Path    string       `json:"path"`
	Table   string       `json:"table"`
	Rows    int          `json:"rows"`
	Columns []ColumnInfo `json:"columns"`
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the inferred schema of a fixture",
		Long: `Load a fixture and print the table name, row count and the type
inferred (or declared in fixture.types) for every column.

Temporal columns show the date layout their values were read with.

Examples:
  sqlconform schema --fixture ./data/train.csv
  sqlconform schema --fixture ./data/train.csv --encoding latin-1 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(rootOpts, cmd)
		},
	}

	cmd.Flags().String("fixture", "", "path to the fixture file (csv, tsv or parquet)")
	cmd.Flags().String("table", "", "table name for the fixture (default: derived from the file name)")
	cmd.Flags().String("encoding", "", "fixture text encoding (utf-8|latin-1|windows-1252)")

	return cmd
}

func runSchema(opts *RootOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := opts.loadConfig(
		WithFlag("fixture.path", cmd.Flags().Lookup("fixture")),
		WithFlag("fixture.table", cmd.Flags().Lookup("table")),
		WithFlag("fixture.encoding", cmd.Flags().Lookup("encoding")),
	)
	if err != nil {
		return reportedError(formatter, ExitFailure, ErrCodeConfig, err.Error(), nil)
	}
	if cfg.Fixture.Path == "" {
		return reportedError(formatter, ExitFailure, ErrCodeNoFixture,
			"no fixture configured: use --fixture or set fixture.path", nil)
	}

	src, err := cfg.Fixture.Source()
	if err != nil {
		return reportedError(formatter, ExitFailure, ErrCodeConfig, err.Error(), nil)
	}
	fx, err := fixture.Load(src)
	if err != nil {
		return loadErrorExit(formatter, convertFixtureError(err))
	}

	result := newSchemaResult(fx)
	switch formatter.Format {
	case FormatJSON:
		return formatter.Success(result)
	case FormatTable:
		return formatter.Success(renderSchemaTable(result) + "\n")
	default:
		return formatter.Success(renderSchemaText(result))
	}
}

func newSchemaResult(fx *fixture.Fixture) SchemaResult {
	cols := make([]ColumnInfo, len(fx.Schema.Columns))
	for i, c := range fx.Schema.Columns {
		cols[i] = ColumnInfo{Name: c.Name, Type: c.Type.String(), Layout: c.Layout}
	}
	return SchemaResult{Path: fx.Path, Table: fx.Table, Rows: fx.Len(), Columns: cols}
}

// renderSchemaText lists columns the way queries must spell them.
func renderSchemaText(r SchemaResult) string {
	s := fmt.Sprintf("table %s (%d rows) from %s\n", r.Table, r.Rows, r.Path)
	for _, c := range r.Columns {
		if c.Layout != "" {
			s += fmt.Sprintf("  %s %s (%s)\n", store.QuoteIdent(c.Name), c.Type, c.Layout)
			continue
		}
		s += fmt.Sprintf("  %s %s\n", store.QuoteIdent(c.Name), c.Type)
	}
	return s
}

var schemaHeader = table.Row{
	"#",
	"Column",
	"Type",
	"Layout",
}

func renderSchemaTable(r SchemaResult) string {
	t := table.NewWriter()
	t.SetTitle("%s (%d rows)", r.Table, r.Rows)
	t.AppendHeader(schemaHeader)
	for i, c := range r.Columns {
		t.AppendRow(table.Row{i + 1, c.Name, c.Type, c.Layout})
	}
	return t.Render()
}
