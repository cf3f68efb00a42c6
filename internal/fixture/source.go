package fixture

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	xunicode "golang.org/x/text/encoding/unicode"
)

// Source formats.
const (
	FormatCSV     = "csv"
	FormatTSV     = "tsv"
	FormatParquet = "parquet"
)

// DefaultDateLayouts are tried, in order, when inferring temporal columns.
// Day-first precedes month-first; a column is only read month-first when
// some value cannot be a day-first date.
var DefaultDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2/1/2006",
	"1/2/2006",
	"2/1/2006 15:04",
	"1/2/2006 15:04",
}

// Source describes where a fixture comes from and how to read it.
type Source struct {
	// Path is the data file.
	Path string

	// Table is the table name queries use. Defaults to the file's base
	// name ("data/train.csv" becomes "train").
	Table string

	// Format is one of FormatCSV, FormatTSV or FormatParquet. Inferred
	// from the file extension when empty.
	Format string

	// Delimiter overrides the field separator for delimited text.
	Delimiter rune

	// Encoding of delimited text: "utf-8" (default), "latin-1" or
	// "windows-1252".
	Encoding string

	// DateLayouts overrides DefaultDateLayouts.
	DateLayouts []string

	// Types declares column types by name instead of inferring them.
	// Values are type names accepted by ParseType.
	Types map[string]string
}

// normalized fills in defaults and validates the source.
func (s Source) normalized() (Source, error) {
	if s.Path == "" {
		return s, fmt.Errorf("fixture path is required")
	}

	if s.Format == "" {
		s.Format = formatFromExt(s.Path)
	}
	s.Format = strings.ToLower(s.Format)
	switch s.Format {
	case FormatCSV, FormatTSV, FormatParquet:
	default:
		return s, fmt.Errorf("unsupported fixture format %q", s.Format)
	}

	if s.Delimiter == 0 {
		s.Delimiter = ','
		if s.Format == FormatTSV {
			s.Delimiter = '\t'
		}
	}

	if s.Table == "" {
		s.Table = TableNameFromPath(s.Path)
	}

	if len(s.DateLayouts) == 0 {
		s.DateLayouts = DefaultDateLayouts
	}

	return s, nil
}

func formatFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv", ".tab":
		return FormatTSV
	case ".parquet", ".pq":
		return FormatParquet
	default:
		return FormatCSV
	}
}

// TableNameFromPath derives a SQL identifier from a file name:
// "data/Sample - Superstore.csv" becomes "sample___superstore".
func TableNameFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	var b strings.Builder
	for _, r := range strings.ToLower(base) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	name := b.String()
	if name == "" || unicode.IsDigit(rune(name[0])) {
		name = "_" + name
	}
	return name
}

// textEncoding maps an encoding name to its decoder. UTF-8 input has a
// leading byte order mark stripped.
func textEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", "-")) {
	case "", "utf-8", "utf8":
		return xunicode.UTF8BOM, nil
	case "latin-1", "latin1", "iso-8859-1", "iso8859-1":
		return charmap.ISO8859_1, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}
