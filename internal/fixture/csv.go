package fixture

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/text/transform"
)

// rawTable is a source file before typing: a header and string cells.
// Empty cells are NULL.
type rawTable struct {
	header []string
	rows   [][]string
	lines  []int // source line (or row number) of each row, for errors
}

// readDelimited reads CSV or TSV text in the source's encoding.
func readDelimited(src Source) (*rawTable, error) {
	enc, err := textEncoding(src.Encoding)
	if err != nil {
		return nil, loadErrorf(src.Path, "%w", err)
	}

	f, err := os.Open(src.Path)
	if err != nil {
		return nil, &LoadError{Path: src.Path, Err: err}
	}
	defer f.Close()

	r := csv.NewReader(transform.NewReader(f, enc.NewDecoder()))
	r.Comma = src.Delimiter
	// The header fixes the field count for every following record.
	r.FieldsPerRecord = 0

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, loadErrorf(src.Path, "no header row")
	}
	if err != nil {
		return nil, csvLoadError(src.Path, err)
	}

	table := &rawTable{header: header}
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, csvLoadError(src.Path, err)
		}
		line, _ := r.FieldPos(0)
		table.rows = append(table.rows, record)
		table.lines = append(table.lines, line)
	}

	return table, nil
}

// csvLoadError converts a csv.ParseError into a LoadError that keeps the
// offending line.
func csvLoadError(path string, err error) *LoadError {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return &LoadError{Path: path, Line: parseErr.Line, Err: parseErr.Err}
	}
	return &LoadError{Path: path, Err: fmt.Errorf("read: %w", err)}
}
