package fixture

import (
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// parquetBatch is the number of rows read per ReadRows call.
const parquetBatch = 256

// readParquet reads a flat parquet file into string cells so that it goes
// through the same type inference as delimited text.
func readParquet(src Source) (*rawTable, error) {
	f, err := os.Open(src.Path)
	if err != nil {
		return nil, &LoadError{Path: src.Path, Err: err}
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, &LoadError{Path: src.Path, Err: err}
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, loadErrorf(src.Path, "open parquet file: %w", err)
	}

	table := &rawTable{}
	for _, path := range pf.Schema().Columns() {
		if len(path) != 1 {
			return nil, loadErrorf(src.Path, "nested column %q is not supported", strings.Join(path, "."))
		}
		table.header = append(table.header, path[0])
	}

	reader := parquet.NewReader(pf)
	defer reader.Close()

	buf := make([]parquet.Row, parquetBatch)
	rowNum := 0
	for {
		n, err := reader.ReadRows(buf)
		for _, row := range buf[:n] {
			rowNum++
			cells := make([]string, len(table.header))
			for _, v := range row {
				if col := v.Column(); col >= 0 && col < len(cells) {
					cells[col] = parquetCell(v)
				}
			}
			table.rows = append(table.rows, cells)
			table.lines = append(table.lines, rowNum)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &LoadError{Path: src.Path, Line: rowNum + 1, Err: err}
		}
	}

	return table, nil
}

// parquetCell renders a leaf value as text. Nulls become empty cells.
func parquetCell(v parquet.Value) string {
	if v.IsNull() {
		return ""
	}
	switch v.Kind() {
	case parquet.Boolean:
		if v.Boolean() {
			return "1"
		}
		return "0"
	case parquet.Int32:
		return strconv.FormatInt(int64(v.Int32()), 10)
	case parquet.Int64:
		return strconv.FormatInt(v.Int64(), 10)
	case parquet.Float:
		return strconv.FormatFloat(float64(v.Float()), 'g', -1, 32)
	case parquet.Double:
		return strconv.FormatFloat(v.Double(), 'g', -1, 64)
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}
