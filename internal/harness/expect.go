package harness

import (
	"fmt"
	"math"
	"strings"
)

// Expectation is a predicate over a case's result set. It returns nil if
// the result set satisfies it, otherwise an error (normally an
// *ExpectationError) whose message becomes the case's failure reason.
type Expectation func(rs *ResultSet) error

// Expectation kinds. Suite files use the same names as expectation types.
const (
	KindNonEmpty              = "non_empty"
	KindHasColumn             = "has_column"
	KindRowCount              = "row_count"
	KindMaxRows               = "max_rows"
	KindColumnValues          = "column_values"
	KindRankWithinPartition   = "rank_within_partition"
	KindSortedWithinPartition = "sorted_within_partition"
	KindOffsetOf              = "offset_of"
	KindDistinctGroups        = "distinct_groups"
)

// invalid returns an expectation that always fails because it was built
// with bad arguments.
func invalid(kind, format string, args ...any) Expectation {
	err := fmt.Errorf("invalid %s expectation: %s", kind, fmt.Sprintf(format, args...))
	return func(*ResultSet) error { return err }
}

// All combines expectations. The first failure wins.
func All(expectations ...Expectation) Expectation {
	return func(rs *ResultSet) error {
		for _, e := range expectations {
			if err := e(rs); err != nil {
				return err
			}
		}
		return nil
	}
}

// NonEmpty requires at least one row.
func NonEmpty() Expectation {
	return func(rs *ResultSet) error {
		if len(rs.Rows) == 0 {
			return &ExpectationError{
				Kind:     KindNonEmpty,
				Expected: "at least one row",
				Actual:   "0 rows",
			}
		}
		return nil
	}
}

// HasColumn requires a result column with the given name.
func HasColumn(name string) Expectation {
	if name == "" {
		return invalid(KindHasColumn, "column name is required")
	}
	return func(rs *ResultSet) error {
		if rs.ColumnIndex(name) < 0 {
			return missingColumn(KindHasColumn, name, rs)
		}
		return nil
	}
}

// RowCount requires exactly n rows.
func RowCount(n int) Expectation {
	if n < 0 {
		return invalid(KindRowCount, "count must be non-negative, got %d", n)
	}
	return func(rs *ResultSet) error {
		if len(rs.Rows) != n {
			return &ExpectationError{
				Kind:     KindRowCount,
				Expected: fmt.Sprintf("%d rows", n),
				Actual:   fmt.Sprintf("%d rows", len(rs.Rows)),
			}
		}
		return nil
	}
}

// MaxRows requires at most n rows.
func MaxRows(n int) Expectation {
	if n < 0 {
		return invalid(KindMaxRows, "count must be non-negative, got %d", n)
	}
	return func(rs *ResultSet) error {
		if len(rs.Rows) > n {
			return &ExpectationError{
				Kind:     KindMaxRows,
				Expected: fmt.Sprintf("at most %d rows", n),
				Actual:   fmt.Sprintf("%d rows", len(rs.Rows)),
			}
		}
		return nil
	}
}

// ColumnValues requires the named column to hold exactly values, in order.
// Numbers compare by value, so 1 matches both int64(1) and 1.0.
func ColumnValues(name string, values ...any) Expectation {
	if name == "" {
		return invalid(KindColumnValues, "column name is required")
	}
	want := make([]any, len(values))
	for i, v := range values {
		want[i] = normalizeValue(v)
	}

	return func(rs *ResultSet) error {
		got, ok := rs.Column(name)
		if !ok {
			return missingColumn(KindColumnValues, name, rs)
		}
		if len(got) != len(want) {
			return &ExpectationError{
				Kind:     KindColumnValues,
				Expected: fmt.Sprintf("%s = %s", name, formatValues(want)),
				Actual:   formatValues(got),
			}
		}
		for i := range want {
			if !valuesEqual(want[i], got[i]) {
				return &ExpectationError{
					Kind:     KindColumnValues,
					Expected: fmt.Sprintf("%s = %s", name, formatValues(want)),
					Actual:   fmt.Sprintf("%s (row %d is %s)", formatValues(got), i+1, formatValue(got[i])),
				}
			}
		}
		return nil
	}
}

// RankWithinPartition requires rankCol to count 1, 2, 3, ... in row order
// within each distinct value of partitionCol.
func RankWithinPartition(partitionCol, rankCol string) Expectation {
	if partitionCol == "" || rankCol == "" {
		return invalid(KindRankWithinPartition, "partition and rank columns are required")
	}
	return func(rs *ResultSet) error {
		pi, ri := rs.ColumnIndex(partitionCol), rs.ColumnIndex(rankCol)
		if pi < 0 {
			return missingColumn(KindRankWithinPartition, partitionCol, rs)
		}
		if ri < 0 {
			return missingColumn(KindRankWithinPartition, rankCol, rs)
		}

		last := make(map[string]int64)
		for i, row := range rs.Rows {
			key := valueKey(row[pi])
			rank, ok := integerValue(row[ri])
			want := last[key] + 1
			if !ok || rank != want {
				return &ExpectationError{
					Kind:     KindRankWithinPartition,
					Expected: fmt.Sprintf("%s = %d in partition %s", rankCol, want, formatValue(row[pi])),
					Actual:   fmt.Sprintf("%s at row %d", formatValue(row[ri]), i+1),
				}
			}
			last[key] = rank
		}
		return nil
	}
}

// SortedWithinPartition requires keyCol to be ordered (descending if desc)
// in row order within each distinct value of partitionCol. Pass an empty
// partitionCol to check the whole result.
func SortedWithinPartition(partitionCol, keyCol string, desc bool) Expectation {
	if keyCol == "" {
		return invalid(KindSortedWithinPartition, "key column is required")
	}
	return func(rs *ResultSet) error {
		pi := -1
		if partitionCol != "" {
			pi = rs.ColumnIndex(partitionCol)
			if pi < 0 {
				return missingColumn(KindSortedWithinPartition, partitionCol, rs)
			}
		}
		ki := rs.ColumnIndex(keyCol)
		if ki < 0 {
			return missingColumn(KindSortedWithinPartition, keyCol, rs)
		}

		order := "ascending"
		if desc {
			order = "descending"
		}

		prev := make(map[string]any)
		for i, row := range rs.Rows {
			key := ""
			if pi >= 0 {
				key = valueKey(row[pi])
			}
			if p, seen := prev[key]; seen {
				c := compareValues(p, row[ki])
				if (desc && c < 0) || (!desc && c > 0) {
					return &ExpectationError{
						Kind:     KindSortedWithinPartition,
						Expected: fmt.Sprintf("%s %s", keyCol, order),
						Actual:   fmt.Sprintf("%s after %s at row %d", formatValue(row[ki]), formatValue(p), i+1),
					}
				}
			}
			prev[key] = row[ki]
		}
		return nil
	}
}

// OffsetOf requires offsetCol to be sourceCol shifted down by k rows:
// row i's offset value equals row i-k's source value, and the first k rows
// have no predecessor (NULL). This is what LAG(sourceCol, k) produces.
func OffsetOf(sourceCol, offsetCol string, k int) Expectation {
	if sourceCol == "" || offsetCol == "" {
		return invalid(KindOffsetOf, "source and offset columns are required")
	}
	if k < 1 {
		return invalid(KindOffsetOf, "offset must be at least 1, got %d", k)
	}
	return func(rs *ResultSet) error {
		si, oi := rs.ColumnIndex(sourceCol), rs.ColumnIndex(offsetCol)
		if si < 0 {
			return missingColumn(KindOffsetOf, sourceCol, rs)
		}
		if oi < 0 {
			return missingColumn(KindOffsetOf, offsetCol, rs)
		}

		for i, row := range rs.Rows {
			var want any
			if i >= k {
				want = rs.Rows[i-k][si]
			}
			if !valuesEqual(want, row[oi]) {
				return &ExpectationError{
					Kind:     KindOffsetOf,
					Expected: fmt.Sprintf("%s = %s at row %d", offsetCol, formatValue(want), i+1),
					Actual:   formatValue(row[oi]),
				}
			}
		}
		return nil
	}
}

// DistinctGroups requires exactly k rows with pairwise distinct keyCol
// values and an integer countCol in [0, maxCount] on every row.
func DistinctGroups(keyCol, countCol string, k, maxCount int) Expectation {
	if keyCol == "" || countCol == "" {
		return invalid(KindDistinctGroups, "key and count columns are required")
	}
	if k < 0 || maxCount < 0 {
		return invalid(KindDistinctGroups, "groups and max count must be non-negative, got %d and %d", k, maxCount)
	}
	return func(rs *ResultSet) error {
		ki, ci := rs.ColumnIndex(keyCol), rs.ColumnIndex(countCol)
		if ki < 0 {
			return missingColumn(KindDistinctGroups, keyCol, rs)
		}
		if ci < 0 {
			return missingColumn(KindDistinctGroups, countCol, rs)
		}

		if len(rs.Rows) != k {
			return &ExpectationError{
				Kind:     KindDistinctGroups,
				Expected: fmt.Sprintf("%d groups", k),
				Actual:   fmt.Sprintf("%d rows", len(rs.Rows)),
			}
		}

		seen := make(map[string]int, len(rs.Rows))
		for i, row := range rs.Rows {
			key := valueKey(row[ki])
			if prev, dup := seen[key]; dup {
				return &ExpectationError{
					Kind:     KindDistinctGroups,
					Expected: fmt.Sprintf("distinct %s values", keyCol),
					Actual:   fmt.Sprintf("%s repeated at rows %d and %d", formatValue(row[ki]), prev+1, i+1),
				}
			}
			seen[key] = i

			n, ok := integerValue(row[ci])
			if !ok || n < 0 || n > int64(maxCount) {
				return &ExpectationError{
					Kind:     KindDistinctGroups,
					Expected: fmt.Sprintf("%s in [0, %d]", countCol, maxCount),
					Actual:   fmt.Sprintf("%s at row %d", formatValue(row[ci]), i+1),
				}
			}
		}
		return nil
	}
}

func missingColumn(kind, name string, rs *ResultSet) *ExpectationError {
	return &ExpectationError{
		Kind:     kind,
		Expected: fmt.Sprintf("column %q", name),
		Actual:   fmt.Sprintf("columns %v", rs.Columns),
	}
}

// numericValue returns v as a float64 if it is a number.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// integerValue returns v as an int64 if it is an integral number.
func integerValue(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		if n == math.Trunc(n) && !math.IsInf(n, 0) {
			return int64(n), true
		}
	}
	return 0, false
}

// valuesEqual compares two normalized values. Numbers compare by value
// regardless of integer or real representation.
func valuesEqual(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}
	if e, ok := numericValue(expected); ok {
		a, ok := numericValue(actual)
		return ok && e == a
	}
	return expected == actual
}

// compareValues orders two normalized values the way SQLite does:
// NULL < numbers < text.
func compareValues(a, b any) int {
	rank := func(v any) int {
		switch v.(type) {
		case nil:
			return 0
		case int64, float64:
			return 1
		default:
			return 2
		}
	}
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case 0:
		return 0
	case 1:
		x, _ := numericValue(a)
		y, _ := numericValue(b)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

// valueKey maps a value to a grouping key. Numerically equal values share
// a key.
func valueKey(v any) string {
	if v == nil {
		return "\x00null"
	}
	if f, ok := numericValue(v); ok {
		return fmt.Sprintf("n:%v", f)
	}
	return fmt.Sprintf("s:%v", v)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return fmt.Sprintf("%q", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

func formatValues(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = formatValue(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
