package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sqlconform/internal/store"
)

// Suite is a file of declarative query cases.
type Suite struct {
	// Name identifies the suite in logs.
	Name string `yaml:"name" json:"name"`

	// Description explains what the suite covers.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Cases are registered in file order.
	Cases []CaseSpec `yaml:"cases" json:"cases"`
}

// CaseSpec is the file form of a QueryCase.
type CaseSpec struct {
	Name        string       `yaml:"name" json:"name"`
	Description string       `yaml:"description,omitempty" json:"description,omitempty"`
	Query       string       `yaml:"query" json:"query"`
	Expect      []ExpectSpec `yaml:"expect,omitempty" json:"expect,omitempty"`
}

// ExpectSpec is the file form of an Expectation. Type selects the
// predicate; the remaining fields are its arguments:
//
//   - non_empty: (none)
//   - has_column: column
//   - row_count, max_rows: count
//   - column_values: column, values
//   - rank_within_partition: partition, column
//   - sorted_within_partition: column, optional partition and descending
//   - offset_of: source, column, offset (default 1)
//   - distinct_groups: key, column, groups, max
type ExpectSpec struct {
	Type       string `yaml:"type" json:"type"`
	Column     string `yaml:"column,omitempty" json:"column,omitempty"`
	Partition  string `yaml:"partition,omitempty" json:"partition,omitempty"`
	Source     string `yaml:"source,omitempty" json:"source,omitempty"`
	Key        string `yaml:"key,omitempty" json:"key,omitempty"`
	Count      *int   `yaml:"count,omitempty" json:"count,omitempty"`
	Offset     int    `yaml:"offset,omitempty" json:"offset,omitempty"`
	Groups     *int   `yaml:"groups,omitempty" json:"groups,omitempty"`
	Max        *int   `yaml:"max,omitempty" json:"max,omitempty"`
	Descending bool   `yaml:"descending,omitempty" json:"descending,omitempty"`
	Values     []any  `yaml:"values,omitempty" json:"values,omitempty"`
}

// LoadSuite reads and parses a suite YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or fails validation.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}
	return ParseSuite(data)
}

// ParseSuite parses suite YAML with strict field checking.
func ParseSuite(data []byte) (*Suite, error) {
	var suite Suite
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&suite); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := ValidateSuite(&suite); err != nil {
		return nil, fmt.Errorf("invalid suite: %w", err)
	}
	return &suite, nil
}

// ValidateSuite checks that required fields are present and every
// expectation has the arguments its type needs.
func ValidateSuite(s *Suite) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Cases) == 0 {
		return fmt.Errorf("cases list is required and must be non-empty")
	}

	seen := make(map[string]int, len(s.Cases))
	for i, c := range s.Cases {
		if c.Name == "" {
			return fmt.Errorf("cases[%d]: name is required", i)
		}
		if prev, dup := seen[c.Name]; dup {
			return fmt.Errorf("cases[%d]: duplicate case name %q (first at cases[%d])", i, c.Name, prev)
		}
		seen[c.Name] = i
		if c.Query == "" {
			return fmt.Errorf("cases[%d]: query is required", i)
		}
		if err := store.CheckSingleStatement(c.Query); err != nil {
			return fmt.Errorf("cases[%d]: %w", i, err)
		}
		for j := range c.Expect {
			if err := validateExpect(i, j, &c.Expect[j]); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateExpect validates a single expectation based on its type.
func validateExpect(caseIdx, idx int, e *ExpectSpec) error {
	prefix := fmt.Sprintf("cases[%d].expect[%d]", caseIdx, idx)
	if e.Type == "" {
		return fmt.Errorf("%s: type is required", prefix)
	}

	switch e.Type {
	case KindNonEmpty:
	case KindHasColumn:
		if e.Column == "" {
			return fmt.Errorf("%s: column is required for %s", prefix, e.Type)
		}
	case KindRowCount, KindMaxRows:
		if e.Count == nil {
			return fmt.Errorf("%s: count is required for %s", prefix, e.Type)
		}
		if *e.Count < 0 {
			return fmt.Errorf("%s: count must be non-negative for %s", prefix, e.Type)
		}
	case KindColumnValues:
		if e.Column == "" {
			return fmt.Errorf("%s: column is required for %s", prefix, e.Type)
		}
		for k, v := range e.Values {
			if !isScalar(v) {
				return fmt.Errorf("%s: values[%d] must be a number, string or null, got %T", prefix, k, v)
			}
		}
	case KindRankWithinPartition:
		if e.Partition == "" || e.Column == "" {
			return fmt.Errorf("%s: partition and column are required for %s", prefix, e.Type)
		}
	case KindSortedWithinPartition:
		if e.Column == "" {
			return fmt.Errorf("%s: column is required for %s", prefix, e.Type)
		}
	case KindOffsetOf:
		if e.Source == "" || e.Column == "" {
			return fmt.Errorf("%s: source and column are required for %s", prefix, e.Type)
		}
		if e.Offset < 0 {
			return fmt.Errorf("%s: offset must be positive for %s", prefix, e.Type)
		}
	case KindDistinctGroups:
		if e.Key == "" || e.Column == "" {
			return fmt.Errorf("%s: key and column are required for %s", prefix, e.Type)
		}
		if e.Groups == nil || e.Max == nil {
			return fmt.Errorf("%s: groups and max are required for %s", prefix, e.Type)
		}
		if *e.Groups < 0 || *e.Max < 0 {
			return fmt.Errorf("%s: groups and max must be non-negative for %s", prefix, e.Type)
		}
	default:
		return fmt.Errorf("%s: unknown expectation type %q", prefix, e.Type)
	}
	return nil
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool, int, int64, uint64, float64:
		return true
	default:
		return false
	}
}

// Expectation compiles the declared expectation into a predicate. It must
// have passed validation.
func (e ExpectSpec) Expectation() Expectation {
	switch e.Type {
	case KindNonEmpty:
		return NonEmpty()
	case KindHasColumn:
		return HasColumn(e.Column)
	case KindRowCount:
		return RowCount(*e.Count)
	case KindMaxRows:
		return MaxRows(*e.Count)
	case KindColumnValues:
		return ColumnValues(e.Column, e.Values...)
	case KindRankWithinPartition:
		return RankWithinPartition(e.Partition, e.Column)
	case KindSortedWithinPartition:
		return SortedWithinPartition(e.Partition, e.Column, e.Descending)
	case KindOffsetOf:
		offset := e.Offset
		if offset == 0 {
			offset = 1
		}
		return OffsetOf(e.Source, e.Column, offset)
	case KindDistinctGroups:
		return DistinctGroups(e.Key, e.Column, *e.Groups, *e.Max)
	default:
		return invalid(e.Type, "unknown expectation type")
	}
}

// QueryCases compiles the suite into cases ready to register.
func (s *Suite) QueryCases() []QueryCase {
	cases := make([]QueryCase, len(s.Cases))
	for i, c := range s.Cases {
		expect := make([]Expectation, len(c.Expect))
		for j, e := range c.Expect {
			expect[j] = e.Expectation()
		}
		cases[i] = QueryCase{
			Name:        c.Name,
			Description: c.Description,
			Query:       c.Query,
			Expect:      expect,
		}
	}
	return cases
}
