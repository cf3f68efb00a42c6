package harness

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// suiteSchema constrains CUE suite files. Definitions are closed, so a
// misspelled field is an error just as in YAML suites.
const suiteSchema = `
#Expect: {
	type:        "non_empty" | "has_column" | "row_count" | "max_rows" | "column_values" | "rank_within_partition" | "sorted_within_partition" | "offset_of" | "distinct_groups"
	column?:     string
	partition?:  string
	source?:     string
	key?:        string
	count?:      int & >=0
	offset?:     int & >=1
	groups?:     int & >=0
	max?:        int & >=0
	descending?: bool
	values?: [...(number | string | bool | null)]
}

#Case: {
	name:         string & !=""
	description?: string
	query:        string & !=""
	expect?: [...#Expect]
}

#Suite: {
	name:         string & !=""
	description?: string
	cases: [...#Case]
}
`

// LoadCUESuite reads a suite written in CUE. The file's top level is
// unified with the suite schema, so CUE's own constraints (and
// references, comprehensions, defaults) may be used to build cases.
func LoadCUESuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}
	return ParseCUESuite(path, data)
}

// ParseCUESuite parses CUE suite source. filename is used in error
// positions.
func ParseCUESuite(filename string, data []byte) (*Suite, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(suiteSchema, cue.Filename("suite_schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("building suite schema: %w", err)
	}

	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse CUE: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Suite")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid suite: %w", err)
	}

	var suite Suite
	if err := unified.Decode(&suite); err != nil {
		return nil, fmt.Errorf("decoding suite: %w", err)
	}

	if err := ValidateSuite(&suite); err != nil {
		return nil, fmt.Errorf("invalid suite: %w", err)
	}
	return &suite, nil
}
