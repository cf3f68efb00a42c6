// Package harness runs SQL feature-conformance cases against a fixture.
//
// A QueryCase pairs SQL text with expectations, composable predicates over
// the result set. A Runner executes registered cases in registration order,
// each on its own read-only connection handed out by a Session, and
// records pass or fail-with-reason for every case in a Report. A case that
// fails never stops the run:
//
//   - the engine rejecting a construct it does not implement is recorded
//     as "unsupported feature: <engine message>"
//   - any other query error is recorded as "query failed: <message>"
//   - an unmet expectation is recorded with the expectation's message
//
// # Suite Format
//
// Cases can be declared in YAML (strict: unknown fields are errors):
//
//	name: window_functions
//	description: "Window function coverage"
//	cases:
//	  - name: ranking
//	    query: |
//	      SELECT "Category", ROW_NUMBER() OVER (
//	        PARTITION BY "Category" ORDER BY "Sales" DESC) AS row_num
//	      FROM train
//	    expect:
//	      - type: non_empty
//	      - type: rank_within_partition
//	        partition: Category
//	        column: row_num
//
// or in CUE, with the same field names, validated against a closed schema.
//
// # Expectation Types
//
//   - non_empty: at least one row
//   - has_column: a named result column exists
//   - row_count / max_rows: exact or maximum number of rows
//   - column_values: exact ordered values of a column
//   - rank_within_partition: a rank column counts 1, 2, 3, ... per partition
//   - sorted_within_partition: a key column is ordered per partition
//   - offset_of: a column is another column shifted by k rows (LAG)
//   - distinct_groups: k rows with distinct keys and bounded counts
//
// # Isolation
//
// A shared Session materializes the fixture once and gives each case a
// read-only connection to it; a per-case Session materializes a fresh
// database for every case. Either way a case sees the fixture exactly as
// loaded.
package harness
