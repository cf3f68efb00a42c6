// Package fixture loads the dataset a conformance run queries.
//
// A fixture is read once from a delimited text file (CSV or TSV, in UTF-8,
// Latin-1 or Windows-1252) or a flat parquet file, typed, and then treated
// as immutable. Column types are inferred from content unless declared:
//
//   - integer: every non-empty value parses as a 64-bit integer
//   - real: every non-empty value parses as a finite float
//   - temporal: every non-empty value parses under one date layout
//   - text: anything else
//
// Empty cells are NULL. Temporal values are rewritten to ISO-8601 text
// (2006-01-02 or 2006-01-02 15:04:05) so SQLite's date functions accept
// them regardless of how the source spelled them.
//
// Load never touches a database; Materialize copies a loaded fixture into a
// store.Store.
package fixture
