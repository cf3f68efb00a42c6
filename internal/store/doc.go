// Package store provides the transient SQLite backend a conformance run
// queries against.
//
// A Store is one private in-memory database. It is created empty by Open,
// populated once by CreateTable, and then handed out as read-only views:
// every View is a dedicated connection with query_only enabled, so no case
// can alter the fixture another case will see.
//
// # Drivers
//
// Two database/sql drivers are linked in and selected by name:
//   - "sqlite3": github.com/mattn/go-sqlite3 (cgo, the default)
//   - "sqlite":  modernc.org/sqlite (pure Go)
//
// Both embed a SQLite new enough for window functions and recursive CTEs,
// so a conformance suite can be pointed at either and the reports compared.
//
// # Errors
//
// IsUnsupportedFeature separates "the engine does not understand this
// construct" (syntax errors, unknown functions) from ordinary query
// failures, using the driver's result code where available.
package store
