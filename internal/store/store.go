package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverSQLite3 = "sqlite3" // github.com/mattn/go-sqlite3 (cgo)
	DriverSQLite  = "sqlite"  // modernc.org/sqlite (pure Go)
)

// SupportedDrivers lists the drivers accepted by Open.
var SupportedDrivers = []string{DriverSQLite3, DriverSQLite}

// memoryDSN opens a private in-memory database. The pool is pinned to a
// single connection, so the database lives exactly as long as the Store.
const memoryDSN = ":memory:"

// Store is a transient in-memory SQLite database holding one fixture.
// It is the scoped backend resource of a harness run: acquire with Open,
// release with Close.
type Store struct {
	db     *sql.DB
	driver string
}

// Open creates a fresh in-memory database using the named driver.
//
// The database is configured with:
//   - a single pooled connection that is never recycled (the in-memory
//     database is bound to it)
//   - in-memory temp storage
//   - foreign key enforcement
func Open(ctx context.Context, driver string) (*Store, error) {
	if !IsSupportedDriver(driver) {
		return nil, fmt.Errorf("unsupported driver %q: must be one of %v", driver, SupportedDrivers)
	}

	db, err := sql.Open(driver, memoryDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database disappears with its connection, so never let
	// the pool open a second one or retire the first.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

// IsSupportedDriver reports whether name is one of SupportedDrivers.
func IsSupportedDriver(name string) bool {
	for _, d := range SupportedDrivers {
		if d == name {
			return true
		}
	}
	return false
}

// Close closes the database and discards its contents.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Driver returns the database/sql driver name the store was opened with.
func (s *Store) Driver() string {
	return s.driver
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Query executes a query and returns the resulting rows.
// Callers are responsible for closing the returned rows.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

// View acquires a dedicated read-only connection. Any statement that would
// modify the database fails on it. The caller must Close the connection to
// return it to the pool.
func (s *Store) View(ctx context.Context) (*sql.Conn, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set connection read-only: %w", err)
	}
	return conn, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
