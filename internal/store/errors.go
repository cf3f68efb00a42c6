package store

import (
	"errors"
	"strings"

	"github.com/mattn/go-sqlite3"
	"modernc.org/sqlite"
)

// sqliteError is SQLITE_ERROR, the primary result code SQLite uses for
// both syntax errors and unknown functions.
const sqliteError = 1

// featureErrorMarkers are message fragments SQLite uses when it cannot
// parse or does not implement a construct.
var featureErrorMarkers = []string{
	"syntax error",
	"no such function",
	"unknown function",
	"not supported",
	"unsupported",
	"misuse of window function",
}

// IsUnsupportedFeature reports whether err is the engine rejecting a query
// construct it does not understand, as opposed to a data or schema error
// such as a missing column.
func IsUnsupportedFeature(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := resultCode(err); ok && code != sqliteError {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range featureErrorMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// resultCode extracts the primary SQLite result code from a driver error.
func resultCode(err error) (int, bool) {
	var mattnErr sqlite3.Error
	if errors.As(err, &mattnErr) {
		return int(mattnErr.Code), true
	}
	var moderncErr *sqlite.Error
	if errors.As(err, &moderncErr) {
		return moderncErr.Code() & 0xff, true
	}
	return 0, false
}
