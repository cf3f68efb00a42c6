package fixture

import (
	"fmt"
	"strings"
)

// LoadError reports a fixture that could not be read or typed. It is fatal
// to a run: no case executes against a fixture that failed to load.
type LoadError struct {
	Path   string
	Line   int    // 1-based source line, 0 if not applicable
	Column string // column name, empty if not applicable
	Err    error
}

func (e *LoadError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "load fixture %s", e.Path)
	if e.Line > 0 {
		fmt.Fprintf(&buf, ": line %d", e.Line)
	}
	if e.Column != "" {
		fmt.Fprintf(&buf, ": column %q", e.Column)
	}
	fmt.Fprintf(&buf, ": %v", e.Err)
	return buf.String()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func loadErrorf(path string, format string, args ...any) *LoadError {
	return &LoadError{Path: path, Err: fmt.Errorf(format, args...)}
}
