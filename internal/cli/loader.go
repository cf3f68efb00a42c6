package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/sqlconform/internal/harness"
)

// LoadMode controls how errors are handled during suite loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadedSuite is one parsed suite file.
type LoadedSuite struct {
	Path  string
	Suite *harness.Suite
}

// LoadResult contains the suites loaded from a set of paths.
type LoadResult struct {
	Suites    []LoadedSuite
	FileCount int // Number of suite files found
}

// Cases returns the cases of every loaded suite in load order.
func (r *LoadResult) Cases() []harness.QueryCase {
	var cases []harness.QueryCase
	for _, s := range r.Suites {
		cases = append(cases, s.Suite.QueryCases()...)
	}
	return cases
}

// LoadError represents an error that occurred while loading suites or the
// fixture.
type LoadError struct {
	Code    string
	Message string
	Path    string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSuites loads every suite file named by paths. A path may be a file
// or a directory, which is searched recursively for suite files.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadSuites(paths []string, mode LoadMode) (*LoadResult, []error) {
	var (
		errs  []error
		files []string
	)

	for _, p := range paths {
		info, err := os.Stat(p)
		if os.IsNotExist(err) {
			errs = append(errs, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("suite path not found: %s", p)})
		} else if err != nil {
			errs = append(errs, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing suite path: %v", err)})
		} else if info.IsDir() {
			found, err := FindSuiteFiles(p)
			switch {
			case err != nil:
				errs = append(errs, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)})
			case len(found) == 0:
				errs = append(errs, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no suite files found in %s", p)})
			default:
				files = append(files, found...)
			}
		} else {
			files = append(files, p)
		}

		if len(errs) > 0 && mode == LoadModeFailFast {
			return nil, errs
		}
	}

	result := &LoadResult{FileCount: len(files)}
	for _, file := range files {
		suite, err := loadSuiteFile(file)
		if err != nil {
			errs = append(errs, convertSuiteError(file, err))
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}
		result.Suites = append(result.Suites, LoadedSuite{Path: file, Suite: suite})
	}

	return result, errs
}

// IsSuiteFile reports whether path has a suite file extension.
func IsSuiteFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".cue":
		return true
	default:
		return false
	}
}

// FindSuiteFiles walks the directory and returns all suite file paths in
// lexical order.
func FindSuiteFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && IsSuiteFile(path) {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

func loadSuiteFile(path string) (*harness.Suite, error) {
	if strings.ToLower(filepath.Ext(path)) == ".cue" {
		return harness.LoadCUESuite(path)
	}
	return harness.LoadSuite(path)
}

// convertSuiteError converts a suite loading error to a LoadError with
// position info when CUE provides one.
func convertSuiteError(path string, err error) *LoadError {
	code := ErrCodeLoadFailed
	if strings.Contains(err.Error(), "invalid suite") {
		code = ErrCodeInvalidSuite
	}

	var cueErr cueerrors.Error
	if errors.As(err, &cueErr) {
		if positions := cueerrors.Positions(cueErr); len(positions) > 0 {
			return &LoadError{Code: code, Message: err.Error(), Path: path, Pos: positions[0]}
		}
	}
	return &LoadError{Code: code, Message: err.Error(), Path: path}
}

// convertFixtureError converts a fixture loading error to a LoadError.
// The fixture error already names the file.
func convertFixtureError(err error) *LoadError {
	if errors.Is(err, os.ErrNotExist) {
		return &LoadError{Code: ErrCodeNotFound, Message: err.Error()}
	}
	return &LoadError{Code: ErrCodeFixture, Message: err.Error()}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeScanError    = "E002" // Directory scan error
	ErrCodeNoFiles      = "E003" // No suite files found
	ErrCodeLoadFailed   = "E004" // Suite parse failed
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeInvalidSuite = "E006" // Suite failed validation
	ErrCodeWriteFailed  = "E007" // File write error

	// Run errors
	ErrCodeConfig    = "E101" // Invalid configuration
	ErrCodeFixture   = "E102" // Fixture could not be loaded
	ErrCodeNoFixture = "E103" // No fixture configured
	ErrCodeBuiltin   = "E104" // Built-in cases do not fit the fixture
	ErrCodeRegister  = "E105" // Case registration failed
	ErrCodeSession   = "E106" // Fixture could not be materialized
)
