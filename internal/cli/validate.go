package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationError is one problem found in a suite file.
type ValidationError struct {
	Path    string `json:"path,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// SuiteSummary describes a suite that passed validation.
type SuiteSummary struct {
	Path  string   `json:"path"`
	Name  string   `json:"name"`
	Cases []string `json:"cases"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Suites []SuiteSummary    `json:"suites"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <suite>...",
		Short: "Validate suite files without running them",
		Long: `Parse and check YAML and CUE suite files without loading a fixture.

Reports unknown fields, missing case names or queries, duplicate case
names (also across files) and expectations missing their arguments.
Directories are searched recursively for .yaml, .yml and .cue files.

Exit codes:
  0 - All suites valid
  1 - One or more suites invalid, or a path could not be read
  2 - Usage error (unknown flag, invalid --format)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := LoadSuites(paths, LoadModeCollectAll)

	// Path errors (not found, nothing to validate) stop before validation
	for _, err := range loadErrors {
		var loadErr *LoadError
		if errors.As(err, &loadErr) && isPathError(loadErr.Code) {
			return loadErrorExit(formatter, loadErr)
		}
	}

	formatter.VerboseLog("Found %d suite file(s)", loadResult.FileCount)

	var validationErrors []ValidationError
	for _, err := range loadErrors {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			validationErrors = append(validationErrors, ValidationError{
				Path:    loadErr.Path,
				Code:    loadErr.Code,
				Message: loadErr.Message,
				Line:    getLineFromLoadError(loadErr),
			})
			continue
		}
		validationErrors = append(validationErrors, ValidationError{Code: ErrCodeGeneric, Message: err.Error()})
	}
	validationErrors = append(validationErrors, duplicateCaseErrors(loadResult)...)

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, loadResult, validationErrors)
	}
	return outputValidateSuccess(formatter, loadResult)
}

func isPathError(code string) bool {
	return code == ErrCodeNotFound || code == ErrCodeScanError || code == ErrCodeNoFiles
}

// duplicateCaseErrors reports case names declared by more than one suite
// file. A run registers all suites into one runner, which rejects them.
func duplicateCaseErrors(result *LoadResult) []ValidationError {
	var errs []ValidationError
	firstSeen := make(map[string]string)
	for _, s := range result.Suites {
		for _, c := range s.Suite.Cases {
			if prev, dup := firstSeen[c.Name]; dup {
				errs = append(errs, ValidationError{
					Path:    s.Path,
					Code:    ErrCodeInvalidSuite,
					Message: fmt.Sprintf("duplicate case name %q (also in %s)", c.Name, prev),
				})
				continue
			}
			firstSeen[c.Name] = s.Path
		}
	}
	return errs
}

// getLineFromLoadError extracts the line number of a CUE error position.
func getLineFromLoadError(err *LoadError) int {
	if err.Pos.IsValid() {
		return err.Pos.Line()
	}
	return 0
}

func summarize(result *LoadResult) []SuiteSummary {
	summaries := make([]SuiteSummary, 0, len(result.Suites))
	for _, s := range result.Suites {
		names := make([]string, len(s.Suite.Cases))
		for i, c := range s.Suite.Cases {
			names[i] = c.Name
		}
		summaries = append(summaries, SuiteSummary{Path: s.Path, Name: s.Suite.Name, Cases: names})
	}
	return summaries
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result *LoadResult) error {
	if formatter.IsJSON() {
		return formatter.Success(ValidationResult{Valid: true, Suites: summarize(result)})
	}

	for _, s := range summarize(result) {
		fmt.Fprintf(formatter.Writer, "✓ %s: %s (%d cases)\n", s.Path, s.Name, len(s.Cases))
	}
	fmt.Fprintln(formatter.Writer, "✓ All suites valid")
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, result *LoadResult, errs []ValidationError) error {
	// Validation failures = exit code 1 (test/validation failure)
	exitErr := &ExitError{
		Code:     ExitFailure,
		Message:  fmt.Sprintf("validation failed with %d error(s)", len(errs)),
		Reported: true,
	}

	if formatter.IsJSON() {
		response := CLIResponse{
			Status: "error",
			Data: ValidationResult{
				Valid:  false,
				Suites: summarize(result),
				Errors: errs,
			},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return exitErr
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		switch {
		case err.Path != "" && err.Line > 0:
			fmt.Fprintf(formatter.Writer, "%s line %d\n", err.Path, err.Line)
		case err.Path != "":
			fmt.Fprintln(formatter.Writer, err.Path)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	return exitErr
}
