package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess    = 0 // Every case passed
	ExitFailure    = 1 // A case failed, or the run could not complete (config, fixture, suite)
	ExitUsageError = 2 // The command line itself is wrong (unknown flag, invalid --format)
)

// Output formats.
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatTable = "table"
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitUsageError)
	Message string // Error message
	Err     error  // Underlying error (optional)

	// Reported is set when the command already wrote the error to its
	// output, so main should not print it again.
	Reported bool
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// IsReported reports whether err was already written to the command's
// output.
func IsReported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.Reported
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil and ExitFailure if the error is not an
// ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
	RunID  string    `json:"run_id,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E002", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// IsJSON reports whether output is machine-readable.
func (f *OutputFormatter) IsJSON() bool {
	return f.Format == FormatJSON
}

// Success outputs a successful result in the configured format. Text and
// table formats print data as-is.
func (f *OutputFormatter) Success(data any) error {
	return f.SuccessWithRun("", data)
}

// SuccessWithRun is Success with the run ID attached to the JSON
// envelope.
func (f *OutputFormatter) SuccessWithRun(runID string, data any) error {
	if f.IsJSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
			RunID:  runID,
		})
	}

	fmt.Fprint(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.IsJSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable errors go to the diagnostic writer
	w := f.GetErrWriter()
	fmt.Fprintf(w, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(w, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// loadErrorExit reports a LoadError in the configured format and returns
// an ExitFailure.
func loadErrorExit(f *OutputFormatter, loadErr *LoadError) error {
	var details any
	if loadErr.Path != "" || loadErr.Pos.IsValid() {
		d := map[string]any{}
		if loadErr.Path != "" {
			d["path"] = loadErr.Path
		}
		if loadErr.Pos.IsValid() {
			d["line"] = loadErr.Pos.Line()
			d["column"] = loadErr.Pos.Column()
		}
		details = d
	}
	return reportedError(f, ExitFailure, loadErr.Code, loadErr.Message, details)
}

// reportedError writes an error through the formatter and returns an
// ExitError marked as already reported.
func reportedError(f *OutputFormatter, exitCode int, code, message string, details any) error {
	if err := f.Error(code, message, details); err != nil {
		return err
	}
	return &ExitError{Code: exitCode, Message: message, Reported: true}
}
