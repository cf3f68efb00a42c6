package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validCUESuite = `
name: "sequences"
cases: [
	{
		name:  "count_to_three"
		query: "WITH RECURSIVE seq(n) AS (SELECT 1 UNION ALL SELECT n + 1 FROM seq WHERE n < 3) SELECT n FROM seq"
		expect: [{type: "row_count", count: 3}]
	},
]
`

func executeValidate(t *testing.T, format string, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: format})
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestValidateCommand_ValidSuites(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "passing.yaml"), []byte(passingSuiteYAML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sequences.cue"), []byte(validCUESuite), 0644))

	out, _, err := executeValidate(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "passing.yaml: passing (1 cases)")
	assert.Contains(t, out, "sequences.cue: sequences (1 cases)")
	assert.Contains(t, out, "✓ All suites valid")
}

func TestValidateCommand_ValidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(mixedSuiteYAML), 0644))

	out, _, err := executeValidate(t, "json", path)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	require.Len(t, resp.Data.Suites, 1)
	assert.Equal(t, "mixed", resp.Data.Suites[0].Name)
	assert.Equal(t, []string{"all_rows", "too_many", "bad_syntax"}, resp.Data.Suites[0].Cases)
}

func TestValidateCommand_InvalidSuitesCollectsAll(t *testing.T) {
	dir := t.TempDir()
	unknownField := "name: typo\ncases:\n  - name: x\n    query: SELECT 1\n    expext: []\n"
	missingQuery := "name: empty\ncases:\n  - name: x\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_typo.yaml"), []byte(unknownField), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_empty.yaml"), []byte(missingQuery), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c_passing.yaml"), []byte(passingSuiteYAML), 0644))

	out, _, err := executeValidate(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, IsReported(err))
	assert.Contains(t, err.Error(), "2 error(s)")

	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "a_typo.yaml")
	assert.Contains(t, out, ErrCodeLoadFailed+": failed to parse YAML")
	assert.Contains(t, out, "b_empty.yaml")
	assert.Contains(t, out, ErrCodeInvalidSuite+": invalid suite: cases[0]: query is required")
}

func TestValidateCommand_DuplicateCasesAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	other := "name: other\ncases:\n  - name: categories\n    query: SELECT 1\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(passingSuiteYAML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte(other), 0644))

	out, _, err := executeValidate(t, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 1)
	assert.Equal(t, filepath.Join(dir, "b.yaml"), resp.Data.Errors[0].Path)
	assert.Contains(t, resp.Data.Errors[0].Message, `duplicate case name "categories"`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidSuite, resp.Error.Code)
}

func TestValidateCommand_CUEErrorHasLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.cue")
	broken := "name: \"broken\"\ncases: [\n\t{name: \"x\", query: \"SELECT 1\", limit: 3},\n]\n"
	require.NoError(t, os.WriteFile(path, []byte(broken), 0644))

	out, _, err := executeValidate(t, "json", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Data ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Errors, 1)
	assert.Equal(t, path, resp.Data.Errors[0].Path)
	assert.Positive(t, resp.Data.Errors[0].Line)
}

func TestValidateCommand_PathErrors(t *testing.T) {
	emptyDir := t.TempDir()

	tests := []struct {
		name     string
		path     string
		wantCode string
	}{
		{"not_found", filepath.Join(emptyDir, "missing.yaml"), ErrCodeNotFound},
		{"no_suite_files", emptyDir, ErrCodeNoFiles},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errOut, err := executeValidate(t, "text", tt.path)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.Contains(t, errOut, "Error ["+tt.wantCode+"]")
		})
	}
}

func TestValidateCommand_RequiresArgs(t *testing.T) {
	_, _, err := executeValidate(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestValidateCommand_ExampleSuites(t *testing.T) {
	out, _, err := executeValidate(t, "text", filepath.Join("..", "..", "examples", "suites"))
	require.NoError(t, err)
	assert.Contains(t, out, "window_functions (3 cases)")
	assert.Contains(t, out, "recursive_ctes (5 cases)")
}
