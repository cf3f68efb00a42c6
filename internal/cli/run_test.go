package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlconform/internal/testutil"
)

const mixedSuiteYAML = `
name: mixed
cases:
  - name: all_rows
    query: SELECT * FROM sales
    expect:
      - type: row_count
        count: 12
  - name: too_many
    query: SELECT * FROM sales
    expect:
      - type: row_count
        count: 13
  - name: bad_syntax
    query: SELEC 1
`

const passingSuiteYAML = `
name: passing
cases:
  - name: categories
    query: SELECT DISTINCT "Category" FROM sales
    expect:
      - type: row_count
        count: 3
`

// executeRun runs the run command and returns stdout, stderr and the
// command error.
func executeRun(t *testing.T, opts *RunOptions, args ...string) (string, string, error) {
	t.Helper()
	if opts.RootOptions == nil {
		opts.RootOptions = &RootOptions{Format: "text"}
	}
	if opts.workDir == "" {
		opts.workDir = t.TempDir()
	}

	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := newRunCommand(opts)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRun_BuiltinCasesByDefault(t *testing.T) {
	fixturePath := testutil.WriteSalesCSV(t)

	out, _, err := executeRun(t, &RunOptions{}, "--fixture", fixturePath)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ ranking_functions\n")
	assert.Contains(t, out, "✓ lag_lead_functions\n")
	assert.Contains(t, out, "✓ recursive_cte\n")
	assert.Contains(t, out, "✓ cohort_analysis\n")
	assert.Contains(t, out, "4 passed, 0 failed, 4 total\n")
}

func TestRun_SuiteFailuresExitOne(t *testing.T) {
	fixturePath := testutil.WriteSalesCSV(t)
	suitePath := testutil.WriteFile(t, "mixed.yaml", mixedSuiteYAML)

	out, _, err := executeRun(t, &RunOptions{}, "--fixture", fixturePath, "--suite", suitePath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, IsReported(err), "the report already explains the failure")
	assert.Contains(t, err.Error(), "2 of 3 case(s) failed")

	assert.Contains(t, out, "✓ all_rows\n")
	assert.Contains(t, out, "✗ too_many\n  row_count: expected 13 rows, got 12 rows\n")
	assert.Contains(t, out, "✗ bad_syntax\n  unsupported feature:")
	assert.Contains(t, out, "1 passed, 2 failed, 3 total\n")
	assert.NotContains(t, out, "ranking_functions", "suites replace the built-in cases unless --builtin is set")
}

func TestRun_SuiteWithBuiltin(t *testing.T) {
	fixturePath := testutil.WriteSalesCSV(t)
	suitePath := testutil.WriteFile(t, "passing.yaml", passingSuiteYAML)

	out, _, err := executeRun(t, &RunOptions{},
		"--fixture", fixturePath, "--suite", suitePath, "--builtin")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ categories\n")
	assert.Contains(t, out, "✓ ranking_functions\n")
	assert.Contains(t, out, "5 passed, 0 failed, 5 total\n")
}

func TestRun_SuiteDirectory(t *testing.T) {
	fixturePath := testutil.WriteSalesCSV(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "passing.yaml"), []byte(passingSuiteYAML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("not a suite"), 0644))

	out, _, err := executeRun(t, &RunOptions{}, "--fixture", fixturePath, "--suite", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total\n")
}

func TestRun_Filter(t *testing.T) {
	fixturePath := testutil.WriteSalesCSV(t)

	out, _, err := executeRun(t, &RunOptions{}, "--fixture", fixturePath, "--filter", "r*")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ ranking_functions\n")
	assert.Contains(t, out, "✓ recursive_cte\n")
	assert.NotContains(t, out, "cohort_analysis")
	assert.Contains(t, out, "2 passed, 0 failed, 2 total\n")
}

func TestRun_JSONOutput(t *testing.T) {
	fixturePath := testutil.WriteSalesCSV(t)
	suitePath := testutil.WriteFile(t, "mixed.yaml", mixedSuiteYAML)

	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "json"},
		IDGenerator: testutil.NewFixedIDGenerator("run-json"),
	}
	out, _, err := executeRun(t, opts, "--fixture", fixturePath, "--suite", suitePath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string `json:"status"`
		RunID  string `json:"run_id"`
		Data   struct {
			RunID       string `json:"run_id"`
			Table       string `json:"table"`
			FixtureRows int    `json:"fixture_rows"`
			Isolation   string `json:"isolation"`
			Cases       []struct {
				Case   string `json:"case"`
				Status string `json:"status"`
				Reason string `json:"reason"`
				Rows   int    `json:"rows"`
			} `json:"cases"`
			Passed int `json:"passed"`
			Failed int `json:"failed"`
			Total  int `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))

	assert.Equal(t, "ok", resp.Status, "a completed run is a successful command")
	assert.Equal(t, "run-json", resp.RunID)
	assert.Equal(t, "run-json", resp.Data.RunID)
	assert.Equal(t, "sales", resp.Data.Table)
	assert.Equal(t, 12, resp.Data.FixtureRows)
	assert.Equal(t, "shared", resp.Data.Isolation)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 2, resp.Data.Failed)
	assert.Equal(t, 3, resp.Data.Total)

	require.Len(t, resp.Data.Cases, 3)
	assert.Equal(t, "all_rows", resp.Data.Cases[0].Case)
	assert.Equal(t, 12, resp.Data.Cases[0].Rows)
	assert.Equal(t, "fail", resp.Data.Cases[1].Status)
	assert.Equal(t, "row_count: expected 13 rows, got 12 rows", resp.Data.Cases[1].Reason)
}

func TestRun_TableOutput(t *testing.T) {
	fixturePath := testutil.WriteSalesCSV(t)

	opts := &RunOptions{RootOptions: &RootOptions{Format: "table"}}
	out, _, err := executeRun(t, opts, "--fixture", fixturePath)
	require.NoError(t, err)
	assert.Contains(t, out, "CASE")
	assert.Contains(t, out, "ranking_functions")
	assert.Contains(t, out, "✓ pass")
	assert.Contains(t, out, "4 passed, 0 failed, 4 total")
}

func TestRun_CommandErrors(t *testing.T) {
	fixturePath := testutil.WriteSalesCSV(t)
	raggedPath := testutil.WriteFile(t, "ragged.csv", "a,b\n1,2,3\n")
	badSuite := testutil.WriteFile(t, "bad.yaml", "name: bad\ncases:\n  - name: x\n    query: SELECT 1\n    expext: []\n")
	missing := filepath.Join(t.TempDir(), "missing.csv")

	tests := []struct {
		name     string
		args     []string
		wantCode string
	}{
		{"no_fixture", nil, ErrCodeNoFixture},
		{"fixture_not_found", []string{"--fixture", missing}, ErrCodeNotFound},
		{"fixture_ragged", []string{"--fixture", raggedPath}, ErrCodeFixture},
		{"suite_not_found", []string{"--fixture", fixturePath, "--suite", "nope.yaml"}, ErrCodeNotFound},
		{"suite_unknown_field", []string{"--fixture", fixturePath, "--suite", badSuite}, ErrCodeLoadFailed},
		{"bad_isolation", []string{"--fixture", fixturePath, "--isolation", "serializable"}, ErrCodeConfig},
		{"bad_driver", []string{"--fixture", fixturePath, "--driver", "postgres"}, ErrCodeConfig},
		{"bad_filter", []string{"--fixture", fixturePath, "--filter", "[a-"}, ErrCodeConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, errOut, err := executeRun(t, &RunOptions{}, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.True(t, IsReported(err))
			assert.Empty(t, out, "text errors never go to stdout")
			assert.Contains(t, errOut, "Error ["+tt.wantCode+"]")
		})
	}
}

func TestRun_UpdateRequiresGolden(t *testing.T) {
	fixturePath := testutil.WriteSalesCSV(t)

	out, errOut, err := executeRun(t, &RunOptions{Update: true}, "--fixture", fixturePath)
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
	assert.True(t, IsReported(err))
	assert.Empty(t, out)
	assert.Contains(t, errOut, "Error ["+ErrCodeConfig+"]: --update requires --golden")
}

func TestRun_CommandErrorJSON(t *testing.T) {
	opts := &RunOptions{RootOptions: &RootOptions{Format: "json"}}
	out, _, err := executeRun(t, opts)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNoFixture, resp.Error.Code)
}

func TestRun_BuiltinColumnsMissing(t *testing.T) {
	fixturePath := testutil.WriteFile(t, "numbers.csv", "a,b\n1,2\n3,4\n")

	_, errOut, err := executeRun(t, &RunOptions{}, "--fixture", fixturePath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, errOut, "Error ["+ErrCodeBuiltin+"]")
}

func TestRun_PerCaseIsolationPureGoDriver(t *testing.T) {
	fixturePath := testutil.WriteSalesCSV(t)

	out, _, err := executeRun(t, &RunOptions{},
		"--fixture", fixturePath, "--isolation", "per-case", "--driver", "sqlite")
	require.NoError(t, err)
	assert.Contains(t, out, "4 passed, 0 failed, 4 total\n")
}

func TestRun_Golden(t *testing.T) {
	fixturePath := testutil.WriteSalesCSV(t)
	suitePath := testutil.WriteFile(t, "mixed.yaml", mixedSuiteYAML)
	goldenPath := filepath.Join(t.TempDir(), "golden", "mixed.json")

	// Regenerate: the cases still fail, so the exit code stays 1.
	_, _, err := executeRun(t, &RunOptions{Golden: goldenPath, Update: true},
		"--fixture", fixturePath, "--suite", suitePath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	data, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"case": "too_many"`)
	assert.NotContains(t, string(data), "run_id", "snapshots exclude the run identity")

	// Compare against the freshly written snapshot with per-case isolation.
	_, errOut, err := executeRun(t, &RunOptions{Golden: goldenPath},
		"--fixture", fixturePath, "--suite", suitePath, "--isolation", "per-case")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "case(s) failed")
	assert.NotContains(t, errOut, "does not match")

	// A stale snapshot is a failure even when every case passes.
	passingPath := testutil.WriteFile(t, "passing.yaml", passingSuiteYAML)
	out, errOut, err := executeRun(t, &RunOptions{Golden: goldenPath},
		"--fixture", fixturePath, "--suite", passingPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, errOut, "Report does not match golden file")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total", "the report is still printed")
}

func TestRun_GoldenFileMissing(t *testing.T) {
	fixturePath := testutil.WriteSalesCSV(t)
	goldenPath := filepath.Join(t.TempDir(), "absent.json")

	out, errOut, err := executeRun(t, &RunOptions{Golden: goldenPath}, "--fixture", fixturePath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, errOut, "failed to read golden file")
	assert.Empty(t, out)
}

func TestRun_ConfigFileInWorkDir(t *testing.T) {
	workDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "sales.csv"), []byte(testutil.SalesCSV), 0644))
	config := `
fixture:
  path: sales.csv
filter: "cohort_*"
`
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "sqlconform.yaml"), []byte(config), 0644))

	opts := &RunOptions{RootOptions: &RootOptions{Format: "text", workDir: workDir}}
	out, _, err := executeRun(t, opts)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ cohort_analysis\n")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total\n")
}

func TestRun_ExplicitConfigFileResolvesRelativePaths(t *testing.T) {
	configDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "sales.csv"), []byte(testutil.SalesCSV), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "passing.yaml"), []byte(passingSuiteYAML), 0644))
	configPath := filepath.Join(configDir, "conform.yaml")
	config := `
fixture:
  path: sales.csv
suites:
  - passing.yaml
isolation: per-case
`
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0644))

	opts := &RunOptions{RootOptions: &RootOptions{Format: "text", ConfigFile: configPath}}
	out, _, err := executeRun(t, opts)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ categories\n")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total\n")
}

func TestRun_EnvironmentAndFlagPrecedence(t *testing.T) {
	fixturePath := testutil.WriteSalesCSV(t)
	t.Setenv("SQLCONFORM_FIXTURE_PATH", fixturePath)
	t.Setenv("SQLCONFORM_FILTER", "recursive_*")

	out, _, err := executeRun(t, &RunOptions{})
	require.NoError(t, err)
	assert.Contains(t, out, "✓ recursive_cte\n")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total\n")

	out, _, err = executeRun(t, &RunOptions{}, "--filter", "ranking_*")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ ranking_functions\n")
	assert.NotContains(t, out, "recursive_cte")
}

func TestRun_DotenvFile(t *testing.T) {
	fixturePath := testutil.WriteSalesCSV(t)
	workDir := t.TempDir()
	dotenv := "SQLCONFORM_FIXTURE_PATH=" + fixturePath + "\nSQLCONFORM_FILTER=lag_*\n"
	require.NoError(t, os.WriteFile(filepath.Join(workDir, DotenvFile), []byte(dotenv), 0644))
	// godotenv writes the process environment directly.
	t.Cleanup(func() {
		os.Unsetenv("SQLCONFORM_FIXTURE_PATH")
		os.Unsetenv("SQLCONFORM_FILTER")
	})

	opts := &RunOptions{RootOptions: &RootOptions{Format: "text", workDir: workDir}}
	out, _, err := executeRun(t, opts)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ lag_lead_functions\n")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total\n")
}

func TestRun_LogFileAndVerbose(t *testing.T) {
	fixturePath := testutil.WriteSalesCSV(t)
	logPath := filepath.Join(t.TempDir(), "logs", "run.log")

	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "text", Verbose: true, LogFile: logPath},
		IDGenerator: testutil.NewFixedIDGenerator("run-logged"),
	}
	out, errOut, err := executeRun(t, opts, "--fixture", fixturePath, "--filter", "recursive_cte")
	require.NoError(t, err)

	assert.NotContains(t, out, "case passed", "logs never reach stdout")
	assert.Contains(t, errOut, "Loaded fixture")
	assert.Contains(t, errOut, "case passed")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "run_id=run-logged")
	assert.Contains(t, string(data), "case=recursive_cte")
}

func TestRun_QuietWithoutVerbose(t *testing.T) {
	fixturePath := testutil.WriteSalesCSV(t)

	_, errOut, err := executeRun(t, &RunOptions{}, "--fixture", fixturePath)
	require.NoError(t, err)
	assert.Empty(t, errOut)
}

func TestRun_ExampleSuites(t *testing.T) {
	fixturePath := testutil.WriteSalesCSV(t)
	suites := filepath.Join("..", "..", "examples", "suites")

	out, _, err := executeRun(t, &RunOptions{},
		"--fixture", fixturePath, "--table", "train", "--suite", suites)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ monthly_running_total\n")
	assert.Contains(t, out, "✓ category_office_supplies\n")
	assert.Contains(t, out, "8 passed, 0 failed, 8 total\n")
}
