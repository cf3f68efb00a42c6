package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlconform/internal/harness"
	"github.com/roach88/sqlconform/internal/store"
)

func loadTestConfig(t *testing.T, workDir string, options ...ConfigLoaderOption) (*Config, error) {
	t.Helper()
	options = append([]ConfigLoaderOption{WithWorkDir(workDir)}, options...)
	return NewConfigLoader(viper.New(), options...).Load()
}

func TestConfigLoader_Defaults(t *testing.T) {
	cfg, err := loadTestConfig(t, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, store.DriverSQLite3, cfg.Driver)
	assert.Equal(t, string(harness.IsolationShared), cfg.Isolation)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Empty(t, cfg.Fixture.Path)
	assert.Empty(t, cfg.Suites)
	assert.False(t, cfg.Builtin)
	assert.Empty(t, cfg.ConfigFileUsed)
}

func TestConfigLoader_ConfigFile(t *testing.T) {
	workDir := t.TempDir()
	config := `
fixture:
  path: data/train.csv
  table: superstore
  delimiter: ";"
  encoding: latin-1
  date_layouts: ["2/1/2006"]
  types:
    Postal Code: text
driver: sqlite
isolation: per-case
suites:
  - suites
builtin: true
filter: "rank*"
columns:
  sales: Amount
  categories: [Technology]
log:
  file: logs/run.log
  format: json
  debug: true
`
	configPath := filepath.Join(workDir, "sqlconform.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0644))

	cfg, err := loadTestConfig(t, workDir)
	require.NoError(t, err)

	assert.Equal(t, configPath, cfg.ConfigFileUsed)
	assert.Equal(t, filepath.Join(workDir, "data/train.csv"), cfg.Fixture.Path)
	assert.Equal(t, "superstore", cfg.Fixture.Table)
	assert.Equal(t, "latin-1", cfg.Fixture.Encoding)
	assert.Equal(t, []string{"2/1/2006"}, cfg.Fixture.DateLayouts)
	assert.Equal(t, "text", cfg.Fixture.Types["postal code"], "viper lower-cases map keys")
	assert.Equal(t, store.DriverSQLite, cfg.Driver)
	assert.Equal(t, "per-case", cfg.Isolation)
	assert.Equal(t, []string{filepath.Join(workDir, "suites")}, cfg.Suites)
	assert.True(t, cfg.Builtin)
	assert.Equal(t, "rank*", cfg.Filter)
	assert.Equal(t, filepath.Join(workDir, "logs/run.log"), cfg.Log.File)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Log.Debug)

	src, err := cfg.Fixture.Source()
	require.NoError(t, err)
	assert.Equal(t, ';', src.Delimiter)

	cols := cfg.Columns.BuiltinColumns()
	assert.Equal(t, "Amount", cols.Sales)
	assert.Equal(t, "Customer ID", cols.CustomerID, "unset columns keep their defaults")
	assert.Equal(t, []string{"Technology"}, cols.Categories)
}

func TestConfigLoader_OnlyFilePathsResolveAgainstConfigFile(t *testing.T) {
	workDir := t.TempDir()
	config := "fixture:\n  path: data/train.csv\nsuites:\n  - suites\nlog:\n  file: logs/run.log\n"
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "sqlconform.yaml"), []byte(config), 0644))

	t.Setenv("SQLCONFORM_FIXTURE_PATH", "env/sales.csv")
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.StringSlice("suite", nil, "")
	require.NoError(t, flags.Set("suite", "local/suites"))

	cfg, err := loadTestConfig(t, workDir, WithFlag("suites", flags.Lookup("suite")))
	require.NoError(t, err)

	assert.Equal(t, "env/sales.csv", cfg.Fixture.Path, "environment values stay relative to the working directory")
	assert.Equal(t, []string{"local/suites"}, cfg.Suites, "flag values stay relative to the working directory")
	assert.Equal(t, filepath.Join(workDir, "logs/run.log"), cfg.Log.File)
}

func TestConfigLoader_ExplicitFileMissing(t *testing.T) {
	_, err := loadTestConfig(t, t.TempDir(), WithConfigFile(filepath.Join(t.TempDir(), "nope.yaml")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestConfigLoader_MalformedFile(t *testing.T) {
	workDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "sqlconform.yaml"), []byte("driver: [unclosed\n"), 0644))

	_, err := loadTestConfig(t, workDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestConfigLoader_Precedence(t *testing.T) {
	workDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "sqlconform.yaml"), []byte("filter: from-file\n"), 0644))

	cfg, err := loadTestConfig(t, workDir)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Filter)

	t.Setenv("SQLCONFORM_FILTER", "from-env")
	cfg, err = loadTestConfig(t, workDir)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Filter)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("filter", "", "")
	cfg, err = loadTestConfig(t, workDir, WithFlag("filter", flags.Lookup("filter")))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Filter, "an unset flag does not override")

	require.NoError(t, flags.Set("filter", "from-flag"))
	cfg, err = loadTestConfig(t, workDir, WithFlag("filter", flags.Lookup("filter")))
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.Filter)
}

func TestConfigLoader_NestedEnvKeys(t *testing.T) {
	t.Setenv("SQLCONFORM_FIXTURE_ENCODING", "windows-1252")
	t.Setenv("SQLCONFORM_LOG_DEBUG", "true")

	cfg, err := loadTestConfig(t, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "windows-1252", cfg.Fixture.Encoding)
	assert.True(t, cfg.Log.Debug)
}

func TestConfigLoader_DotenvDoesNotOverrideEnvironment(t *testing.T) {
	workDir := t.TempDir()
	dotenv := "SQLCONFORM_DRIVER=sqlite\nSQLCONFORM_ISOLATION=per-case\n"
	require.NoError(t, os.WriteFile(filepath.Join(workDir, DotenvFile), []byte(dotenv), 0644))
	t.Setenv("SQLCONFORM_DRIVER", "sqlite3")
	t.Cleanup(func() { os.Unsetenv("SQLCONFORM_ISOLATION") })

	cfg, err := loadTestConfig(t, workDir)
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", cfg.Driver)
	assert.Equal(t, "per-case", cfg.Isolation)
}

func TestConfigLoader_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		wantErr string
	}{
		{"driver", "driver: postgres\n", "driver: unsupported driver"},
		{"isolation", "isolation: snapshot\n", "isolation: unknown isolation"},
		{"filter", "filter: \"[\"\n", "filter: invalid filter"},
		{"log_format", "log:\n  format: xml\n", "log.format: must be text or json"},
		{"fixture_type", "fixture:\n  types:\n    amount: money\n", "fixture.types.amount: unknown column type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workDir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(workDir, "sqlconform.yaml"), []byte(tt.config), 0644))

			_, err := loadTestConfig(t, workDir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config: "+tt.wantErr)
		})
	}
}

func TestFixtureConfig_Source(t *testing.T) {
	tests := []struct {
		name      string
		delimiter string
		want      rune
		wantErr   bool
	}{
		{"default", "", 0, false},
		{"semicolon", ";", ';', false},
		{"escaped_tab", `\t`, '\t', false},
		{"literal_tab", "\t", '\t', false},
		{"too_long", ";;", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := FixtureConfig{Path: "x.csv", Delimiter: tt.delimiter}.Source()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "single character")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, src.Delimiter)
			assert.Equal(t, "x.csv", src.Path)
		})
	}
}

func TestColumnsConfig_Defaults(t *testing.T) {
	assert.Equal(t, harness.DefaultBuiltinColumns(), ColumnsConfig{}.BuiltinColumns())
}
