package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/sqlconform/internal/fixture"
	"github.com/roach88/sqlconform/internal/harness"
	"github.com/roach88/sqlconform/internal/logger"
	"github.com/roach88/sqlconform/internal/store"
)

const (
	// AppSlug names the config file, the XDG config directory and the
	// environment prefix (upper-cased).
	AppSlug = "sqlconform"

	// DotenvFile is loaded from the working directory before environment
	// variables are bound. Variables already set in the environment win.
	DotenvFile = ".env"
)

// Config is the resolved configuration of a run.
type Config struct {
	Fixture   FixtureConfig `mapstructure:"fixture"`
	Driver    string        `mapstructure:"driver"`
	Isolation string        `mapstructure:"isolation"`
	Suites    []string      `mapstructure:"suites"`
	Builtin   bool          `mapstructure:"builtin"`
	Columns   ColumnsConfig `mapstructure:"columns"`
	Filter    string        `mapstructure:"filter"`
	Log       LogConfig     `mapstructure:"log"`

	// ConfigFileUsed is the config file that was read, empty if none.
	ConfigFileUsed string `mapstructure:"-"`
}

// FixtureConfig selects and describes the dataset.
type FixtureConfig struct {
	Path        string            `mapstructure:"path"`
	Table       string            `mapstructure:"table"`
	Format      string            `mapstructure:"format"`
	Delimiter   string            `mapstructure:"delimiter"`
	Encoding    string            `mapstructure:"encoding"`
	DateLayouts []string          `mapstructure:"date_layouts"`
	Types       map[string]string `mapstructure:"types"`
}

// ColumnsConfig maps the built-in cases onto the fixture's column names.
type ColumnsConfig struct {
	CustomerName string   `mapstructure:"customer_name"`
	CustomerID   string   `mapstructure:"customer_id"`
	Category     string   `mapstructure:"category"`
	Sales        string   `mapstructure:"sales"`
	OrderDate    string   `mapstructure:"order_date"`
	Categories   []string `mapstructure:"categories"`
}

// LogConfig configures the run logger.
type LogConfig struct {
	File   string `mapstructure:"file"`
	Format string `mapstructure:"format"`
	Debug  bool   `mapstructure:"debug"`
}

// Source converts the fixture section into a fixture.Source.
func (c FixtureConfig) Source() (fixture.Source, error) {
	src := fixture.Source{
		Path:        c.Path,
		Table:       c.Table,
		Format:      c.Format,
		Encoding:    c.Encoding,
		DateLayouts: c.DateLayouts,
		Types:       c.Types,
	}
	if c.Delimiter != "" {
		delim := c.Delimiter
		if delim == `\t` {
			delim = "\t"
		}
		r, size := utf8.DecodeRuneInString(delim)
		if size != len(delim) {
			return src, fmt.Errorf("fixture.delimiter must be a single character, got %q", c.Delimiter)
		}
		src.Delimiter = r
	}
	return src, nil
}

// BuiltinColumns converts the columns section, falling back to the
// defaults for any column left unset. An empty categories list keeps the
// default categories; use a config file to clear them.
func (c ColumnsConfig) BuiltinColumns() harness.BuiltinColumns {
	cols := harness.DefaultBuiltinColumns()
	setIfNotEmpty(&cols.CustomerName, c.CustomerName)
	setIfNotEmpty(&cols.CustomerID, c.CustomerID)
	setIfNotEmpty(&cols.Category, c.Category)
	setIfNotEmpty(&cols.Sales, c.Sales)
	setIfNotEmpty(&cols.OrderDate, c.OrderDate)
	if len(c.Categories) > 0 {
		cols.Categories = c.Categories
	}
	return cols
}

func setIfNotEmpty(target *string, value string) {
	if value != "" {
		*target = value
	}
}

// ConfigLoader resolves a Config from defaults, an optional config file,
// a .env file, SQLCONFORM_* environment variables and bound flags, in
// increasing order of precedence.
type ConfigLoader struct {
	v          *viper.Viper
	configFile string
	workDir    string
	flags      map[string]*pflag.Flag
}

// ConfigLoaderOption configures a ConfigLoader.
type ConfigLoaderOption func(*ConfigLoader)

// WithConfigFile reads exactly this file instead of searching for one.
// A missing file is an error.
func WithConfigFile(configFile string) ConfigLoaderOption {
	return func(l *ConfigLoader) {
		l.configFile = configFile
	}
}

// WithWorkDir sets where sqlconform.yaml and .env are looked up.
// Defaults to the process working directory.
func WithWorkDir(dir string) ConfigLoaderOption {
	return func(l *ConfigLoader) {
		l.workDir = dir
	}
}

// WithFlag binds a command flag to a config key. The flag only overrides
// the key when it was set on the command line.
func WithFlag(key string, flag *pflag.Flag) ConfigLoaderOption {
	return func(l *ConfigLoader) {
		if flag != nil {
			l.flags[key] = flag
		}
	}
}

// NewConfigLoader creates a loader around v.
func NewConfigLoader(v *viper.Viper, options ...ConfigLoaderOption) *ConfigLoader {
	loader := &ConfigLoader{v: v, flags: make(map[string]*pflag.Flag)}
	for _, opt := range options {
		opt(loader)
	}
	return loader
}

// Load reads configuration files, applies defaults and environment
// overrides, and returns a validated Config.
func (l *ConfigLoader) Load() (*Config, error) {
	workDir := l.workDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		workDir = wd
	}

	if err := loadDotenv(filepath.Join(workDir, DotenvFile)); err != nil {
		return nil, err
	}

	l.configureViper(workDir)
	l.setViperDefaultValues()
	for key, flag := range l.flags {
		if err := l.v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", flag.Name, err)
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.ConfigFileUsed = l.v.ConfigFileUsed()

	l.resolvePaths(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

var envKeyReplacer = strings.NewReplacer(".", "_", "-", "_")

func (l *ConfigLoader) configureViper(workDir string) {
	if l.configFile == "" {
		l.v.AddConfigPath(workDir)
		l.v.AddConfigPath(filepath.Join(xdg.ConfigHome, AppSlug))
		l.v.SetConfigName(AppSlug)
	} else {
		l.v.SetConfigFile(l.configFile)
	}
	l.v.SetConfigType("yaml")
	l.v.SetEnvPrefix(strings.ToUpper(AppSlug))
	l.v.SetEnvKeyReplacer(envKeyReplacer)
	l.v.AutomaticEnv()
}

// setViperDefaultValues registers every key so that AutomaticEnv also
// applies to keys no config file mentions.
func (l *ConfigLoader) setViperDefaultValues() {
	// Fixture
	l.v.SetDefault("fixture.path", "")
	l.v.SetDefault("fixture.table", "")
	l.v.SetDefault("fixture.format", "")
	l.v.SetDefault("fixture.delimiter", "")
	l.v.SetDefault("fixture.encoding", "")
	l.v.SetDefault("fixture.date_layouts", []string{})

	// Run
	l.v.SetDefault("driver", store.DriverSQLite3)
	l.v.SetDefault("isolation", string(harness.IsolationShared))
	l.v.SetDefault("suites", []string{})
	l.v.SetDefault("builtin", false)
	l.v.SetDefault("filter", "")

	// Built-in case columns
	l.v.SetDefault("columns.customer_name", "")
	l.v.SetDefault("columns.customer_id", "")
	l.v.SetDefault("columns.category", "")
	l.v.SetDefault("columns.sales", "")
	l.v.SetDefault("columns.order_date", "")
	l.v.SetDefault("columns.categories", []string{})

	// Logging
	l.v.SetDefault("log.file", "")
	l.v.SetDefault("log.format", "text")
	l.v.SetDefault("log.debug", false)
}

// resolvePaths makes relative paths read from the config file relative
// to that file. Values from flags or the environment stay relative to the
// working directory.
func (l *ConfigLoader) resolvePaths(c *Config) {
	if c.ConfigFileUsed == "" {
		return
	}
	base := filepath.Dir(c.ConfigFileUsed)
	resolve := func(key, p string) string {
		if p == "" || filepath.IsAbs(p) || !l.fromFile(key) {
			return p
		}
		return filepath.Join(base, p)
	}

	c.Fixture.Path = resolve("fixture.path", c.Fixture.Path)
	for i, s := range c.Suites {
		c.Suites[i] = resolve("suites", s)
	}
	c.Log.File = resolve("log.file", c.Log.File)
}

// fromFile reports whether the effective value of key was read from the
// config file rather than overridden by a flag or environment variable.
func (l *ConfigLoader) fromFile(key string) bool {
	if !l.v.InConfig(key) {
		return false
	}
	if flag, ok := l.flags[key]; ok && flag.Changed {
		return false
	}
	if value, ok := os.LookupEnv(envKey(key)); ok && value != "" {
		return false
	}
	return true
}

// envKey returns the environment variable AutomaticEnv consults for key.
func envKey(key string) string {
	return strings.ToUpper(AppSlug) + "_" + strings.ToUpper(envKeyReplacer.Replace(key))
}

func (c *Config) validate() error {
	if !store.IsSupportedDriver(c.Driver) {
		return fmt.Errorf("driver: unsupported driver %q: must be one of %v", c.Driver, store.SupportedDrivers)
	}
	if _, err := harness.ParseIsolation(c.Isolation); err != nil {
		return fmt.Errorf("isolation: %w", err)
	}
	if err := harness.ValidateFilter(c.Filter); err != nil {
		return fmt.Errorf("filter: %w", err)
	}
	if !logger.ValidFormat(c.Log.Format) {
		return fmt.Errorf("log.format: must be text or json, got %q", c.Log.Format)
	}
	for name, typ := range c.Fixture.Types {
		if _, err := fixture.ParseType(typ); err != nil {
			return fmt.Errorf("fixture.types.%s: %w", name, err)
		}
	}
	return nil
}

// loadDotenv loads path into the environment if it exists.
func loadDotenv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load dotenv file %s: %w", path, err)
	}
	return nil
}
