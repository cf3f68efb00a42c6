package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/sqlconform/internal/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "text" | "json" | "table"
	ConfigFile string // explicit config file; searched for when empty
	LogFile    string // log file, in addition to stderr when verbose

	// workDir overrides the directory config and .env files are looked
	// up in. Tests point it at a temp dir.
	workDir string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{FormatText, FormatJSON, FormatTable}

// NewRootCommand creates the root command for the sqlconform CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sqlconform",
		Short: "sqlconform - SQL feature conformance harness",
		Long: `Check which advanced SQL features an embedded engine supports.

Loads a tabular fixture into an in-memory SQLite database, runs named
query cases against it (window functions, recursive CTEs, grouped
aggregation) and reports which cases pass.`,
		SilenceUsage:  true,
		SilenceErrors: true, // main prints errors that commands have not reported
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitUsageError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Flag parse errors keep the usage exit code; failures past parsing exit 1.
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return NewExitError(ExitUsageError, err.Error())
	})

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", FormatText, "output format (text|json|table)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default: ./sqlconform.yaml, then $XDG_CONFIG_HOME/sqlconform/sqlconform.yaml)")
	cmd.PersistentFlags().StringVar(&opts.LogFile, "log-file", "", "append structured logs to this file")

	// Add subcommands
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadConfig resolves the configuration for a command, binding the given
// flags on top of files and environment.
func (o *RootOptions) loadConfig(flags ...ConfigLoaderOption) (*Config, error) {
	options := []ConfigLoaderOption{WithWorkDir(o.workDir)}
	if o.ConfigFile != "" {
		options = append(options, WithConfigFile(o.ConfigFile))
	}
	options = append(options, flags...)
	return NewConfigLoader(viper.New(), options...).Load()
}

// newLogger builds the run logger. Console logging is on only with
// --verbose; the log file, from --log-file or log.file, always receives
// records. The returned close function releases the file.
func (o *RootOptions) newLogger(cfg LogConfig, stderr io.Writer) (*slog.Logger, func() error, error) {
	opts := []logger.Option{
		logger.WithFormat(cfg.Format),
		logger.WithConsole(stderr),
	}
	if o.Verbose || cfg.Debug {
		opts = append(opts, logger.WithDebug())
	}
	if !o.Verbose {
		opts = append(opts, logger.WithQuiet())
	}

	closeFn := func() error { return nil }
	path := o.LogFile
	if path == "" {
		path = cfg.File
	}
	if path != "" {
		f, err := logger.OpenFile(path)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, logger.WithWriter(f))
		closeFn = f.Close
	}

	return logger.New(opts...), closeFn, nil
}
