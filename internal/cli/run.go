package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlconform/internal/fixture"
	"github.com/roach88/sqlconform/internal/harness"
	"github.com/roach88/sqlconform/internal/report"
	"github.com/roach88/sqlconform/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Golden string // compare the report snapshot against this file
	Update bool   // rewrite the golden file instead of comparing

	// IDGenerator allows overriding the run ID generator (for testing).
	// If nil, run IDs are random UUIDs.
	IDGenerator harness.IDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

// newRunCommand builds the run command around opts so tests can inject an
// IDGenerator.
func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run query cases against a fixture",
		Long: `Run query cases against a fixture loaded into an in-memory database.

Cases come from suite files (--suite, YAML or CUE, files or directories)
and from the built-in window function, recursive CTE and cohort cases
(--builtin). Without any suite the built-in cases run.

Each case prints as ✓ or ✗; failures carry their reason. Queries the
engine cannot parse are reported as unsupported features.

Exit codes:
  0 - All cases passed
  1 - A case failed, or the run could not complete (bad config,
      unreadable fixture or suite, golden mismatch)
  2 - Usage error (unknown flag, invalid --format, --update without --golden)

Examples:
  sqlconform run --fixture ./data/train.csv
  sqlconform run --fixture ./data/train.csv --suite ./suites --builtin
  sqlconform run --fixture ./data/train.csv --filter "cohort_*" --format json
  sqlconform run --fixture ./data/train.csv --isolation per-case --driver sqlite
  sqlconform run --fixture ./data/train.csv --golden ./golden/train.json --update`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCases(opts, cmd)
		},
	}

	cmd.Flags().String("fixture", "", "path to the fixture file (csv, tsv or parquet)")
	cmd.Flags().String("table", "", "table name for the fixture (default: derived from the file name)")
	cmd.Flags().String("encoding", "", "fixture text encoding (utf-8|latin-1|windows-1252)")
	cmd.Flags().StringSlice("suite", nil, "suite file or directory (repeatable)")
	cmd.Flags().Bool("builtin", false, "also run the built-in cases")
	cmd.Flags().String("filter", "", "run only cases whose name matches this glob")
	cmd.Flags().String("isolation", "", "fixture isolation (shared|per-case)")
	cmd.Flags().String("driver", "", fmt.Sprintf("database/sql driver %v", store.SupportedDrivers))
	cmd.Flags().StringVar(&opts.Golden, "golden", "", "compare the report against this golden file")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate the golden file")

	return cmd
}

// runFlagKeys maps run flags onto config keys.
var runFlagKeys = map[string]string{
	"fixture":   "fixture.path",
	"table":     "fixture.table",
	"encoding":  "fixture.encoding",
	"suite":     "suites",
	"builtin":   "builtin",
	"filter":    "filter",
	"isolation": "isolation",
	"driver":    "driver",
}

func runCases(opts *RunOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	if opts.Update && opts.Golden == "" {
		return reportedError(formatter, ExitUsageError, ErrCodeConfig, "--update requires --golden", nil)
	}

	var bindings []ConfigLoaderOption
	for name, key := range runFlagKeys {
		bindings = append(bindings, WithFlag(key, cmd.Flags().Lookup(name)))
	}
	cfg, err := opts.loadConfig(bindings...)
	if err != nil {
		return reportedError(formatter, ExitFailure, ErrCodeConfig, err.Error(), nil)
	}
	if cfg.ConfigFileUsed != "" {
		formatter.VerboseLog("Using config file %s", cfg.ConfigFileUsed)
	}

	log, closeLog, err := opts.newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return reportedError(formatter, ExitFailure, ErrCodeWriteFailed, err.Error(), nil)
	}
	defer closeLog()

	// Suites are parsed before the fixture so a typo fails fast.
	var suiteCases []harness.QueryCase
	if len(cfg.Suites) > 0 {
		loadResult, loadErrors := LoadSuites(cfg.Suites, LoadModeFailFast)
		if len(loadErrors) > 0 {
			var loadErr *LoadError
			if errors.As(loadErrors[0], &loadErr) {
				return loadErrorExit(formatter, loadErr)
			}
			return reportedError(formatter, ExitFailure, ErrCodeGeneric, loadErrors[0].Error(), nil)
		}
		formatter.VerboseLog("Loaded %d suite file(s)", loadResult.FileCount)
		suiteCases = loadResult.Cases()
	}

	if cfg.Fixture.Path == "" {
		return reportedError(formatter, ExitFailure, ErrCodeNoFixture,
			"no fixture configured: use --fixture or set fixture.path", nil)
	}
	src, err := cfg.Fixture.Source()
	if err != nil {
		return reportedError(formatter, ExitFailure, ErrCodeConfig, err.Error(), nil)
	}
	fx, err := fixture.Load(src)
	if err != nil {
		return loadErrorExit(formatter, convertFixtureError(err))
	}
	log.Info("fixture loaded", "path", fx.Path, "table", fx.Table, "rows", fx.Len(), "columns", len(fx.Schema.Columns))
	formatter.VerboseLog("Loaded fixture %s as table %q (%d rows)", fx.Path, fx.Table, fx.Len())

	runnerOpts := []harness.Option{
		harness.WithLogger(log),
		harness.WithFilter(cfg.Filter),
	}
	if opts.IDGenerator != nil {
		runnerOpts = append(runnerOpts, harness.WithIDGenerator(opts.IDGenerator))
	}
	runner := harness.NewRunner(runnerOpts...)

	if cfg.Builtin || len(cfg.Suites) == 0 {
		builtin, err := harness.BuiltinCases(fx, cfg.Columns.BuiltinColumns())
		if err != nil {
			return reportedError(formatter, ExitFailure, ErrCodeBuiltin, err.Error(), nil)
		}
		if err := runner.RegisterAll(builtin); err != nil {
			return reportedError(formatter, ExitFailure, ErrCodeRegister, err.Error(), nil)
		}
	}
	if err := runner.RegisterAll(suiteCases); err != nil {
		return reportedError(formatter, ExitFailure, ErrCodeRegister, err.Error(), nil)
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	isolation, _ := harness.ParseIsolation(cfg.Isolation) // validated with the config
	sess, err := harness.OpenSession(ctx, fx, cfg.Driver, isolation)
	if err != nil {
		return reportedError(formatter, ExitFailure, ErrCodeSession, err.Error(), nil)
	}
	defer func() {
		if closeErr := sess.Close(); closeErr != nil {
			log.Error("error closing session", "error", closeErr)
		}
	}()

	rep := runner.RunAll(ctx, sess)

	matched, err := checkGolden(opts, rep, formatter)
	if err != nil {
		return err
	}

	if err := outputReport(formatter, rep); err != nil {
		return err
	}

	if !matched {
		return &ExitError{Code: ExitFailure, Message: "report does not match golden file", Reported: true}
	}
	if code := report.ExitCode(rep); code != report.ExitPassed {
		return &ExitError{
			Code:     ExitFailure,
			Message:  fmt.Sprintf("%d of %d case(s) failed", rep.Failed(), len(rep.Entries)),
			Reported: true,
		}
	}
	return nil
}

// outputReport writes the report in the configured format.
func outputReport(f *OutputFormatter, rep *harness.Report) error {
	switch f.Format {
	case FormatJSON:
		return f.SuccessWithRun(rep.RunID, report.NewResult(rep))
	case FormatTable:
		return f.Success(report.Table(rep) + "\n")
	default:
		_, text := report.Summarize(rep)
		return f.Success(text)
	}
}

// checkGolden compares (or with --update, rewrites) the report snapshot.
// It reports false on a mismatch; an unreadable or unwritable golden file
// is an error.
func checkGolden(opts *RunOptions, rep *harness.Report, f *OutputFormatter) (bool, error) {
	if opts.Golden == "" {
		return true, nil
	}

	data, err := harness.MarshalSnapshot(rep)
	if err != nil {
		return false, reportedError(f, ExitFailure, ErrCodeGeneric, fmt.Sprintf("failed to marshal report: %v", err), nil)
	}

	if opts.Update {
		if err := os.MkdirAll(filepath.Dir(opts.Golden), 0755); err != nil {
			return false, reportedError(f, ExitFailure, ErrCodeWriteFailed, fmt.Sprintf("failed to create golden directory: %v", err), nil)
		}
		if err := os.WriteFile(opts.Golden, data, 0644); err != nil {
			return false, reportedError(f, ExitFailure, ErrCodeWriteFailed, fmt.Sprintf("failed to write golden file: %v", err), nil)
		}
		f.VerboseLog("Golden file updated: %s", opts.Golden)
		return true, nil
	}

	want, err := os.ReadFile(opts.Golden)
	if err != nil {
		return false, reportedError(f, ExitFailure, ErrCodeNotFound, fmt.Sprintf("failed to read golden file: %v", err), nil)
	}
	if !bytes.Equal(want, data) {
		fmt.Fprintf(f.GetErrWriter(), "Report does not match golden file %s (run with --update to regenerate)\n", opts.Golden)
		return false, nil
	}
	return true, nil
}

// signalContext cancels the run on interrupt so in-flight queries stop.
func signalContext(parent context.Context) (context.Context, func()) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping run", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan) // Prevent signal handler leak
		cancel()
	}
}
