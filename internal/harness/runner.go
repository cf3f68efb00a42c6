package harness

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/roach88/sqlconform/internal/logger"
	"github.com/roach88/sqlconform/internal/store"
)

// IDGenerator produces run IDs.
type IDGenerator interface {
	Generate() string
}

// uuidGenerator is the default IDGenerator.
type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

// Runner executes registered cases against a session and aggregates a
// Report. Cases run sequentially in registration order.
type Runner struct {
	cases  []QueryCase
	names  map[string]struct{}
	filter string
	ids    IDGenerator
	logger *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger used for per-case log lines.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithFilter restricts RunAll to cases whose name matches the glob
// pattern. Patterns use doublestar syntax, so "{ranking,recursive}_*"
// selects two families. An empty pattern runs every case.
func WithFilter(pattern string) Option {
	return func(r *Runner) {
		r.filter = pattern
	}
}

// WithIDGenerator sets the generator for report run IDs.
func WithIDGenerator(ids IDGenerator) Option {
	return func(r *Runner) {
		if ids != nil {
			r.ids = ids
		}
	}
}

// NewRunner creates a runner with no cases.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		names:  make(map[string]struct{}),
		ids:    uuidGenerator{},
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ValidateFilter reports whether pattern is a usable case filter.
func ValidateFilter(pattern string) error {
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("invalid filter %q: %w", pattern, doublestar.ErrBadPattern)
	}
	return nil
}

// Register adds a case. It fails if the case has no name or query, or if
// a case with the same name is already registered.
func (r *Runner) Register(c QueryCase) error {
	if err := validateCase(c); err != nil {
		return fmt.Errorf("register case: %w", err)
	}
	if _, dup := r.names[c.Name]; dup {
		return fmt.Errorf("register case: duplicate case name %q", c.Name)
	}
	c.Expect = append([]Expectation(nil), c.Expect...)
	r.names[c.Name] = struct{}{}
	r.cases = append(r.cases, c)
	return nil
}

// RegisterAll registers cases in order, stopping at the first error.
func (r *Runner) RegisterAll(cases []QueryCase) error {
	for _, c := range cases {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Cases returns the registered case names in registration order.
func (r *Runner) Cases() []string {
	names := make([]string, len(r.cases))
	for i, c := range r.cases {
		names[i] = c.Name
	}
	return names
}

// selected reports whether the filter admits name. A malformed pattern
// admits nothing; use ValidateFilter to reject it up front.
func (r *Runner) selected(name string) bool {
	if r.filter == "" {
		return true
	}
	ok, err := doublestar.Match(r.filter, name)
	return err == nil && ok
}

// RunAll executes every registered case that passes the filter and
// returns the report. A failing case never stops the run: query errors and
// unmet expectations are recorded as that case's failure.
func (r *Runner) RunAll(ctx context.Context, sess Session) *Report {
	report := NewReport(r.ids.Generate())
	info := sess.Info()
	report.Driver = info.Driver
	report.Table = info.Table
	report.FixtureRows = info.FixtureRows
	report.Isolation = info.Isolation

	logger := r.logger.With("run_id", report.RunID)
	logger.Info("run started",
		"cases", len(r.cases),
		"driver", info.Driver,
		"table", info.Table,
		"isolation", info.Isolation,
	)

	for _, c := range r.cases {
		if !r.selected(c.Name) {
			logger.Debug("case skipped by filter", "case", c.Name, "filter", r.filter)
			continue
		}

		start := time.Now()
		rows, err := r.runCase(ctx, sess, c)
		elapsed := time.Since(start)

		if err != nil {
			report.AddFailure(c.Name, err.Error(), rows)
			logger.Warn("case failed",
				"case", c.Name,
				"status", StatusFail,
				"rows", rows,
				"elapsed", elapsed,
				"reason", err.Error(),
			)
			continue
		}

		report.AddPass(c.Name, rows)
		logger.Info("case passed",
			"case", c.Name,
			"status", StatusPass,
			"rows", rows,
			"elapsed", elapsed,
		)
	}

	logger.Info("run finished",
		"passed", report.Passed(),
		"failed", report.Failed(),
	)
	return report
}

// runCase executes one case on its own connection and checks its
// expectations. It returns the number of rows the query produced.
func (r *Runner) runCase(ctx context.Context, sess Session, c QueryCase) (int, error) {
	conn, err := sess.Acquire(ctx)
	if err != nil {
		return 0, &QueryExecutionError{Case: c.Name, Err: fmt.Errorf("acquire connection: %w", err)}
	}
	defer conn.Close()

	rs, err := execute(ctx, conn, c.Query)
	if err != nil {
		return 0, &QueryExecutionError{
			Case:        c.Name,
			Unsupported: store.IsUnsupportedFeature(err),
			Err:         err,
		}
	}

	for _, expect := range c.Expect {
		if err := expect(rs); err != nil {
			return len(rs.Rows), err
		}
	}
	return len(rs.Rows), nil
}

// execute runs query and reads the complete result set.
func execute(ctx context.Context, conn Conn, query string) (*ResultSet, error) {
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("get columns: %w", err)
	}

	rs := &ResultSet{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range values {
			values[i] = normalizeValue(v)
		}
		rs.Rows = append(rs.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

// normalizeValue maps driver and Go values onto int64, float64, string and
// nil so that result sets compare the same across drivers.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(x)
	case string:
		return x
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint:
		return normalizeUnsigned(uint64(x))
	case uint64:
		return normalizeUnsigned(x)
	case float32:
		return float64(x)
	case float64:
		return x
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.UTC().Format(time.DateTime)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// normalizeUnsigned keeps values above math.MaxInt64 exact as decimal text.
func normalizeUnsigned(x uint64) any {
	if x > math.MaxInt64 {
		return strconv.FormatUint(x, 10)
	}
	return int64(x)
}
