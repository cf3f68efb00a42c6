// Package report renders a harness.Report for people and machines and
// maps it to a process exit code.
package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/roach88/sqlconform/internal/harness"
)

// Exit codes derived from a report.
const (
	ExitPassed = 0
	ExitFailed = 1
)

const (
	markPass = "✓"
	markFail = "✗"
)

// ExitCode returns ExitPassed if every case passed, ExitFailed otherwise.
// An empty (or nil) report passes.
func ExitCode(r *harness.Report) int {
	if r == nil || r.OK() {
		return ExitPassed
	}
	return ExitFailed
}

// Summarize returns the exit code for r and a plain text summary: one line
// per case marked ✓ or ✗, an indented reason under each failure, and a
// closing count line.
func Summarize(r *harness.Report) (int, string) {
	var b strings.Builder
	var entries []harness.Entry
	if r != nil {
		entries = r.Entries
	}

	for _, e := range entries {
		if e.Passed() {
			fmt.Fprintf(&b, "%s %s\n", markPass, e.Case)
			continue
		}
		fmt.Fprintf(&b, "%s %s\n", markFail, e.Case)
		for _, line := range strings.Split(e.Reason, "\n") {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	if len(entries) > 0 {
		b.WriteString("\n")
	}
	b.WriteString(countLine(r))
	b.WriteString("\n")

	return ExitCode(r), b.String()
}

func countLine(r *harness.Report) string {
	if r == nil {
		return "0 passed, 0 failed, 0 total"
	}
	return fmt.Sprintf("%d passed, %d failed, %d total", r.Passed(), r.Failed(), len(r.Entries))
}

// Result is the machine-readable form of a run.
type Result struct {
	RunID       string          `json:"run_id"`
	Driver      string          `json:"driver,omitempty"`
	Table       string          `json:"table,omitempty"`
	FixtureRows int             `json:"fixture_rows"`
	Isolation   string          `json:"isolation,omitempty"`
	Cases       []harness.Entry `json:"cases"`
	Passed      int             `json:"passed"`
	Failed      int             `json:"failed"`
	Total       int             `json:"total"`
}

// NewResult converts r into its machine-readable form.
func NewResult(r *harness.Report) Result {
	if r == nil {
		return Result{Cases: []harness.Entry{}}
	}
	cases := r.Entries
	if cases == nil {
		cases = []harness.Entry{}
	}
	return Result{
		RunID:       r.RunID,
		Driver:      r.Driver,
		Table:       r.Table,
		FixtureRows: r.FixtureRows,
		Isolation:   string(r.Isolation),
		Cases:       cases,
		Passed:      r.Passed(),
		Failed:      r.Failed(),
		Total:       len(r.Entries),
	}
}

var caseHeader = table.Row{
	"#",
	"Case",
	"Status",
	"Rows",
	"Reason",
}

// Table renders one row per case followed by the count line as a footer.
func Table(r *harness.Report) string {
	t := table.NewWriter()
	t.Style().Format.Footer = text.FormatDefault
	t.AppendHeader(caseHeader)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, WidthMax: 60},
	})

	if r != nil {
		for i, e := range r.Entries {
			status := markPass + " " + string(e.Status)
			if !e.Passed() {
				status = markFail + " " + string(e.Status)
			}
			t.AppendRow(table.Row{
				strconv.Itoa(i + 1),
				e.Case,
				status,
				e.Rows,
				e.Reason,
			})
		}
	}

	t.AppendFooter(table.Row{"", countLine(r)})
	return t.Render()
}
