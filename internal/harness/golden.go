package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// ReportSnapshot is the deterministic part of a report: everything except
// the run ID and driver.
type ReportSnapshot struct {
	Table       string  `json:"table"`
	FixtureRows int     `json:"fixture_rows"`
	Entries     []Entry `json:"entries"`
}

// Snapshot returns the deterministic part of the report.
func (r *Report) Snapshot() ReportSnapshot {
	return ReportSnapshot{
		Table:       r.Table,
		FixtureRows: r.FixtureRows,
		Entries:     r.Entries,
	}
}

// MarshalSnapshot renders the report snapshot as indented JSON with a
// trailing newline.
func MarshalSnapshot(r *Report) ([]byte, error) {
	data, err := json.MarshalIndent(r.Snapshot(), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden runs every case in r against sess and compares the report
// snapshot against a golden file.
// The golden file is stored in testdata/golden/{name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the report so callers can make further assertions.
func RunWithGolden(t *testing.T, r *Runner, sess Session, name string) (*Report, error) {
	t.Helper()

	report := r.RunAll(context.Background(), sess)
	if err := AssertGolden(t, name, report); err != nil {
		return nil, err
	}
	return report, nil
}

// AssertGolden compares an existing report's snapshot against a golden
// file without re-running anything.
func AssertGolden(t *testing.T, name string, report *Report) error {
	t.Helper()

	data, err := MarshalSnapshot(report)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)

	return nil
}
