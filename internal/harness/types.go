package harness

// Status is the outcome of one case.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
)

// ResultSet is the rows a case's query produced. Values are normalized to
// int64, float64, string or nil.
type ResultSet struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// ColumnIndex returns the position of the named column, or -1.
func (rs *ResultSet) ColumnIndex(name string) int {
	for i, c := range rs.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns every value of the named column in row order.
func (rs *ResultSet) Column(name string) ([]any, bool) {
	idx := rs.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	values := make([]any, len(rs.Rows))
	for i, row := range rs.Rows {
		values[i] = row[idx]
	}
	return values, true
}

// Entry is the recorded outcome of one case.
type Entry struct {
	// Case is the case name.
	Case string `json:"case"`

	// Status is pass or fail.
	Status Status `json:"status"`

	// Reason explains a failure. Empty if Status is pass.
	Reason string `json:"reason,omitempty"`

	// Rows is the number of rows the query returned, 0 if it failed.
	Rows int `json:"rows"`
}

// Passed reports whether the case passed.
func (e Entry) Passed() bool {
	return e.Status == StatusPass
}

// Report is the outcome of a run: one entry per executed case in
// registration order, plus run metadata.
//
// Entries carry no timings, so running the same cases against the same
// fixture twice yields identical entries.
type Report struct {
	// RunID identifies the run in logs and JSON output.
	RunID string `json:"run_id"`

	// Driver is the database/sql driver the cases ran on.
	Driver string `json:"driver,omitempty"`

	// Table is the fixture table the cases queried.
	Table string `json:"table,omitempty"`

	// FixtureRows is the number of rows in the fixture.
	FixtureRows int `json:"fixture_rows"`

	// Isolation is the session isolation mode.
	Isolation Isolation `json:"isolation,omitempty"`

	Entries []Entry `json:"entries"`
}

// NewReport creates an empty report.
func NewReport(runID string) *Report {
	return &Report{
		RunID:   runID,
		Entries: []Entry{},
	}
}

// AddPass records a passing case.
func (r *Report) AddPass(name string, rows int) {
	r.Entries = append(r.Entries, Entry{Case: name, Status: StatusPass, Rows: rows})
}

// AddFailure records a failing case and its reason.
func (r *Report) AddFailure(name, reason string, rows int) {
	r.Entries = append(r.Entries, Entry{Case: name, Status: StatusFail, Reason: reason, Rows: rows})
}

// Passed returns the number of passing entries.
func (r *Report) Passed() int {
	n := 0
	for _, e := range r.Entries {
		if e.Passed() {
			n++
		}
	}
	return n
}

// Failed returns the number of failing entries.
func (r *Report) Failed() int {
	return len(r.Entries) - r.Passed()
}

// OK reports whether every case passed. An empty report is OK.
func (r *Report) OK() bool {
	return r.Failed() == 0
}

// Entry returns the entry for the named case.
func (r *Report) Entry(name string) (Entry, bool) {
	for _, e := range r.Entries {
		if e.Case == name {
			return e, true
		}
	}
	return Entry{}, false
}
