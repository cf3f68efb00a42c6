package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/sqlconform/internal/fixture"
	"github.com/roach88/sqlconform/internal/store"
)

// Built-in case names.
const (
	CaseRankingFunctions = "ranking_functions"
	CaseLagLeadFunctions = "lag_lead_functions"
	CaseRecursiveCTE     = "recursive_cte"
	CaseCohortAnalysis   = "cohort_analysis"
)

// builtinLimit is the LIMIT the built-in window and cohort queries use.
const builtinLimit = 10

// BuiltinColumns names the fixture columns the built-in cases query.
type BuiltinColumns struct {
	CustomerName string
	CustomerID   string
	Category     string
	Sales        string
	OrderDate    string

	// Categories restricts the ranking case to these category values.
	// Empty means every row.
	Categories []string
}

// DefaultBuiltinColumns returns the column names of the Superstore sales
// dataset.
func DefaultBuiltinColumns() BuiltinColumns {
	return BuiltinColumns{
		CustomerName: "Customer Name",
		CustomerID:   "Customer ID",
		Category:     "Category",
		Sales:        "Sales",
		OrderDate:    "Order Date",
		Categories:   []string{"Furniture", "Office Supplies", "Technology"},
	}
}

// BuiltinCases returns the built-in feature cases for fx: partitioned
// ranking, offset window functions, a bounded recursive CTE and a cohort
// aggregation. Expectations that depend on the data (the number of
// cohorts) are computed from fx.
func BuiltinCases(fx *fixture.Fixture, cols BuiltinColumns) ([]QueryCase, error) {
	if err := checkBuiltinColumns(fx, cols); err != nil {
		return nil, err
	}

	var (
		table    = fx.Table
		name     = store.QuoteIdent(cols.CustomerName)
		id       = store.QuoteIdent(cols.CustomerID)
		category = store.QuoteIdent(cols.Category)
		sales    = store.QuoteIdent(cols.Sales)
		ordered  = store.QuoteIdent(cols.OrderDate)
	)

	where := ""
	if len(cols.Categories) > 0 {
		where = fmt.Sprintf("WHERE %s IN (%s)\n", category, sqlStrings(cols.Categories))
	}

	cohorts := cohortCount(fx, cols)
	if cohorts > builtinLimit {
		cohorts = builtinLimit
	}

	return []QueryCase{
		{
			Name:        CaseRankingFunctions,
			Description: "ROW_NUMBER() partitioned by category, ordered by sales descending",
			Query: fmt.Sprintf(`SELECT
    %s,
    %s,
    %s,
    ROW_NUMBER() OVER (PARTITION BY %s ORDER BY %s DESC) AS row_num
FROM %s
%sLIMIT %d`, name, category, sales, category, sales, table, where, builtinLimit),
			Expect: []Expectation{
				NonEmpty(),
				HasColumn("row_num"),
				MaxRows(builtinLimit),
				RankWithinPartition(cols.Category, "row_num"),
				SortedWithinPartition(cols.Category, cols.Sales, true),
			},
		},
		{
			Name:        CaseLagLeadFunctions,
			Description: "LAG() over monthly sales totals",
			Query: fmt.Sprintf(`WITH monthly_sales AS (
    SELECT
        strftime('%%Y-%%m', %s) AS month,
        SUM(%s) AS total_sales
    FROM %s
    GROUP BY month
    ORDER BY month
)
SELECT
    month,
    total_sales,
    LAG(total_sales, 1) OVER (ORDER BY month) AS previous_month_sales
FROM monthly_sales
LIMIT %d`, ordered, sales, table, builtinLimit),
			Expect: []Expectation{
				NonEmpty(),
				HasColumn("previous_month_sales"),
				MaxRows(builtinLimit),
				SortedWithinPartition("", "month", false),
				OffsetOf("total_sales", "previous_month_sales", 1),
			},
		},
		{
			Name:        CaseRecursiveCTE,
			Description: "WITH RECURSIVE counting 1 to 10 under a terminating bound",
			Query: `WITH RECURSIVE number_sequence AS (
    SELECT 1 AS n
    UNION ALL
    SELECT n + 1
    FROM number_sequence
    WHERE n < 10
)
SELECT n FROM number_sequence`,
			Expect: []Expectation{
				RowCount(10),
				ColumnValues("n", 1, 2, 3, 4, 5, 6, 7, 8, 9, 10),
			},
		},
		{
			Name:        CaseCohortAnalysis,
			Description: "customers grouped by the month of their first order, with COUNT(DISTINCT)",
			Query: fmt.Sprintf(`WITH first_purchase AS (
    SELECT
        %s,
        strftime('%%Y-%%m', MIN(%s)) AS cohort_month
    FROM %s
    GROUP BY %s
)
SELECT
    cohort_month,
    COUNT(DISTINCT %s) AS customer_count
FROM first_purchase
GROUP BY cohort_month
LIMIT %d`, id, ordered, table, id, id, builtinLimit),
			Expect: []Expectation{
				NonEmpty(),
				HasColumn("customer_count"),
				MaxRows(builtinLimit),
				DistinctGroups("cohort_month", "customer_count", cohorts, fx.Len()),
			},
		},
	}, nil
}

// checkBuiltinColumns verifies fx has every column the built-in cases
// reference, with the types their queries need.
func checkBuiltinColumns(fx *fixture.Fixture, cols BuiltinColumns) error {
	need := []struct {
		name string
		typ  func(fixture.Type) bool
		want string
	}{
		{cols.CustomerName, nil, ""},
		{cols.CustomerID, nil, ""},
		{cols.Category, nil, ""},
		{cols.Sales, fixture.Type.Numeric, "numeric"},
		{cols.OrderDate, func(t fixture.Type) bool { return t == fixture.TypeTemporal }, "temporal"},
	}
	for _, n := range need {
		idx := fx.Schema.Index(n.name)
		if idx < 0 {
			return fmt.Errorf("built-in cases: fixture %s has no column %q", fx.Table, n.name)
		}
		if typ := fx.Schema.Columns[idx].Type; n.typ != nil && !n.typ(typ) {
			return fmt.Errorf("built-in cases: column %q is %s, want %s", n.name, typ, n.want)
		}
	}
	return nil
}

// cohortCount returns the number of distinct first-order months across
// customers, counting a customer with no dated order as the NULL cohort.
// Temporal values are ISO-8601, so the earliest is the smallest string.
func cohortCount(fx *fixture.Fixture, cols BuiltinColumns) int {
	idIdx := fx.Schema.Index(cols.CustomerID)
	dateIdx := fx.Schema.Index(cols.OrderDate)

	first := make(map[string]string)
	for _, row := range fx.Rows {
		key := valueKey(row[idIdx])
		date, _ := row[dateIdx].(string)
		prev, seen := first[key]
		switch {
		case !seen:
			first[key] = date
		case date != "" && (prev == "" || date < prev):
			first[key] = date
		}
	}

	months := make(map[string]struct{})
	for _, date := range first {
		month := ""
		if len(date) >= len("2006-01") {
			month = date[:len("2006-01")]
		}
		months[month] = struct{}{}
	}
	return len(months)
}

// sqlStrings renders values as a comma-separated list of SQL string
// literals.
func sqlStrings(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	return strings.Join(quoted, ", ")
}
