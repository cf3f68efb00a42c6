package fixture

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Normalized temporal formats. Date-only layouts keep date-only values so
// that grouping by day does not pick up a spurious midnight.
const (
	isoDate     = "2006-01-02"
	isoDateTime = "2006-01-02 15:04:05"
)

// inferColumn picks the narrowest type every non-empty value satisfies:
// integer, then real, then temporal (under a single layout), then text.
// A column with no values is text.
func inferColumn(name string, values []string, layouts []string) Column {
	col := Column{Name: name, Type: TypeText}

	allInt, allReal := true, true
	candidates := append([]string(nil), layouts...)
	seen := 0

	for _, raw := range values {
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		seen++

		if allInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				allInt = false
			}
		}
		if allReal && !allInt {
			if _, ok := parseReal(v); !ok {
				allReal = false
			}
		}
		if len(candidates) > 0 {
			candidates = filterLayouts(candidates, v)
		}

		if !allInt && !allReal && len(candidates) == 0 {
			return col
		}
	}

	switch {
	case seen == 0:
	case allInt:
		col.Type = TypeInteger
	case allReal:
		col.Type = TypeReal
	case len(candidates) > 0:
		col.Type = TypeTemporal
		col.Layout = candidates[0]
	}
	return col
}

// declaredColumn builds a column of a declared type. Temporal columns still
// need a layout, chosen from the values.
func declaredColumn(name string, typ Type, values []string, layouts []string) (Column, error) {
	col := Column{Name: name, Type: typ}
	if typ != TypeTemporal {
		return col, nil
	}

	candidates := append([]string(nil), layouts...)
	for _, raw := range values {
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		candidates = filterLayouts(candidates, v)
		if len(candidates) == 0 {
			return col, fmt.Errorf("value %q matches no date layout in %v", v, layouts)
		}
	}
	if len(candidates) > 0 {
		col.Layout = candidates[0]
	} else {
		col.Layout = isoDate
	}
	return col, nil
}

// filterLayouts keeps the layouts value parses under.
func filterLayouts(layouts []string, value string) []string {
	kept := layouts[:0]
	for _, layout := range layouts {
		if _, err := time.Parse(layout, value); err == nil {
			kept = append(kept, layout)
		}
	}
	return kept
}

// parseReal parses a finite float. NaN and infinities are not numbers a
// dataset column should be typed by.
func parseReal(v string) (float64, bool) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// convert turns a raw cell into the column's value space.
func convert(raw string, col Column) (any, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil, nil
	}

	switch col.Type {
	case TypeInteger:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", v)
		}
		return n, nil
	case TypeReal:
		f, ok := parseReal(v)
		if !ok {
			return nil, fmt.Errorf("%q is not a number", v)
		}
		return f, nil
	case TypeTemporal:
		t, err := time.Parse(col.Layout, v)
		if err != nil {
			return nil, fmt.Errorf("%q does not match date layout %q", v, col.Layout)
		}
		if strings.Contains(col.Layout, ":") {
			return t.UTC().Format(isoDateTime), nil
		}
		return t.Format(isoDate), nil
	default:
		return raw, nil
	}
}
