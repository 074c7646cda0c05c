package schema

import (
	"strconv"
	"strings"
	"time"
)

// inferSampleLimit bounds how many rows per column participate in type
// inference. Files are fully loaded regardless; only inference is sampled.
const inferSampleLimit = 10000

// timestampLayouts are tried, in order, when deciding whether a value is a
// timestamp. The first layout matches the Olist dataset exports.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// dateLayouts are tried when a value has no time component.
var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
}

// Infer derives a TableDef from parsed file content: one column per header,
// typed by the narrowest logical type that all sampled non-empty values in
// that column satisfy. Columns with no non-empty values fall back to text.
func Infer(name string, columns []string, rows [][]string) TableDef {
	n := len(columns)
	samples := make([][]string, n)
	limit := len(rows)
	if limit > inferSampleLimit {
		limit = inferSampleLimit
	}
	for _, row := range rows[:limit] {
		for i := 0; i < n && i < len(row); i++ {
			samples[i] = append(samples[i], row[i])
		}
	}

	defs := make([]ColumnDef, n)
	for i, col := range columns {
		defs[i] = ColumnDef{Name: col, Type: inferColumn(samples[i])}
	}
	return TableDef{Name: name, Columns: defs}
}

// inferColumn guesses the logical type for one column. The heuristic requires
// every non-empty value to satisfy the narrower type before choosing it.
func inferColumn(values []string) Type {
	nonEmpty := nonEmptyTrimmed(values)
	if len(nonEmpty) == 0 {
		return TypeText
	}
	if allMatch(nonEmpty, isInt) {
		return TypeInteger
	}
	if allMatch(nonEmpty, isBool) {
		return TypeBoolean
	}
	// The all-int check above already failed, so a column of ints mixed with
	// decimals lands here and must still count as real.
	if allMatch(nonEmpty, func(s string) bool { return isFloat(s) || isInt(s) }) {
		return TypeReal
	}
	allTemporal := true
	anyTime := false
	for _, v := range nonEmpty {
		ok, hasTime := parseDateOrTimestamp(v)
		if !ok {
			allTemporal = false
			break
		}
		if hasTime {
			anyTime = true
		}
	}
	if allTemporal {
		if anyTime {
			return TypeTimestamp
		}
		return TypeDate
	}
	return TypeText
}

// Convert turns a raw CSV field into the Go value to bind for the given
// logical type. Empty strings become nil (SQL NULL). A value that no longer
// parses as the inferred type is passed through as string; the database will
// reject it with a precise error instead of silently corrupting it.
func Convert(raw string, t Type) any {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	switch t {
	case TypeInteger:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	case TypeReal:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	case TypeBoolean:
		switch strings.ToLower(v) {
		case "true", "t", "yes", "y", "1":
			return true
		case "false", "f", "no", "n", "0":
			return false
		}
	case TypeTimestamp:
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, v); err == nil {
				return ts
			}
		}
		// A date-only value in a timestamp column still parses.
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, v); err == nil {
				return ts
			}
		}
	case TypeDate:
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, v); err == nil {
				return ts
			}
		}
	}
	return v
}

// nonEmptyTrimmed returns the non-empty, trimmed values.
func nonEmptyTrimmed(vals []string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// allMatch reports whether every value satisfies fn.
func allMatch(vals []string, fn func(string) bool) bool {
	for _, v := range vals {
		if !fn(v) {
			return false
		}
	}
	return true
}

// isBool accepts common textual booleans and 1/0.
func isBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "false", "t", "f", "yes", "no", "y", "n", "1", "0":
		return true
	default:
		return false
	}
}

// isInt requires a signed base-10 integer that fits in int64.
func isInt(s string) bool {
	_, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return err == nil
}

// isFloat accepts decimal or scientific notation floats. If s parses as int,
// it is treated as NOT float so that integer columns stay integer.
func isFloat(s string) bool {
	if isInt(s) {
		return false
	}
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

// parseDateOrTimestamp tries timestamp layouts first, then date layouts. It
// returns ok when a layout matched and hasTime when time components were
// present.
func parseDateOrTimestamp(s string) (ok bool, hasTime bool) {
	st := strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if _, err := time.Parse(layout, st); err == nil {
			return true, true
		}
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, st); err == nil {
			return true, false
		}
	}
	return false, false
}
