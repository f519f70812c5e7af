// Package dates normalizes the loosely formatted date strings that arrive
// both as request parameters and inside provider date columns.
package dates

import (
	"regexp"
	"time"
)

const iso = "2006-01-02"

var isoPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// dayFirstLayouts and monthFirstLayouts back NormalizeRequest. Day-first is
// tried first to match how the frontend's date inputs are localized.
var dayFirstLayouts = []string{"02/01/2006", "02-01-2006", "02.01.2006"}
var monthFirstLayouts = []string{"01/02/2006", "01-02-2006", "2006/01/02", "Jan 2, 2006", "January 2, 2006"}

// NormalizeRequest converts a request date parameter to YYYY-MM-DD on a best
// effort basis. Already-ISO input is returned verbatim; anything that fails
// every interpretation passes through unchanged so downstream adapters can
// still reject it gracefully.
func NormalizeRequest(s string) string {
	if s == "" || isoPattern.MatchString(s) {
		return s
	}
	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(iso)
		}
	}
	for _, layout := range monthFirstLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(iso)
		}
	}
	return s
}

// Range bounds a historical query with canonical YYYY-MM-DD endpoints.
// Either bound may be empty (open). start <= end is not enforced; an
// inverted range simply matches nothing.
type Range struct {
	Start string
	End   string
}

// NewRange normalizes both endpoints of a raw request range.
func NewRange(start, end string) Range {
	return Range{Start: NormalizeRequest(start), End: NormalizeRequest(end)}
}

// Contains reports whether an ISO date falls inside the range. ISO dates
// order lexicographically, so plain string comparison suffices.
func (r Range) Contains(isoDate string) bool {
	if r.Start != "" && isoDate < r.Start {
		return false
	}
	if r.End != "" && isoDate > r.End {
		return false
	}
	return true
}

// ToTime parses a canonical date into a UTC midnight instant.
func ToTime(isoDate string) (time.Time, bool) {
	t, err := time.Parse(iso, isoDate)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// columnFormat pairs a cheap shape check with the layout it guards, so a
// value is only handed to time.Parse when it can plausibly match.
type columnFormat struct {
	pattern *regexp.Regexp
	layout  string
}

// Fixed evaluation order; MM/DD/YYYY is preferred over DD/MM/YYYY when both
// shapes match and the value is ambiguous.
var columnFormats = []columnFormat{
	{regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`), "2006-01-02"},
	{regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`), "2006-01-02 15:04:05"},
	{regexp.MustCompile(`^\d{4}/\d{2}/\d{2}$`), "2006/01/02"},
	{regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`), "01/02/2006"},
	{regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`), "02/01/2006"},
}

const formatSampleSize = 8

// ParseColumn parses a heterogeneous provider date column. A format is
// applied globally only when a sample of the column fully matches it;
// otherwise each value is parsed independently. Unparseable values come back
// as the zero time and are excluded downstream instead of failing the column.
func ParseColumn(values []string) []time.Time {
	out := make([]time.Time, len(values))
	if len(values) == 0 {
		return out
	}

	if f, ok := globalFormat(values); ok {
		for i, v := range values {
			if t, err := time.Parse(f.layout, v); err == nil {
				out[i] = t.UTC()
			}
		}
		return out
	}

	for i, v := range values {
		if t, ok := ParseValue(v); ok {
			out[i] = t
		}
	}
	return out
}

// ParseValue parses a single date cell against the fixed format list.
func ParseValue(s string) (time.Time, bool) {
	for _, f := range columnFormats {
		if !f.pattern.MatchString(s) {
			continue
		}
		if t, err := time.Parse(f.layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func globalFormat(values []string) (columnFormat, bool) {
	n := len(values)
	if n > formatSampleSize {
		n = formatSampleSize
	}
	for _, f := range columnFormats {
		all := true
		for _, v := range values[:n] {
			if !f.pattern.MatchString(v) {
				all = false
				break
			}
			if _, err := time.Parse(f.layout, v); err != nil {
				all = false
				break
			}
		}
		if all {
			return f, true
		}
	}
	return columnFormat{}, false
}
