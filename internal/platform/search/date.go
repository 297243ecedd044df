package search

import (
	"fmt"
	"strings"
	"time"

	"github.com/ehr/fhirbridge/internal/platform/query"
)

// Prefix is a FHIR comparison prefix on an ordered value.
type Prefix string

const (
	PrefixEq Prefix = "eq"
	PrefixGt Prefix = "gt"
	PrefixLt Prefix = "lt"
	PrefixGe Prefix = "ge"
	PrefixLe Prefix = "le"
	PrefixSa Prefix = "sa" // starts after
	PrefixEb Prefix = "eb" // ends before
)

// DateRange is an inclusive range. A nil bound is open.
type DateRange struct {
	Lower *time.Time
	Upper *time.Time
}

// ParseDateRange folds every repetition of a date parameter into one range.
// It returns nil when values is empty.
func ParseDateRange(values []string) (*DateRange, error) {
	var r *DateRange
	for _, raw := range values {
		if raw == "" {
			continue
		}
		prefix, value := splitPrefix(raw)
		start, end, err := parseDate(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
		}
		if r == nil {
			r = &DateRange{}
		}
		switch prefix {
		case PrefixGe:
			r.narrowLower(start)
		case PrefixGt, PrefixSa:
			r.narrowLower(end.Add(time.Nanosecond))
		case PrefixLe:
			r.narrowUpper(end)
		case PrefixLt, PrefixEb:
			r.narrowUpper(start.Add(-time.Nanosecond))
		case PrefixEq:
			r.narrowLower(start)
			r.narrowUpper(end)
		default:
			return nil, fmt.Errorf("%w: unsupported date prefix %q", ErrInvalidParameter, prefix)
		}
	}
	return r, nil
}

// DateBetween constrains column to the range. Open bounds add nothing.
func DateBetween(column string, r *DateRange) query.Predicate {
	if r == nil {
		return nil
	}
	var lower, upper query.Predicate
	if r.Lower != nil {
		lower = query.Ge{Column: column, Value: *r.Lower}
	}
	if r.Upper != nil {
		upper = query.Le{Column: column, Value: *r.Upper}
	}
	return query.AllOf(lower, upper)
}

func (r *DateRange) narrowLower(t time.Time) {
	if r.Lower == nil || t.After(*r.Lower) {
		r.Lower = &t
	}
}

func (r *DateRange) narrowUpper(t time.Time) {
	if r.Upper == nil || t.Before(*r.Upper) {
		r.Upper = &t
	}
}

func splitPrefix(raw string) (Prefix, string) {
	if len(raw) >= 2 {
		p := Prefix(strings.ToLower(raw[:2]))
		switch p {
		case PrefixEq, PrefixGt, PrefixLt, PrefixGe, PrefixLe, PrefixSa, PrefixEb, "ne", "ap":
			return p, raw[2:]
		}
	}
	return PrefixEq, raw
}

// parseDate parses a FHIR date or dateTime and returns the first and last
// instants covered by its precision.
func parseDate(s string) (start, end time.Time, err error) {
	layouts := []struct {
		layout string
		span   func(time.Time) time.Time
	}{
		{time.RFC3339, nil},
		{"2006-01-02T15:04:05", nil},
		{"2006-01-02", func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }},
		{"2006-01", func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }},
		{"2006", func(t time.Time) time.Time { return t.AddDate(1, 0, 0) }},
	}
	for _, l := range layouts {
		t, perr := time.Parse(l.layout, s)
		if perr != nil {
			continue
		}
		if l.span == nil {
			return t, t, nil
		}
		return t, l.span(t).Add(-time.Nanosecond), nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("unable to parse date: %s", s)
}
