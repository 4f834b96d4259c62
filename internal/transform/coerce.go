package transform

import (
	"strconv"
	"strings"
	"time"

	"churn/pkg/records"
)

// DateLayouts are tried in order when coercing date fields. The first match
// wins; values no layout can parse become nil (the missing sentinel), never
// an error.
var DateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
	"02.01.2006",
}

// Dates coerces the named string fields to time.Time, truncated to midnight
// UTC so that day arithmetic is exact. Unparseable values are nilled out.
type Dates struct {
	Fields  []string
	Layouts []string // empty means DateLayouts
}

// Apply coerces in place.
func (t Dates) Apply(in []records.Record) []records.Record {
	layouts := t.Layouts
	if len(layouts) == 0 {
		layouts = DateLayouts
	}
	for _, r := range in {
		for _, f := range t.Fields {
			v, ok := r[f]
			if !ok || v == nil {
				continue
			}
			s, isStr := v.(string)
			if !isStr {
				continue // already typed
			}
			r[f] = parseDate(s, layouts)
		}
	}
	return in
}

// parseDate returns a midnight-UTC time.Time or nil.
func parseDate(s string, layouts []string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		}
	}
	return nil
}

// Numbers coerces the named string fields to int64 or float64. Unparseable
// values become nil.
type Numbers struct {
	Ints   []string
	Floats []string
}

// Apply coerces in place.
func (t Numbers) Apply(in []records.Record) []records.Record {
	for _, r := range in {
		for _, f := range t.Ints {
			v, ok := r[f]
			if !ok || v == nil {
				continue
			}
			if s, isStr := v.(string); isStr {
				if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
					r[f] = i
				} else if fl, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
					// Integer ids exported as "1.0" by spreadsheet tools.
					r[f] = int64(fl)
				} else {
					r[f] = nil
				}
			}
		}
		for _, f := range t.Floats {
			v, ok := r[f]
			if !ok || v == nil {
				continue
			}
			if s, isStr := v.(string); isStr {
				if fl, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
					r[f] = fl
				} else {
					r[f] = nil
				}
			}
		}
	}
	return in
}

// Bools coerces the named string fields to bool. Accepted spellings are the
// strconv ones ("true", "1", "False", ...); anything else becomes nil.
type Bools struct {
	Fields []string
}

// Apply coerces in place.
func (t Bools) Apply(in []records.Record) []records.Record {
	for _, r := range in {
		for _, f := range t.Fields {
			v, ok := r[f]
			if !ok || v == nil {
				continue
			}
			if s, isStr := v.(string); isStr {
				if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
					r[f] = b
				} else {
					r[f] = nil
				}
			}
		}
	}
	return in
}
