// Package records defines the dynamic row representation shared by every
// pipeline stage. A Record is a map from canonical column name to value; a
// missing column and a nil value are equivalent and both mean "missing".
//
// Value types after normalization are limited to: string, int64, float64,
// bool, time.Time, and nil. The typed accessors below perform the minimal
// coercion needed at use sites and report presence explicitly so callers can
// apply their own default policy.
package records

import (
	"strconv"
	"time"
)

// Record is a single row of named fields.
type Record map[string]any

// Clone returns a shallow copy of r. Values are shared; this is safe because
// the pipeline treats parsed values as immutable.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Has reports whether field k is present with a non-nil value.
func (r Record) Has(k string) bool {
	v, ok := r[k]
	return ok && v != nil
}

// String returns the string value of field k. ok is false when the field is
// missing, nil, or not a string.
func (r Record) String(k string) (string, bool) {
	v, ok := r[k]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Int returns the integer value of field k, coercing int, int64, float64,
// and numeric strings. ok is false when the field is missing or not numeric.
func (r Record) Int(k string) (int64, bool) {
	v, ok := r[k]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case string:
		if i, err := strconv.ParseInt(n, 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}

// Float returns the float value of field k, coercing int, int64, float64,
// and numeric strings.
func (r Record) Float(k string) (float64, bool) {
	v, ok := r[k]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// Time returns the time value of field k. Only values already parsed to
// time.Time qualify; raw strings are not re-parsed here.
func (r Record) Time(k string) (time.Time, bool) {
	v, ok := r[k]
	if !ok || v == nil {
		return time.Time{}, false
	}
	t, ok := v.(time.Time)
	return t, ok
}

// Bool returns the boolean value of field k.
func (r Record) Bool(k string) (bool, bool) {
	v, ok := r[k]
	if !ok || v == nil {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}
