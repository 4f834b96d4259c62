package model

import (
	"fmt"
	"sort"
	"time"

	"churn/internal/feature"
	"churn/internal/schema"
	"churn/pkg/records"
)

// CandidateFeatures are the numeric columns considered for training, in
// stable order. A run narrows this list to the columns the batch actually
// carries.
var CandidateFeatures = []string{
	schema.ColPrice,
	feature.ColDaysSinceStart,
	feature.ColDaysUntilEnd,
	feature.ColIsNearEnd,
	feature.ColNumEventsTotal,
	feature.ColNumRenewals,
	feature.ColNumEventsLast30d,
	feature.ColTotalAmount,
	feature.ColAvgAmount,
	feature.ColNumPayments,
	feature.ColNumFailedPayments,
	feature.ColIsPremiumPlan,
}

// CategoricalCandidates are the string columns expanded into one-hot
// indicator columns before training. Rows missing a value count as
// "unknown".
var CategoricalCandidates = []string{
	schema.PlanPrefix + "plan_name",
	schema.ColSubscriptionType,
}

// EncodeCategoricals adds indicator columns for each categorical candidate
// carried by rows, mutating rows in place. The returned column names are
// sorted per source column; a candidate absent from the whole batch adds
// nothing.
func EncodeCategoricals(rows []records.Record) []string {
	var added []string
	for _, col := range CategoricalCandidates {
		added = append(added, oneHot(rows, col)...)
	}
	return added
}

func oneHot(rows []records.Record, col string) []string {
	vals := make([]string, len(rows))
	seen := make(map[string]bool)
	present := false
	for i, r := range rows {
		v, ok := r.String(col)
		if ok && v != "" {
			present = true
		} else {
			v = "unknown"
		}
		vals[i] = schema.CanonicalName(v)
		seen[vals[i]] = true
	}
	if !present {
		return nil
	}

	names := make([]string, 0, len(seen))
	for v := range seen {
		names = append(names, col+"_"+v)
	}
	sort.Strings(names)

	// Only the hot column is written; Matrix fills the rest with 0.
	for i, r := range rows {
		r[col+"_"+vals[i]] = int64(1)
	}
	return names
}

// SelectFeatures narrows the candidate list to the columns that carry at
// least one usable value in rows.
func SelectFeatures(rows []records.Record) []string {
	var selected []string
	for _, name := range CandidateFeatures {
		for _, r := range rows {
			if _, ok := numericValue(r[name]); ok {
				selected = append(selected, name)
				break
			}
		}
	}
	return selected
}

// Matrix projects rows onto the feature columns, returning the design matrix
// and the label vector. Missing numeric values are filled with 0.
func Matrix(rows []records.Record, features []string) (x [][]float64, y []float64, err error) {
	if len(features) == 0 {
		return nil, nil, fmt.Errorf("prepare: no usable feature columns")
	}

	x = make([][]float64, len(rows))
	y = make([]float64, len(rows))
	for i, r := range rows {
		row := make([]float64, len(features))
		for j, name := range features {
			if v, ok := numericValue(r[name]); ok {
				row[j] = v
			}
		}
		x[i] = row

		label, ok := r.Int(schema.Label)
		if !ok {
			return nil, nil, fmt.Errorf("prepare: row %d has no %s label", i, schema.Label)
		}
		y[i] = float64(label)
	}
	return x, y, nil
}

// numericValue coerces a record value into a float64 feature. Booleans map
// to 0/1; dates and strings are not features.
func numericValue(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case time.Time, string, nil:
		return 0, false
	default:
		return 0, false
	}
}
