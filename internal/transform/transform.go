// Package transform contains the in-memory record transformations applied
// during normalization. Each transformer mutates or filters a batch of
// records; a Chain applies them in order.
package transform

import "churn/pkg/records"

// Transformer rewrites a batch of records and returns the result. Most
// implementations mutate in place and return the input slice.
type Transformer interface {
	Apply([]records.Record) []records.Record
}

// Chain is an ordered list of transformers.
type Chain []Transformer

// Apply runs every transformer in order.
func (c Chain) Apply(in []records.Record) []records.Record {
	out := in
	for _, t := range c {
		out = t.Apply(out)
	}
	return out
}
