package transform

import "churn/pkg/records"

// Rename moves fields from source names to canonical names. A rename is
// applied only when the source field is present; absence is not an error,
// the canonical field is simply absent and downstream defaults apply.
type Rename struct {
	Map map[string]string // source name -> canonical name
}

// Apply renames in place. When source and target names are equal the record
// is left untouched.
func (t Rename) Apply(in []records.Record) []records.Record {
	if len(t.Map) == 0 {
		return in
	}
	for _, r := range in {
		for from, to := range t.Map {
			if from == to {
				continue
			}
			if v, ok := r[from]; ok {
				r[to] = v
				delete(r, from)
			}
		}
	}
	return in
}
