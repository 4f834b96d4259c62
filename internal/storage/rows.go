package storage

import (
	"sort"
	"time"

	"churn/pkg/records"
)

// RecordsToRows projects records onto an ordered column list, producing the
// [][]any shape CopyFrom expects. Missing keys become nil so ragged records
// still load.
func RecordsToRows(recs []records.Record, columns []string) [][]any {
	rows := make([][]any, len(recs))
	for i, rec := range recs {
		row := make([]any, len(columns))
		for j, c := range columns {
			row[j] = rec[c]
		}
		rows[i] = row
	}
	return rows
}

// ColumnsOf returns the union of keys across records, sorted. Used when a
// table has no fixed column contract.
func ColumnsOf(recs []records.Record) []string {
	seen := map[string]bool{}
	for _, r := range recs {
		for k := range r {
			seen[k] = true
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// InferTableDef derives a TableDef by sampling the first non-nil value of
// each column. Columns that never carry a value fall back to text.
func InferTableDef(name string, columns []string, recs []records.Record) TableDef {
	def := TableDef{Name: name, Columns: make([]ColumnDef, len(columns))}
	for i, c := range columns {
		def.Columns[i] = ColumnDef{Name: c, Type: inferColType(c, recs)}
	}
	return def
}

func inferColType(column string, recs []records.Record) ColType {
	for _, r := range recs {
		switch r[column].(type) {
		case nil:
			continue
		case int64, int:
			return ColInteger
		case float64:
			return ColReal
		case bool:
			return ColBool
		case time.Time:
			return ColDate
		default:
			return ColText
		}
	}
	return ColText
}
