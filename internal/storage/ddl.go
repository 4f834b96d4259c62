package storage

import (
	"context"
	"fmt"
	"sync"
)

// ColType is a backend-neutral column type. Each SQL backend maps it to its
// own dialect when generating DDL.
type ColType int

const (
	ColText ColType = iota
	ColInteger
	ColReal
	ColBool
	ColDate
)

// ColumnDef describes one column of an output table.
type ColumnDef struct {
	Name string
	Type ColType
}

// TableDef describes an output table to be created before loading.
type TableDef struct {
	Name    string
	Columns []ColumnDef
}

// ColumnNames returns the column names in definition order, as needed by
// Repository.CopyFrom.
func (t TableDef) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// DDLBootstrapper creates (or replaces) the given table on a backend.
// Backends register their implementation for a storage kind at init time.
// Backends without DDL, such as csvdir, register a no-op.
type DDLBootstrapper func(ctx context.Context, repo Repository, def TableDef) error

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLBootstrapper{}
)

// RegisterDDL registers (or replaces) a DDLBootstrapper for the given
// storage kind.
func RegisterDDL(kind string, fn DDLBootstrapper) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
}

// EnsureTable locates the DDLBootstrapper for kind and invokes it. Callers
// stay backend-agnostic; they pass the table definition and the already-open
// Repository.
func EnsureTable(ctx context.Context, kind string, repo Repository, def TableDef) error {
	ddlMu.RLock()
	fn, ok := ddlFns[kind]
	ddlMu.RUnlock()
	if !ok {
		return fmt.Errorf("no DDL bootstrapper registered for storage.kind=%q", kind)
	}
	return fn(ctx, repo, def)
}
