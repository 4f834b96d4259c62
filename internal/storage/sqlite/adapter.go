// Package sqlite wires the SQLite backend into the storage factory. It
// exposes a storage.Repository implementation without forcing callers to
// import this package directly; registration happens in init.
package sqlite

import (
	"context"
	"fmt"
	"strings"

	"churn/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// wrappedRepo adapts *sqlite.Repository to the storage.Repository interface,
// adding a Close method that calls the cleanup function returned by
// NewRepository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

var _ storage.Repository = (*wrappedRepo)(nil)

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL("sqlite", func(ctx context.Context, repo storage.Repository, def storage.TableDef) error {
		if err := repo.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(def.Name))); err != nil {
			return fmt.Errorf("drop %s: %w", def.Name, err)
		}
		return repo.Exec(ctx, createTableSQL(def))
	})
}

// createTableSQL renders the backend-neutral table definition in SQLite's
// dialect. SQLite has no native bool or date types; both ride on the
// driver's default encodings.
func createTableSQL(def storage.TableDef) string {
	cols := make([]string, len(def.Columns))
	for i, c := range def.Columns {
		cols[i] = quoteIdent(c.Name) + " " + sqliteType(c.Type)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(def.Name), strings.Join(cols, ", "))
}

func sqliteType(t storage.ColType) string {
	switch t {
	case storage.ColInteger, storage.ColBool:
		return "INTEGER"
	case storage.ColReal:
		return "REAL"
	case storage.ColDate:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}
