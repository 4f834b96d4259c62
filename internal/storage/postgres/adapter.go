// Package postgres wires the Postgres backend into the storage factory.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"churn/internal/storage"
)

var newRepository = NewRepository

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
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL("postgres", func(ctx context.Context, repo storage.Repository, def storage.TableDef) error {
		if err := repo.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteTable(def.Name))); err != nil {
			return fmt.Errorf("drop %s: %w", def.Name, err)
		}
		return repo.Exec(ctx, createTableSQL(def))
	})
}

func createTableSQL(def storage.TableDef) string {
	cols := make([]string, len(def.Columns))
	for i, c := range def.Columns {
		cols[i] = pgIdent(c.Name) + " " + pgType(c.Type)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteTable(def.Name), strings.Join(cols, ", "))
}

// quoteTable quotes each part of an optionally schema-qualified name.
func quoteTable(table string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = pgIdent(p)
	}
	return strings.Join(parts, ".")
}

func pgType(t storage.ColType) string {
	switch t {
	case storage.ColInteger:
		return "BIGINT"
	case storage.ColReal:
		return "DOUBLE PRECISION"
	case storage.ColBool:
		return "BOOLEAN"
	case storage.ColDate:
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}
