// Package csvdir implements a file-based storage.Repository that writes each
// output table as a CSV file in a directory. It exists for local runs and
// debugging: the labeled output can be inspected with any spreadsheet tool
// without standing up a database.
package csvdir

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"churn/internal/storage"
)

const dateLayout = "2006-01-02"

// Repository writes tables as <dir>/<table>.csv. The first CopyFrom for a
// table writes the header; later calls for the same table append rows.
type Repository struct {
	dir     string
	started map[string]bool
}

// NewRepository ensures dir exists and returns a Repository rooted there.
func NewRepository(dir string) (*Repository, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("csvdir: directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("csvdir: mkdir %s: %w", dir, err)
	}
	return &Repository{dir: dir, started: map[string]bool{}}, nil
}

// CopyFrom writes rows to the table's CSV file, emitting the header on the
// first call for each table.
func (r *Repository) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("csvdir: CopyFrom: columns must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	path := filepath.Join(r.dir, table+".csv")
	flags := os.O_CREATE | os.O_WRONLY
	writeHeader := !r.started[table]
	if writeHeader {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_APPEND
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return 0, fmt.Errorf("csvdir: open %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(columns); err != nil {
			return 0, fmt.Errorf("csvdir: write header: %w", err)
		}
	}

	var written int64
	record := make([]string, len(columns))
	for _, row := range rows {
		if len(row) != len(columns) {
			return written, fmt.Errorf("csvdir: CopyFrom: row length %d != columns length %d", len(row), len(columns))
		}
		for i, v := range row {
			record[i] = formatValue(v)
		}
		if err := w.Write(record); err != nil {
			return written, fmt.Errorf("csvdir: write row: %w", err)
		}
		written++
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return written, fmt.Errorf("csvdir: flush %s: %w", path, err)
	}

	r.started[table] = true
	return written, nil
}

// Exec is a no-op; a CSV directory has no DDL.
func (r *Repository) Exec(ctx context.Context, sql string) error { return nil }

func (r *Repository) Close() {}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		if t.Equal(t.Truncate(24 * time.Hour)) {
			return t.Format(dateLayout)
		}
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}

func init() {
	storage.Register("csv", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(cfg.DSN)
	})

	// Table files are truncated on first write, so DDL only needs to clear
	// any stale file from a previous run.
	storage.RegisterDDL("csv", func(ctx context.Context, repo storage.Repository, def storage.TableDef) error {
		r, ok := repo.(*Repository)
		if !ok {
			return nil
		}
		path := filepath.Join(r.dir, def.Name+".csv")
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("csvdir: remove %s: %w", path, err)
		}
		delete(r.started, def.Name)
		return nil
	})
}
