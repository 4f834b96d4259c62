// Package dataset locates and loads the five raw input tables of one
// pipeline run: subscriptions, plans, event logs, billing transactions, and
// users. A missing subscriptions table is the one fatal input condition, and
// Load fails fast with ErrMissingInput before any downstream work starts.
// The secondary tables are optional; a missing one loads as empty and the
// labeling fallback chain deals with the gap.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"churn/internal/parser"
	csvparser "churn/internal/parser/csv"
	"churn/pkg/records"
)

// Raw table names. These double as file basenames under a directory source
// (<name>.csv) and as path suffixes under an HTTP source.
const (
	TableSubscriptions = "subscriptions"
	TablePlans         = "subscription_plans"
	TableEvents        = "subscription_logs"
	TableBilling       = "billing_information"
	TableUsers         = "user_data"
)

// ErrMissingInput marks a raw table that cannot be located. Callers check it
// with errors.Is; the run must abort with no partial output.
var ErrMissingInput = errors.New("raw input table not found")

// Tables holds one loaded snapshot of the five raw tables. Rows are keyed by
// canonicalized header names; no renames or type coercion have happened yet.
type Tables struct {
	Subscriptions []records.Record
	Plans         []records.Record
	Events        []records.Record
	Billing       []records.Record
	Users         []records.Record

	// Skipped counts malformed rows dropped per table during parsing.
	Skipped map[string]int

	// Missing lists optional tables the source could not locate.
	Missing []string
}

// Source opens one named raw table for reading.
type Source interface {
	Open(ctx context.Context, table string) (io.ReadCloser, error)
}

// DirSource reads raw tables from a local directory as <dir>/<table>.csv.
type DirSource struct{ dir string }

// NewDirSource returns a Source bound to the given directory.
func NewDirSource(dir string) *DirSource { return &DirSource{dir: dir} }

// Open opens the CSV file backing the named table. Missing files map to
// ErrMissingInput; filesystem detail stays available via the wrapped error.
func (s *DirSource) Open(ctx context.Context, table string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	path := filepath.Join(s.dir, table+".csv")
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s (%s)", ErrMissingInput, table, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	adviseSequential(f)
	return f, nil
}

// Load reads and parses the raw tables concurrently. A missing or unreadable
// subscriptions table aborts the whole load; missing secondary tables load
// as empty and are listed in Tables.Missing.
func Load(ctx context.Context, src Source) (*Tables, error) {
	t := &Tables{Skipped: make(map[string]int, 5)}

	targets := []struct {
		name     string
		dst      *[]records.Record
		required bool
	}{
		{TableSubscriptions, &t.Subscriptions, true},
		{TablePlans, &t.Plans, false},
		{TableEvents, &t.Events, false},
		{TableBilling, &t.Billing, false},
		{TableUsers, &t.Users, false},
	}

	skips := make([]int, len(targets))
	missing := make([]bool, len(targets))

	g, ctx := errgroup.WithContext(ctx)
	for i, tgt := range targets {
		g.Go(func() error {
			rc, err := src.Open(ctx, tgt.name)
			if err != nil {
				if !tgt.required && errors.Is(err, ErrMissingInput) {
					missing[i] = true
					return nil
				}
				return err
			}
			defer rc.Close()

			var p parser.Parser = csvparser.NewParser(csvparser.Options{HasHeader: true, TrimSpace: true})
			rows, skipped, err := p.Parse(rc)
			if err != nil {
				return fmt.Errorf("parse %s: %w", tgt.name, err)
			}
			*tgt.dst = rows
			skips[i] = skipped
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, tgt := range targets {
		t.Skipped[tgt.name] = skips[i]
		if missing[i] {
			t.Missing = append(t.Missing, tgt.name)
		}
	}
	return t, nil
}
