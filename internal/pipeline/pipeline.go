// Package pipeline sequences the feature engineering run: load the raw
// tables, normalize them, compute features, attach labels, then persist the
// output tables. All computation happens in memory before the first write,
// so a failing step never leaves a partially labeled output table behind.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"churn/internal/config"
	"churn/internal/dataset"
	"churn/internal/feature"
	"churn/internal/label"
	"churn/internal/metrics"
	"churn/internal/normalize"
	"churn/internal/schema"
	"churn/internal/storage"
	"churn/pkg/records"
)

// Output table names.
const (
	TableLabeled       = "subscriptions_labeled"
	TableSubscriptions = "subscriptions_canonical"
	TablePlans         = "plans_clean"
	TableEvents        = "subscription_events"
	TableBilling       = "billing_clean"
	TableUsers         = "users"
)

// Step names used in logs and metrics.
const (
	stepLoad      = "load"
	stepNormalize = "normalize"
	stepFeature   = "feature"
	stepLabel     = "label"
	stepPersist   = "persist"
)

// Summary reports what a run produced.
type Summary struct {
	RunID          string
	Rows           int
	ChurnPositives int64
	ChurnRate      float64
	Strategy       label.Strategy
	Fingerprint    uint64
	TablesWritten  int
	RowsWritten    int64
	SkippedInput   map[string]int
	Duration       time.Duration
}

// Runner executes the pipeline for one configuration.
type Runner struct {
	cfg config.Config
	log *zap.Logger
	now func() time.Time

	// openSource is a test hook; defaults to sourceFor.
	openSource func(cfg config.Config) (dataset.Source, error)
	// openRepo is a test hook; defaults to storage.New.
	openRepo func(ctx context.Context, sc storage.Config) (storage.Repository, error)
}

// NewRunner builds a Runner. log must not be nil; use zap.NewNop() to
// silence it.
func NewRunner(cfg config.Config, log *zap.Logger) *Runner {
	return &Runner{
		cfg:        cfg,
		log:        log,
		now:        time.Now,
		openSource: sourceFor,
		openRepo:   storage.New,
	}
}

// Run executes the whole pipeline and returns its summary. The returned
// error wraps the failing step.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	started := r.now()
	runID := uuid.NewString()
	job := r.cfg.Job
	log := r.log.With(zap.String("run_id", runID), zap.String("job", job))

	cutoff, err := r.cfg.Labeling.Cutoff(r.now)
	if err != nil {
		return Summary{}, fmt.Errorf("resolve cutoff: %w", err)
	}
	log.Info("pipeline starting",
		zap.String("raw_source", r.cfg.Source.RawSource),
		zap.String("output_kind", r.cfg.Output.Kind),
		zap.Time("cutoff", cutoff),
	)

	// Load.
	src, err := r.openSource(r.cfg)
	if err != nil {
		return Summary{}, fmt.Errorf("open source: %w", err)
	}
	stepStart := r.now()
	tabs, err := dataset.Load(ctx, src)
	metrics.RecordStep(job, stepLoad, err, r.now().Sub(stepStart))
	if err != nil {
		return Summary{}, fmt.Errorf("load raw tables: %w", err)
	}
	loaded := len(tabs.Subscriptions) + len(tabs.Plans) + len(tabs.Events) + len(tabs.Billing) + len(tabs.Users)
	metrics.RecordRows(job, "loaded", int64(loaded))
	for table, n := range tabs.Skipped {
		if n > 0 {
			log.Warn("rows skipped during parse", zap.String("table", table), zap.Int("rows", n))
			metrics.RecordRows(job, "skipped", int64(n))
		}
	}
	for _, table := range tabs.Missing {
		log.Warn("optional raw table not found, loading as empty", zap.String("table", table))
	}

	// Normalize.
	stepStart = r.now()
	res := normalize.Normalize(tabs, log)
	metrics.RecordStep(job, stepNormalize, nil, r.now().Sub(stepStart))

	// Feature construction mutates the subscription rows in place; the
	// canonical form is cloned first so it can be persisted for audit.
	canonical := cloneRows(res.Subscriptions)

	// Features.
	stepStart = r.now()
	rows := feature.Augment(res, cutoff, log)
	metrics.RecordStep(job, stepFeature, nil, r.now().Sub(stepStart))

	// Labels.
	stepStart = r.now()
	eventsBySub := feature.GroupBySubscription(res.Events)
	strategy := label.Apply(rows, res.Presence, eventsBySub, label.Params{
		WindowDays: r.cfg.Labeling.Window(),
		Seed:       r.cfg.Labeling.SyntheticSeed(),
	}, log)
	metrics.RecordStep(job, stepLabel, nil, r.now().Sub(stepStart))
	metrics.RecordRows(job, "labeled", int64(len(rows)))

	positives := countPositives(rows)
	metrics.RecordRows(job, "churn_positive", positives)

	// Persist.
	stepStart = r.now()
	tables, written, err := r.persist(ctx, res, canonical, rows)
	metrics.RecordStep(job, stepPersist, err, r.now().Sub(stepStart))
	if err != nil {
		return Summary{}, fmt.Errorf("persist output: %w", err)
	}
	metrics.RecordRows(job, "inserted", written)
	metrics.RecordTables(job, int64(tables))

	sum := Summary{
		RunID:          runID,
		Rows:           len(rows),
		ChurnPositives: positives,
		ChurnRate:      churnRate(positives, len(rows)),
		Strategy:       strategy,
		Fingerprint:    records.Fingerprint(rows, labeledColumns(rows)),
		TablesWritten:  tables,
		RowsWritten:    written,
		SkippedInput:   tabs.Skipped,
		Duration:       r.now().Sub(started),
	}
	log.Info("pipeline finished",
		zap.Int("rows", sum.Rows),
		zap.Int64("churn_positives", sum.ChurnPositives),
		zap.Float64("churn_rate", sum.ChurnRate),
		zap.String("label_strategy", string(sum.Strategy)),
		zap.Bool("synthetic_labels", !sum.Strategy.Observed()),
		zap.Uint64("fingerprint", sum.Fingerprint),
		zap.Int("tables_written", sum.TablesWritten),
		zap.Int64("rows_written", sum.RowsWritten),
		zap.Duration("duration", sum.Duration),
	)
	return sum, nil
}

// persist writes the labeled table and each canonical table through one
// repository. Tables with no rows are skipped.
func (r *Runner) persist(ctx context.Context, res *normalize.Result, canonical, labeled []records.Record) (tables int, written int64, err error) {
	repo, err := r.openRepo(ctx, storage.Config{Kind: r.cfg.Output.Kind, DSN: r.cfg.Output.DSN})
	if err != nil {
		return 0, 0, fmt.Errorf("open repository: %w", err)
	}
	defer repo.Close()

	outputs := []struct {
		name    string
		columns []string
		rows    []records.Record
	}{
		{TableLabeled, labeledColumns(labeled), labeled},
		{TableSubscriptions, storage.ColumnsOf(canonical), canonical},
		{TablePlans, storage.ColumnsOf(res.Plans), res.Plans},
		{TableEvents, storage.ColumnsOf(res.Events), res.Events},
		{TableBilling, storage.ColumnsOf(res.Billing), res.Billing},
		{TableUsers, storage.ColumnsOf(res.Users), res.Users},
	}

	for _, out := range outputs {
		if len(out.rows) == 0 {
			continue
		}
		def := storage.InferTableDef(out.name, out.columns, out.rows)
		if err := storage.EnsureTable(ctx, r.cfg.Output.Kind, repo, def); err != nil {
			return tables, written, fmt.Errorf("table %s: %w", out.name, err)
		}
		n, err := repo.CopyFrom(ctx, out.name, out.columns, storage.RecordsToRows(out.rows, out.columns))
		if err != nil {
			return tables, written, fmt.Errorf("table %s: %w", out.name, err)
		}
		tables++
		written += n
	}
	return tables, written, nil
}

// labeledColumns fixes the column order of the labeled output table: base
// subscription columns, merged plan columns, engineered features, labels.
// Columns no row carries are dropped; unexpected extras land before the
// features, sorted.
func labeledColumns(rows []records.Record) []string {
	present := map[string]bool{}
	for _, r := range rows {
		for k := range r {
			present[k] = true
		}
	}

	base := []string{
		schema.ColSubscriptionID, schema.ColUserID, schema.ColPlanID,
		schema.ColStartDate, schema.ColEndDate, schema.ColStatus,
		schema.ColPrice, schema.ColSubscriptionType, schema.ColTerminatedDate,
	}
	tail := append(append([]string{}, feature.Columns...), schema.Label, schema.LabelObserved)

	claimed := map[string]bool{}
	for _, c := range append(append([]string{}, base...), tail...) {
		claimed[c] = true
	}

	var planCols, extras []string
	for c := range present {
		switch {
		case claimed[c]:
		case strings.HasPrefix(c, schema.PlanPrefix):
			planCols = append(planCols, c)
		default:
			extras = append(extras, c)
		}
	}
	sort.Strings(planCols)
	sort.Strings(extras)

	var out []string
	for _, c := range base {
		if present[c] {
			out = append(out, c)
		}
	}
	out = append(out, planCols...)
	out = append(out, extras...)
	for _, c := range tail {
		if present[c] {
			out = append(out, c)
		}
	}
	return out
}

// sourceFor picks the dataset source from the configured raw_source: HTTP
// URLs get the retrying HTTP source, anything else is a local directory.
func sourceFor(cfg config.Config) (dataset.Source, error) {
	raw := strings.TrimSpace(cfg.Source.RawSource)
	if raw == "" {
		return nil, fmt.Errorf("source.raw_source is required")
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		opts := cfg.Source.Options
		return dataset.NewHTTPSource(raw, dataset.HTTPConfig{
			Timeout:    time.Duration(opts.Int("timeout_seconds", 0)) * time.Second,
			MaxRetries: opts.Int("max_retries", 0),
		}), nil
	}
	return dataset.NewDirSource(raw), nil
}

func cloneRows(rows []records.Record) []records.Record {
	out := make([]records.Record, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

func countPositives(rows []records.Record) int64 {
	var n int64
	for _, r := range rows {
		if v, ok := r.Int(schema.Label); ok && v == 1 {
			n++
		}
	}
	return n
}

func churnRate(positives int64, rows int) float64 {
	if rows == 0 {
		return 0
	}
	return float64(positives) / float64(rows)
}
