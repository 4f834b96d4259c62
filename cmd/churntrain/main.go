package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"

	"go.uber.org/zap"

	"churn/internal/feature"
	"churn/internal/model"
	csvparser "churn/internal/parser/csv"
	"churn/internal/schema"
	"churn/internal/transform"
	"churn/pkg/records"
)

// main is the entry point for the training binary. It reads the labeled
// feature table the pipeline produced, fits a churn model, stores it in the
// model registry, and optionally scores a batch of simulated subscriptions
// with it.
func main() {
	var (
		labeledPath string
		modelsDir   string
		name        string
		seed        int64
		epochs      int
		lr          float64
		list        bool
		demo        int
	)

	flag.StringVar(&labeledPath, "labeled", "out/subscriptions_labeled.csv", "labeled feature table (CSV)")
	flag.StringVar(&modelsDir, "models", "models", "model registry directory")
	flag.StringVar(&name, "name", "churn_model", "model name in the registry")
	flag.Int64Var(&seed, "seed", 42, "random seed for split and demo scoring")
	flag.IntVar(&epochs, "epochs", 0, "training epochs (0 = default)")
	flag.Float64Var(&lr, "lr", 0, "learning rate (0 = default)")
	flag.BoolVar(&list, "list", false, "list stored models and exit")
	flag.IntVar(&demo, "demo", 0, "score N simulated subscriptions after training")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	log := newLogger(*verbose)
	defer log.Sync()

	reg, err := model.NewRegistry(modelsDir)
	if err != nil {
		fatalf("open registry: %v", err)
	}

	if list {
		listModels(reg)
		return
	}

	rows, err := loadLabeled(labeledPath)
	if err != nil {
		fatalf("load labeled table: %v", err)
	}
	log.Info("labeled table loaded", zap.String("path", labeledPath), zap.Int("rows", len(rows)))

	m, meta, err := model.Train(rows, labelsObserved(rows), model.TrainParams{
		Seed:         seed,
		Epochs:       epochs,
		LearningRate: lr,
	})
	if err != nil {
		fatalf("train: %v", err)
	}
	if err := reg.Save(name, m, meta); err != nil {
		fatalf("save model: %v", err)
	}

	log.Info("model trained",
		zap.String("name", name),
		zap.String("model_version", meta.ModelVersion),
		zap.Float64("auc", meta.AUCScore),
		zap.Int("train_rows", meta.TrainRows),
		zap.Int("test_rows", meta.TestRows),
		zap.Strings("features", meta.FeatureNames),
		zap.Bool("label_observed", meta.LabelObserved),
	)
	printImportance(meta)

	if demo > 0 {
		runDemo(m, demo, seed)
	}
}

// loadLabeled reads the labeled CSV back into typed records. The pipeline
// wrote plain CSV, so numbers, bools, and dates arrive as strings and get
// re-coerced here.
func loadLabeled(path string) ([]records.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p := csvparser.NewParser(csvparser.Options{HasHeader: true, TrimSpace: true})
	rows, skipped, err := p.Parse(f)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		fmt.Fprintf(os.Stderr, "warning: %d malformed rows skipped\n", skipped)
	}

	chain := transform.Chain{
		transform.Numbers{
			Ints: []string{
				schema.ColSubscriptionID, schema.ColUserID, schema.ColPlanID,
				feature.ColDaysSinceStart, feature.ColDaysUntilEnd,
				feature.ColNumEventsTotal, feature.ColNumRenewals, feature.ColNumEventsLast30d,
				feature.ColNumPayments, feature.ColNumFailedPayments,
				schema.Label,
			},
			Floats: []string{
				schema.ColPrice, feature.ColTotalAmount, feature.ColAvgAmount,
			},
		},
		transform.Bools{Fields: []string{
			feature.ColIsNearEnd, feature.ColIsPremiumPlan, schema.LabelObserved,
		}},
		transform.Dates{Fields: []string{
			schema.ColStartDate, schema.ColEndDate, schema.ColTerminatedDate,
			feature.ColLastEventDate, feature.ColLastPaymentDate,
		}},
	}
	return chain.Apply(rows), nil
}

// labelsObserved reports whether the batch carries observed labels. The
// pipeline writes the same flag on every row.
func labelsObserved(rows []records.Record) bool {
	for _, r := range rows {
		if v, ok := r.Bool(schema.LabelObserved); ok {
			return v
		}
	}
	return false
}

func listModels(reg *model.Registry) {
	names, err := reg.List()
	if err != nil {
		fatalf("list models: %v", err)
	}
	if len(names) == 0 {
		fmt.Println("no models stored")
		return
	}
	for _, n := range names {
		meta, err := reg.Meta(n)
		if err != nil {
			fmt.Printf("%s: unreadable metadata: %v\n", n, err)
			continue
		}
		fmt.Printf("%s\tversion=%s auc=%.4f trained=%s observed=%v\n",
			n, meta.ModelVersion, meta.AUCScore,
			meta.TrainingDate.Format("2006-01-02"), meta.LabelObserved)
	}
}

func printImportance(meta model.Metadata) {
	type fi struct {
		name  string
		share float64
	}
	ranked := make([]fi, 0, len(meta.FeatureImportance))
	for name, share := range meta.FeatureImportance {
		ranked = append(ranked, fi{name, share})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].share > ranked[j].share })

	fmt.Println("feature importance:")
	for _, f := range ranked {
		fmt.Printf("  %-24s %.4f\n", f.name, f.share)
	}
}

func runDemo(m *model.LogisticModel, n int, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	fmt.Printf("demo scoring of %d simulated subscriptions:\n", n)
	for i := 0; i < n; i++ {
		rec := model.SimulateRecord(rng, int64(i+1))
		p := m.Score(rec)
		fmt.Printf("  subscription %-4d p=%.3f risk=%s\n", i+1, p, model.RiskBucket(p))
	}
}

func newLogger(verbose bool) *zap.Logger {
	if verbose {
		log, err := zap.NewDevelopment()
		if err != nil {
			fatalf("init logger: %v", err)
		}
		return log
	}
	log, err := zap.NewProduction()
	if err != nil {
		fatalf("init logger: %v", err)
	}
	return log
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
