package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"churn/internal/config"
	"churn/internal/metrics"
	"churn/internal/metrics/datadog"
	"churn/internal/metrics/prompush"
	"churn/internal/pipeline"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "churn/internal/storage/all"
)

// main is the entry point for the churn pipeline binary. It loads the run
// config, optionally initializes a metrics backend, and executes the run.
func main() {
	var (
		cfgPath           string
		cutoffFlg         string
		windowFlg         int
		metricsBackendFlg string
		pushGatewayURLFlg string
		datadogAddrFlg    string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/churn.json", "run config path (JSON or YAML)")
	flag.StringVar(&cutoffFlg, "cutoff", "", "override labeling.cutoff_date (YYYY-MM-DD)")
	flag.IntVar(&windowFlg, "window", 0, "override labeling.window_days")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (pushgateway, datadog, none; falls back to env METRICS_BACKEND)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.StringVar(&datadogAddrFlg, "datadog-addr", "", "DogStatsD address (overrides env DOGSTATSD_ADDR)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	log := newLogger(*verbose)
	defer log.Sync()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatalf("load config: %v", err)
	}
	if cutoffFlg != "" {
		cfg.Labeling.CutoffDate = cutoffFlg
	}
	if windowFlg > 0 {
		cfg.Labeling.WindowDays = windowFlg
	}

	issues := config.Validate(cfg)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		fatalf("configuration is invalid: %v", cfgPath)
	}
	if validate {
		fmt.Printf("configuration is valid: %v\n", cfgPath)
		return
	}

	setupMetrics(log, cfg.Job, metricsBackendFlg, pushGatewayURLFlg, datadogAddrFlg)
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Warn("metrics flush failed", zap.Error(err))
		}
	}()

	ctx := context.Background()
	start := time.Now()

	sum, err := pipeline.NewRunner(cfg, log).Run(ctx)
	if err != nil {
		metrics.Flush()
		log.Fatal("pipeline failed", zap.Error(err))
	}

	log.Info("done",
		zap.String("run_id", sum.RunID),
		zap.Int("rows", sum.Rows),
		zap.Float64("churn_rate", sum.ChurnRate),
		zap.Duration("elapsed", time.Since(start).Truncate(time.Millisecond)),
	)
}

// setupMetrics decides the metrics backend: flag -> env -> default nop.
func setupMetrics(log *zap.Logger, job, backendName, gwURL, ddAddr string) {
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	if job == "" {
		job = "churn"
	}

	switch backendName {
	case "pushgateway":
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}
		b, err := prompush.NewBackend(job, gwURL)
		if err != nil {
			log.Warn("metrics: pushgateway backend init failed, using nop", zap.Error(err))
			return
		}
		log.Info("metrics enabled", zap.String("backend", backendName), zap.String("url", gwURL), zap.String("job", job))
		metrics.SetBackend(b)

	case "datadog":
		if ddAddr == "" {
			ddAddr = os.Getenv("DOGSTATSD_ADDR")
		}
		if ddAddr == "" {
			ddAddr = "127.0.0.1:8125"
		}
		b, err := datadog.NewBackend(datadog.Config{Addr: ddAddr, Namespace: "churn."})
		if err != nil {
			log.Warn("metrics: datadog backend init failed, using nop", zap.Error(err))
			return
		}
		log.Info("metrics enabled", zap.String("backend", backendName), zap.String("addr", ddAddr), zap.String("job", job))
		metrics.SetBackend(b)

	case "", "none":
		// metrics disabled; nop backend remains

	default:
		log.Warn("metrics: unknown backend, metrics disabled", zap.String("backend", backendName))
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
