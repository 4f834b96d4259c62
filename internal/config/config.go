// Package config defines the canonical configuration model for a pipeline
// run. It is intentionally small and explicit so that run files can be loaded
// from disk (JSON or YAML) and passed through the program without glue code.
//
// Example (trimmed):
//
//	{
//	  "job": "churn_demo",
//	  "source":   { "raw_source": "data/raw" },
//	  "output":   { "kind": "sqlite", "dsn": "data/processed/churn.db" },
//	  "labeling": { "cutoff_date": "2025-06-01", "window_days": 30 }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config describes one full pipeline run. It is the top-level object decoded
// from a run file.
type Config struct {
	// Job names the run for metrics labeling and log correlation.
	Job string `json:"job" yaml:"job"`

	// Source describes where the five raw tables come from.
	Source Source `json:"source" yaml:"source"`

	// Output describes where the labeled and canonical tables are written.
	Output Output `json:"output" yaml:"output"`

	// Labeling carries the temporal parameters of feature and label
	// construction.
	Labeling Labeling `json:"labeling" yaml:"labeling"`
}

// Source identifies where raw tables are read from. RawSource is either a
// local directory containing <table>.csv files or an http(s) base URL
// serving the same layout.
type Source struct {
	RawSource string `json:"raw_source" yaml:"raw_source"`

	// Options carries source-specific tuning (e.g. http retry counts),
	// interpreted by the source implementation.
	Options Options `json:"options" yaml:"options"`
}

// Output selects the sink used to persist the produced tables.
type Output struct {
	// Kind selects the storage backend: "sqlite", "postgres", or "csv".
	Kind string `json:"kind" yaml:"kind"`

	// DSN is the connection string for database sinks; for the "csv" kind it
	// is the destination directory.
	DSN string `json:"dsn" yaml:"dsn"`
}

// Labeling holds the cutoff date and churn window of a run.
type Labeling struct {
	// CutoffDate is the "as of" date for tenure/recency features, in
	// YYYY-MM-DD form. Empty means the current date; backfills set it
	// explicitly.
	CutoffDate string `json:"cutoff_date" yaml:"cutoff_date"`

	// WindowDays is the churn window. Zero means the default (30).
	WindowDays int `json:"window_days" yaml:"window_days"`

	// Seed drives the synthetic label fallback. Zero means the default (42).
	Seed int64 `json:"seed" yaml:"seed"`
}

// DefaultWindowDays is the churn window applied when the run does not set one.
const DefaultWindowDays = 30

// DefaultSeed is the synthetic-label seed applied when the run does not set one.
const DefaultSeed = 42

// cutoffLayout is the wire form of Labeling.CutoffDate.
const cutoffLayout = "2006-01-02"

// Cutoff resolves the run's cutoff date, defaulting to today (midnight UTC)
// when unset. An unparseable explicit value is an error: a silently wrong
// reference date would corrupt every tenure feature.
func (l Labeling) Cutoff(now func() time.Time) (time.Time, error) {
	if strings.TrimSpace(l.CutoffDate) == "" {
		y, m, d := now().UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(cutoffLayout, l.CutoffDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cutoff_date %q: %w", l.CutoffDate, err)
	}
	return t, nil
}

// Window resolves the run's churn window in days.
func (l Labeling) Window() int {
	if l.WindowDays > 0 {
		return l.WindowDays
	}
	return DefaultWindowDays
}

// SyntheticSeed resolves the synthetic-label seed.
func (l Labeling) SyntheticSeed() int64 {
	if l.Seed != 0 {
		return l.Seed
	}
	return DefaultSeed
}

// Load reads a Config from path. The format is selected by extension:
// .yaml/.yml decode as YAML, anything else as JSON.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var c Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &c); err != nil {
			return Config{}, fmt.Errorf("decode yaml config: %w", err)
		}
	default:
		if err := json.Unmarshal(b, &c); err != nil {
			return Config{}, fmt.Errorf("decode json config: %w", err)
		}
	}
	return c, nil
}

// Options is a small helper to fetch typed values from arbitrary JSON/YAML
// maps without introducing a third-party configuration library. It performs
// only minimal type coercion and returns the provided default when a key is
// absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def when absent.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def when absent.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers decode as float64,
// so both float64 and int are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// UnmarshalJSON makes a missing or null options object decode to a non-nil,
// empty map so call sites need no nil checks.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
