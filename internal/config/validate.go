// This file adds a lightweight linter for Config values. It performs static
// checks over a decoded Config and returns a list of issues (errors and
// warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"
	"time"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding surfaced to users without blocking.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding. Path is a dotted path into
// the config (e.g. "output.kind").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as an
// error where convenient.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// knownOutputKinds mirrors the storage backends registered by the storage
// factory; validation stays decoupled from the factory itself.
var knownOutputKinds = map[string]bool{"sqlite": true, "postgres": true, "csv": true}

// Validate performs static validation of a Config. It does not mutate the
// config; callers decide whether warnings are fatal.
func Validate(c Config) []Issue {
	var issues []Issue

	if strings.TrimSpace(c.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "job",
			Message:  "job is empty; metrics and logs will use the default job name",
		})
	}

	if strings.TrimSpace(c.Source.RawSource) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.raw_source",
			Message:  "raw_source must name a directory or http(s) base URL holding the five raw tables",
		})
	}

	kind := strings.TrimSpace(c.Output.Kind)
	switch {
	case kind == "":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "output.kind",
			Message:  "output.kind is required (sqlite, postgres, or csv)",
		})
	case !knownOutputKinds[kind]:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "output.kind",
			Message:  fmt.Sprintf("unknown output kind %q", kind),
		})
	}
	if strings.TrimSpace(c.Output.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "output.dsn",
			Message:  "output.dsn is required (connection string, or directory for the csv kind)",
		})
	}

	if c.Labeling.CutoffDate != "" {
		if _, err := time.Parse(cutoffLayout, c.Labeling.CutoffDate); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "labeling.cutoff_date",
				Message:  fmt.Sprintf("cutoff_date %q is not in YYYY-MM-DD form", c.Labeling.CutoffDate),
			})
		}
	}
	if c.Labeling.WindowDays < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "labeling.window_days",
			Message:  "window_days must not be negative",
		})
	}

	return issues
}
