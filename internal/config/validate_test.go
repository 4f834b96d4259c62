package config

import "testing"

func validConfig() Config {
	return Config{
		Job:      "churn_demo",
		Source:   Source{RawSource: "data/raw"},
		Output:   Output{Kind: "sqlite", DSN: "out.db"},
		Labeling: Labeling{CutoffDate: "2025-06-01", WindowDays: 30},
	}
}

func countSeverity(issues []Issue, s IssueSeverity) int {
	n := 0
	for _, i := range issues {
		if i.Severity == s {
			n++
		}
	}
	return n
}

func TestValidateOK(t *testing.T) {
	t.Parallel()

	if issues := Validate(validConfig()); len(issues) != 0 {
		t.Fatalf("unexpected issues: %v", issues)
	}
}

func TestValidateFindings(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		mutate     func(*Config)
		wantErrors int
		wantWarns  int
		wantPath   string
	}{
		{
			name:      "empty job warns",
			mutate:    func(c *Config) { c.Job = "" },
			wantWarns: 1, wantPath: "job",
		},
		{
			name:       "missing raw source",
			mutate:     func(c *Config) { c.Source.RawSource = " " },
			wantErrors: 1, wantPath: "source.raw_source",
		},
		{
			name:       "unknown output kind",
			mutate:     func(c *Config) { c.Output.Kind = "excel" },
			wantErrors: 1, wantPath: "output.kind",
		},
		{
			name:       "missing dsn",
			mutate:     func(c *Config) { c.Output.DSN = "" },
			wantErrors: 1, wantPath: "output.dsn",
		},
		{
			name:       "bad cutoff date",
			mutate:     func(c *Config) { c.Labeling.CutoffDate = "06/01/2025" },
			wantErrors: 1, wantPath: "labeling.cutoff_date",
		},
		{
			name:       "negative window",
			mutate:     func(c *Config) { c.Labeling.WindowDays = -1 },
			wantErrors: 1, wantPath: "labeling.window_days",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c := validConfig()
			tc.mutate(&c)
			issues := Validate(c)

			if got := countSeverity(issues, SeverityError); got != tc.wantErrors {
				t.Fatalf("errors = %d, want %d (%v)", got, tc.wantErrors, issues)
			}
			if got := countSeverity(issues, SeverityWarning); got != tc.wantWarns {
				t.Fatalf("warnings = %d, want %d (%v)", got, tc.wantWarns, issues)
			}
			found := false
			for _, i := range issues {
				if i.Path == tc.wantPath {
					found = true
				}
			}
			if !found {
				t.Fatalf("no issue at path %q: %v", tc.wantPath, issues)
			}
		})
	}
}
