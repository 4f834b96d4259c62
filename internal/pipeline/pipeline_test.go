package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"churn/internal/config"
	"churn/internal/dataset"
	"churn/internal/label"
	"churn/internal/schema"
	_ "churn/internal/storage/csvdir"
)

// writeRawDir lays out a raw input directory from basename -> CSV body.
// Tables absent from the map are not written.
func writeRawDir(t *testing.T, tables map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range tables {
		if err := os.WriteFile(filepath.Join(dir, name+".csv"), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func fullRawTables() map[string]string {
	return map[string]string{
		dataset.TableSubscriptions: "Subscription Id,User Id,Plan Id,Start Date,End Date,Status,Price\n" +
			"1,10,100,2024-01-01,2024-12-31,active,19.99\n" +
			"2,11,101,2024-05-01,,active,9.99\n" +
			"3,12,100,2024-02-01,2024-06-20,active,49.99\n",
		dataset.TablePlans: "Plan Id,Plan Name\n100,Premium\n101,Basic\n",
		dataset.TableEvents: "Subscription Id,Action,Action Date,Next Status\n" +
			"1,renewed,2024-03-01,active\n" +
			"3,cancelled,2024-02-15,terminated\n",
		dataset.TableBilling: "Subscription Id,Amount,Payment Status,Billing Date\n" +
			"1,19.99,paid,2024-02-01\n" +
			"3,49.99,failed,2024-03-01\n",
		dataset.TableUsers: "User Id,Country\n10,cz\n11,de\n12,cz\n",
	}
}

func testRunner(t *testing.T, raw map[string]string) (*Runner, string) {
	t.Helper()
	outDir := t.TempDir()
	cfg := config.Config{
		Job:      "test",
		Source:   config.Source{RawSource: writeRawDir(t, raw)},
		Output:   config.Output{Kind: "csv", DSN: outDir},
		Labeling: config.Labeling{CutoffDate: "2024-06-15", WindowDays: 30, Seed: 42},
	}
	r := NewRunner(cfg, zap.NewNop())
	r.now = func() time.Time { return time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC) }
	return r, outDir
}

func readTable(t *testing.T, dir, table string) (header []string, rows [][]string) {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, table+".csv"))
	if err != nil {
		t.Fatalf("open %s: %v", table, err)
	}
	defer f.Close()
	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", table, err)
	}
	if len(all) == 0 {
		t.Fatalf("table %s is empty", table)
	}
	return all[0], all[1:]
}

func col(t *testing.T, header []string, name string) int {
	t.Helper()
	for i, h := range header {
		if h == name {
			return i
		}
	}
	t.Fatalf("column %s not in header %v", name, header)
	return -1
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()
	r, outDir := testRunner(t, fullRawTables())

	sum, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sum.Rows != 3 {
		t.Fatalf("rows = %d, want 3", sum.Rows)
	}
	if sum.Strategy != label.StrategyEvents {
		t.Fatalf("strategy = %s, want %s", sum.Strategy, label.StrategyEvents)
	}
	if sum.TablesWritten != 6 {
		t.Fatalf("tables written = %d, want 6", sum.TablesWritten)
	}
	if sum.RunID == "" {
		t.Fatal("empty run id")
	}

	header, rows := readTable(t, outDir, TableLabeled)
	if len(rows) != 3 {
		t.Fatalf("labeled rows = %d, want 3", len(rows))
	}

	// Subscription 3 cancelled 14 days after start: labeled churned.
	idCol, labelCol := col(t, header, "subscription_id"), col(t, header, schema.Label)
	want := map[string]string{"1": "0", "2": "0", "3": "1"}
	for _, row := range rows {
		if got := row[labelCol]; got != want[row[idCol]] {
			t.Errorf("subscription %s: %s = %s, want %s", row[idCol], schema.Label, got, want[row[idCol]])
		}
	}

	// Engineered and merged columns made it into the output.
	for _, name := range []string{"days_since_start", "num_failed_payments", "is_premium_plan", "plan_plan_name", schema.LabelObserved} {
		col(t, header, name)
	}

	// Canonical side tables written too.
	for _, table := range []string{TableSubscriptions, TablePlans, TableEvents, TableBilling, TableUsers} {
		if _, err := os.Stat(filepath.Join(outDir, table+".csv")); err != nil {
			t.Errorf("missing output table %s: %v", table, err)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()
	raw := fullRawTables()

	r1, _ := testRunner(t, raw)
	r2, _ := testRunner(t, raw)

	s1, err := r1.Run(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	s2, err := r2.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if s1.Fingerprint != s2.Fingerprint {
		t.Fatalf("fingerprints differ across identical runs: %x vs %x", s1.Fingerprint, s2.Fingerprint)
	}
	if s1.ChurnPositives != s2.ChurnPositives {
		t.Fatalf("positives differ: %d vs %d", s1.ChurnPositives, s2.ChurnPositives)
	}
}

func TestRunSyntheticFallbackIsDeterministic(t *testing.T) {
	t.Parallel()

	// No terminated_date column and no event log: synthetic labels.
	raw := map[string]string{
		dataset.TableSubscriptions: "Subscription Id,Start Date,Price\n" +
			"1,2023-06-01,19.99\n2,2024-05-01,9.99\n3,2023-01-01,49.99\n4,2024-06-01,5.00\n",
	}

	r1, _ := testRunner(t, raw)
	s1, err := r1.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s1.Strategy != label.StrategySynthetic {
		t.Fatalf("strategy = %s, want %s", s1.Strategy, label.StrategySynthetic)
	}

	r2, _ := testRunner(t, raw)
	s2, err := r2.Run(context.Background())
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if s1.Fingerprint != s2.Fingerprint {
		t.Fatalf("synthetic runs with the same seed diverged: %x vs %x", s1.Fingerprint, s2.Fingerprint)
	}
}

func TestRunMissingSubscriptionsAborts(t *testing.T) {
	t.Parallel()
	r, outDir := testRunner(t, map[string]string{
		dataset.TableUsers: "User Id\n1\n",
	})

	_, err := r.Run(context.Background())
	if !errors.Is(err, dataset.ErrMissingInput) {
		t.Fatalf("error = %v, want ErrMissingInput", err)
	}

	// Nothing was written.
	entries, readErr := os.ReadDir(outDir)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if len(entries) != 0 {
		t.Fatalf("output dir not empty after aborted run: %v", entries)
	}
}

func TestRunBadCutoffDate(t *testing.T) {
	t.Parallel()
	r, _ := testRunner(t, fullRawTables())
	r.cfg.Labeling.CutoffDate = "June 1st"

	if _, err := r.Run(context.Background()); err == nil {
		t.Fatal("expected error for unparseable cutoff_date")
	}
}

func TestLabeledColumnOrder(t *testing.T) {
	t.Parallel()
	r, outDir := testRunner(t, fullRawTables())
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	header, _ := readTable(t, outDir, TableLabeled)
	if header[0] != "subscription_id" {
		t.Errorf("first column = %s, want subscription_id", header[0])
	}
	if header[len(header)-1] != schema.LabelObserved || header[len(header)-2] != schema.Label {
		t.Errorf("labels not last: %v", header[len(header)-4:])
	}
}

func TestCanonicalSubscriptionsPredateFeatures(t *testing.T) {
	t.Parallel()
	r, outDir := testRunner(t, fullRawTables())
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	header, rows := readTable(t, outDir, TableSubscriptions)
	if len(rows) != 3 {
		t.Fatalf("canonical rows = %d, want 3", len(rows))
	}

	// The canonical table is the normalizer's output: merged plan columns
	// included, engineered features and labels absent.
	col(t, header, "subscription_id")
	col(t, header, "plan_plan_name")
	for _, name := range []string{"days_since_start", "is_premium_plan", schema.Label, schema.LabelObserved} {
		for _, h := range header {
			if h == name {
				t.Errorf("canonical table carries post-feature column %s", name)
			}
		}
	}
}
