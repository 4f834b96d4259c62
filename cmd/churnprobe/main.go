// Command churnprobe inspects a raw input directory before a pipeline run:
// it loads the five tables, reports row counts and canonicalized columns,
// and flags the canonical subscription columns the batch is missing.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"churn/internal/dataset"
	"churn/internal/schema"
	"churn/pkg/records"
)

var flagDir = flag.String("dir", "data/raw", "raw input directory to inspect")

func main() {
	flag.Parse()

	tabs, err := dataset.Load(context.Background(), dataset.NewDirSource(*flagDir))
	if err != nil {
		fmt.Fprintf(os.Stderr, "churnprobe: %v\n", err)
		os.Exit(1)
	}

	report(dataset.TableSubscriptions, tabs.Subscriptions, tabs.Skipped)
	report(dataset.TablePlans, tabs.Plans, tabs.Skipped)
	report(dataset.TableEvents, tabs.Events, tabs.Skipped)
	report(dataset.TableBilling, tabs.Billing, tabs.Skipped)
	report(dataset.TableUsers, tabs.Users, tabs.Skipped)

	for _, missing := range tabs.Missing {
		fmt.Printf("table %s: not found (optional)\n", missing)
	}

	canonical := []string{
		schema.ColSubscriptionID, schema.ColUserID, schema.ColPlanID,
		schema.ColStartDate, schema.ColEndDate, schema.ColStatus,
		schema.ColPrice, schema.ColSubscriptionType, schema.ColTerminatedDate,
	}
	presence := schema.ResolvePresence(tabs.Subscriptions, canonical...)
	if gaps := presence.Missing(canonical...); len(gaps) > 0 {
		fmt.Printf("\nmissing canonical subscription columns (features will degrade to defaults):\n")
		for _, c := range gaps {
			fmt.Printf("  %s\n", c)
		}
	} else {
		fmt.Printf("\nall canonical subscription columns present\n")
	}
}

func report(table string, rows []records.Record, skipped map[string]int) {
	if len(rows) == 0 {
		return
	}
	cols := map[string]bool{}
	for _, r := range rows {
		for k := range r {
			cols[k] = true
		}
	}
	names := make([]string, 0, len(cols))
	for k := range cols {
		names = append(names, k)
	}
	sort.Strings(names)

	fmt.Printf("table %s: %d rows", table, len(rows))
	if n := skipped[table]; n > 0 {
		fmt.Printf(" (%d malformed rows skipped)", n)
	}
	fmt.Println()
	for _, name := range names {
		fmt.Printf("  %s\n", name)
	}
}
