// Package normalize canonicalizes the five raw tables: renames source
// columns into the canonical vocabulary, coerces ids, money, and dates to
// typed values, merges plan attributes into the subscription table, and
// resolves once which optional columns this batch actually carries.
//
// Nothing in this package raises on bad data. Unparseable cells become nil
// and downstream stages apply their declared defaults; only the orchestrator
// treats a whole missing table as fatal.
package normalize

import (
	"sort"

	"go.uber.org/zap"

	"churn/internal/dataset"
	"churn/internal/schema"
	"churn/internal/transform"
	"churn/pkg/records"
)

// Result holds the canonicalized tables plus the resolved presence map for
// the subscription table. Feature and label construction read only from
// here.
type Result struct {
	Subscriptions []records.Record
	Plans         []records.Record
	Events        []records.Record
	Billing       []records.Record
	Users         []records.Record

	// Presence records which optional subscription columns exist in this
	// batch; it is resolved here exactly once.
	Presence schema.Presence
}

// Normalize canonicalizes one loaded snapshot. The input tables are mutated
// in place and must not be reused by the caller afterwards.
func Normalize(tabs *dataset.Tables, log *zap.Logger) *Result {
	subs := transform.Chain{
		transform.Rename{Map: schema.SubscriptionRenames},
		transform.Numbers{
			Ints:   []string{schema.ColSubscriptionID, schema.ColUserID, schema.ColPlanID},
			Floats: []string{schema.ColPrice},
		},
		transform.Dates{Fields: schema.SubscriptionDateColumns},
	}.Apply(tabs.Subscriptions)

	plans := transform.Numbers{
		Ints: []string{schema.ColPlanID},
	}.Apply(tabs.Plans)

	events := transform.Chain{
		transform.Rename{Map: schema.EventRenames},
		transform.Numbers{Ints: []string{schema.ColSubscriptionID}},
		transform.Dates{Fields: schema.EventDateColumns},
	}.Apply(tabs.Events)

	billing := transform.Chain{
		transform.Rename{Map: schema.BillingRenames},
		transform.Numbers{
			Ints:   []string{schema.ColSubscriptionID},
			Floats: []string{schema.ColAmount},
		},
		transform.Dates{Fields: schema.BillingDateColumns},
	}.Apply(tabs.Billing)

	users := transform.Numbers{
		Ints: []string{schema.ColUserID},
	}.Apply(tabs.Users)

	mergePlans(subs, plans)

	presence := schema.ResolvePresence(subs,
		schema.ColSubscriptionID, schema.ColUserID, schema.ColPlanID,
		schema.ColStartDate, schema.ColEndDate, schema.ColStatus,
		schema.ColPrice, schema.ColSubscriptionType, schema.ColTerminatedDate,
	)

	// Schema-drift diagnostics: absent canonical columns are worth an
	// operator's attention but never block the run.
	if missing := presence.Missing(
		schema.ColStartDate, schema.ColEndDate, schema.ColStatus,
		schema.ColPrice, schema.ColSubscriptionType,
	); len(missing) > 0 {
		log.Warn("subscription table is missing canonical columns; defaults will apply",
			zap.Strings("columns", missing))
	}
	log.Debug("normalized tables",
		zap.Strings("subscription_columns", columnsOf(subs)),
		zap.Strings("event_columns", columnsOf(events)),
		zap.Strings("billing_columns", columnsOf(billing)),
		zap.Int("subscriptions", len(subs)),
		zap.Int("plans", len(plans)),
		zap.Int("events", len(events)),
		zap.Int("billing", len(billing)),
		zap.Int("users", len(users)),
	)

	return &Result{
		Subscriptions: subs,
		Plans:         plans,
		Events:        events,
		Billing:       billing,
		Users:         users,
		Presence:      presence,
	}
}

// mergePlans left-joins plan attributes onto subscriptions by plan_id. Plan
// columns are prefixed to avoid collisions; subscriptions without a matching
// plan keep no plan columns (nulls by absence).
func mergePlans(subs, plans []records.Record) {
	byID := make(map[int64]records.Record, len(plans))
	for _, p := range plans {
		if id, ok := p.Int(schema.ColPlanID); ok {
			byID[id] = p
		}
	}
	for _, s := range subs {
		id, ok := s.Int(schema.ColPlanID)
		if !ok {
			continue
		}
		p, ok := byID[id]
		if !ok {
			continue
		}
		for k, v := range p {
			s[schema.PlanPrefix+k] = v
		}
	}
}

// columnsOf returns the sorted union of keys across rows, for diagnostics.
func columnsOf(rows []records.Record) []string {
	seen := map[string]struct{}{}
	for _, r := range rows {
		for k := range r {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
