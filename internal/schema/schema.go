// Package schema declares the canonical column vocabulary the pipeline
// depends on, the rename maps from raw source headers into that vocabulary,
// and the per-field default policy applied when a source column is absent.
//
// Presence of optional columns is resolved exactly once, during
// normalization, into a Presence value. Downstream stages consult Presence
// instead of re-checking column existence at every use site.
package schema

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"churn/pkg/records"
)

// Canonical subscription-table column names. Every downstream feature and
// label computation is written against these.
const (
	ColSubscriptionID   = "subscription_id"
	ColUserID           = "user_id"
	ColPlanID           = "plan_id"
	ColStartDate        = "start_date"
	ColEndDate          = "end_date"
	ColStatus           = "status"
	ColPrice            = "price"
	ColSubscriptionType = "subscription_type"
	ColTerminatedDate   = "terminated_date"
)

// Canonical event-table column names.
const (
	ColAction     = "action"
	ColActionDate = "action_date"
	ColNextStatus = "next_status"
)

// Canonical billing-table column names.
const (
	ColAmount        = "amount"
	ColPaymentStatus = "payment_status"
	ColBillingDate   = "billing_date"
)

// PlanPrefix is prepended to plan attributes merged into the subscription
// table, preventing collisions with subscription columns of the same name.
const PlanPrefix = "plan_"

// Label is the target column produced by the label builder.
const Label = "churn_30d"

// LabelObserved flags whether the label comes from observed data rather
// than the synthetic fallback. The pipeline writes the same value on every
// row of a batch.
const LabelObserved = "churn_30d_observed"

// SubscriptionRenames maps canonicalized raw headers of the subscription
// sheet onto the canonical vocabulary. Keys are post-CanonicalName forms of
// the raw headers ("Subscription Id" -> "subscription_id" is an identity
// after canonicalization; entries here cover the names that differ).
var SubscriptionRenames = map[string]string{
	"subscription_id":   ColSubscriptionID,
	"user_id":           ColUserID,
	"plan_id":           ColPlanID,
	"start_date":        ColStartDate,
	"end_date":          ColEndDate,
	"status":            ColStatus,
	"price":             ColPrice,
	"subscription_type": ColSubscriptionType,
	"terminated_date":   ColTerminatedDate,
}

// EventRenames maps raw event-log headers onto canonical names.
var EventRenames = map[string]string{
	"subscription_id": ColSubscriptionID,
	"action":          ColAction,
	"action_date":     ColActionDate,
	"next_status":     ColNextStatus,
}

// BillingRenames maps raw billing headers onto canonical names.
var BillingRenames = map[string]string{
	"subscription_id": ColSubscriptionID,
	"amount":          ColAmount,
	"payment_status":  ColPaymentStatus,
	"billing_date":    ColBillingDate,
}

// DateColumns lists the columns parsed to dates per table.
var (
	SubscriptionDateColumns = []string{ColStartDate, ColEndDate, ColTerminatedDate}
	EventDateColumns        = []string{ColActionDate}
	BillingDateColumns      = []string{ColBillingDate}
)

// foldTransformer strips diacritics: decompose, drop nonspacing marks,
// recompose.
var foldTransformer = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// CanonicalName normalizes a raw header into the canonical form: trimmed,
// diacritics folded to ASCII, lowercased, runs of separators collapsed to a
// single underscore. Unrepresentable runes are dropped.
func CanonicalName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	ascii, _, err := transform.String(foldTransformer, s)
	if err != nil {
		ascii = s
	}

	var b strings.Builder
	prevUnderscore := true // suppress leading underscores
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			prevUnderscore = false
		case r == '_' || r == ' ' || r == '-' || r == '.':
			if !prevUnderscore {
				b.WriteRune('_')
				prevUnderscore = true
			}
		}
	}
	return strings.TrimRight(b.String(), "_")
}

// Presence records, per canonical column, whether any row in the normalized
// table carries it. It is resolved once per table per run.
type Presence map[string]bool

// ResolvePresence scans the table once and marks each canonical column that
// appears in at least one row. Columns never seen are absent and downstream
// defaults apply.
func ResolvePresence(rows []records.Record, columns ...string) Presence {
	p := make(Presence, len(columns))
	for _, c := range columns {
		p[c] = false
	}
	for _, r := range rows {
		done := true
		for _, c := range columns {
			if p[c] {
				continue
			}
			if _, ok := r[c]; ok {
				p[c] = true
			} else {
				done = false
			}
		}
		if done {
			break
		}
	}
	return p
}

// Missing returns the canonical columns not present, in the order given.
// Useful for schema-drift diagnostics.
func (p Presence) Missing(columns ...string) []string {
	var out []string
	for _, c := range columns {
		if !p[c] {
			out = append(out, c)
		}
	}
	return out
}
