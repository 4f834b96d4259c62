// Package feature augments the canonical subscription table with the
// engineered churn-model features: tenure against a cutoff date, event-count
// aggregates, billing aggregates, and the batch-relative premium flag.
//
// All joins are left joins anchored on the subscription table: every
// subscription keeps its row even with zero events or billing records. The
// count features listed in CountColumns default to 0 after the join; the
// remaining aggregates stay missing when a subscription has no rows to
// aggregate.
package feature

import (
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"churn/internal/normalize"
	"churn/internal/schema"
	"churn/pkg/records"
)

// Engineered column names.
const (
	ColDaysSinceStart    = "days_since_start"
	ColDaysUntilEnd      = "days_until_end"
	ColIsNearEnd         = "is_near_end"
	ColNumEventsTotal    = "num_events_total"
	ColNumRenewals       = "num_renewals"
	ColLastEventDate     = "last_event_date"
	ColNumEventsLast30d  = "num_events_last_30d"
	ColTotalAmount       = "total_amount"
	ColAvgAmount         = "avg_amount"
	ColNumPayments       = "num_payments"
	ColNumFailedPayments = "num_failed_payments"
	ColLastPaymentDate   = "last_payment_date"
	ColIsPremiumPlan     = "is_premium_plan"
)

// Columns lists every engineered column in output order.
var Columns = []string{
	ColDaysSinceStart, ColDaysUntilEnd, ColIsNearEnd,
	ColNumEventsTotal, ColNumRenewals, ColLastEventDate, ColNumEventsLast30d,
	ColTotalAmount, ColAvgAmount, ColNumPayments, ColNumFailedPayments,
	ColLastPaymentDate, ColIsPremiumPlan,
}

// CountColumns are the count-type features guaranteed to be 0, never
// missing, on every output row.
var CountColumns = []string{
	ColNumEventsTotal, ColNumRenewals, ColNumEventsLast30d, ColNumFailedPayments,
}

// noEndDefault signals "no known end" when end_date is missing.
const noEndDefault = int64(365)

// nearEndDays bounds the is_near_end window.
const nearEndDays = int64(7)

// recencyDays is the lookback of num_events_last_30d.
const recencyDays = 30

// Augment computes every engineered feature in place on the normalized
// subscription rows and returns them. cutoff is the "as of" reference date;
// it must be a midnight-UTC date for exact day arithmetic.
func Augment(res *normalize.Result, cutoff time.Time, log *zap.Logger) []records.Record {
	subs := res.Subscriptions

	eventsBySub := GroupBySubscription(res.Events)
	billingBySub := GroupBySubscription(res.Billing)
	recentFloor := cutoff.AddDate(0, 0, -recencyDays)

	// Premium threshold is the median price of the batch being processed,
	// not a fixed global threshold. The flag is batch-relative by design:
	// the same subscription can flip between runs as the batch around it
	// changes.
	median, havePrices := medianPrice(subs)
	if !havePrices && res.Presence[schema.ColPrice] {
		log.Warn("price column present but carried no parseable values; is_premium_plan is false for the batch")
	}

	for _, s := range subs {
		tenureFeatures(s, cutoff)
		eventFeatures(s, eventsBySub, recentFloor)
		billingFeatures(s, billingBySub)

		premium := false
		if havePrices {
			if price, ok := s.Float(schema.ColPrice); ok {
				premium = price > median
			}
		}
		s[ColIsPremiumPlan] = premium
	}

	log.Debug("features computed",
		zap.Int("subscriptions", len(subs)),
		zap.Time("cutoff", cutoff),
		zap.Bool("price_median_available", havePrices),
		zap.Float64("price_median", median),
	)
	return subs
}

// GroupBySubscription builds the per-subscription index over a secondary
// table once, so later per-row work is a map lookup instead of a rescan.
func GroupBySubscription(rows []records.Record) map[int64][]records.Record {
	idx := make(map[int64][]records.Record)
	for _, r := range rows {
		id, ok := r.Int(schema.ColSubscriptionID)
		if !ok {
			continue // unkeyed rows cannot join anything
		}
		idx[id] = append(idx[id], r)
	}
	return idx
}

// tenureFeatures derives day-distance features from start/end dates. Missing
// dates degrade to the declared defaults, never to an error.
func tenureFeatures(s records.Record, cutoff time.Time) {
	if start, ok := s.Time(schema.ColStartDate); ok {
		s[ColDaysSinceStart] = daysBetween(start, cutoff)
	} else {
		s[ColDaysSinceStart] = int64(0)
	}

	if end, ok := s.Time(schema.ColEndDate); ok {
		d := daysBetween(cutoff, end)
		s[ColDaysUntilEnd] = d
		s[ColIsNearEnd] = d >= 0 && d <= nearEndDays
	} else {
		s[ColDaysUntilEnd] = noEndDefault
		s[ColIsNearEnd] = false
	}
}

// eventFeatures computes the grouped event aggregates for one subscription.
func eventFeatures(s records.Record, idx map[int64][]records.Record, recentFloor time.Time) {
	var total, renewals, recent int64
	var last time.Time
	var haveLast bool

	id, ok := s.Int(schema.ColSubscriptionID)
	if ok {
		for _, e := range idx[id] {
			total++
			if action, ok := e.String(schema.ColAction); ok &&
				strings.Contains(strings.ToLower(action), "renew") {
				renewals++
			}
			if at, ok := e.Time(schema.ColActionDate); ok {
				if !haveLast || at.After(last) {
					last = at
					haveLast = true
				}
				if !at.Before(recentFloor) {
					recent++
				}
			}
		}
	}

	s[ColNumEventsTotal] = total
	s[ColNumRenewals] = renewals
	s[ColNumEventsLast30d] = recent
	if haveLast {
		s[ColLastEventDate] = last
	} else {
		s[ColLastEventDate] = nil
	}
}

// billingFeatures computes the grouped billing aggregates for one
// subscription. Sum/mean/count stay missing when there are no billing rows;
// only the failed-payment count defaults to 0.
func billingFeatures(s records.Record, idx map[int64][]records.Record) {
	var rows []records.Record
	if id, ok := s.Int(schema.ColSubscriptionID); ok {
		rows = idx[id]
	}

	var failed int64
	if len(rows) == 0 {
		s[ColTotalAmount] = nil
		s[ColAvgAmount] = nil
		s[ColNumPayments] = nil
		s[ColNumFailedPayments] = failed
		s[ColLastPaymentDate] = nil
		return
	}

	var sum float64
	var amounts int64
	var last time.Time
	var haveLast bool
	for _, b := range rows {
		if amt, ok := b.Float(schema.ColAmount); ok {
			sum += amt
			amounts++
		}
		if status, ok := b.String(schema.ColPaymentStatus); ok &&
			strings.Contains(strings.ToLower(status), "failed") {
			failed++
		}
		if at, ok := b.Time(schema.ColBillingDate); ok {
			if !haveLast || at.After(last) {
				last = at
				haveLast = true
			}
		}
	}

	s[ColTotalAmount] = round2(sum)
	if amounts > 0 {
		s[ColAvgAmount] = round2(sum / float64(amounts))
	} else {
		s[ColAvgAmount] = nil
	}
	// Payments are counted over parseable amounts, the same population the
	// sum and mean aggregate over. A row with an unparseable amount can
	// still count toward num_failed_payments.
	s[ColNumPayments] = amounts
	s[ColNumFailedPayments] = failed
	if haveLast {
		s[ColLastPaymentDate] = last
	} else {
		s[ColLastPaymentDate] = nil
	}
}

// medianPrice computes the median over the rows that carry a parseable
// price. For an even count it averages the two middle values.
func medianPrice(subs []records.Record) (float64, bool) {
	prices := make([]float64, 0, len(subs))
	for _, s := range subs {
		if p, ok := s.Float(schema.ColPrice); ok {
			prices = append(prices, p)
		}
	}
	if len(prices) == 0 {
		return 0, false
	}
	sort.Float64s(prices)
	mid := len(prices) / 2
	if len(prices)%2 == 1 {
		return prices[mid], true
	}
	return (prices[mid-1] + prices[mid]) / 2, true
}

// daysBetween returns whole days from a to b; negative when b precedes a.
// Both values are midnight-UTC dates, so the division is exact.
func daysBetween(a, b time.Time) int64 {
	return int64(b.Sub(a) / (24 * time.Hour))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
