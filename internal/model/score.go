package model

import (
	"math"
	"math/rand"

	"churn/internal/feature"
	"churn/internal/schema"
	"churn/pkg/records"
)

// Risk buckets derived from a churn probability.
const (
	RiskHigh   = "high"
	RiskMedium = "medium"
	RiskLow    = "low"
)

// Bucket thresholds.
const (
	highRiskMin   = 0.7
	mediumRiskMin = 0.4
)

// RiskBucket maps a churn probability onto a coarse risk label.
func RiskBucket(p float64) string {
	switch {
	case p >= highRiskMin:
		return RiskHigh
	case p >= mediumRiskMin:
		return RiskMedium
	default:
		return RiskLow
	}
}

// SimulateRecord draws a plausible feature record from the given generator.
// It backs demo scoring when no real feature batch is at hand.
func SimulateRecord(rng *rand.Rand, subscriptionID int64) records.Record {
	daysSinceStart := int64(rng.Intn(720))
	daysUntilEnd := int64(rng.Intn(365))
	payments := int64(1 + rng.Intn(24))
	failed := int64(0)
	if rng.Float64() < 0.2 {
		failed = int64(1 + rng.Intn(3))
	}
	price := math.Round((5+rng.Float64()*70)*100) / 100
	avg := price
	total := math.Round(avg*float64(payments)*100) / 100
	events := int64(rng.Intn(40))
	renewals := int64(0)
	if events > 0 {
		renewals = int64(rng.Intn(int(events)))
	}
	recent := int64(0)
	if events > 0 {
		recent = int64(rng.Intn(int(events)))
	}

	return records.Record{
		schema.ColSubscriptionID:     subscriptionID,
		schema.ColPrice:              price,
		feature.ColDaysSinceStart:    daysSinceStart,
		feature.ColDaysUntilEnd:      daysUntilEnd,
		feature.ColIsNearEnd:         daysUntilEnd <= 7,
		feature.ColNumEventsTotal:    events,
		feature.ColNumRenewals:       renewals,
		feature.ColNumEventsLast30d:  recent,
		feature.ColTotalAmount:       total,
		feature.ColAvgAmount:         avg,
		feature.ColNumPayments:       payments,
		feature.ColNumFailedPayments: failed,
		feature.ColIsPremiumPlan:     price > 40,
	}
}
