package ordering

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/andresuchdata/replenish/internal/domain"
)

// DefaultConfidenceThreshold is the score at or above which a recommendation
// is considered NORMAL confidence.
var DefaultConfidenceThreshold = decimal.RequireFromString("0.80")

var (
	zero = decimal.Zero
	one  = decimal.NewFromInt(1)
	two  = decimal.NewFromInt(2)

	sufficiencyWeight = decimal.RequireFromString("0.50")
	stabilityWeight   = decimal.RequireFromString("0.30")
	activityWeight    = decimal.RequireFromString("0.20")
	lowActivity       = decimal.RequireFromString("0.20")
)

// ConfidenceScore turns a daily-units series into a [0,1] trust score,
// rounded to 4 decimal places. An empty series scores exactly 0.
//
// The score blends three signals: sufficiency (how much of the lookback
// window is covered), stability (inverse coefficient of variation), and
// activity (any observed demand at all).
func ConfidenceScore(history []decimal.Decimal, lookbackDays int) decimal.Decimal {
	if len(history) == 0 || lookbackDays <= 0 {
		return zero
	}

	capped := history
	if len(capped) > lookbackDays {
		capped = capped[len(capped)-lookbackDays:]
	}
	n := int64(len(capped))

	total := zero
	for _, point := range capped {
		total = total.Add(point)
	}
	mean := total.Div(decimal.NewFromInt(n))

	activity := lowActivity
	if total.IsPositive() {
		activity = one
	}

	sufficiency := decimal.NewFromInt(n).Div(decimal.NewFromInt(int64(lookbackDays)))
	if sufficiency.GreaterThan(one) {
		sufficiency = one
	}

	stability := zero
	if mean.IsPositive() {
		variance := zero
		for _, point := range capped {
			diff := point.Sub(mean)
			variance = variance.Add(diff.Mul(diff))
		}
		variance = variance.Div(decimal.NewFromInt(n))
		stddev := decimal.NewFromFloat(math.Sqrt(variance.InexactFloat64()))
		cv := stddev.Div(mean)
		penalty := cv.Div(two)
		if penalty.GreaterThan(one) {
			penalty = one
		}
		stability = one.Sub(penalty)
		if stability.IsNegative() {
			stability = zero
		}
	}

	score := sufficiency.Mul(sufficiencyWeight).
		Add(stability.Mul(stabilityWeight)).
		Add(activity.Mul(activityWeight))
	return score.Round(4)
}

// ClassifyConfidence maps a score to NORMAL or LOW for a given threshold.
func ClassifyConfidence(score, threshold decimal.Decimal) domain.ConfidenceState {
	if score.GreaterThanOrEqual(threshold) {
		return domain.ConfidenceNormal
	}
	return domain.ConfidenceLow
}
