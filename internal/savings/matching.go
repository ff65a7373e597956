package savings

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/allowance/internal/model"
)

// applicable reports whether a rule can still add money at now.
func applicable(r *model.MatchingRule, now time.Time) bool {
	if r == nil || !r.Active {
		return false
	}
	if r.ExpiresAt != nil && !now.Before(*r.ExpiresAt) {
		return false
	}
	if r.MaxMatchAmount.IsPositive() && !r.TotalMatched.LessThan(r.MaxMatchAmount) {
		return false
	}
	return true
}

// matchAmount computes the match for a contribution, bounded by the rule's
// remaining cap and the goal's remaining amount.
func matchAmount(r *model.MatchingRule, contribution, remainingToTarget decimal.Decimal, now time.Time) decimal.Decimal {
	if !applicable(r, now) {
		return decimal.Zero
	}
	var m decimal.Decimal
	switch r.MatchType {
	case model.MatchRatio:
		m = r.Value.Mul(contribution)
	case model.MatchFixed:
		m = r.Value
	default:
		return decimal.Zero
	}
	m = m.Round(2)
	if r.MaxMatchAmount.IsPositive() {
		m = decimal.Min(m, r.MaxMatchAmount.Sub(r.TotalMatched))
	}
	m = decimal.Min(m, remainingToTarget)
	if m.IsNegative() {
		return decimal.Zero
	}
	return m
}
