package matching

import (
	"github.com/shopspring/decimal"

	"binarymlm/internal/models"
)

type Settlement struct {
	Matched decimal.Decimal
	CFLeft  decimal.Decimal
	CFRight decimal.Decimal
}

// Calculate matches the two legs. Members with earlier rewards match today's
// bv plus carry-forward; first-timers match lifetime bv. The excess of the
// heavier leg is carried, the lighter leg carries nothing.
func Calculate(s *models.MemberStats, carryForward bool) Settlement {
	left, right := s.LeftBV, s.RightBV
	if carryForward {
		left = s.TodayLeftBV.Add(s.CFLeftBV)
		right = s.TodayRightBV.Add(s.CFRightBV)
	}

	out := Settlement{
		Matched: decimal.Min(left, right),
		CFLeft:  decimal.Zero,
		CFRight: decimal.Zero,
	}
	switch left.Cmp(right) {
	case 1:
		out.CFLeft = left.Sub(right)
	case -1:
		out.CFRight = right.Sub(left)
	}
	return out
}

// Reward is matched*rate capped at max, rounded to cents.
func Reward(matched, rate, max decimal.Decimal) decimal.Decimal {
	if !matched.IsPositive() {
		return decimal.Zero
	}
	return decimal.Min(max, matched.Mul(rate)).Round(2)
}
