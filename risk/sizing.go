package risk

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/polyneko/internal/config"
)

// ═══════════════════════════════════════════════════════════════════════════════
// POSITION SIZING - Notional per order kind, integer shares, exchange min lot
// ═══════════════════════════════════════════════════════════════════════════════
//
// entry = min(bet × multiplier, max_position − cost)
//         multiplier = conf(1.5 | 1.0) × (1 + min(streak × bonus, max)) × (0.5 if losing)
// hedge = trail × bet × min(1 + 5 × drop, 3)      (not capped by max_position)
// add   = min(bet × add_winner_size, max_position − cost)
//
// shares = floor(amount / price); below 5 → exactly 5 if it fits the budget.
//
// ═══════════════════════════════════════════════════════════════════════════════

// MinShares is the exchange minimum order size
const MinShares = 5

const (
	hedgeScalePerDrop = 5.0
	maxHedgeScale     = 3.0
)

// Budget is a notional to spend and the most that may be spent
type Budget struct {
	Amount decimal.Decimal
	Limit  decimal.Decimal
}

type Sizer struct {
	cfg            config.SizingConfig
	highConfidence float64
}

// NewSizer creates a new position sizer
func NewSizer(cfg config.SizingConfig, highConfidence float64) *Sizer {
	return &Sizer{cfg: cfg, highConfidence: highConfidence}
}

// Multiplier scales the base bet by confidence, win streak and recent losses
func (s *Sizer) Multiplier(confidence float64, snap Snapshot) float64 {
	mult := 1.0
	if confidence >= s.highConfidence {
		mult = s.cfg.HighConfidenceMultiplier
	}

	bonus := math.Min(float64(snap.WinStreak)*s.cfg.StreakBonus, s.cfg.MaxStreakBonus)
	mult *= 1 + bonus

	if snap.ConsecutiveLosses > 0 {
		mult *= s.cfg.LossSizeFactor
	}
	return mult
}

// Headroom left under max_position
func (s *Sizer) Headroom(cost decimal.Decimal) decimal.Decimal {
	left := s.cfg.MaxPosition.Sub(cost)
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}

// Entry budget for a first fill
func (s *Sizer) Entry(confidence float64, snap Snapshot, cost decimal.Decimal) Budget {
	amount := s.cfg.BetSize.Mul(decimal.NewFromFloat(s.Multiplier(confidence, snap)))
	headroom := s.Headroom(cost)
	return Budget{Amount: decimal.Min(amount, headroom), Limit: headroom}
}

// HedgeScale grows linearly with the drop, capped at 3×
func HedgeScale(drop float64) float64 {
	if drop < 0 {
		drop = 0
	}
	return math.Min(1+hedgeScalePerDrop*drop, maxHedgeScale)
}

// Hedge budget for an opposite-side buy
func (s *Sizer) Hedge(drop float64) Budget {
	amount := s.cfg.BetSize.
		Mul(decimal.NewFromFloat(s.cfg.TrailSize)).
		Mul(decimal.NewFromFloat(HedgeScale(drop)))
	return Budget{Amount: amount, Limit: amount}
}

// Add budget for a same-side pyramid
func (s *Sizer) Add(cost decimal.Decimal) Budget {
	amount := s.cfg.BetSize.Mul(decimal.NewFromFloat(s.cfg.AddWinnerSize))
	headroom := s.Headroom(cost)
	return Budget{Amount: decimal.Min(amount, headroom), Limit: headroom}
}

// Shares converts a budget into whole shares at price.
// Returns false when even the minimum lot does not fit.
func Shares(b Budget, price decimal.Decimal) (decimal.Decimal, bool) {
	if !price.IsPositive() || !b.Amount.IsPositive() {
		return decimal.Zero, false
	}
	shares := b.Amount.Div(price).Floor()
	if shares.GreaterThanOrEqual(decimal.NewFromInt(MinShares)) {
		return shares, true
	}

	minLot := decimal.NewFromInt(MinShares)
	if minLot.Mul(price).LessThanOrEqual(b.Limit) {
		return minLot, true
	}
	return decimal.Zero, false
}
