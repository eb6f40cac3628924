package strategy

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/polyneko/internal/config"
	"github.com/web3guy0/polyneko/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// HEDGE / ADD TRIGGERS - Time-debounced two-state machine
// ═══════════════════════════════════════════════════════════════════════════════
//
//   UNARMED + qualifies                      → ARMED(now, magnitude)
//   ARMED   + !qualifies                     → UNARMED
//   ARMED   + qualifies + held ≥ confirm     → FIRE (and UNARMED)
//
// One disqualifying cycle resets the timer; there is no partial credit.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Advance applies one evaluation cycle to t. It is pure; now is injected.
func Advance(t types.Trigger, qualifies bool, magnitude float64, now time.Time, confirm time.Duration) (types.Trigger, bool) {
	if !qualifies {
		return types.Trigger{}, false
	}
	if !t.Armed() {
		if confirm <= 0 {
			return types.Trigger{}, true
		}
		return types.Trigger{Since: now, Magnitude: magnitude}, false
	}
	if now.Sub(t.Since) >= confirm {
		return types.Trigger{}, true
	}
	return types.Trigger{Since: t.Since, Magnitude: magnitude}, false
}

// HedgeThreshold is max(time tier, progressive[hedgeCount])
func HedgeThreshold(cfg config.StrategyConfig, hedgeCount int, minutesLeft float64) float64 {
	tier := cfg.HedgeTriggerMid
	switch {
	case minutesLeft > 7:
		tier = cfg.HedgeTriggerEarly
	case minutesLeft < 3:
		tier = cfg.HedgeTriggerLate
	}

	progressive := 0.0
	if n := len(cfg.ProgressiveTrigger); n > 0 {
		idx := hedgeCount
		if idx > n-1 {
			idx = n - 1
		}
		progressive = cfg.ProgressiveTrigger[idx]
	}

	if progressive > tier {
		return progressive
	}
	return tier
}

// HedgeAllowed checks the hedge preconditions that do not depend on prices
func HedgeAllowed(pos *types.Position, minutesLeft float64, cfg config.StrategyConfig) bool {
	if pos.HedgeCount >= cfg.MaxHedges {
		return false
	}
	if minutesLeft < cfg.MinMinutesForHedge {
		return false
	}
	return pos.InitialSide != "" && pos.Book(pos.InitialSide).HasShares()
}

// HedgeInput is one cycle's view for the hedge condition
type HedgeInput struct {
	Side        types.Side // initial side
	Drop        float64    // (peak - price) / peak
	Threshold   float64
	Spot        decimal.Decimal
	SlotStart   decimal.Decimal
	VolumeRatio float64
}

// HedgeQualifies: price fell enough from peak AND the reference moved against us
func HedgeQualifies(in HedgeInput, cfg config.StrategyConfig) bool {
	if in.Drop < in.Threshold {
		return false
	}
	if !Unfavorable(in.Side, in.Spot, in.SlotStart) {
		return false
	}
	if cfg.HedgeRequireVolume && in.VolumeRatio < cfg.MinVolumeRatio {
		return false
	}
	return true
}

// Unfavorable reports whether spot has strictly crossed the slot open against side
func Unfavorable(side types.Side, spot, slotStart decimal.Decimal) bool {
	if !spot.IsPositive() || !slotStart.IsPositive() {
		return false
	}
	if side == types.SideYes {
		return spot.LessThan(slotStart)
	}
	return spot.GreaterThan(slotStart)
}

// FavorableDistancePct is how far spot sits on side's winning side of the open, in percent.
// Negative when spot is on the losing side.
func FavorableDistancePct(side types.Side, spot, slotStart decimal.Decimal) float64 {
	if !slotStart.IsPositive() {
		return 0
	}
	pct := spot.Sub(slotStart).Div(slotStart).InexactFloat64() * 100
	if side == types.SideNo {
		return -pct
	}
	return pct
}

// AddAllowed checks the add-to-winner preconditions that do not depend on prices
func AddAllowed(pos *types.Position, minutesLeft float64, cfg config.StrategyConfig) bool {
	if !cfg.AddWinnerEnabled || pos.AddCount >= cfg.MaxAdds {
		return false
	}
	if minutesLeft < cfg.AddMinMinutes || minutesLeft > cfg.AddMaxMinutes {
		return false
	}
	if pos.Hedge.Armed() {
		return false
	}
	return pos.InitialSide != "" && pos.Book(pos.InitialSide).HasShares()
}

// AddQualifies: reference far enough on our side AND the token is priced as a winner
func AddQualifies(side types.Side, spot, slotStart, tokenPrice decimal.Decimal, cfg config.StrategyConfig) (bool, float64) {
	dist := FavorableDistancePct(side, spot, slotStart)
	if !spot.IsPositive() || dist < cfg.AddMinDistancePct {
		return false, dist
	}
	if tokenPrice.LessThan(decimal.NewFromFloat(cfg.AddMinTokenPrice)) {
		return false, dist
	}
	return true, dist
}
