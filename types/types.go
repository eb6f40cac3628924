package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SHARED TYPES - Avoid import cycles
// ═══════════════════════════════════════════════════════════════════════════════

// Side is one of the two complementary outcome tokens of a slot.
type Side string

const (
	SideYes Side = "YES" // token A, pays out when the reference closes at or above the slot open
	SideNo  Side = "NO"  // token B
)

// Opposite returns the other outcome
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// TradeKind tells the sizing rules which notional applies
type TradeKind string

const (
	KindEntry TradeKind = "entry"
	KindHedge TradeKind = "hedge"
	KindAdd   TradeKind = "add"
)

// Market is one slot's instrument pair for a symbol
type Market struct {
	Symbol    string // BTC, ETH, SOL, XRP
	Slug      string // btc-updown-15m-1700000000
	MarketID  string
	YesToken  string
	NoToken   string
	StartTime time.Time
	EndTime   time.Time
}

// TokenFor returns the token id that pays out on side
func (m *Market) TokenFor(side Side) string {
	if side == SideYes {
		return m.YesToken
	}
	return m.NoToken
}

// MinutesRemaining until the slot closes, never negative
func (m *Market) MinutesRemaining(now time.Time) float64 {
	left := m.EndTime.Sub(now).Minutes()
	if left < 0 {
		return 0
	}
	return left
}

// Trade is a single fill appended to a position
type Trade struct {
	Side      Side
	Shares    decimal.Decimal
	Price     decimal.Decimal
	Cost      decimal.Decimal
	Kind      TradeKind
	Reason    string
	OrderID   string
	Attempts  int
	Timestamp time.Time
}

// IsHedge reports whether the trade was placed by the hedge trigger
func (t Trade) IsHedge() bool {
	return t.Kind == KindHedge
}

// TradeRecord for display (Telegram bot)
type TradeRecord struct {
	Slot      string
	Symbol    string
	Side      string
	Kind      string
	Price     decimal.Decimal
	Shares    decimal.Decimal
	Cost      decimal.Decimal
	Reason    string
	Timestamp time.Time
}

// PositionRecord for display (Telegram bot)
type PositionRecord struct {
	Symbol      string
	InitialSide string
	YesShares   decimal.Decimal
	YesAvg      decimal.Decimal
	NoShares    decimal.Decimal
	NoAvg       decimal.Decimal
	TotalCost   decimal.Decimal
	Hedges      int
	Adds        int
}

// OrderResult is what the order gateway reports for one submission
type OrderResult struct {
	OrderID  string
	Status   string // MATCHED, FILLED, LIVE, ...
	Success  bool
	Attempts int

	// Realized terms; zero when the gateway did not report them
	FillPrice  decimal.Decimal
	FillShares decimal.Decimal
	FillCost   decimal.Decimal
}

// Filled reports whether the gateway confirmed a match
func (r *OrderResult) Filled() bool {
	if r == nil {
		return false
	}
	return r.Status == "MATCHED" || r.Status == "FILLED" || r.Success
}

// Settlement is the resolved outcome of one slot×symbol position
type Settlement struct {
	Slot        string
	Symbol      string
	Winner      Side
	InitialSide Side
	StartPrice  decimal.Decimal
	EndPrice    decimal.Decimal
	YesShares   decimal.Decimal
	YesCost     decimal.Decimal
	NoShares    decimal.Decimal
	NoCost      decimal.Decimal
	Payout      decimal.Decimal
	PnL         decimal.Decimal
	HedgeCount  int
	AddCount    int
	Timestamp   time.Time
}

// Correct reports whether the initial direction matched the winner
func (s Settlement) Correct() bool {
	return s.InitialSide != "" && s.Winner == s.InitialSide
}

// Profitable reports a positive P&L
func (s Settlement) Profitable() bool {
	return s.PnL.IsPositive()
}

// TotalCost across both sides
func (s Settlement) TotalCost() decimal.Decimal {
	return s.YesCost.Add(s.NoCost)
}

// BotStatus is a live snapshot of the engine for display
type BotStatus struct {
	Mode              string // SIM or LIVE
	Paused            bool
	Symbols           []string
	Slot              time.Time
	MinutesLeft       float64
	FeedConnected     bool
	SessionWins       int
	SessionLosses     int
	SessionPnL        decimal.Decimal
	WinStreak         int
	ConsecutiveLosses int
	CooldownRemaining time.Duration
	Trades            int64
	Hedges            int64
	Adds              int64
}
