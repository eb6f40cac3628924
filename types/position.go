package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// SideBook accumulates fills on one outcome token.
// EntryPrice and PeakPrice are meaningless while Shares is zero.
type SideBook struct {
	Shares     decimal.Decimal
	Cost       decimal.Decimal
	EntryPrice decimal.Decimal
	PeakPrice  decimal.Decimal
	entrySet   bool
}

// HasShares reports whether anything is held on this side
func (b *SideBook) HasShares() bool {
	return b.Shares.IsPositive()
}

// AvgPrice is cost/shares, or zero when flat
func (b *SideBook) AvgPrice() decimal.Decimal {
	if !b.Shares.IsPositive() {
		return decimal.Zero
	}
	return b.Cost.Div(b.Shares)
}

// Trigger is a pending hedge or add confirmation.
// A zero Since means unarmed.
type Trigger struct {
	Since     time.Time
	Magnitude float64
}

// Armed reports whether the confirmation timer is running
func (t Trigger) Armed() bool {
	return !t.Since.IsZero()
}

// Position is one slot×symbol ledger
type Position struct {
	Slot   string
	Symbol string

	Yes SideBook
	No  SideBook

	Trades      []Trade
	HedgeCount  int
	AddCount    int
	InitialSide Side

	Hedge Trigger
	Add   Trigger

	LastTradeTime time.Time
}

// NewPosition creates an empty ledger for a slot
func NewPosition(slot, symbol string) *Position {
	return &Position{
		Slot:   slot,
		Symbol: symbol,
		Yes:    SideBook{Shares: decimal.Zero, Cost: decimal.Zero},
		No:     SideBook{Shares: decimal.Zero, Cost: decimal.Zero},
	}
}

// Book returns the side's accumulator
func (p *Position) Book(side Side) *SideBook {
	if side == SideYes {
		return &p.Yes
	}
	return &p.No
}

// TotalCost across both sides
func (p *Position) TotalCost() decimal.Decimal {
	return p.Yes.Cost.Add(p.No.Cost)
}

// HasTrades reports whether the position was ever opened
func (p *Position) HasTrades() bool {
	return len(p.Trades) > 0
}

// AddTrade appends a fill and maintains the per-side accounting.
// The caller guarantees 0 < price < 1.
func (p *Position) AddTrade(t Trade) {
	book := p.Book(t.Side)
	book.Shares = book.Shares.Add(t.Shares)
	book.Cost = book.Cost.Add(t.Cost)
	if !book.entrySet {
		book.EntryPrice = t.Price
		book.entrySet = true
	}
	if t.Price.GreaterThan(book.PeakPrice) {
		book.PeakPrice = t.Price
	}

	p.Trades = append(p.Trades, t)
	if p.InitialSide == "" {
		p.InitialSide = t.Side
	}
	switch t.Kind {
	case KindHedge:
		p.HedgeCount++
	case KindAdd:
		p.AddCount++
	}
	p.LastTradeTime = t.Timestamp
}

// ObservePrice raises the side's high-water mark
func (p *Position) ObservePrice(side Side, price decimal.Decimal) {
	book := p.Book(side)
	if !book.HasShares() {
		return
	}
	if price.GreaterThan(book.PeakPrice) {
		book.PeakPrice = price
	}
}

// Drop is the fractional fall of side's price from its peak
func (p *Position) Drop(side Side, price decimal.Decimal) float64 {
	book := p.Book(side)
	if !book.HasShares() || !book.PeakPrice.IsPositive() {
		return 0
	}
	return book.PeakPrice.Sub(price).Div(book.PeakPrice).InexactFloat64()
}

// Clone returns a deep copy safe to hand to another goroutine
func (p *Position) Clone() *Position {
	cp := *p
	cp.Trades = make([]Trade, len(p.Trades))
	copy(cp.Trades, p.Trades)
	return &cp
}

// Record flattens the position for display
func (p *Position) Record() PositionRecord {
	return PositionRecord{
		Symbol:      p.Symbol,
		InitialSide: string(p.InitialSide),
		YesShares:   p.Yes.Shares,
		YesAvg:      p.Yes.AvgPrice(),
		NoShares:    p.No.Shares,
		NoAvg:       p.No.AvgPrice(),
		TotalCost:   p.TotalCost(),
		Hedges:      p.HedgeCount,
		Adds:        p.AddCount,
	}
}
