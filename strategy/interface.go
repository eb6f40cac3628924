package strategy

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/polyneko/internal/indicators"
	"github.com/web3guy0/polyneko/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// STRATEGY INTERFACE - What the engine needs from the outside world
// ═══════════════════════════════════════════════════════════════════════════════
//
// The strategy package is pure decision logic:
//   Analyzer        → indicator bundle per symbol (cached)
//   EvaluateEntry   → direction or reject reason
//   Advance         → UNARMED / ARMED(since, magnitude) transitions
//
// Collaborators are consumed through small interfaces to avoid import cycles.
//
// ═══════════════════════════════════════════════════════════════════════════════

// ErrInsufficientData is returned when the provider has no candles at all.
// Short but non-empty history degrades to neutral indicator values instead.
var ErrInsufficientData = errors.New("insufficient reference data")

// ReferenceProvider supplies candles and the latest spot price
type ReferenceProvider interface {
	Klines(ctx context.Context, symbol, interval string, limit int) ([]indicators.Candle, error)
	SpotPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// HourStats reads the historical win rate for an hour of day (UTC)
type HourStats interface {
	HourlyWinRate(hour int) (rate float64, samples int, err error)
}

// Direction is the predicted move of the reference over the slot
type Direction string

const (
	DirUp   Direction = "UP"
	DirDown Direction = "DOWN"
)

// DirectionOf maps a momentum reading to a direction (UP if > 0)
func DirectionOf(momentum float64) Direction {
	if momentum > 0 {
		return DirUp
	}
	return DirDown
}

// Side is the outcome token that pays on this direction
func (d Direction) Side() types.Side {
	if d == DirUp {
		return types.SideYes
	}
	return types.SideNo
}

// Signal is an entry decision that passed every filter
type Signal struct {
	Symbol     string
	Direction  Direction
	Side       types.Side
	Confidence float64
	Reasons    []string
}

// Reason joins the agreeing indicators for logs and notifications
func (s *Signal) Reason() string {
	if len(s.Reasons) == 0 {
		return string(s.Direction)
	}
	return string(s.Direction) + ": " + strings.Join(s.Reasons, ", ")
}
