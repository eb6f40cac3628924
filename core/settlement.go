package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polyneko/internal/metrics"
	"github.com/web3guy0/polyneko/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SETTLEMENT - Resolve the finished slot
// ═══════════════════════════════════════════════════════════════════════════════
//
// winner = YES if end ≥ start, else NO
// payout = winner shares × $1
// pnl    = (payout − winner cost) − loser cost
//
// The risk state learns win = (winner == initial side).
// A symbol without a start or end price is dropped and logged.
//
// ═══════════════════════════════════════════════════════════════════════════════

// SettlementJob is a finished slot handed to the settlement worker.
// Positions are deep copies owned by the job.
type SettlementJob struct {
	Slot        time.Time
	Positions   []*types.Position
	StartPrices map[string]decimal.Decimal
	EnqueuedAt  time.Time
}

// SlotSummary totals one slot's settlements
type SlotSummary struct {
	Slot    time.Time
	Settled []types.Settlement
	Dropped []string
	Cost    decimal.Decimal
	Payout  decimal.Decimal
	PnL     decimal.Decimal
}

// ROI is pnl / cost, zero with no cost
func (s SlotSummary) ROI() float64 {
	if !s.Cost.IsPositive() {
		return 0
	}
	return s.PnL.Div(s.Cost).InexactFloat64()
}

// Winner resolves the slot; a flat close goes to YES
func Winner(start, end decimal.Decimal) types.Side {
	if end.GreaterThanOrEqual(start) {
		return types.SideYes
	}
	return types.SideNo
}

// Settle computes the outcome of pos. It is pure.
func Settle(pos *types.Position, start, end decimal.Decimal, at time.Time) types.Settlement {
	winner := Winner(start, end)
	win := pos.Book(winner)
	lose := pos.Book(winner.Opposite())

	payout := win.Shares
	pnl := payout.Sub(win.Cost).Sub(lose.Cost)

	return types.Settlement{
		Slot:        pos.Slot,
		Symbol:      pos.Symbol,
		Winner:      winner,
		InitialSide: pos.InitialSide,
		StartPrice:  start,
		EndPrice:    end,
		YesShares:   pos.Yes.Shares,
		YesCost:     pos.Yes.Cost,
		NoShares:    pos.No.Shares,
		NoCost:      pos.No.Cost,
		Payout:      payout,
		PnL:         pnl,
		HedgeCount:  pos.HedgeCount,
		AddCount:    pos.AddCount,
		Timestamp:   at,
	}
}

// settlementLoop drains jobs until ctx is cancelled
func (e *Engine) settlementLoop(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-e.settleCh:
			e.processSettlement(ctx, job)
		}
	}
}

// processSettlement waits out the grace period then settles the job.
// Cancellation cuts the wait short but the job still completes.
func (e *Engine) processSettlement(ctx context.Context, job SettlementJob) SlotSummary {
	if wait := e.cfg.SettlementGrace - e.now().Sub(job.EnqueuedAt); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return e.settle(fetchCtx, job)
}

// settle resolves every position with cost in the job
func (e *Engine) settle(ctx context.Context, job SettlementJob) SlotSummary {
	summary := SlotSummary{
		Slot:   job.Slot,
		Cost:   decimal.Zero,
		Payout: decimal.Zero,
		PnL:    decimal.Zero,
	}

	for _, pos := range job.Positions {
		if !pos.TotalCost().IsPositive() {
			continue
		}

		start := job.StartPrices[pos.Symbol]
		end, err := e.analyzer.FreshSpot(ctx, pos.Symbol)
		if err != nil || !end.IsPositive() || !start.IsPositive() {
			log.Error().
				Err(err).
				Str("symbol", pos.Symbol).
				Str("start", start.String()).
				Str("end", end.String()).
				Msg("❌ Missing settlement price, position dropped")
			summary.Dropped = append(summary.Dropped, pos.Symbol)
			continue
		}

		s := Settle(pos, start, end, e.now())
		summary.Settled = append(summary.Settled, s)
		summary.Cost = summary.Cost.Add(s.TotalCost())
		summary.Payout = summary.Payout.Add(s.Payout)
		summary.PnL = summary.PnL.Add(s.PnL)

		e.recordSettlement(s)
	}

	if len(summary.Settled) == 0 && len(summary.Dropped) == 0 {
		return summary
	}

	e.pnlMu.Lock()
	e.sessionPnL = e.sessionPnL.Add(summary.PnL)
	e.pnlMu.Unlock()

	log.Info().
		Str("slot", job.Slot.UTC().Format("15:04")).
		Int("settled", len(summary.Settled)).
		Int("dropped", len(summary.Dropped)).
		Str("cost", summary.Cost.StringFixed(2)).
		Str("payout", summary.Payout.StringFixed(2)).
		Str("pnl", summary.PnL.StringFixed(2)).
		Str("roi", fmt.Sprintf("%.1f%%", summary.ROI()*100)).
		Msg("📋 Slot settled")

	if e.notifier != nil {
		e.notifier.NotifySlotSummary(job.Slot.UTC().Format("2006-01-02 15:04"), len(summary.Settled), summary.PnL, e.Status())
	}
	return summary
}

func (e *Engine) recordSettlement(s types.Settlement) {
	e.risk.RecordResult(s.Correct(), s.Timestamp)
	metrics.ObserveSettlement(s.Profitable(), s.PnL)

	emoji := "✅"
	if !s.Profitable() {
		emoji = "❌"
	}
	log.Info().
		Str("symbol", s.Symbol).
		Str("winner", string(s.Winner)).
		Str("initial", string(s.InitialSide)).
		Str("start", s.StartPrice.String()).
		Str("end", s.EndPrice.String()).
		Str("yes", s.YesShares.StringFixed(0)+" / $"+s.YesCost.StringFixed(2)).
		Str("no", s.NoShares.StringFixed(0)+" / $"+s.NoCost.StringFixed(2)).
		Str("payout", s.Payout.StringFixed(2)).
		Str("pnl", s.PnL.StringFixed(2)).
		Int("hedges", s.HedgeCount).
		Msgf("%s Settled", emoji)

	if e.recorder != nil {
		if err := e.recorder.SaveSettlement(s); err != nil {
			log.Warn().Err(err).Str("symbol", s.Symbol).Msg("Failed to save settlement")
		}
	}
	if e.notifier != nil {
		e.notifier.NotifySettlement(s)
	}
}
