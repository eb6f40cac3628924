package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polyneko/internal/metrics"
	"github.com/web3guy0/polyneko/risk"
	"github.com/web3guy0/polyneko/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// EXECUTOR - Sizes, submits and books every order
// ═══════════════════════════════════════════════════════════════════════════════
//
// Flow per request:
//   1. Reject prices outside (0, 1)
//   2. Budget by kind (entry | hedge | add) → whole shares, 5-share minimum
//   3. SIM: fill at the quote. LIVE: GTC buy at 0.99 through the worker pool
//   4. Only a confirmed fill touches the position ledger
//   5. Persist + notify, best effort
//
// ═══════════════════════════════════════════════════════════════════════════════

var (
	ErrInvalidPrice  = errors.New("price outside (0, 1)")
	ErrBelowMinimum  = errors.New("budget below minimum order size")
	ErrOrderRejected = errors.New("order not filled")
)

// Gateway submits live buys
type Gateway interface {
	BuyGTC(ctx context.Context, tokenID string, quote, shares decimal.Decimal) (*types.OrderResult, error)
}

// TradeRecorder persists fills
type TradeRecorder interface {
	SaveTrade(slot, symbol string, t types.Trade) error
}

// TradeNotifier announces fills
type TradeNotifier interface {
	NotifyTrade(symbol string, t types.Trade, pos types.PositionRecord)
	NotifyError(err error)
}

// ExecutorConfig controls execution mode and concurrency
type ExecutorConfig struct {
	PaperMode bool
	Workers   int
}

// Request is one decision to buy
type Request struct {
	Market     *types.Market
	Side       types.Side
	Price      decimal.Decimal // current ask the decision was made on
	Kind       types.TradeKind
	Reason     string
	Confidence float64       // entry sizing
	Drop       float64       // hedge sizing
	Risk       risk.Snapshot // entry sizing
}

// Stats is a point-in-time copy of the counters
type Stats struct {
	OrdersSent   int64
	OrdersFilled int64
	OrdersFailed int64
	Trades       int64
	Hedges       int64
	Adds         int64
	Volume       decimal.Decimal
}

// Executor places sized orders and updates positions on fill
type Executor struct {
	config   ExecutorConfig
	sizer    *risk.Sizer
	pool     *pool
	recorder TradeRecorder
	notifier TradeNotifier
	now      func() time.Time

	ordersSent   atomic.Int64
	ordersFilled atomic.Int64
	ordersFailed atomic.Int64
	trades       atomic.Int64
	hedges       atomic.Int64
	adds         atomic.Int64

	volumeMu sync.Mutex
	volume   decimal.Decimal
}

// NewExecutor creates a new execution manager. gateway may be nil in paper mode.
func NewExecutor(gateway Gateway, sizer *risk.Sizer, config ExecutorConfig) *Executor {
	if !config.PaperMode && gateway == nil {
		log.Warn().Msg("⚠️ No order gateway, falling back to SIM")
		config.PaperMode = true
	}
	if config.Workers < 1 {
		config.Workers = 1
	}

	e := &Executor{
		config: config,
		sizer:  sizer,
		now:    time.Now,
		volume: decimal.Zero,
	}
	if !config.PaperMode {
		e.pool = newPool(config.Workers, gateway)
	}

	log.Info().
		Str("mode", e.Mode()).
		Int("workers", config.Workers).
		Msg("⚡ Executor initialized")

	return e
}

// SetRecorder attaches trade persistence
func (e *Executor) SetRecorder(r TradeRecorder) {
	e.recorder = r
}

// SetNotifier attaches trade notifications
func (e *Executor) SetNotifier(n TradeNotifier) {
	e.notifier = n
}

// SetClock overrides time.Now for trade timestamps
func (e *Executor) SetClock(now func() time.Time) {
	e.now = now
}

// Mode is SIM or LIVE
func (e *Executor) Mode() string {
	if e.config.PaperMode {
		return "SIM"
	}
	return "LIVE"
}

// ═══════════════════════════════════════════════════════════════════════════════
// ORDER PLACEMENT
// ═══════════════════════════════════════════════════════════════════════════════

// Budget computes the notional for a request against the position
func (e *Executor) Budget(pos *types.Position, req Request) risk.Budget {
	switch req.Kind {
	case types.KindHedge:
		return e.sizer.Hedge(req.Drop)
	case types.KindAdd:
		return e.sizer.Add(pos.TotalCost())
	default:
		return e.sizer.Entry(req.Confidence, req.Risk, pos.TotalCost())
	}
}

// Place sizes and submits req; on a confirmed fill the trade is appended to pos.
// The caller must hold the symbol's lock for pos.
func (e *Executor) Place(ctx context.Context, pos *types.Position, req Request) (*types.Trade, error) {
	if !req.Price.IsPositive() || req.Price.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPrice, req.Price)
	}

	budget := e.Budget(pos, req)
	shares, ok := risk.Shares(budget, req.Price)
	if !ok {
		return nil, fmt.Errorf("%w: %s %s budget $%s at %s",
			ErrBelowMinimum, req.Kind, req.Side, budget.Amount.StringFixed(2), req.Price.StringFixed(3))
	}

	token := req.Market.TokenFor(req.Side)

	log.Info().
		Str("symbol", pos.Symbol).
		Str("side", string(req.Side)).
		Str("kind", string(req.Kind)).
		Str("price", req.Price.StringFixed(3)).
		Str("shares", shares.String()).
		Str("budget", budget.Amount.StringFixed(2)).
		Str("mode", e.Mode()).
		Msg("📤 Order submitted")

	var result *types.OrderResult
	if e.config.PaperMode {
		result = simulateFill(req.Price, shares)
	} else {
		e.ordersSent.Add(1)
		res, err := e.pool.submit(ctx, token, req.Price, shares)
		if err != nil || !res.Filled() {
			e.ordersFailed.Add(1)
			metrics.ObserveOrder(false, false)
			if err == nil && res != nil {
				err = fmt.Errorf("status %q", res.Status)
			} else if err == nil {
				err = errors.New("empty response")
			}
			log.Error().
				Err(err).
				Str("symbol", pos.Symbol).
				Str("side", string(req.Side)).
				Msg("❌ Order failed")
			err = fmt.Errorf("%w: %v", ErrOrderRejected, err)
			if e.notifier != nil {
				e.notifier.NotifyError(fmt.Errorf("%s %s %s: %w", pos.Symbol, req.Kind, req.Side, err))
			}
			return nil, err
		}
		result = res
	}

	trade := e.book(pos, req, shares, result)
	e.ordersFilled.Add(1)
	metrics.ObserveOrder(e.config.PaperMode, true)

	e.persist(pos, trade)
	return &trade, nil
}

// simulateFill fills the whole order at the quoted ask
func simulateFill(price, shares decimal.Decimal) *types.OrderResult {
	return &types.OrderResult{
		OrderID:    "SIM-" + uuid.NewString(),
		Status:     "FILLED",
		Success:    true,
		Attempts:   1,
		FillPrice:  price,
		FillShares: shares,
		FillCost:   shares.Mul(price),
	}
}

// book appends the fill to the ledger using realized terms where reported
func (e *Executor) book(pos *types.Position, req Request, shares decimal.Decimal, res *types.OrderResult) types.Trade {
	price := res.FillPrice
	cost := res.FillCost
	if !price.IsPositive() || price.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		price = req.Price
		cost = decimal.Zero
	}
	filled := res.FillShares
	if !filled.IsPositive() {
		filled = shares
	}
	if !cost.IsPositive() {
		cost = filled.Mul(price)
	}

	trade := types.Trade{
		Side:      req.Side,
		Shares:    filled,
		Price:     price,
		Cost:      cost,
		Kind:      req.Kind,
		Reason:    req.Reason,
		OrderID:   res.OrderID,
		Attempts:  res.Attempts,
		Timestamp: e.now(),
	}
	pos.AddTrade(trade)

	e.trades.Add(1)
	switch req.Kind {
	case types.KindHedge:
		e.hedges.Add(1)
	case types.KindAdd:
		e.adds.Add(1)
	}
	e.volumeMu.Lock()
	e.volume = e.volume.Add(cost)
	e.volumeMu.Unlock()
	metrics.Trades.WithLabelValues(pos.Symbol, string(req.Kind)).Inc()

	log.Info().
		Str("symbol", pos.Symbol).
		Str("side", string(trade.Side)).
		Str("kind", string(trade.Kind)).
		Str("fill_price", trade.Price.StringFixed(3)).
		Str("shares", trade.Shares.String()).
		Str("cost", trade.Cost.StringFixed(2)).
		Str("order_id", trade.OrderID).
		Str("reason", trade.Reason).
		Msgf("✅ Order filled (%s)", e.Mode())

	return trade
}

func (e *Executor) persist(pos *types.Position, trade types.Trade) {
	if e.recorder != nil {
		if err := e.recorder.SaveTrade(pos.Slot, pos.Symbol, trade); err != nil {
			log.Warn().Err(err).Str("symbol", pos.Symbol).Msg("Failed to save trade")
		}
	}
	if e.notifier != nil {
		e.notifier.NotifyTrade(pos.Symbol, trade, pos.Record())
	}
}

// Stats returns the execution counters
func (e *Executor) Stats() Stats {
	e.volumeMu.Lock()
	volume := e.volume
	e.volumeMu.Unlock()

	return Stats{
		OrdersSent:   e.ordersSent.Load(),
		OrdersFilled: e.ordersFilled.Load(),
		OrdersFailed: e.ordersFailed.Load(),
		Trades:       e.trades.Load(),
		Hedges:       e.hedges.Load(),
		Adds:         e.adds.Load(),
		Volume:       volume,
	}
}

// Close waits for in-flight live orders to finish
func (e *Executor) Close() {
	if e.pool != nil {
		e.pool.close()
	}
	s := e.Stats()
	log.Info().
		Int64("filled", s.OrdersFilled).
		Int64("failed", s.OrdersFailed).
		Str("volume", s.Volume.StringFixed(2)).
		Msg("🛑 Executor stopped")
}
