package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polyneko/execution"
	"github.com/web3guy0/polyneko/feeds"
	"github.com/web3guy0/polyneko/internal/config"
	"github.com/web3guy0/polyneko/internal/metrics"
	"github.com/web3guy0/polyneko/risk"
	"github.com/web3guy0/polyneko/strategy"
	"github.com/web3guy0/polyneko/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ENGINE - Central orchestrator
// ═══════════════════════════════════════════════════════════════════════════════
//
// Flow:
//   Book updates → Evaluate(symbol) → entry | hedge | add → Executor → Position
//   Slot rollover → SettlementJob → Settle → RiskState (feeds future sizing)
//
// Loops: ingestion, 2s sweep, 5s slot poller, 60s status, settlement worker.
// A symbol is never evaluated twice at once; a busy symbol is skipped.
//
// ═══════════════════════════════════════════════════════════════════════════════

const settlementQueueSize = 8

// BookFeed streams order-book updates for subscribed tokens
type BookFeed interface {
	Start()
	Stop()
	Subscribe() <-chan feeds.BookUpdate
	Resubscribe(tokens []string)
	Connected() bool
	MessageCount() uint64
}

// MarketScanner resolves the current slot's markets
type MarketScanner interface {
	DiscoverAll(ctx context.Context, symbols []string, now time.Time) map[string]*types.Market
}

// OrderPlacer sizes, submits and books orders
type OrderPlacer interface {
	Place(ctx context.Context, pos *types.Position, req execution.Request) (*types.Trade, error)
	Stats() execution.Stats
	Mode() string
}

// SettlementRecorder persists settled positions
type SettlementRecorder interface {
	SaveSettlement(s types.Settlement) error
}

// SettlementNotifier announces settlements and engine errors (Telegram)
type SettlementNotifier interface {
	NotifySettlement(s types.Settlement)
	NotifySlotSummary(slot string, settled int, pnl decimal.Decimal, status types.BotStatus)
	NotifyError(err error)
}

// Deps are the engine's collaborators. Hours, Recorder and Notifier may be nil.
type Deps struct {
	Feed     BookFeed
	Scanner  MarketScanner
	Analyzer *strategy.Analyzer
	Executor OrderPlacer
	Risk     *risk.State
	Hours    strategy.HourStats
	Recorder SettlementRecorder
	Notifier SettlementNotifier
}

type Engine struct {
	cfg *config.Config
	now func() time.Time

	// Components
	symbols  *SymbolManager
	book     *feeds.OrderBook
	feed     BookFeed
	scanner  MarketScanner
	analyzer *strategy.Analyzer
	executor OrderPlacer
	risk     *risk.State
	hours    strategy.HourStats
	recorder SettlementRecorder
	notifier SettlementNotifier

	// State
	paused   atomic.Bool
	running  bool
	runMu    sync.Mutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	evalWG   sync.WaitGroup
	settleCh chan SettlementJob

	slotMu      sync.RWMutex
	currentSlot time.Time

	// Stats
	slotsSeen  atomic.Int64
	pnlMu      sync.Mutex
	sessionPnL decimal.Decimal
}

// NewEngine creates a new trading engine
func NewEngine(cfg *config.Config, deps Deps) *Engine {
	return &Engine{
		cfg:        cfg,
		now:        time.Now,
		symbols:    NewSymbolManager(cfg.Symbols),
		book:       feeds.NewOrderBook(),
		feed:       deps.Feed,
		scanner:    deps.Scanner,
		analyzer:   deps.Analyzer,
		executor:   deps.Executor,
		risk:       deps.Risk,
		hours:      deps.Hours,
		recorder:   deps.Recorder,
		notifier:   deps.Notifier,
		settleCh:   make(chan SettlementJob, settlementQueueSize),
		sessionPnL: decimal.Zero,
	}
}

// SetClock overrides time.Now
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Book exposes the order-book tracker
func (e *Engine) Book() *feeds.OrderBook {
	return e.book
}

// Start discovers the first slot and launches the loops
func (e *Engine) Start(ctx context.Context) {
	e.runMu.Lock()
	if e.running {
		e.runMu.Unlock()
		return
	}
	e.running = true
	ctx, e.cancel = context.WithCancel(ctx)
	e.runMu.Unlock()

	updates := e.feed.Subscribe()
	e.feed.Start()
	e.pollSlots(ctx)

	e.wg.Add(5)
	go e.ingestLoop(ctx, updates)
	go e.tickerLoop(ctx, e.cfg.SweepInterval, e.sweep)
	go e.tickerLoop(ctx, e.cfg.SlotPollInterval, e.pollSlots)
	go e.tickerLoop(ctx, e.cfg.StatusInterval, func(context.Context) { e.logStatus() })
	go e.settlementLoop(ctx)

	log.Info().
		Strs("symbols", e.symbols.Symbols()).
		Str("mode", e.executor.Mode()).
		Msg("⚡ Engine started")
}

// Stop cancels the loops and waits for in-flight evaluations
func (e *Engine) Stop() {
	e.runMu.Lock()
	if !e.running {
		e.runMu.Unlock()
		return
	}
	e.running = false
	e.cancel()
	e.runMu.Unlock()

	e.wg.Wait()
	e.evalWG.Wait()
	e.feed.Stop()
	e.logStatus()
	log.Info().Msg("Engine stopped")
}

// Pause blocks new entries; hedges, adds and settlement continue
func (e *Engine) Pause() {
	e.paused.Store(true)
	log.Warn().Msg("⏸️ Entries paused")
}

// Resume re-enables entries
func (e *Engine) Resume() {
	e.paused.Store(false)
	log.Info().Msg("▶️ Entries resumed")
}

// Paused reports whether entries are blocked
func (e *Engine) Paused() bool {
	return e.paused.Load()
}

// ═══════════════════════════════════════════════════════════════════════════════
// LOOPS
// ═══════════════════════════════════════════════════════════════════════════════

func (e *Engine) ingestLoop(ctx context.Context, updates <-chan feeds.BookUpdate) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			e.book.UpdateRaw(u.TokenID, u.Bids, u.Asks)
			if symbol, ok := e.symbols.SymbolForToken(u.TokenID); ok {
				e.spawnEvaluate(ctx, symbol, false)
			}
		}
	}
}

func (e *Engine) tickerLoop(ctx context.Context, every time.Duration, fn func(context.Context)) {
	defer e.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// sweep re-evaluates symbols holding a position so hedges fire without book updates
func (e *Engine) sweep(ctx context.Context) {
	for _, symbol := range e.symbols.Symbols() {
		e.spawnEvaluate(ctx, symbol, true)
	}
}

// spawnEvaluate runs one evaluation in its own goroutine if the symbol is idle
func (e *Engine) spawnEvaluate(ctx context.Context, symbol string, openOnly bool) {
	st := e.symbols.get(symbol)
	if st == nil || !st.mu.TryLock() {
		return
	}
	if openOnly && (st.position == nil || !st.position.HasTrades()) {
		st.mu.Unlock()
		return
	}

	e.evalWG.Add(1)
	go func() {
		defer e.evalWG.Done()
		defer st.mu.Unlock()
		e.evaluateSafe(ctx, st)
	}()
}

// Evaluate runs one decision cycle for symbol, skipping it when busy
func (e *Engine) Evaluate(ctx context.Context, symbol string) {
	st := e.symbols.get(symbol)
	if st == nil || !st.mu.TryLock() {
		return
	}
	defer st.mu.Unlock()
	e.evaluateSafe(ctx, st)
}

func (e *Engine) evaluateSafe(ctx context.Context, st *symbolState) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("symbol", st.symbol).Interface("panic", r).Msg("❌ Evaluation panic recovered")
			if e.notifier != nil {
				e.notifier.NotifyError(fmt.Errorf("%s evaluation panic: %v", st.symbol, r))
			}
		}
	}()
	e.evaluate(ctx, st, e.now())
}

// ═══════════════════════════════════════════════════════════════════════════════
// DECISION CYCLE
// ═══════════════════════════════════════════════════════════════════════════════

// evaluate runs entry, hedge and add for one symbol; the caller holds st.mu
func (e *Engine) evaluate(ctx context.Context, st *symbolState, now time.Time) {
	market, pos := st.market, st.position
	if market == nil || pos == nil {
		return
	}

	yesPrice := e.book.BuyPrice(market.YesToken)
	noPrice := e.book.BuyPrice(market.NoToken)
	if !tradable(yesPrice) || !tradable(noPrice) {
		return
	}

	pos.ObservePrice(types.SideYes, yesPrice)
	pos.ObservePrice(types.SideNo, noPrice)

	if !pos.LastTradeTime.IsZero() && now.Sub(pos.LastTradeTime) < e.cfg.Strategy.SignalCooldown {
		return
	}

	prices := map[types.Side]decimal.Decimal{types.SideYes: yesPrice, types.SideNo: noPrice}

	if !pos.HasTrades() {
		e.tryEntry(ctx, st, prices, now)
		return
	}

	minutesLeft := market.MinutesRemaining(now)
	if e.tryHedge(ctx, st, prices, minutesLeft, now) {
		return
	}
	e.tryAdd(ctx, st, prices, minutesLeft, now)
}

func tradable(price decimal.Decimal) bool {
	return price.IsPositive() && price.LessThan(decimal.NewFromInt(1))
}

func (e *Engine) tryEntry(ctx context.Context, st *symbolState, prices map[types.Side]decimal.Decimal, now time.Time) {
	pos, market := st.position, st.market
	cfg := e.cfg.Strategy

	if pos.TotalCost().GreaterThanOrEqual(e.cfg.Sizing.MaxPosition) || e.paused.Load() {
		return
	}
	if e.risk.InCooldown(now) {
		log.Debug().
			Str("symbol", st.symbol).
			Dur("remaining", e.risk.CooldownRemaining(now)).
			Msg("Loss cooldown active")
		return
	}
	if !strategy.SessionAllowed(now, cfg) {
		return
	}

	analysis, err := e.analyzer.Analyze(ctx, st.symbol)
	if err != nil {
		if !errors.Is(err, strategy.ErrInsufficientData) {
			log.Warn().Err(err).Str("symbol", st.symbol).Msg("Reference analysis failed")
		}
		return
	}

	signal, reject := strategy.EvaluateEntry(strategy.EntryInput{
		Symbol:    st.symbol,
		Analysis:  analysis,
		YesSpread: e.book.Spread(market.YesToken),
		NoSpread:  e.book.Spread(market.NoToken),
		Hour:      e.hourRate(now),
	}, cfg)
	if signal == nil {
		metrics.Signals.WithLabelValues(st.symbol, "rejected").Inc()
		log.Debug().Str("symbol", st.symbol).Str("reason", reject).Msg("Entry rejected")
		return
	}
	metrics.Signals.WithLabelValues(st.symbol, "signal").Inc()

	price := prices[signal.Side]
	log.Info().
		Str("symbol", st.symbol).
		Str("side", string(signal.Side)).
		Str("price", price.StringFixed(3)).
		Float64("confidence", signal.Confidence).
		Str("reason", signal.Reason()).
		Msgf("%s SIGNAL", directionEmoji(signal.Direction))

	_, err = e.executor.Place(ctx, pos, execution.Request{
		Market:     market,
		Side:       signal.Side,
		Price:      price,
		Kind:       types.KindEntry,
		Reason:     signal.Reason(),
		Confidence: signal.Confidence,
		Risk:       e.risk.Snapshot(),
	})
	if err != nil {
		log.Warn().Err(err).Str("symbol", st.symbol).Msg("Entry not placed")
	}
}

// tryHedge advances the hedge trigger; it reports whether a hedge fired
func (e *Engine) tryHedge(ctx context.Context, st *symbolState, prices map[types.Side]decimal.Decimal, minutesLeft float64, now time.Time) bool {
	pos := st.position
	cfg := e.cfg.Strategy

	if !strategy.HedgeAllowed(pos, minutesLeft, cfg) {
		pos.Hedge = types.Trigger{}
		return false
	}
	spot, err := e.analyzer.Spot(ctx, st.symbol)
	if err != nil || !spot.IsPositive() {
		pos.Hedge = types.Trigger{}
		return false
	}

	side := pos.InitialSide
	price := prices[side]
	drop := pos.Drop(side, price)

	in := strategy.HedgeInput{
		Side:      side,
		Drop:      drop,
		Threshold: strategy.HedgeThreshold(cfg, pos.HedgeCount, minutesLeft),
		Spot:      spot,
		SlotStart: st.startPrice,
	}
	if cfg.HedgeRequireVolume {
		if a, err := e.analyzer.Analyze(ctx, st.symbol); err == nil {
			in.VolumeRatio = a.VolumeRatio
		}
	}
	qualifies := strategy.HedgeQualifies(in, cfg)

	wasArmed := pos.Hedge.Armed()
	next, fire := strategy.Advance(pos.Hedge, qualifies, drop, now, cfg.HedgeConfirm)
	pos.Hedge = next

	if !fire {
		switch {
		case next.Armed() && !wasArmed:
			log.Info().
				Str("symbol", st.symbol).
				Str("side", string(side)).
				Str("drop", fmt.Sprintf("%.1f%%", drop*100)).
				Str("threshold", fmt.Sprintf("%.1f%%", in.Threshold*100)).
				Dur("confirm", cfg.HedgeConfirm).
				Msg("⏱️ Hedge pending")
		case wasArmed && !next.Armed():
			log.Info().
				Str("symbol", st.symbol).
				Str("price", price.StringFixed(3)).
				Msg("✅ Drop recovered, hedge disarmed")
		}
		return false
	}

	hedgeSide := side.Opposite()
	book := pos.Book(side)
	reason := fmt.Sprintf("HEDGE: %s %s→%s (-%.0f%%)", side, book.PeakPrice.StringFixed(2), price.StringFixed(2), drop*100)
	log.Info().
		Str("symbol", st.symbol).
		Str("buy", string(hedgeSide)).
		Str("drop", fmt.Sprintf("%.1f%%", drop*100)).
		Str("spot", spot.String()).
		Str("start", st.startPrice.String()).
		Msg("🛡️ Hedge confirmed")

	_, err = e.executor.Place(ctx, pos, execution.Request{
		Market: st.market,
		Side:   hedgeSide,
		Price:  prices[hedgeSide],
		Kind:   types.KindHedge,
		Reason: reason,
		Drop:   drop,
	})
	if err != nil {
		log.Warn().Err(err).Str("symbol", st.symbol).Msg("Hedge not placed")
	}
	return true
}

// tryAdd advances the add-to-winner trigger
func (e *Engine) tryAdd(ctx context.Context, st *symbolState, prices map[types.Side]decimal.Decimal, minutesLeft float64, now time.Time) {
	pos := st.position
	cfg := e.cfg.Strategy

	if !strategy.AddAllowed(pos, minutesLeft, cfg) {
		pos.Add = types.Trigger{}
		return
	}
	spot, err := e.analyzer.Spot(ctx, st.symbol)
	if err != nil || !spot.IsPositive() {
		pos.Add = types.Trigger{}
		return
	}

	side := pos.InitialSide
	price := prices[side]
	qualifies, dist := strategy.AddQualifies(side, spot, st.startPrice, price, cfg)

	wasArmed := pos.Add.Armed()
	next, fire := strategy.Advance(pos.Add, qualifies, dist, now, cfg.AddConfirm)
	pos.Add = next

	if !fire {
		if next.Armed() && !wasArmed {
			log.Info().
				Str("symbol", st.symbol).
				Str("distance", fmt.Sprintf("%.3f%%", dist)).
				Str("price", price.StringFixed(3)).
				Msg("⏱️ Add pending")
		}
		return
	}

	log.Info().
		Str("symbol", st.symbol).
		Str("side", string(side)).
		Str("distance", fmt.Sprintf("%.3f%%", dist)).
		Msg("➕ Add to winner")

	_, err = e.executor.Place(ctx, pos, execution.Request{
		Market: st.market,
		Side:   side,
		Price:  price,
		Kind:   types.KindAdd,
		Reason: fmt.Sprintf("ADD: %s +%.2f%% from open @ %s", side, dist, price.StringFixed(2)),
	})
	if err != nil {
		log.Warn().Err(err).Str("symbol", st.symbol).Msg("Add not placed")
	}
}

func (e *Engine) hourRate(now time.Time) strategy.HourRate {
	if !e.cfg.Strategy.HourFilterEnabled || e.hours == nil {
		return strategy.HourRate{}
	}
	rate, samples, err := e.hours.HourlyWinRate(now.UTC().Hour())
	if err != nil {
		log.Debug().Err(err).Msg("Hourly win rate unavailable")
		return strategy.HourRate{}
	}
	return strategy.HourRate{Rate: rate, Samples: samples, Known: true}
}

func directionEmoji(d strategy.Direction) string {
	if d == strategy.DirUp {
		return "📈"
	}
	return "📉"
}

// ═══════════════════════════════════════════════════════════════════════════════
// SLOT ROLLOVER
// ═══════════════════════════════════════════════════════════════════════════════

// pollSlots discovers the current slot and rolls symbols whose market changed
func (e *Engine) pollSlots(ctx context.Context) {
	now := e.now()

	// symbols already holding this slot's market skip the Gamma lookup
	discovered := make(map[string]*types.Market)
	var lookup []string
	for _, symbol := range e.symbols.Symbols() {
		st := e.symbols.get(symbol)
		st.mu.Lock()
		held := st.market
		st.mu.Unlock()
		if held != nil && held.Slug == feeds.SlotSlug(symbol, now) {
			discovered[symbol] = held
			continue
		}
		lookup = append(lookup, symbol)
	}
	if len(lookup) > 0 {
		for symbol, m := range e.scanner.DiscoverAll(ctx, lookup, now) {
			discovered[symbol] = m
		}
	}

	// start prices are fetched before any symbol lock is taken
	starts := make(map[string]decimal.Decimal)
	for symbol, m := range discovered {
		st := e.symbols.get(symbol)
		if st == nil || !e.needsRoll(st, m, now) {
			continue
		}
		price, err := e.analyzer.FreshSpot(ctx, symbol)
		if err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("Slot start price unavailable")
			price = decimal.Zero
		}
		starts[symbol] = price
	}

	job := SettlementJob{StartPrices: make(map[string]decimal.Decimal), EnqueuedAt: now}
	rolled := 0
	var outgoing []string
	active := make(map[string]*types.Market)

	for _, symbol := range e.symbols.Symbols() {
		st := e.symbols.get(symbol)
		m := discovered[symbol]

		st.mu.Lock()
		if !e.needsRoll(st, m, now) {
			if st.market != nil {
				active[symbol] = st.market
			}
			st.mu.Unlock()
			continue
		}

		if st.market != nil {
			outgoing = append(outgoing, st.market.YesToken, st.market.NoToken)
			if st.position != nil && st.position.TotalCost().IsPositive() {
				job.Slot = st.market.StartTime
				job.Positions = append(job.Positions, st.position.Clone())
				job.StartPrices[symbol] = st.startPrice
			}
		}
		st.install(m, starts[symbol])
		if m != nil {
			active[symbol] = m
			log.Info().
				Str("symbol", symbol).
				Str("slug", m.Slug).
				Str("start", starts[symbol].String()).
				Msg("🔄 New slot")
		}
		rolled++
		st.mu.Unlock()
	}

	if rolled == 0 {
		return
	}

	e.slotsSeen.Add(1)
	e.slotMu.Lock()
	e.currentSlot = feeds.SlotStart(now)
	e.slotMu.Unlock()

	tokens := e.symbols.setTokens(active)
	e.book.Forget(stale(outgoing, tokens)...)
	e.feed.Resubscribe(tokens)

	if len(job.Positions) > 0 {
		select {
		case e.settleCh <- job:
			log.Info().Int("positions", len(job.Positions)).Msg("📦 Settlement queued")
		case <-ctx.Done():
		}
	}
}

// stale returns the outgoing tokens that are not subscribed any more
func stale(outgoing, subscribed []string) []string {
	keep := make(map[string]bool, len(subscribed))
	for _, t := range subscribed {
		keep[t] = true
	}
	var out []string
	for _, t := range outgoing {
		if !keep[t] {
			out = append(out, t)
		}
	}
	return out
}

// needsRoll: the discovered slug differs, or the held market ended with nothing new
func (e *Engine) needsRoll(st *symbolState, m *types.Market, now time.Time) bool {
	if m == nil {
		return st.market != nil && !now.Before(st.market.EndTime)
	}
	return st.market == nil || st.market.Slug != m.Slug
}

// ═══════════════════════════════════════════════════════════════════════════════
// STATUS
// ═══════════════════════════════════════════════════════════════════════════════

// Status snapshots the engine for display
func (e *Engine) Status() types.BotStatus {
	now := e.now()
	snap := e.risk.Snapshot()
	stats := e.executor.Stats()

	e.slotMu.RLock()
	slot := e.currentSlot
	e.slotMu.RUnlock()

	e.pnlMu.Lock()
	pnl := e.sessionPnL
	e.pnlMu.Unlock()

	minutesLeft := 0.0
	if !slot.IsZero() {
		minutesLeft = slot.Add(feeds.SlotDuration).Sub(now).Minutes()
		if minutesLeft < 0 {
			minutesLeft = 0
		}
	}

	return types.BotStatus{
		Mode:              e.executor.Mode(),
		Paused:            e.paused.Load(),
		Symbols:           e.symbols.Symbols(),
		Slot:              slot,
		MinutesLeft:       minutesLeft,
		FeedConnected:     e.feed.Connected(),
		SessionWins:       snap.SessionWins,
		SessionLosses:     snap.SessionLosses,
		SessionPnL:        pnl,
		WinStreak:         snap.WinStreak,
		ConsecutiveLosses: snap.ConsecutiveLosses,
		CooldownRemaining: e.risk.CooldownRemaining(now),
		Trades:            stats.Trades,
		Hedges:            stats.Hedges,
		Adds:              stats.Adds,
	}
}

// OpenPositions lists current-slot positions with cost
func (e *Engine) OpenPositions() []types.PositionRecord {
	var out []types.PositionRecord
	for _, symbol := range e.symbols.Symbols() {
		st := e.symbols.get(symbol)
		st.mu.Lock()
		if st.position != nil && st.position.TotalCost().IsPositive() {
			out = append(out, st.position.Record())
		}
		st.mu.Unlock()
	}
	return out
}

func (e *Engine) logStatus() {
	s := e.Status()
	stats := e.executor.Stats()
	open := e.OpenPositions()

	metrics.OpenPositions.Set(float64(len(open)))
	metrics.SetFeedConnected(s.FeedConnected)

	log.Info().
		Str("mode", s.Mode).
		Bool("paused", s.Paused).
		Int64("trades", stats.Trades).
		Int64("hedges", stats.Hedges).
		Int64("adds", stats.Adds).
		Uint64("ws_msgs", e.feed.MessageCount()).
		Int64("slots", e.slotsSeen.Load()).
		Int64("sent", stats.OrdersSent).
		Int64("filled", stats.OrdersFilled).
		Int64("failed", stats.OrdersFailed).
		Str("session_pnl", s.SessionPnL.StringFixed(2)).
		Int("open", len(open)).
		Str("record", fmt.Sprintf("%dW/%dL", s.SessionWins, s.SessionLosses)).
		Msg("📊 Status")

	for _, p := range open {
		log.Info().
			Str("symbol", p.Symbol).
			Str("yes", p.YesShares.StringFixed(0)+"@"+p.YesAvg.StringFixed(3)).
			Str("no", p.NoShares.StringFixed(0)+"@"+p.NoAvg.StringFixed(3)).
			Str("cost", p.TotalCost.StringFixed(2)).
			Int("hedges", p.Hedges).
			Msg("   position")
	}
}
