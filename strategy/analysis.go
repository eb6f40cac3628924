package strategy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polyneko/internal/config"
	"github.com/web3guy0/polyneko/internal/indicators"
)

// ═══════════════════════════════════════════════════════════════════════════════
// REFERENCE SIGNAL ENGINE - Indicator bundle per symbol with short TTL caches
// ═══════════════════════════════════════════════════════════════════════════════
//
// Evaluation runs on every book message, so the external calls are bounded:
//   1m analysis  → 10s TTL
//   5m trend     → 30s TTL
//   spot price   → 2s TTL
//
// ═══════════════════════════════════════════════════════════════════════════════

const (
	rsiDivergenceLookback = 5
	rsiDivergenceMinDelta = 5.0
	htfFast               = 8
	htfSlow               = 20
	htfMomentumPeriod     = 5
)

// Analysis is one symbol's indicator bundle
type Analysis struct {
	Symbol      string
	Momentum    float64 // percent over MomentumPeriod candles
	RSI         float64
	VolumeRatio float64
	MACD        indicators.MACDResult
	Stoch       indicators.StochResult
	ADX         indicators.ADXResult
	Bollinger   indicators.BollingerResult
	Squeeze     bool
	Divergence  string
	HTFTrend    string
	LastPrice   float64
	CandleCount int
	UpdatedAt   time.Time
}

// Compute builds the 1m part of an analysis from candles.
// HTFTrend is left NEUTRAL; the Analyzer fills it from 5m candles.
func Compute(candles []indicators.Candle, cfg config.StrategyConfig) *Analysis {
	closes := indicators.Closes(candles)
	volumes := indicators.Volumes(candles)

	a := &Analysis{
		Momentum:    indicators.Momentum(closes, cfg.MomentumPeriod),
		RSI:         indicators.RSI(closes, cfg.RSIPeriod),
		VolumeRatio: indicators.VolumeRatio(volumes, cfg.VolumeLookback),
		MACD:        indicators.MACD(closes, 12, 26, 9),
		Stoch:       indicators.Stochastic(candles, 14, 3),
		ADX:         indicators.ADX(candles, cfg.ADXPeriod),
		Bollinger:   indicators.BollingerBands(closes, 20, 2),
		Divergence:  indicators.Divergence(closes, cfg.RSIPeriod, rsiDivergenceLookback, rsiDivergenceMinDelta),
		HTFTrend:    indicators.TrendNeutral,
		CandleCount: len(candles),
	}
	// a zero width means there was no band to measure
	a.Squeeze = a.Bollinger.Width > 0 && a.Bollinger.Width < cfg.BBSqueezeThreshold
	if len(closes) > 0 {
		a.LastPrice = closes[len(closes)-1]
	}
	return a
}

// String is a compact one-line summary for debug logs
func (a *Analysis) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "mom=%.3f%% rsi=%.1f vol=%.2fx", a.Momentum, a.RSI, a.VolumeRatio)
	fmt.Fprintf(&b, " macd=%.4f stoch=%.0f/%.0f adx=%.1f", a.MACD.Histogram, a.Stoch.K, a.Stoch.D, a.ADX.ADX)
	fmt.Fprintf(&b, " div=%s htf=%s", a.Divergence, a.HTFTrend)
	return b.String()
}

type cachedAnalysis struct {
	analysis *Analysis
	at       time.Time
}

type cachedTrend struct {
	trend string
	at    time.Time
}

type cachedSpot struct {
	price decimal.Decimal
	at    time.Time
}

// Analyzer computes and caches analyses per symbol.
// It is safe for concurrent use by the per-symbol evaluators.
type Analyzer struct {
	provider ReferenceProvider
	cfg      config.StrategyConfig
	now      func() time.Time

	mu       sync.Mutex
	analyses map[string]cachedAnalysis
	trends   map[string]cachedTrend
	spots    map[string]cachedSpot
}

// NewAnalyzer creates an analyzer backed by provider
func NewAnalyzer(provider ReferenceProvider, cfg config.StrategyConfig) *Analyzer {
	return &Analyzer{
		provider: provider,
		cfg:      cfg,
		now:      time.Now,
		analyses: make(map[string]cachedAnalysis),
		trends:   make(map[string]cachedTrend),
		spots:    make(map[string]cachedSpot),
	}
}

// SetClock replaces the clock used for TTL checks
func (a *Analyzer) SetClock(now func() time.Time) {
	a.now = now
}

// Analyze returns the symbol's analysis, refreshing it when stale
func (a *Analyzer) Analyze(ctx context.Context, symbol string) (*Analysis, error) {
	now := a.now()

	a.mu.Lock()
	if c, ok := a.analyses[symbol]; ok && now.Sub(c.at) < a.cfg.AnalysisTTL {
		a.mu.Unlock()
		return c.analysis, nil
	}
	a.mu.Unlock()

	candles, err := a.provider.Klines(ctx, symbol, "1m", a.cfg.CandleLimit)
	if err != nil {
		return nil, fmt.Errorf("klines 1m %s: %w", symbol, err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrInsufficientData)
	}

	analysis := Compute(candles, a.cfg)
	analysis.Symbol = symbol
	analysis.HTFTrend = a.trend(ctx, symbol, now)
	analysis.UpdatedAt = now

	a.mu.Lock()
	a.analyses[symbol] = cachedAnalysis{analysis: analysis, at: now}
	a.mu.Unlock()

	log.Debug().Str("symbol", symbol).Msgf("📊 %s", analysis)
	return analysis, nil
}

// trend returns the 5m trend; failures degrade to NEUTRAL
func (a *Analyzer) trend(ctx context.Context, symbol string, now time.Time) string {
	a.mu.Lock()
	if c, ok := a.trends[symbol]; ok && now.Sub(c.at) < a.cfg.HTFTTL {
		a.mu.Unlock()
		return c.trend
	}
	a.mu.Unlock()

	candles, err := a.provider.Klines(ctx, symbol, "5m", a.cfg.HTFCandleLimit)
	if err != nil {
		log.Debug().Err(err).Str("symbol", symbol).Msg("HTF klines unavailable")
		return indicators.TrendNeutral
	}
	trend := indicators.Trend(indicators.Closes(candles), htfFast, htfSlow, htfMomentumPeriod)

	a.mu.Lock()
	a.trends[symbol] = cachedTrend{trend: trend, at: now}
	a.mu.Unlock()
	return trend
}

// Spot returns the latest reference price (cached briefly)
func (a *Analyzer) Spot(ctx context.Context, symbol string) (decimal.Decimal, error) {
	now := a.now()

	a.mu.Lock()
	if c, ok := a.spots[symbol]; ok && now.Sub(c.at) < a.cfg.SpotTTL {
		a.mu.Unlock()
		return c.price, nil
	}
	a.mu.Unlock()

	price, err := a.provider.SpotPrice(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}

	a.mu.Lock()
	a.spots[symbol] = cachedSpot{price: price, at: now}
	a.mu.Unlock()
	return price, nil
}

// FreshSpot bypasses the cache (slot start and settlement prices)
func (a *Analyzer) FreshSpot(ctx context.Context, symbol string) (decimal.Decimal, error) {
	price, err := a.provider.SpotPrice(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	a.mu.Lock()
	a.spots[symbol] = cachedSpot{price: price, at: a.now()}
	a.mu.Unlock()
	return price, nil
}
