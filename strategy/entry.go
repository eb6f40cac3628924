package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/web3guy0/polyneko/internal/config"
	"github.com/web3guy0/polyneko/internal/indicators"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ENTRY FILTER CHAIN
// ═══════════════════════════════════════════════════════════════════════════════
//
// Ordered, first failure wins, nothing is remembered between cycles:
//   1. spread      2. momentum    3. volume     4. ADX
//   5. hour stats  6. HTF trend   7. RSI/Stoch exhaustion
// then the confidence floor.
//
// ═══════════════════════════════════════════════════════════════════════════════

// HourRate is the historical win rate for the current hour of day
type HourRate struct {
	Rate    float64
	Samples int
	Known   bool
}

// EntryInput is everything the filter chain looks at
type EntryInput struct {
	Symbol    string
	Analysis  *Analysis
	YesSpread float64
	NoSpread  float64
	Hour      HourRate
}

// EvaluateEntry runs the filter chain. On reject it returns a short reason.
func EvaluateEntry(in EntryInput, cfg config.StrategyConfig) (*Signal, string) {
	a := in.Analysis

	// 1. Spread on both tokens
	if in.YesSpread > cfg.MaxSpread || in.NoSpread > cfg.MaxSpread {
		return nil, fmt.Sprintf("spread %.3f/%.3f > %.3f", in.YesSpread, in.NoSpread, cfg.MaxSpread)
	}

	// 2. Momentum
	if math.Abs(a.Momentum) < cfg.MinMomentum {
		return nil, fmt.Sprintf("momentum %.3f%% < %.3f%%", math.Abs(a.Momentum), cfg.MinMomentum)
	}

	// 3. Volume
	if a.VolumeRatio < cfg.MinVolumeRatio {
		return nil, fmt.Sprintf("volume %.2fx < %.2fx", a.VolumeRatio, cfg.MinVolumeRatio)
	}

	// 4. Trend strength
	if cfg.ADXEnabled && a.ADX.ADX < cfg.ADXMinStrength {
		return nil, fmt.Sprintf("adx %.1f < %.1f", a.ADX.ADX, cfg.ADXMinStrength)
	}

	// 5. Hour of day
	if cfg.HourFilterEnabled && in.Hour.Known && in.Hour.Samples >= cfg.MinHourSamples &&
		in.Hour.Rate < cfg.MinHourWinRate {
		return nil, fmt.Sprintf("hour win rate %.0f%% < %.0f%% (%d samples)",
			in.Hour.Rate*100, cfg.MinHourWinRate*100, in.Hour.Samples)
	}

	dir := DirectionOf(a.Momentum)

	// 6. Higher timeframe
	if cfg.HTFFilterEnabled {
		if (dir == DirUp && a.HTFTrend == indicators.TrendBearish) ||
			(dir == DirDown && a.HTFTrend == indicators.TrendBullish) {
			return nil, fmt.Sprintf("%s against %s HTF", dir, a.HTFTrend)
		}
	}

	// 7. Exhaustion
	if dir == DirUp {
		if cfg.RSIEnabled && a.RSI >= cfg.RSIOverbought {
			return nil, fmt.Sprintf("rsi %.0f overbought", a.RSI)
		}
		if cfg.StochEnabled && a.Stoch.K >= cfg.StochOverbought {
			return nil, fmt.Sprintf("stoch %.0f overbought", a.Stoch.K)
		}
	} else {
		if cfg.RSIEnabled && a.RSI <= cfg.RSIOversold {
			return nil, fmt.Sprintf("rsi %.0f oversold", a.RSI)
		}
		if cfg.StochEnabled && a.Stoch.K <= cfg.StochOversold {
			return nil, fmt.Sprintf("stoch %.0f oversold", a.Stoch.K)
		}
	}

	confidence, reasons := CalculateConfidence(a, dir, cfg)
	if confidence < cfg.MinConfidence {
		return nil, fmt.Sprintf("confidence %.2f < %.2f", confidence, cfg.MinConfidence)
	}

	return &Signal{
		Symbol:     in.Symbol,
		Direction:  dir,
		Side:       dir.Side(),
		Confidence: confidence,
		Reasons:    reasons,
	}, ""
}

// SessionAllowed checks the UTC trading window [start, end), wrapping midnight
func SessionAllowed(now time.Time, cfg config.StrategyConfig) bool {
	if !cfg.SessionFilterEnabled {
		return true
	}
	hour := now.UTC().Hour()
	start, end := cfg.SessionStartHour, cfg.SessionEndHour
	if start == end {
		return true
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}
