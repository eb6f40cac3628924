package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/web3guy0/polyneko/internal/config"
	"github.com/web3guy0/polyneko/internal/indicators"
)

func bullishAnalysis() *Analysis {
	return &Analysis{
		Symbol:      "BTC",
		Momentum:    0.08,
		RSI:         60,
		VolumeRatio: 1.5,
		MACD:        indicators.MACDResult{Line: 1, Signal: 0.5, Histogram: 0.5, Bullish: true},
		Stoch:       indicators.StochResult{K: 60, D: 50},
		ADX:         indicators.ADXResult{ADX: 35, PlusDI: 30, MinusDI: 10},
		Divergence:  indicators.DivergenceNone,
		HTFTrend:    indicators.TrendBullish,
	}
}

func TestCalculateConfidence_AllAgree(t *testing.T) {
	cfg := config.Default().Strategy
	a := bullishAnalysis()
	a.Divergence = indicators.DivergenceBullish
	a.Squeeze = true

	score, reasons := CalculateConfidence(a, DirUp, cfg)
	assert.InDelta(t, 1.0, score, 1e-9)
	assert.Len(t, reasons, 8)

	// only the direction-neutral volume spike and squeeze agree with DOWN
	score, _ = CalculateConfidence(a, DirDown, cfg)
	assert.InDelta(t, 1.5/9.0, score, 1e-9)
}

func TestCalculateConfidence_ADXWeights(t *testing.T) {
	cfg := config.Default().Strategy
	cfg.MomentumEnabled, cfg.RSIEnabled, cfg.MACDEnabled, cfg.StochEnabled = false, false, false, false
	cfg.VolumeEnabled, cfg.DivergenceEnabled, cfg.BBEnabled = false, false, false

	a := bullishAnalysis()
	score, _ := CalculateConfidence(a, DirUp, cfg)
	assert.InDelta(t, 1.0, score, 1e-9)

	a.ADX.ADX = 25
	score, _ = CalculateConfidence(a, DirUp, cfg)
	assert.InDelta(t, 0.5, score, 1e-9)

	// below min strength still counts in the denominator
	a.ADX.ADX = 10
	score, _ = CalculateConfidence(a, DirUp, cfg)
	assert.Equal(t, 0.0, score)

	// strong but DI against the direction
	a.ADX.ADX = 40
	score, _ = CalculateConfidence(a, DirDown, cfg)
	assert.Equal(t, 0.0, score)
}

func TestCalculateConfidence_DisabledRemovesWeight(t *testing.T) {
	cfg := config.Default().Strategy
	cfg.RSIEnabled, cfg.MACDEnabled, cfg.StochEnabled, cfg.ADXEnabled = false, false, false, false
	cfg.VolumeEnabled, cfg.DivergenceEnabled, cfg.BBEnabled = false, false, false

	score, reasons := CalculateConfidence(bullishAnalysis(), DirUp, cfg)
	assert.Equal(t, 1.0, score)
	assert.Len(t, reasons, 1)

	cfg.MomentumEnabled = false
	score, reasons = CalculateConfidence(bullishAnalysis(), DirUp, cfg)
	assert.Equal(t, 0.0, score)
	assert.Empty(t, reasons)
}

func TestCalculateConfidence_AlwaysInUnitRange(t *testing.T) {
	analyses := []*Analysis{bullishAnalysis(), {}, {Momentum: -1, RSI: 20, VolumeRatio: 3, Squeeze: true,
		Divergence: indicators.DivergenceBearish, ADX: indicators.ADXResult{ADX: 90, PlusDI: 1, MinusDI: 50}}}

	for mask := 1; mask < 1<<8; mask++ {
		cfg := config.Default().Strategy
		cfg.MomentumEnabled = mask&1 != 0
		cfg.RSIEnabled = mask&2 != 0
		cfg.MACDEnabled = mask&4 != 0
		cfg.StochEnabled = mask&8 != 0
		cfg.ADXEnabled = mask&16 != 0
		cfg.VolumeEnabled = mask&32 != 0
		cfg.DivergenceEnabled = mask&64 != 0
		cfg.BBEnabled = mask&128 != 0

		for _, a := range analyses {
			for _, dir := range []Direction{DirUp, DirDown} {
				score, _ := CalculateConfidence(a, dir, cfg)
				assert.GreaterOrEqual(t, score, 0.0)
				assert.LessOrEqual(t, score, 1.0)
			}
		}
	}
}
