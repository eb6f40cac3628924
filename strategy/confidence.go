package strategy

import (
	"fmt"

	"github.com/web3guy0/polyneko/internal/config"
	"github.com/web3guy0/polyneko/internal/indicators"
)

// Indicator weights in the confidence score
const (
	weightMomentum   = 1.0
	weightRSI        = 1.0
	weightMACD       = 1.0
	weightStoch      = 1.0
	weightADX        = 2.0
	weightVolume     = 1.0
	weightDivergence = 1.5
	weightSqueeze    = 0.5

	volumeSpikeRatio = 1.2
)

// CalculateConfidence scores how many enabled indicators agree with dir.
// Each enabled indicator adds its weight to the denominator; agreeing ones add
// it to the numerator as well. The result is within [0,1].
func CalculateConfidence(a *Analysis, dir Direction, cfg config.StrategyConfig) (float64, []string) {
	var score, total float64
	var reasons []string
	up := dir == DirUp

	agree := func(weight float64, ok bool, reason string) {
		total += weight
		if ok {
			score += weight
			reasons = append(reasons, reason)
		}
	}

	if cfg.MomentumEnabled {
		agree(weightMomentum, (up && a.Momentum > 0) || (!up && a.Momentum < 0),
			fmt.Sprintf("mom %+.3f%%", a.Momentum))
	}

	if cfg.RSIEnabled {
		ok := (up && a.RSI > 50 && a.RSI < cfg.RSIOverbought) ||
			(!up && a.RSI < 50 && a.RSI > cfg.RSIOversold)
		agree(weightRSI, ok, fmt.Sprintf("rsi %.0f", a.RSI))
	}

	if cfg.MACDEnabled {
		agree(weightMACD, a.MACD.Bullish == up, "macd")
	}

	if cfg.StochEnabled {
		ok := (up && a.Stoch.K > a.Stoch.D) || (!up && a.Stoch.K < a.Stoch.D)
		agree(weightStoch, ok, fmt.Sprintf("stoch %.0f/%.0f", a.Stoch.K, a.Stoch.D))
	}

	if cfg.ADXEnabled {
		// always counts 2; pays 1 or 2 only when the DI lines point our way
		total += weightADX
		aligned := (up && a.ADX.PlusDI > a.ADX.MinusDI) || (!up && a.ADX.MinusDI > a.ADX.PlusDI)
		if aligned {
			switch {
			case a.ADX.ADX >= cfg.ADXStrong:
				score += 2
				reasons = append(reasons, fmt.Sprintf("adx %.0f strong", a.ADX.ADX))
			case a.ADX.ADX >= cfg.ADXMinStrength:
				score++
				reasons = append(reasons, fmt.Sprintf("adx %.0f", a.ADX.ADX))
			}
		}
	}

	if cfg.VolumeEnabled {
		agree(weightVolume, a.VolumeRatio >= volumeSpikeRatio, fmt.Sprintf("vol %.1fx", a.VolumeRatio))
	}

	if cfg.DivergenceEnabled {
		ok := (up && a.Divergence == indicators.DivergenceBullish) ||
			(!up && a.Divergence == indicators.DivergenceBearish)
		agree(weightDivergence, ok, "divergence")
	}

	if cfg.BBEnabled {
		agree(weightSqueeze, a.Squeeze, "bb squeeze")
	}

	if total == 0 {
		return 0, nil
	}
	return score / total, reasons
}
