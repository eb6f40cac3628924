package indicators

import (
	"math"
)

// Candle is one OHLCV bar
type Candle struct {
	OpenTime int64 // unix ms
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Closes extracts close prices
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Volumes extracts volumes
func Volumes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}

// RSI calculates Relative Strength Index with Wilder smoothing
func RSI(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period+1 {
		return 50 // Neutral if not enough data
	}

	gains := make([]float64, 0, len(prices)-1)
	losses := make([]float64, 0, len(prices)-1)

	for i := 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gains = append(gains, change)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -change)
		}
	}

	// Calculate initial average gain/loss
	avgGain := average(gains[:period])
	avgLoss := average(losses[:period])

	// Smooth with remaining data
	for i := period; i < len(gains); i++ {
		avgGain = (avgGain*float64(period-1) + gains[i]) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + losses[i]) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// EMASeries returns the SMA-seeded EMA for every index from period-1 on.
// The result has len(prices)-period+1 values, or none when too short.
func EMASeries(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return nil
	}

	multiplier := 2.0 / float64(period+1)
	ema := average(prices[:period])
	out := make([]float64, 0, len(prices)-period+1)
	out = append(out, ema)

	for i := period; i < len(prices); i++ {
		ema = (prices[i]-ema)*multiplier + ema
		out = append(out, ema)
	}
	return out
}

// SMA calculates Simple Moving Average
func SMA(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	if len(prices) < period {
		return average(prices)
	}

	return average(prices[len(prices)-period:])
}

// MACDResult holds the MACD triple
type MACDResult struct {
	Line      float64
	Signal    float64
	Histogram float64
	Bullish   bool
}

// MACD calculates the MACD line, its signal EMA and the histogram.
// Needs slow+signal-1 prices; returns zeros otherwise.
func MACD(prices []float64, fastPeriod, slowPeriod, signalPeriod int) MACDResult {
	if len(prices) < slowPeriod+signalPeriod-1 {
		return MACDResult{}
	}

	fast := EMASeries(prices, fastPeriod)
	slow := EMASeries(prices, slowPeriod)

	// align: slow[i] corresponds to prices[slowPeriod-1+i]
	offset := slowPeriod - fastPeriod
	line := make([]float64, len(slow))
	for i := range slow {
		line[i] = fast[i+offset] - slow[i]
	}

	signal := EMASeries(line, signalPeriod)
	if len(signal) == 0 {
		return MACDResult{}
	}

	r := MACDResult{
		Line:   line[len(line)-1],
		Signal: signal[len(signal)-1],
	}
	r.Histogram = r.Line - r.Signal
	r.Bullish = r.Histogram > 0
	return r
}

// Momentum calculates percent change over a period
func Momentum(prices []float64, period int) float64 {
	if len(prices) <= period {
		return 0
	}

	current := prices[len(prices)-1]
	previous := prices[len(prices)-1-period]

	if previous == 0 {
		return 0
	}

	return ((current - previous) / previous) * 100
}

// VolumeRatio is the latest volume over the mean of up to lookback preceding volumes.
// 1.0 when there isn't enough data.
func VolumeRatio(volumes []float64, lookback int) float64 {
	if len(volumes) < 2 {
		return 1.0
	}
	prev := volumes[:len(volumes)-1]
	if lookback > 0 && len(prev) > lookback {
		prev = prev[len(prev)-lookback:]
	}
	mean := average(prev)
	if mean <= 0 {
		return 1.0
	}
	return volumes[len(volumes)-1] / mean
}

// StochResult holds %K and %D
type StochResult struct {
	K float64
	D float64
}

// Stochastic computes %K over kPeriod and %D as the dPeriod mean of %K
func Stochastic(candles []Candle, kPeriod, dPeriod int) StochResult {
	if len(candles) < kPeriod+dPeriod-1 {
		return StochResult{K: 50, D: 50}
	}

	ks := make([]float64, 0, dPeriod)
	for j := dPeriod - 1; j >= 0; j-- {
		end := len(candles) - j
		window := candles[end-kPeriod : end]
		hi, lo := window[0].High, window[0].Low
		for _, c := range window[1:] {
			hi = math.Max(hi, c.High)
			lo = math.Min(lo, c.Low)
		}
		k := 50.0
		if hi > lo {
			k = (window[len(window)-1].Close - lo) / (hi - lo) * 100
		}
		ks = append(ks, k)
	}

	return StochResult{K: ks[len(ks)-1], D: average(ks)}
}

// ADXResult holds the directional movement values
type ADXResult struct {
	ADX     float64
	PlusDI  float64
	MinusDI float64
	ATR     float64
}

// ADX computes +DI/-DI and ATR from simple period averages of true range and
// directional movement. ADX is the single-period DX, not a smoothed series.
func ADX(candles []Candle, period int) ADXResult {
	if period <= 0 || len(candles) < period+1 {
		return ADXResult{}
	}

	recent := candles[len(candles)-period-1:]
	var trSum, plusSum, minusSum float64
	for i := 1; i < len(recent); i++ {
		cur, prev := recent[i], recent[i-1]
		tr := math.Max(cur.High-cur.Low,
			math.Max(math.Abs(cur.High-prev.Close), math.Abs(cur.Low-prev.Close)))
		trSum += tr

		up := cur.High - prev.High
		down := prev.Low - cur.Low
		if up > down && up > 0 {
			plusSum += up
		}
		if down > up && down > 0 {
			minusSum += down
		}
	}

	n := float64(period)
	r := ADXResult{ATR: trSum / n}
	if r.ATR == 0 {
		return r
	}
	r.PlusDI = 100 * (plusSum / n) / r.ATR
	r.MinusDI = 100 * (minusSum / n) / r.ATR
	if sum := r.PlusDI + r.MinusDI; sum > 0 {
		r.ADX = 100 * math.Abs(r.PlusDI-r.MinusDI) / sum
	}
	return r
}

// Volatility calculates population standard deviation
func Volatility(prices []float64) float64 {
	if len(prices) < 2 {
		return 0
	}

	avg := average(prices)
	sumSquares := 0.0

	for _, p := range prices {
		sumSquares += (p - avg) * (p - avg)
	}

	return math.Sqrt(sumSquares / float64(len(prices)))
}

// BollingerResult holds the bands and their relative width
type BollingerResult struct {
	Upper  float64
	Middle float64
	Lower  float64
	Width  float64
}

// BollingerBands calculates SMA ± stdDev·σ over period
func BollingerBands(prices []float64, period int, stdDev float64) BollingerResult {
	if len(prices) < period {
		return BollingerResult{}
	}

	middle := SMA(prices, period)
	volatility := Volatility(prices[len(prices)-period:])

	r := BollingerResult{
		Upper:  middle + (volatility * stdDev),
		Middle: middle,
		Lower:  middle - (volatility * stdDev),
	}
	if middle != 0 {
		r.Width = (r.Upper - r.Lower) / middle
	}
	return r
}

// Divergence labels
const (
	DivergenceNone    = "NONE"
	DivergenceBullish = "BULLISH"
	DivergenceBearish = "BEARISH"
)

// Divergence compares the price move over lookback candles with the change in
// RSI over the same span. A disagreement of more than minRSIDelta points counts.
func Divergence(closes []float64, rsiPeriod, lookback int, minRSIDelta float64) string {
	if len(closes) < rsiPeriod+1+lookback {
		return DivergenceNone
	}

	last := len(closes) - 1
	priceDelta := closes[last] - closes[last-lookback]
	rsiNow := RSI(closes, rsiPeriod)
	rsiThen := RSI(closes[:len(closes)-lookback], rsiPeriod)

	switch {
	case priceDelta < 0 && rsiNow-rsiThen > minRSIDelta:
		return DivergenceBullish
	case priceDelta > 0 && rsiThen-rsiNow > minRSIDelta:
		return DivergenceBearish
	}
	return DivergenceNone
}

// Trend labels
const (
	TrendNeutral = "NEUTRAL"
	TrendBullish = "BULLISH"
	TrendBearish = "BEARISH"
)

// Trend classifies a series with a fast/slow SMA cross confirmed by momentum sign
func Trend(closes []float64, fast, slow, momentumPeriod int) string {
	if len(closes) < slow+1 || len(closes) <= momentumPeriod {
		return TrendNeutral
	}

	smaFast := SMA(closes, fast)
	smaSlow := SMA(closes, slow)
	mom := Momentum(closes, momentumPeriod)

	switch {
	case smaFast > smaSlow && mom > 0:
		return TrendBullish
	case smaFast < smaSlow && mom < 0:
		return TrendBearish
	}
	return TrendNeutral
}

// Helper functions

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
