package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func candlesFrom(closes []float64, spread float64) []Candle {
	out := make([]Candle, len(closes))
	for i, c := range closes {
		out[i] = Candle{Open: c, High: c + spread, Low: c - spread, Close: c, Volume: 10}
	}
	return out
}

func TestRSI(t *testing.T) {
	t.Run("insufficient history is neutral", func(t *testing.T) {
		assert.Equal(t, 50.0, RSI(ramp(14, 100, 1), 14))
	})
	t.Run("no losses is 100", func(t *testing.T) {
		assert.Equal(t, 100.0, RSI(ramp(30, 100, 1), 14))
	})
	t.Run("all losses is 0", func(t *testing.T) {
		assert.InDelta(t, 0.0, RSI(ramp(30, 100, -1), 14), 1e-9)
	})
	t.Run("alternating is near 50", func(t *testing.T) {
		prices := make([]float64, 40)
		for i := range prices {
			prices[i] = 100
			if i%2 == 1 {
				prices[i] = 101
			}
		}
		assert.InDelta(t, 50.0, RSI(prices, 14), 5)
	})
}

func TestEMASeries(t *testing.T) {
	series := EMASeries([]float64{1, 2, 3, 4, 5}, 3)
	assert.Len(t, series, 3)
	assert.InDelta(t, 2.0, series[0], 1e-9) // SMA seed
	assert.InDelta(t, 3.0, series[1], 1e-9)
	assert.InDelta(t, 4.0, series[2], 1e-9)
	assert.Nil(t, EMASeries([]float64{1, 2}, 3))
}

func TestMACD(t *testing.T) {
	assert.Equal(t, MACDResult{}, MACD(ramp(33, 100, 1), 12, 26, 9))

	// accelerating uptrend keeps the line above its signal
	prices := make([]float64, 60)
	for i := range prices {
		prices[i] = 100 + float64(i*i)*0.05
	}
	r := MACD(prices, 12, 26, 9)
	assert.Greater(t, r.Line, 0.0)
	assert.True(t, r.Bullish)
	assert.InDelta(t, r.Line-r.Signal, r.Histogram, 1e-12)
}

func TestMomentum(t *testing.T) {
	closes := []float64{100, 100, 100, 100, 100, 100.05}
	assert.InDelta(t, 0.05, Momentum(closes, 5), 1e-9)
	assert.Equal(t, 0.0, Momentum([]float64{1, 2}, 5))
}

func TestVolumeRatio(t *testing.T) {
	assert.Equal(t, 1.0, VolumeRatio([]float64{5}, 20))
	assert.Equal(t, 1.0, VolumeRatio([]float64{0, 0, 7}, 20))
	assert.InDelta(t, 2.0, VolumeRatio([]float64{10, 10, 20}, 20), 1e-9)
	// only the lookback window counts
	assert.InDelta(t, 1.0, VolumeRatio([]float64{1000, 10, 10, 10}, 2), 1e-9)
}

func TestStochastic(t *testing.T) {
	assert.Equal(t, StochResult{K: 50, D: 50}, Stochastic(candlesFrom(ramp(10, 100, 1), 0.5), 14, 3))

	// close at the top of the range on a steady rise
	r := Stochastic(candlesFrom(ramp(30, 100, 1), 0), 14, 3)
	assert.InDelta(t, 100.0, r.K, 1e-9)
	assert.InDelta(t, 100.0, r.D, 1e-9)

	flat := make([]float64, 20)
	for i := range flat {
		flat[i] = 100
	}
	assert.Equal(t, 50.0, Stochastic(candlesFrom(flat, 0), 14, 3).K)
}

func TestADX(t *testing.T) {
	assert.Equal(t, ADXResult{}, ADX(candlesFrom(ramp(10, 100, 1), 0.5), 14))

	up := ADX(candlesFrom(ramp(30, 100, 1), 0.5), 14)
	assert.Greater(t, up.PlusDI, up.MinusDI)
	assert.InDelta(t, 100.0, up.ADX, 1e-9)
	assert.InDelta(t, 1.5, up.ATR, 1e-9)

	down := ADX(candlesFrom(ramp(30, 100, -1), 0.5), 14)
	assert.Greater(t, down.MinusDI, down.PlusDI)
}

func TestBollingerBands(t *testing.T) {
	flat := make([]float64, 20)
	for i := range flat {
		flat[i] = 50
	}
	r := BollingerBands(flat, 20, 2)
	assert.Equal(t, 50.0, r.Middle)
	assert.Equal(t, 0.0, r.Width)

	r = BollingerBands(ramp(20, 1, 1), 20, 2)
	assert.InDelta(t, 10.5, r.Middle, 1e-9)
	assert.Greater(t, r.Upper, r.Middle)
	assert.InDelta(t, (r.Upper-r.Lower)/r.Middle, r.Width, 1e-12)

	assert.Equal(t, BollingerResult{}, BollingerBands([]float64{1}, 20, 2))
}

func TestDivergence(t *testing.T) {
	assert.Equal(t, DivergenceNone, Divergence(ramp(10, 100, 1), 14, 5, 5))

	// long decline, then a sharp bounce that stays below the lookback close
	closes := ramp(30, 130, -1) // 130 .. 101
	closes = append(closes, 95, 96, 97, 98, 99)
	assert.Equal(t, DivergenceBullish, Divergence(closes, 14, 5, 5))

	inverted := make([]float64, len(closes))
	for i, c := range closes {
		inverted[i] = 300 - c
	}
	assert.Equal(t, DivergenceBearish, Divergence(inverted, 14, 5, 5))
}

func TestTrend(t *testing.T) {
	assert.Equal(t, TrendNeutral, Trend(ramp(10, 100, 1), 8, 20, 5))
	assert.Equal(t, TrendBullish, Trend(ramp(30, 100, 1), 8, 20, 5))
	assert.Equal(t, TrendBearish, Trend(ramp(30, 100, -1), 8, 20, 5))
}
