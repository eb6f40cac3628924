package strategy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/web3guy0/polyneko/internal/config"
	"github.com/web3guy0/polyneko/types"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAdvance_ConfirmsAfterContinuousHold(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	confirm := 5 * time.Second

	trig, fire := Advance(types.Trigger{}, true, 0.12, t0, confirm)
	assert.False(t, fire)
	assert.True(t, trig.Armed())
	assert.Equal(t, t0, trig.Since)

	trig, fire = Advance(trig, true, 0.14, t0.Add(3*time.Second), confirm)
	assert.False(t, fire)
	assert.Equal(t, t0, trig.Since)
	assert.Equal(t, 0.14, trig.Magnitude)

	trig, fire = Advance(trig, true, 0.15, t0.Add(5*time.Second), confirm)
	assert.True(t, fire)
	assert.False(t, trig.Armed())
}

func TestAdvance_DisqualifyResetsTimer(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	at := func(s int) time.Time { return t0.Add(time.Duration(s) * time.Second) }
	confirm := 5 * time.Second

	trig, _ := Advance(types.Trigger{}, true, 0.1, at(0), confirm)
	trig, _ = Advance(trig, true, 0.1, at(3), confirm)
	trig, fire := Advance(trig, false, 0, at(4), confirm)
	assert.False(t, fire)
	assert.False(t, trig.Armed())

	// must re-arm from zero
	trig, _ = Advance(trig, true, 0.1, at(5), confirm)
	assert.Equal(t, at(5), trig.Since)
	_, fire = Advance(trig, true, 0.1, at(9), confirm)
	assert.False(t, fire)
	_, fire = Advance(trig, true, 0.1, at(10), confirm)
	assert.True(t, fire)
}

func TestAdvance_ZeroConfirmFiresImmediately(t *testing.T) {
	trig, fire := Advance(types.Trigger{}, true, 0.2, time.Now(), 0)
	assert.True(t, fire)
	assert.False(t, trig.Armed())
}

func TestHedgeThreshold(t *testing.T) {
	cfg := config.Default().Strategy

	assert.Equal(t, 0.10, HedgeThreshold(cfg, 0, 10))
	assert.Equal(t, 0.15, HedgeThreshold(cfg, 1, 10))
	assert.Equal(t, 0.20, HedgeThreshold(cfg, 2, 10))
	assert.Equal(t, 0.20, HedgeThreshold(cfg, 7, 10)) // clamped to the last element

	cfg.ProgressiveTrigger = []float64{0.05}
	assert.Equal(t, 0.10, HedgeThreshold(cfg, 0, 7.5))
	assert.Equal(t, 0.08, HedgeThreshold(cfg, 0, 7))
	assert.Equal(t, 0.08, HedgeThreshold(cfg, 0, 3))
	assert.Equal(t, 0.06, HedgeThreshold(cfg, 0, 2.9))
}

func TestHedgeQualifies(t *testing.T) {
	cfg := config.Default().Strategy
	in := HedgeInput{
		Side:      types.SideYes,
		Drop:      (0.62 - 0.52) / 0.62,
		Threshold: 0.10,
		Spot:      d("99.90"),
		SlotStart: d("100.00"),
	}
	assert.True(t, HedgeQualifies(in, cfg))

	flat := in
	flat.Spot = d("100.00")
	assert.False(t, HedgeQualifies(flat, cfg), "equal to the open is not unfavorable")

	small := in
	small.Drop = 0.09
	assert.False(t, HedgeQualifies(small, cfg))

	noSide := in
	noSide.Side = types.SideNo
	assert.False(t, HedgeQualifies(noSide, cfg))
	noSide.Spot = d("100.10")
	assert.True(t, HedgeQualifies(noSide, cfg))

	cfg.HedgeRequireVolume = true
	in.VolumeRatio = 0.5
	assert.False(t, HedgeQualifies(in, cfg))
	in.VolumeRatio = 1.0
	assert.True(t, HedgeQualifies(in, cfg))
}

func openPosition(side types.Side) *types.Position {
	pos := types.NewPosition("btc-updown-15m-1", "BTC")
	pos.AddTrade(types.Trade{Side: side, Shares: d("45"), Price: d("0.55"), Cost: d("24.75"), Kind: types.KindEntry})
	return pos
}

func TestHedgeAllowed(t *testing.T) {
	cfg := config.Default().Strategy

	assert.False(t, HedgeAllowed(types.NewPosition("s", "BTC"), 10, cfg))

	pos := openPosition(types.SideYes)
	assert.True(t, HedgeAllowed(pos, 10, cfg))
	assert.False(t, HedgeAllowed(pos, 0.5, cfg))

	pos.HedgeCount = cfg.MaxHedges
	assert.False(t, HedgeAllowed(pos, 10, cfg))
}

func TestAddAllowed(t *testing.T) {
	cfg := config.Default().Strategy
	pos := openPosition(types.SideNo)

	assert.True(t, AddAllowed(pos, 5, cfg))
	assert.False(t, AddAllowed(pos, 12, cfg))
	assert.False(t, AddAllowed(pos, 1, cfg))

	pos.Hedge = types.Trigger{Since: time.Now(), Magnitude: 0.1}
	assert.False(t, AddAllowed(pos, 5, cfg))
	pos.Hedge = types.Trigger{}

	pos.AddCount = cfg.MaxAdds
	assert.False(t, AddAllowed(pos, 5, cfg))

	cfg.AddWinnerEnabled = false
	pos.AddCount = 0
	assert.False(t, AddAllowed(pos, 5, cfg))
}

func TestAddQualifies(t *testing.T) {
	cfg := config.Default().Strategy

	ok, dist := AddQualifies(types.SideYes, d("100.06"), d("100"), d("0.65"), cfg)
	assert.True(t, ok)
	assert.InDelta(t, 0.06, dist, 1e-9)

	ok, _ = AddQualifies(types.SideYes, d("100.06"), d("100"), d("0.55"), cfg)
	assert.False(t, ok, "token below the safety floor")

	ok, _ = AddQualifies(types.SideYes, d("100.01"), d("100"), d("0.80"), cfg)
	assert.False(t, ok, "too close to the open")

	ok, dist = AddQualifies(types.SideNo, d("99.90"), d("100"), d("0.70"), cfg)
	assert.True(t, ok)
	assert.InDelta(t, 0.1, dist, 1e-9)

	ok, _ = AddQualifies(types.SideNo, d("100.10"), d("100"), d("0.70"), cfg)
	assert.False(t, ok)
}
