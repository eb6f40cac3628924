package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/polyneko/types"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func settlement(symbol string, at time.Time, pnl string) types.Settlement {
	return types.Settlement{
		Slot:        "slot",
		Symbol:      symbol,
		Winner:      types.SideYes,
		InitialSide: types.SideYes,
		YesShares:   d("45"),
		YesCost:     d("24.75"),
		NoShares:    decimal.Zero,
		NoCost:      decimal.Zero,
		Payout:      d("45"),
		PnL:         d(pnl),
		Timestamp:   at,
	}
}

func TestSaveTrade_RecentTrades(t *testing.T) {
	db := newTestDB(t)
	t0 := time.Date(2024, 3, 15, 14, 31, 0, 0, time.UTC)

	require.NoError(t, db.SaveTrade("slot-1", "BTC", types.Trade{
		Side: types.SideYes, Shares: d("45"), Price: d("0.55"), Cost: d("24.75"),
		Kind: types.KindEntry, Reason: "UP: momentum", OrderID: "SIM-1", Attempts: 1, Timestamp: t0,
	}))
	require.NoError(t, db.SaveTrade("slot-1", "BTC", types.Trade{
		Side: types.SideNo, Shares: d("46"), Price: d("0.5"), Cost: d("23"),
		Kind: types.KindHedge, Reason: "hedge", OrderID: "SIM-2", Attempts: 1, Timestamp: t0.Add(time.Minute),
	}))

	trades, err := db.RecentTrades(10)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "hedge", trades[0].Kind, "newest first")
	assert.Equal(t, "NO", trades[0].Side)
	assert.True(t, trades[1].Cost.Equal(d("24.75")))

	var hedges int64
	db.db.Model(&TradeRecord{}).Where("is_hedge = ?", true).Count(&hedges)
	assert.Equal(t, int64(1), hedges)
}

func TestHourlyWinRate(t *testing.T) {
	db := newTestDB(t)
	at := time.Date(2024, 3, 15, 14, 45, 0, 0, time.UTC)

	rate, n, err := db.HourlyWinRate(14)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0.0, rate)

	require.NoError(t, db.SaveSettlement(settlement("BTC", at, "20.25")))
	require.NoError(t, db.SaveSettlement(settlement("ETH", at, "-24.75")))
	require.NoError(t, db.SaveSettlement(settlement("SOL", at, "5.5")))
	require.NoError(t, db.SaveSettlement(settlement("BTC", at.Add(time.Hour), "1")))

	rate, n, err = db.HourlyWinRate(14)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.InDelta(t, 2.0/3.0, rate, 1e-9)

	rate, n, err = db.HourlyWinRate(15)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1.0, rate)
}

func TestStats(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2024, 3, 15, 16, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return now }

	require.NoError(t, db.SaveTrade("s", "BTC", types.Trade{Side: types.SideYes, Shares: d("40"), Price: d("0.5"), Cost: d("20"), Kind: types.KindEntry}))
	require.NoError(t, db.SaveTrade("s", "ETH", types.Trade{Side: types.SideNo, Shares: d("40"), Price: d("0.5"), Cost: d("20"), Kind: types.KindEntry}))

	require.NoError(t, db.SaveSettlement(settlement("BTC", now.Add(-time.Hour), "20")))
	require.NoError(t, db.SaveSettlement(settlement("ETH", now.Add(-24*time.Hour), "-10")))

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalTrades)
	assert.Equal(t, 2, stats.TotalSettlements)
	assert.Equal(t, 1, stats.Wins)
	assert.Equal(t, 0.5, stats.WinRate)
	assert.True(t, stats.TotalPnL.Equal(d("10")), stats.TotalPnL.String())
	assert.True(t, stats.TotalCost.Equal(d("40")), stats.TotalCost.String())
	assert.InDelta(t, 0.25, stats.ROI, 1e-9)
	assert.Equal(t, 1, stats.TodaySettlements)
	assert.True(t, stats.TodayPnL.Equal(d("20")))

	require.Len(t, stats.BySymbol, 2)
	assert.Equal(t, "BTC", stats.BySymbol[0].Symbol)
	assert.Equal(t, 1, stats.BySymbol[0].Wins)
}

func TestPerformanceByHour(t *testing.T) {
	db := newTestDB(t)
	base := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	require.NoError(t, db.SaveSettlement(settlement("BTC", base.Add(9*time.Hour), "10")))
	require.NoError(t, db.SaveSettlement(settlement("BTC", base.Add(9*time.Hour+30*time.Minute), "-4")))
	require.NoError(t, db.SaveSettlement(settlement("BTC", base.Add(2*time.Hour), "3")))

	hours, err := db.PerformanceByHour()
	require.NoError(t, err)
	require.Len(t, hours, 2)
	assert.Equal(t, 2, hours[0].Hour)
	assert.Equal(t, 9, hours[1].Hour)
	assert.Equal(t, 2, hours[1].Settlements)
	assert.Equal(t, 0.5, hours[1].WinRate())
	assert.True(t, hours[1].AvgPnL.Equal(d("3")), hours[1].AvgPnL.String())

	recent, err := db.RecentSettlements(1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, 9, recent[0].Hour)
}
