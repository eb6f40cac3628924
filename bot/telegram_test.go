package bot

import (
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/polyneko/storage"
	"github.com/web3guy0/polyneko/types"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeAPI struct {
	mu      sync.Mutex
	sent    []string
	updates chan tgbotapi.Update
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 4)}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg.Text)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {}

func (f *fakeAPI) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type fakeEngine struct {
	paused bool
}

func (e *fakeEngine) Status() types.BotStatus {
	return types.BotStatus{
		Mode:          "SIM",
		Paused:        e.paused,
		Symbols:       []string{"BTC", "ETH"},
		FeedConnected: true,
		SessionWins:   3,
		SessionLosses: 1,
		SessionPnL:    d("12.5"),
	}
}

func (e *fakeEngine) OpenPositions() []types.PositionRecord {
	return []types.PositionRecord{{
		Symbol: "BTC", InitialSide: "YES",
		YesShares: d("45"), YesAvg: d("0.55"), NoShares: decimal.Zero, NoAvg: decimal.Zero,
		TotalCost: d("24.75"),
	}}
}

func (e *fakeEngine) Pause()  { e.paused = true }
func (e *fakeEngine) Resume() { e.paused = false }

type fakeHistory struct {
	err error
}

func (h *fakeHistory) Stats() (*storage.Stats, error) {
	if h.err != nil {
		return nil, h.err
	}
	return &storage.Stats{
		TotalTrades: 10, TotalSettlements: 4, Wins: 3, WinRate: 0.75,
		TotalPnL: d("20"), TotalCost: d("100"), ROI: 0.2, TodayPnL: d("-5"),
		BySymbol: []storage.SymbolStats{{Symbol: "BTC", Settlements: 4, Wins: 3, PnL: d("20")}},
	}, nil
}

func (h *fakeHistory) PerformanceByHour() ([]storage.HourStats, error) {
	return []storage.HourStats{{Hour: 9, Settlements: 4, Wins: 2, PnL: d("3")}}, nil
}

func (h *fakeHistory) RecentTrades(int) ([]types.TradeRecord, error) {
	return []types.TradeRecord{{Symbol: "BTC", Side: "NO", Kind: "hedge", Shares: d("46"), Price: d("0.48")}}, nil
}

func TestHandleCommand(t *testing.T) {
	b := newBot(newFakeAPI(), 42)
	engine := &fakeEngine{}
	b.SetProviders(engine, &fakeHistory{})

	assert.Contains(t, b.handleCommand("status"), "3W / 1L")
	assert.Contains(t, b.handleCommand("status"), "+$12.50")
	assert.Contains(t, b.handleCommand("stats"), "75.0%")
	assert.Contains(t, b.handleCommand("stats"), "BTC: 3/4")
	assert.Contains(t, b.handleCommand("positions"), "YES 45 @ 55.0¢")
	assert.Contains(t, b.handleCommand("hours"), "`09:00`  50% (4) +$3.00")
	assert.Contains(t, b.handleCommand("trades"), "HEDGE BTC NO × 46 @ 48.0¢")
	assert.Contains(t, b.handleCommand("unknown"), "Unknown command")

	b.handleCommand("PAUSE")
	assert.True(t, engine.paused)
	assert.Contains(t, b.handleCommand("status"), "PAUSED")
	b.handleCommand("resume")
	assert.False(t, engine.paused)
}

func TestHandleCommand_WithoutProviders(t *testing.T) {
	b := newBot(newFakeAPI(), 42)
	assert.Contains(t, b.handleCommand("status"), "not available")
	assert.Contains(t, b.handleCommand("pause"), "not available")

	b.SetProviders(nil, &fakeHistory{err: errors.New("db down")})
	assert.Contains(t, b.handleCommand("stats"), "Failed")
}

func TestFormatting(t *testing.T) {
	trade := types.Trade{Side: types.SideNo, Shares: d("46"), Price: d("0.48"), Cost: d("22.08"), Kind: types.KindHedge, Reason: "drop 16%"}
	msg := formatTrade("BTC", trade, types.PositionRecord{TotalCost: d("46.83"), Hedges: 1})
	assert.Contains(t, msg, "🛡️ *BTC: HEDGE NO*")
	assert.Contains(t, msg, "$22.08")

	s := types.Settlement{
		Symbol: "BTC", Winner: types.SideNo, InitialSide: types.SideYes,
		StartPrice: d("100"), EndPrice: d("99.5"),
		YesShares: d("45"), YesCost: d("24.75"), NoShares: d("46"), NoCost: d("22.08"),
		Payout: d("46"), PnL: d("-0.83"), HedgeCount: 1,
	}
	msg = formatSettlement(s)
	assert.Contains(t, msg, "❌ *BTC SETTLED: NO WINS*")
	assert.Contains(t, msg, "-$0.83")

	assert.Equal(t, "+$0.00", signed(decimal.Zero))
}

func TestStartStop_DeliversQueuedAndCommands(t *testing.T) {
	api := newFakeAPI()
	b := newBot(api, 42)
	b.SetProviders(&fakeEngine{}, nil)
	b.NotifyStartup("SIM", []string{"BTC"})
	b.Start()

	api.updates <- tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     "/ping",
		Chat:     &tgbotapi.Chat{ID: 42},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 5}},
	}}
	// other chats are ignored
	api.updates <- tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     "/ping",
		Chat:     &tgbotapi.Chat{ID: 7},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 5}},
	}}

	require.Eventually(t, func() bool { return len(api.messages()) >= 2 }, time.Second, 10*time.Millisecond)
	b.Stop()

	msgs := api.messages()
	assert.Contains(t, msgs[0], "POLYNEKO STARTED")
	assert.Equal(t, "🏓 Pong!", msgs[1])
	assert.Len(t, msgs, 2)
}
