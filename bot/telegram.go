package bot

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polyneko/storage"
	"github.com/web3guy0/polyneko/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TELEGRAM BOT - Trade notifications & control
// ═══════════════════════════════════════════════════════════════════════════════
//
// Features:
//   💰 Fill and settlement notifications
//   🎛️ Commands: /status /stats /positions /hours /trades /pause /resume
//
// Messages go through a buffered outbox so a slow Telegram API never blocks
// order placement. When the outbox is full the message is dropped.
//
// ═══════════════════════════════════════════════════════════════════════════════

const outboxSize = 64

// StatusProvider exposes the running engine
type StatusProvider interface {
	Status() types.BotStatus
	OpenPositions() []types.PositionRecord
	Pause()
	Resume()
}

// HistoryProvider exposes persisted performance
type HistoryProvider interface {
	Stats() (*storage.Stats, error)
	PerformanceByHour() ([]storage.HourStats, error)
	RecentTrades(limit int) ([]types.TradeRecord, error)
}

// messenger is the part of tgbotapi.BotAPI the bot uses
type messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// TelegramBot manages the Telegram interface
type TelegramBot struct {
	mu      sync.RWMutex
	api     messenger
	chatID  int64
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	outbox  chan string

	status  StatusProvider
	history HistoryProvider
}

// NewTelegramBot creates a new Telegram bot
func NewTelegramBot(token string, chatID int64) (*TelegramBot, error) {
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN not set")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("TELEGRAM_CHAT_ID not set")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	log.Info().Str("username", api.Self.UserName).Msg("🤖 Telegram bot initialized")
	return newBot(api, chatID), nil
}

func newBot(api messenger, chatID int64) *TelegramBot {
	return &TelegramBot{
		api:    api,
		chatID: chatID,
		stopCh: make(chan struct{}),
		outbox: make(chan string, outboxSize),
	}
}

// SetProviders wires the engine and the history store; either may be nil
func (b *TelegramBot) SetProviders(status StatusProvider, history HistoryProvider) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = status
	b.history = history
}

// Start begins delivering messages and listening for commands
func (b *TelegramBot) Start() {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.mu.Unlock()

	b.wg.Add(2)
	go b.sendLoop()
	go b.commandLoop()
	log.Info().Msg("📱 Telegram bot started")
}

// Stop stops the bot after flushing queued messages
func (b *TelegramBot) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	close(b.stopCh)
	b.mu.Unlock()

	b.api.StopReceivingUpdates()
	b.wg.Wait()
	log.Info().Msg("Telegram bot stopped")
}

// ═══════════════════════════════════════════════════════════════════════════════
// NOTIFICATIONS
// ═══════════════════════════════════════════════════════════════════════════════

// NotifyTrade sends a fill alert
func (b *TelegramBot) NotifyTrade(symbol string, t types.Trade, pos types.PositionRecord) {
	b.enqueue(formatTrade(symbol, t, pos))
}

// NotifySettlement sends a settled position
func (b *TelegramBot) NotifySettlement(s types.Settlement) {
	b.enqueue(formatSettlement(s))
}

// NotifySlotSummary sends the per-slot roll-up
func (b *TelegramBot) NotifySlotSummary(slot string, settled int, pnl decimal.Decimal, session types.BotStatus) {
	msg := fmt.Sprintf(`📋 *SLOT SETTLED*
━━━━━━━━━━━━━━━━━━━━
🕐 %s
📊 Positions: *%d*
💵 Slot P&L: *%s*
📈 Session: *%dW / %dL* (%s)`,
		slot, settled, signed(pnl),
		session.SessionWins, session.SessionLosses, signed(session.SessionPnL),
	)
	b.enqueue(msg)
}

// NotifyStartup sends startup notification
func (b *TelegramBot) NotifyStartup(mode string, symbols []string) {
	msg := fmt.Sprintf(`🚀 *POLYNEKO STARTED*
━━━━━━━━━━━━━━━━━━━━

📊 Mode: *%s*
🪙 Symbols: *%s*
⏱️ Slots: *15m up/down*

Use /help for commands`, mode, strings.Join(symbols, ", "))
	b.enqueue(msg)
}

// NotifyError sends an error alert
func (b *TelegramBot) NotifyError(err error) {
	b.enqueue(fmt.Sprintf("⚠️ *ERROR*\n\n`%s`", err.Error()))
}

func formatTrade(symbol string, t types.Trade, pos types.PositionRecord) string {
	emoji := "📈"
	title := "BET"
	switch {
	case t.Kind == types.KindHedge:
		emoji, title = "🛡️", "HEDGE"
	case t.Kind == types.KindAdd:
		emoji, title = "➕", "ADD"
	case t.Side == types.SideNo:
		emoji = "📉"
	}

	return fmt.Sprintf(`%s *%s: %s %s*
━━━━━━━━━━━━━━━━
📦 Shares: *%s* @ *%s¢*
💵 Cost: *$%s*
📝 %s
━━━━━━━━━━━━━━━━
YES %s @ %s¢ | NO %s @ %s¢
Total: $%s | Hedges: %d`,
		emoji, symbol, title, t.Side,
		t.Shares.StringFixed(0), cents(t.Price),
		t.Cost.StringFixed(2),
		t.Reason,
		pos.YesShares.StringFixed(0), cents(pos.YesAvg),
		pos.NoShares.StringFixed(0), cents(pos.NoAvg),
		pos.TotalCost.StringFixed(2), pos.Hedges,
	)
}

func formatSettlement(s types.Settlement) string {
	emoji := "✅"
	if !s.Profitable() {
		emoji = "❌"
	}
	return fmt.Sprintf(`%s *%s SETTLED: %s WINS*
━━━━━━━━━━━━━━━━
📍 %s → %s
YES %s ($%s) | NO %s ($%s)
💰 Payout: *$%s*
💵 P&L: *%s*
🛡️ Hedges: %d`,
		emoji, s.Symbol, s.Winner,
		s.StartPrice.String(), s.EndPrice.String(),
		s.YesShares.StringFixed(0), s.YesCost.StringFixed(2),
		s.NoShares.StringFixed(0), s.NoCost.StringFixed(2),
		s.Payout.StringFixed(2),
		signed(s.PnL),
		s.HedgeCount,
	)
}

// ═══════════════════════════════════════════════════════════════════════════════
// COMMAND HANDLING
// ═══════════════════════════════════════════════════════════════════════════════

func (b *TelegramBot) commandLoop() {
	defer b.wg.Done()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-b.stopCh:
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			// Only respond to authorized chat
			if update.Message.Chat == nil || update.Message.Chat.ID != b.chatID {
				continue
			}
			b.enqueue(b.handleCommand(update.Message.Command()))
		}
	}
}

func (b *TelegramBot) handleCommand(cmd string) string {
	switch strings.ToLower(cmd) {
	case "start", "help":
		return helpText
	case "status":
		return b.cmdStatus()
	case "stats":
		return b.cmdStats()
	case "positions":
		return b.cmdPositions()
	case "hours":
		return b.cmdHours()
	case "trades":
		return b.cmdTrades()
	case "pause":
		return b.cmdPause()
	case "resume":
		return b.cmdResume()
	case "ping":
		return "🏓 Pong!"
	default:
		return "❓ Unknown command. Use /help"
	}
}

const helpText = `🤖 *POLYNEKO COMMANDS*
━━━━━━━━━━━━━━━━━━━━

📊 /status - Bot status
📈 /stats - Trading statistics
💼 /positions - Current slot positions
🕐 /hours - Performance by hour (UTC)
📜 /trades - Last 10 trades
⏸️ /pause - Pause new entries
▶️ /resume - Resume new entries
🏓 /ping - Test connection`

func (b *TelegramBot) providers() (StatusProvider, HistoryProvider) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status, b.history
}

func (b *TelegramBot) cmdStatus() string {
	status, _ := b.providers()
	if status == nil {
		return "❌ Status not available"
	}
	s := status.Status()

	state := "🟢 RUNNING"
	if s.Paused {
		state = "⏸️ PAUSED"
	}
	if s.CooldownRemaining > 0 {
		state += fmt.Sprintf(" (cooldown %s)", s.CooldownRemaining.Round(time.Second))
	}
	feed := "🟢"
	if !s.FeedConnected {
		feed = "🔴"
	}

	return fmt.Sprintf(`📊 *BOT STATUS*
━━━━━━━━━━━━━━━━━━━━

%s
📊 Mode: *%s*
🪙 Symbols: *%s*
🕐 Slot: *%s* (%.1fm left)
📡 Feed: %s

━━━━━━━━━━━━━━━━━━━━
📈 Session: *%dW / %dL* | P&L *%s*
🔥 Streak: *%d* | Losses: *%d*
📦 Trades: *%d* | Hedges: *%d* | Adds: *%d*`,
		state, s.Mode, strings.Join(s.Symbols, ", "),
		s.Slot.UTC().Format("15:04"), s.MinutesLeft, feed,
		s.SessionWins, s.SessionLosses, signed(s.SessionPnL),
		s.WinStreak, s.ConsecutiveLosses,
		s.Trades, s.Hedges, s.Adds,
	)
}

func (b *TelegramBot) cmdStats() string {
	_, history := b.providers()
	if history == nil {
		return "❌ Stats not available"
	}
	stats, err := history.Stats()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load stats")
		return "❌ Failed to load stats"
	}

	msg := fmt.Sprintf(`📈 *TRADING STATS*
━━━━━━━━━━━━━━━━━━━━

📊 Trades: *%d*
🏁 Settlements: *%d*
✅ Wins: *%d*
📈 Win Rate: *%.1f%%*
💵 Total P&L: *%s*
📐 ROI: *%.1f%%*
📅 Today: *%d* settled, *%s*`,
		stats.TotalTrades, stats.TotalSettlements, stats.Wins,
		stats.WinRate*100, signed(stats.TotalPnL), stats.ROI*100,
		stats.TodaySettlements, signed(stats.TodayPnL),
	)

	if len(stats.BySymbol) > 0 {
		msg += "\n━━━━━━━━━━━━━━━━━━━━\n"
		for _, s := range stats.BySymbol {
			msg += fmt.Sprintf("%s: %d/%d | %s\n", s.Symbol, s.Wins, s.Settlements, signed(s.PnL))
		}
	}
	return msg
}

func (b *TelegramBot) cmdPositions() string {
	status, _ := b.providers()
	if status == nil {
		return "❌ Positions not available"
	}
	positions := status.OpenPositions()
	if len(positions) == 0 {
		return "📭 No open positions"
	}

	msg := "💼 *OPEN POSITIONS*\n━━━━━━━━━━━━━━━━━━━━\n\n"
	for _, pos := range positions {
		sideEmoji := "🟢"
		if pos.InitialSide == string(types.SideNo) {
			sideEmoji = "🔴"
		}
		msg += fmt.Sprintf("%s *%s* - %s\nYES %s @ %s¢ | NO %s @ %s¢\n💵 $%s | 🛡️ %d | ➕ %d\n\n",
			sideEmoji, pos.Symbol, pos.InitialSide,
			pos.YesShares.StringFixed(0), cents(pos.YesAvg),
			pos.NoShares.StringFixed(0), cents(pos.NoAvg),
			pos.TotalCost.StringFixed(2), pos.Hedges, pos.Adds,
		)
	}
	return msg
}

func (b *TelegramBot) cmdHours() string {
	_, history := b.providers()
	if history == nil {
		return "❌ Hourly stats not available"
	}
	hours, err := history.PerformanceByHour()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load hourly stats")
		return "❌ Failed to load hourly stats"
	}
	if len(hours) == 0 {
		return "📭 No settlements yet"
	}

	msg := "🕐 *PERFORMANCE BY HOUR (UTC)*\n━━━━━━━━━━━━━━━━━━━━\n\n"
	for _, h := range hours {
		msg += fmt.Sprintf("`%02d:00` %3.0f%% (%d) %s\n", h.Hour, h.WinRate()*100, h.Settlements, signed(h.PnL))
	}
	return msg
}

func (b *TelegramBot) cmdTrades() string {
	_, history := b.providers()
	if history == nil {
		return "❌ Trades not available"
	}
	trades, err := history.RecentTrades(10)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load trades")
		return "❌ Failed to load trades"
	}
	if len(trades) == 0 {
		return "📭 No trade history yet"
	}

	msg := "📜 *LAST 10 TRADES*\n━━━━━━━━━━━━━━━━━━━━\n\n"
	for _, t := range trades {
		msg += fmt.Sprintf("%s %s %s %s × %s @ %s¢\n   _%s_\n",
			kindEmoji(t.Kind), strings.ToUpper(t.Kind), t.Symbol, t.Side,
			t.Shares.StringFixed(0), cents(t.Price),
			t.Timestamp.UTC().Format("Jan 2 15:04"),
		)
	}
	return msg
}

func (b *TelegramBot) cmdPause() string {
	status, _ := b.providers()
	if status == nil {
		return "❌ Control not available"
	}
	status.Pause()
	log.Info().Msg("Trading paused via Telegram")
	return "⏸️ New entries paused. Hedges and settlement continue."
}

func (b *TelegramBot) cmdResume() string {
	status, _ := b.providers()
	if status == nil {
		return "❌ Control not available"
	}
	status.Resume()
	log.Info().Msg("Trading resumed via Telegram")
	return "▶️ Trading resumed"
}

// ═══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ═══════════════════════════════════════════════════════════════════════════════

func (b *TelegramBot) enqueue(text string) {
	select {
	case b.outbox <- text:
	default:
		log.Warn().Msg("Telegram outbox full, dropping message")
	}
}

func (b *TelegramBot) sendLoop() {
	defer b.wg.Done()
	for {
		select {
		case text := <-b.outbox:
			b.sendMarkdown(text)
		case <-b.stopCh:
			for {
				select {
				case text := <-b.outbox:
					b.sendMarkdown(text)
				default:
					return
				}
			}
		}
	}
}

func (b *TelegramBot) sendMarkdown(text string) {
	msg := tgbotapi.NewMessage(b.chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("Failed to send Telegram message")
	}
}

func cents(price decimal.Decimal) string {
	return price.Mul(decimal.NewFromInt(100)).StringFixed(1)
}

func signed(v decimal.Decimal) string {
	if v.IsNegative() {
		return "-$" + v.Abs().StringFixed(2)
	}
	return "+$" + v.StringFixed(2)
}

func kindEmoji(kind string) string {
	switch types.TradeKind(kind) {
	case types.KindHedge:
		return "🛡️"
	case types.KindAdd:
		return "➕"
	default:
		return "✅"
	}
}
