package feeds

import (
	"bytes"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ═══════════════════════════════════════════════════════════════════════════════
// POLYMARKET WEBSOCKET FEED
// ═══════════════════════════════════════════════════════════════════════════════
//
// Subscribes to book events for the current slot's outcome tokens.
// On drop it reconnects and re-subscribes to the latest token set.
//
// ═══════════════════════════════════════════════════════════════════════════════

const (
	PolymarketWSURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"
	reconnectDelay  = 5 * time.Second
	pingInterval    = 30 * time.Second
)

// BookUpdate is one book event for a token, levels still in wire shape
type BookUpdate struct {
	TokenID   string
	Market    string
	Bids      json.RawMessage
	Asks      json.RawMessage
	Timestamp time.Time
}

// WSMessage represents a WebSocket message from Polymarket
type WSMessage struct {
	EventType string          `json:"event_type"`
	Market    string          `json:"market"`
	AssetID   string          `json:"asset_id"`
	Bids      json.RawMessage `json:"bids"`
	Asks      json.RawMessage `json:"asks"`
	Buys      json.RawMessage `json:"buys"`
	Sells     json.RawMessage `json:"sells"`
}

// MarketFeed manages the WebSocket connection and update distribution
type MarketFeed struct {
	mu sync.RWMutex

	wsURL     string
	conn      *websocket.Conn
	connected bool
	running   bool
	stopCh    chan struct{}
	fastRetry bool

	tokens      []string
	subscribers []chan BookUpdate

	messages atomic.Uint64
}

// NewMarketFeed creates a new feed instance
func NewMarketFeed(wsURL string) *MarketFeed {
	if wsURL == "" {
		wsURL = PolymarketWSURL
	}
	return &MarketFeed{
		wsURL:       wsURL,
		stopCh:      make(chan struct{}),
		subscribers: make([]chan BookUpdate, 0),
	}
}

// Start connects and begins processing
func (f *MarketFeed) Start() {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return
	}
	f.running = true
	f.mu.Unlock()

	go f.connectionLoop()
	log.Info().Str("url", f.wsURL).Msg("📡 Market feed started")
}

// Stop closes the connection
func (f *MarketFeed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return
	}

	f.running = false
	close(f.stopCh)

	if f.conn != nil {
		f.conn.Close()
	}

	log.Info().Msg("Market feed stopped")
}

// Subscribe returns a channel that receives book updates
func (f *MarketFeed) Subscribe() <-chan BookUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan BookUpdate, 1000)
	f.subscribers = append(f.subscribers, ch)
	return ch
}

// Resubscribe swaps the token set and recycles the connection so the
// next connect subscribes to exactly these tokens.
func (f *MarketFeed) Resubscribe(tokens []string) {
	f.mu.Lock()
	f.tokens = append([]string(nil), tokens...)
	conn := f.conn
	f.fastRetry = true
	f.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	log.Info().Int("tokens", len(tokens)).Msg("🔄 Feed re-subscribing")
}

// Connected reports whether the socket is up
func (f *MarketFeed) Connected() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.connected
}

// MessageCount is the number of frames received since start
func (f *MarketFeed) MessageCount() uint64 {
	return f.messages.Load()
}

// connectionLoop maintains the WebSocket connection
func (f *MarketFeed) connectionLoop() {
	for {
		select {
		case <-f.stopCh:
			return
		default:
		}

		if err := f.connect(); err != nil {
			log.Error().Err(err).Msg("WSS connection failed, retrying...")
			if !f.sleep(reconnectDelay) {
				return
			}
			continue
		}

		f.readLoop()

		f.mu.Lock()
		fast := f.fastRetry
		f.fastRetry = false
		f.mu.Unlock()
		if fast {
			continue
		}
		log.Warn().Msg("WSS disconnected, reconnecting...")
		if !f.sleep(reconnectDelay) {
			return
		}
	}
}

func (f *MarketFeed) sleep(d time.Duration) bool {
	select {
	case <-f.stopCh:
		return false
	case <-time.After(d):
		return true
	}
}

// connect establishes the connection and subscribes to the current tokens
func (f *MarketFeed) connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL, nil)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.conn = conn
	f.connected = true
	f.fastRetry = false
	tokens := f.tokens
	f.mu.Unlock()

	log.Info().Msg("🔌 WSS connected")

	if len(tokens) > 0 {
		msg := map[string]interface{}{
			"assets_ids": tokens,
			"type":       "market",
		}
		if err := conn.WriteJSON(msg); err != nil {
			f.dropConn(conn)
			return err
		}
		log.Info().Int("tokens", len(tokens)).Msg("Subscribed")
	}

	go f.pingLoop(conn)
	return nil
}

// pingLoop sends periodic pings to keep connection alive
func (f *MarketFeed) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.stopCh:
			return
		case <-ticker.C:
			f.mu.RLock()
			current := f.conn
			f.mu.RUnlock()
			if current != conn {
				return
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}

// readLoop reads messages from WebSocket
func (f *MarketFeed) readLoop() {
	f.mu.RLock()
	conn := f.conn
	f.mu.RUnlock()
	if conn == nil {
		return
	}

	defer f.dropConn(conn)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-f.stopCh:
			default:
				log.Debug().Err(err).Msg("WSS read error")
			}
			return
		}

		f.messages.Add(1)
		for _, u := range ParseBookMessages(message) {
			f.broadcast(u)
		}
	}
}

// dropConn closes conn and clears it if it is still the live connection
func (f *MarketFeed) dropConn(conn *websocket.Conn) {
	f.mu.Lock()
	if f.conn == conn {
		f.connected = false
		f.conn = nil
	}
	f.mu.Unlock()
	conn.Close()
}

// ParseBookMessages extracts book events from a frame that holds either a
// single message or an array of them. Anything unparsable yields nothing.
func ParseBookMessages(data []byte) []BookUpdate {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	var msgs []WSMessage
	if data[0] == '[' {
		if err := json.Unmarshal(data, &msgs); err != nil {
			return nil
		}
	} else {
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil
		}
		msgs = []WSMessage{msg}
	}

	now := time.Now()
	updates := make([]BookUpdate, 0, len(msgs))
	for _, msg := range msgs {
		if msg.EventType != "book" || msg.AssetID == "" {
			continue
		}
		bids := firstNonEmpty(msg.Bids, msg.Buys)
		asks := firstNonEmpty(msg.Asks, msg.Sells)
		if isEmptyRaw(bids) && isEmptyRaw(asks) {
			continue
		}
		updates = append(updates, BookUpdate{
			TokenID:   msg.AssetID,
			Market:    msg.Market,
			Bids:      bids,
			Asks:      asks,
			Timestamp: now,
		})
	}
	return updates
}

func firstNonEmpty(primary, alt json.RawMessage) json.RawMessage {
	if isEmptyRaw(primary) && !isEmptyRaw(alt) {
		return alt
	}
	return primary
}

func isEmptyRaw(raw json.RawMessage) bool {
	s := string(bytes.TrimSpace(raw))
	return s == "" || s == "null" || s == "[]"
}

// broadcast sends an update to all subscribers
func (f *MarketFeed) broadcast(u BookUpdate) {
	f.mu.RLock()
	subs := f.subscribers
	f.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- u:
		default:
			// Skip if channel full
		}
	}
}
