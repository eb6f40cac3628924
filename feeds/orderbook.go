package feeds

import (
	"encoding/json"
	"sort"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ORDERBOOK - Best bid/ask per outcome token
// ═══════════════════════════════════════════════════════════════════════════════
//
// The feed sends levels as {"price": "0.55", "size": "100"} objects or as
// ["0.55", "100"] pairs. Both are normalized into PriceLevel before they touch
// the book. An empty side looks unattractive (ask 1.0, mid 0.5) instead of
// failing.
//
// ═══════════════════════════════════════════════════════════════════════════════

var (
	defaultAsk = decimal.NewFromInt(1)
	defaultMid = decimal.NewFromFloat(0.5)
	two        = decimal.NewFromInt(2)
)

// PriceLevel represents a single price level in the orderbook
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// BookSnapshot is the derived top-of-book for one token
type BookSnapshot struct {
	BestBid decimal.Decimal
	BestAsk decimal.Decimal
	Mid     decimal.Decimal
	Spread  float64
	HasBids bool
	HasAsks bool
}

type tokenBook struct {
	bids []PriceLevel
	asks []PriceLevel
	snap BookSnapshot
}

// OrderBook tracks every subscribed token
type OrderBook struct {
	mu    sync.RWMutex
	books map[string]*tokenBook
}

// NewOrderBook creates an empty tracker
func NewOrderBook() *OrderBook {
	return &OrderBook{books: make(map[string]*tokenBook)}
}

// Update replaces a token's levels. A nil side is treated as "not sent" and
// keeps its previous levels; an empty slice clears the side.
func (ob *OrderBook) Update(token string, bids, asks []PriceLevel) {
	if token == "" {
		return
	}

	ob.mu.Lock()
	defer ob.mu.Unlock()

	tb, ok := ob.books[token]
	if !ok {
		tb = &tokenBook{}
		ob.books[token] = tb
	}
	if bids != nil {
		tb.bids = sanitize(bids, true)
	}
	if asks != nil {
		tb.asks = sanitize(asks, false)
	}
	tb.snap = snapshot(tb.bids, tb.asks)
}

// UpdateRaw normalizes wire-shaped levels and applies them.
// A side that isn't a JSON array is malformed and keeps its prior state.
func (ob *OrderBook) UpdateRaw(token string, rawBids, rawAsks json.RawMessage) {
	bids, okBids := NormalizeLevels(rawBids)
	asks, okAsks := NormalizeLevels(rawAsks)
	if !okBids {
		bids = nil
	}
	if !okAsks {
		asks = nil
	}
	if bids == nil && asks == nil {
		return
	}
	ob.Update(token, bids, asks)
}

// Snapshot returns the token's top-of-book, with defaults for unseen tokens
func (ob *OrderBook) Snapshot(token string) BookSnapshot {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	if tb, ok := ob.books[token]; ok {
		return tb.snap
	}
	return snapshot(nil, nil)
}

// BuyPrice is the best ask, 1.0 when no asks are known
func (ob *OrderBook) BuyPrice(token string) decimal.Decimal {
	return ob.Snapshot(token).BestAsk
}

// MidPrice is the mid, 0.5 when either side is empty
func (ob *OrderBook) MidPrice(token string) decimal.Decimal {
	return ob.Snapshot(token).Mid
}

// Spread is (ask-bid)/mid, 1.0 when mid is not positive
func (ob *OrderBook) Spread(token string) float64 {
	return ob.Snapshot(token).Spread
}

// Forget drops the given tokens' books (outgoing slot tokens)
func (ob *OrderBook) Forget(tokens ...string) {
	ob.mu.Lock()
	for _, t := range tokens {
		delete(ob.books, t)
	}
	ob.mu.Unlock()
}

func sanitize(levels []PriceLevel, desc bool) []PriceLevel {
	out := make([]PriceLevel, 0, len(levels))
	for _, l := range levels {
		if l.Price.IsPositive() {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return out[i].Price.GreaterThan(out[j].Price)
		}
		return out[i].Price.LessThan(out[j].Price)
	})
	return out
}

func snapshot(bids, asks []PriceLevel) BookSnapshot {
	s := BookSnapshot{
		BestBid: decimal.Zero,
		BestAsk: defaultAsk,
		Mid:     defaultMid,
		HasBids: len(bids) > 0,
		HasAsks: len(asks) > 0,
	}
	if s.HasBids {
		s.BestBid = bids[0].Price
	}
	if s.HasAsks {
		s.BestAsk = asks[0].Price
	}
	if s.HasBids && s.HasAsks {
		s.Mid = s.BestBid.Add(s.BestAsk).Div(two)
	}

	if !s.Mid.IsPositive() {
		s.Spread = 1.0
		return s
	}
	spread := s.BestAsk.Sub(s.BestBid).Div(s.Mid).InexactFloat64()
	if spread < 0 {
		// crossed feed
		spread = 0
	}
	s.Spread = spread
	return s
}

// ═══════════════════════════════════════════════════════════════════════════════
// NORMALIZATION
// ═══════════════════════════════════════════════════════════════════════════════

// NormalizeLevels decodes a JSON array of levels in either wire shape.
// Entries that can't be parsed are skipped. ok is false when raw isn't an array,
// or when it has entries and none of them parse.
func NormalizeLevels(raw json.RawMessage) (levels []PriceLevel, ok bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, false
	}

	var items []interface{}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	levels = NormalizeItems(items)
	if len(items) > 0 && len(levels) == 0 {
		return nil, false
	}
	return levels, true
}

// NormalizeItems converts already-decoded levels
func NormalizeItems(items []interface{}) []PriceLevel {
	levels := make([]PriceLevel, 0, len(items))
	for _, item := range items {
		var price, size decimal.Decimal
		var okP, okS bool

		switch v := item.(type) {
		case map[string]interface{}:
			price, okP = parseDecimal(v["price"])
			size, okS = parseDecimal(v["size"])
		case []interface{}:
			if len(v) >= 2 {
				price, okP = parseDecimal(v[0])
				size, okS = parseDecimal(v[1])
			}
		}

		if !okP || !price.IsPositive() {
			continue
		}
		if !okS {
			size = decimal.Zero
		}
		levels = append(levels, PriceLevel{Price: price, Size: size})
	}
	return levels
}

// parseDecimal converts interface{} to decimal
func parseDecimal(v interface{}) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case string:
		d, err := decimal.NewFromString(val)
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(val), true
	case json.Number:
		f, err := strconv.ParseFloat(string(val), 64)
		return decimal.NewFromFloat(f), err == nil
	case int:
		return decimal.NewFromInt(int64(val)), true
	case int64:
		return decimal.NewFromInt(val), true
	default:
		return decimal.Zero, false
	}
}
