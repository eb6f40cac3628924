package core

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/polyneko/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SYMBOLS - Per-symbol slot state
// ═══════════════════════════════════════════════════════════════════════════════
//
// Each symbol owns one lock that serializes evaluation, order placement and
// rollover for its market, position and slot-start price. The registry maps
// token ids back to symbols for the ingestion loop.
//
// ═══════════════════════════════════════════════════════════════════════════════

// symbolState is guarded by mu
type symbolState struct {
	mu sync.Mutex

	symbol     string
	market     *types.Market
	position   *types.Position
	startPrice decimal.Decimal
}

// install replaces the slot; the caller holds mu
func (s *symbolState) install(m *types.Market, start decimal.Decimal) {
	s.market = m
	s.startPrice = start
	if m == nil {
		s.position = nil
		return
	}
	s.position = types.NewPosition(m.Slug, s.symbol)
}

// SymbolManager holds the state of every traded symbol
type SymbolManager struct {
	mu      sync.RWMutex
	states  map[string]*symbolState
	byToken map[string]string
}

// NewSymbolManager creates state for each symbol
func NewSymbolManager(symbols []string) *SymbolManager {
	sm := &SymbolManager{
		states:  make(map[string]*symbolState, len(symbols)),
		byToken: make(map[string]string),
	}
	for _, s := range symbols {
		sm.states[s] = &symbolState{symbol: s}
	}
	return sm
}

// get returns the symbol's state or nil
func (sm *SymbolManager) get(symbol string) *symbolState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.states[symbol]
}

// SymbolForToken finds the symbol trading a YES or NO token
func (sm *SymbolManager) SymbolForToken(tokenID string) (string, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	s, ok := sm.byToken[tokenID]
	return s, ok
}

// setTokens replaces the token index
func (sm *SymbolManager) setTokens(markets map[string]*types.Market) []string {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.byToken = make(map[string]string, len(markets)*2)
	tokens := make([]string, 0, len(markets)*2)
	for symbol, m := range markets {
		if m == nil {
			continue
		}
		sm.byToken[m.YesToken] = symbol
		sm.byToken[m.NoToken] = symbol
		tokens = append(tokens, m.YesToken, m.NoToken)
	}
	sort.Strings(tokens)
	return tokens
}

// Symbols returns the traded symbols, sorted
func (sm *SymbolManager) Symbols() []string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	out := make([]string, 0, len(sm.states))
	for s := range sm.states {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
