package feeds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/polyneko/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// WINDOW SCANNER - Resolves the current 15-minute slot per symbol
// ═══════════════════════════════════════════════════════════════════════════════
//
// Slot slugs are deterministic:
//   {symbol}-updown-15m-{unix seconds of the slot start}
//
// The start is the quarter hour in New York time. Gamma resolves the slug to
// its two CLOB token ids: [0] pays on UP (YES), [1] pays on DOWN (NO).
//
// ═══════════════════════════════════════════════════════════════════════════════

const (
	GammaAPIURL  = "https://gamma-api.polymarket.com"
	SlotDuration = 15 * time.Minute
)

// ErrMarketNotFound is returned when Gamma has no usable market for a slug
var ErrMarketNotFound = errors.New("market not found")

var (
	nyOnce sync.Once
	nyLoc  *time.Location
)

func newYork() *time.Location {
	nyOnce.Do(func() {
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			log.Warn().Err(err).Msg("America/New_York unavailable, using UTC for slot alignment")
			loc = time.UTC
		}
		nyLoc = loc
	})
	return nyLoc
}

// SlotStart is the start of the 15-minute period containing now
func SlotStart(now time.Time) time.Time {
	local := now.In(newYork())
	minute := (local.Minute() / 15) * 15
	start := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), minute, 0, 0, local.Location())
	return start.UTC()
}

// SlotSlug builds the market slug for symbol at now
func SlotSlug(symbol string, now time.Time) string {
	return fmt.Sprintf("%s-updown-15m-%d", strings.ToLower(symbol), SlotStart(now).Unix())
}

// WindowScanner discovers slot markets through the Gamma API
type WindowScanner struct {
	gammaURL   string
	httpClient *http.Client
}

// NewWindowScanner creates a scanner against gammaURL (empty = production)
func NewWindowScanner(gammaURL string) *WindowScanner {
	if gammaURL == "" {
		gammaURL = GammaAPIURL
	}
	return &WindowScanner{
		gammaURL:   strings.TrimRight(gammaURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

type gammaMarket struct {
	ID            string          `json:"id"`
	ConditionID   string          `json:"conditionId"`
	Slug          string          `json:"slug"`
	ClobTokenIDs  json.RawMessage `json:"clobTokenIds"`
	ClobTokenIDs2 json.RawMessage `json:"clob_token_ids"`
}

// Discover resolves the current slot's market for one symbol
func (s *WindowScanner) Discover(ctx context.Context, symbol string, now time.Time) (*types.Market, error) {
	slug := SlotSlug(symbol, now)
	url := fmt.Sprintf("%s/markets/slug/%s", s.gammaURL, slug)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gamma request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", slug, ErrMarketNotFound)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gamma API error %d: %s", resp.StatusCode, string(body))
	}

	var m gammaMarket
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("decode market: %w", err)
	}

	raw := m.ClobTokenIDs
	if len(raw) == 0 || string(raw) == "null" {
		raw = m.ClobTokenIDs2
	}
	tokens := ParseTokenIDs(raw)
	if len(tokens) < 2 {
		return nil, fmt.Errorf("%s has %d token ids: %w", slug, len(tokens), ErrMarketNotFound)
	}

	start := SlotStart(now)
	return &types.Market{
		Symbol:    strings.ToUpper(symbol),
		Slug:      slug,
		MarketID:  firstNonBlank(m.ConditionID, m.ID),
		YesToken:  tokens[0],
		NoToken:   tokens[1],
		StartTime: start,
		EndTime:   start.Add(SlotDuration),
	}, nil
}

// DiscoverAll resolves every symbol; symbols that fail are left out
func (s *WindowScanner) DiscoverAll(ctx context.Context, symbols []string, now time.Time) map[string]*types.Market {
	markets := make(map[string]*types.Market, len(symbols))
	for _, symbol := range symbols {
		m, err := s.Discover(ctx, symbol, now)
		if err != nil {
			log.Debug().Err(err).Str("symbol", symbol).Msg("Discovery failed")
			continue
		}
		markets[m.Symbol] = m
	}
	return markets
}

// ParseTokenIDs accepts a JSON array, or a string holding one
// (Gamma returns "[\"123\", \"456\"]").
func ParseTokenIDs(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var ids []string
	if err := json.Unmarshal(raw, &ids); err == nil {
		return ids
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	if err := json.Unmarshal([]byte(s), &ids); err == nil {
		return ids
	}

	// last resort: a loosely formatted list
	s = strings.Trim(strings.TrimSpace(s), "[]")
	for _, part := range strings.Split(s, ",") {
		part = strings.Trim(strings.TrimSpace(part), `"`)
		if part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
