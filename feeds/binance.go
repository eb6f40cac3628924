package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polyneko/internal/indicators"
)

// ═══════════════════════════════════════════════════════════════════════════════
// BINANCE REFERENCE PRICES
// ═══════════════════════════════════════════════════════════════════════════════
//
// Used for:
//   - 1m and 5m candles feeding the indicator engine
//   - Spot price at slot start and slot end (settlement)
//
// ═══════════════════════════════════════════════════════════════════════════════

const BinanceAPIURL = "https://api.binance.com"

var binancePairs = map[string]string{
	"BTC": "BTCUSDT",
	"ETH": "ETHUSDT",
	"SOL": "SOLUSDT",
	"XRP": "XRPUSDT",
}

// PairFor maps a bot symbol to its Binance pair
func PairFor(symbol string) string {
	symbol = strings.ToUpper(symbol)
	if pair, ok := binancePairs[symbol]; ok {
		return pair
	}
	return symbol + "USDT"
}

// BinanceClient is a REST client for klines and spot prices
type BinanceClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewBinanceClient creates a client against baseURL (empty = production)
func NewBinanceClient(baseURL string) *BinanceClient {
	if baseURL == "" {
		baseURL = BinanceAPIURL
	}
	return &BinanceClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Klines fetches the most recent candles for symbol at interval ("1m", "5m")
func (c *BinanceClient) Klines(ctx context.Context, symbol, interval string, limit int) ([]indicators.Candle, error) {
	url := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d",
		c.baseURL, PairFor(symbol), interval, limit)

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var raw [][]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}

	candles := make([]indicators.Candle, 0, len(raw))
	for _, k := range raw {
		if len(k) < 6 {
			continue
		}
		openTime, _ := k[0].(float64)
		candles = append(candles, indicators.Candle{
			OpenTime: int64(openTime),
			Open:     parseFloat(k[1]),
			High:     parseFloat(k[2]),
			Low:      parseFloat(k[3]),
			Close:    parseFloat(k[4]),
			Volume:   parseFloat(k[5]),
		})
	}

	log.Debug().
		Str("symbol", symbol).
		Str("interval", interval).
		Int("candles", len(candles)).
		Msg("Klines fetched")

	return candles, nil
}

// SpotPrice gets the latest traded price
func (c *BinanceClient) SpotPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", c.baseURL, PairFor(symbol))

	body, err := c.get(ctx, url)
	if err != nil {
		return decimal.Zero, err
	}

	var result struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return decimal.Zero, fmt.Errorf("decode ticker: %w", err)
	}

	price, err := decimal.NewFromString(result.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price %q: %w", result.Price, err)
	}
	return price, nil
}

func (c *BinanceClient) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("binance request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("binance API error %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func parseFloat(v interface{}) float64 {
	switch val := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	case float64:
		return val
	default:
		return 0
	}
}
