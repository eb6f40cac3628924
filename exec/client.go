package exec

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polyneko/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// POLYMARKET EXECUTION CLIENT
// ═══════════════════════════════════════════════════════════════════════════════
//
// Buys outcome tokens with GTC limit orders at 0.99 so they take the best
// available asks immediately. The realized price comes from the response:
//   makingAmount = USDC paid, takingAmount = tokens received
//
// Requests carry L2 HMAC headers (POLY_API_KEY / SIGNATURE / TIMESTAMP / ...).
//
// ═══════════════════════════════════════════════════════════════════════════════

const (
	PolymarketCLOB = "https://clob.polymarket.com"
	orderTypeGTC   = "GTC"
)

// LimitPrice for every buy; fills happen at the resting asks
var LimitPrice = decimal.RequireFromString("0.99")

// Credentials for the CLOB API and wallet
type Credentials struct {
	APIKey        string
	APISecret     string
	Passphrase    string
	PrivateKey    string // hex, optional 0x prefix
	FunderAddress string
	SignatureType int
}

type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	passphrase string
	signer     *OrderSigner
	httpClient *http.Client
}

// NewClient creates a new execution client
func NewClient(baseURL string, creds Credentials) (*Client, error) {
	if baseURL == "" {
		baseURL = PolymarketCLOB
	}
	if creds.APIKey == "" || creds.APISecret == "" || creds.Passphrase == "" {
		return nil, fmt.Errorf("CLOB API credentials required (CLOB_API_KEY, CLOB_API_SECRET, CLOB_PASSPHRASE)")
	}

	pkHex := strings.TrimPrefix(creds.PrivateKey, "0x")
	if pkHex == "" {
		return nil, fmt.Errorf("wallet private key required (WALLET_PRIVATE_KEY)")
	}
	pk, err := crypto.HexToECDSA(pkHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	var funder common.Address
	if creds.FunderAddress != "" {
		funder = common.HexToAddress(creds.FunderAddress)
	}

	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     creds.APIKey,
		apiSecret:  creds.APISecret,
		passphrase: creds.Passphrase,
		signer:     NewOrderSigner(pk, funder, creds.SignatureType),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}

	log.Info().
		Str("address", client.signer.Address().Hex()).
		Str("funder", client.signer.funderAddress.Hex()).
		Int("sig_type", creds.SignatureType).
		Msg("🚀 Execution client initialized")

	return client, nil
}

// Ping checks that the CLOB API answers
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/time", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("clob unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("clob ping: HTTP %d", resp.StatusCode)
	}
	return nil
}

type orderResponse struct {
	Success      bool            `json:"success"`
	ErrorMsg     string          `json:"errorMsg"`
	OrderID      string          `json:"orderID"`
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	OrderStatus  string          `json:"orderStatus"`
	MakingAmount json.RawMessage `json:"makingAmount"`
	TakingAmount json.RawMessage `json:"takingAmount"`
}

// BuyGTC buys shares of tokenID. quote is the ask the decision was made on;
// it stands in for the fill price when the response has no amounts.
func (c *Client) BuyGTC(ctx context.Context, tokenID string, quote, shares decimal.Decimal) (*types.OrderResult, error) {
	order, err := c.signer.BuildBuy(tokenID, LimitPrice, shares)
	if err != nil {
		return nil, err
	}
	signed, err := c.signer.Sign(order)
	if err != nil {
		return nil, fmt.Errorf("signing failed: %w", err)
	}

	body, err := json.Marshal(signed.Payload(c.apiKey, orderTypeGTC))
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}

	start := time.Now()
	respBody, status, err := c.post(ctx, "/order", body)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Int("status", status).
		Dur("api_time", time.Since(start)).
		RawJSON("response", respBody).
		Msg("CLOB API response")

	var resp orderResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w, body: %s", err, string(respBody))
	}
	if status >= 400 {
		return nil, fmt.Errorf("order failed: HTTP %d: %s", status, resp.ErrorMsg)
	}

	return resp.result(quote, shares), nil
}

func (r orderResponse) result(quote, shares decimal.Decimal) *types.OrderResult {
	status := r.Status
	if status == "" {
		status = r.OrderStatus
	}
	id := r.OrderID
	if id == "" {
		id = r.ID
	}

	res := &types.OrderResult{
		OrderID:  id,
		Status:   strings.ToUpper(status),
		Success:  r.Success,
		Attempts: 1,
	}
	if !res.Filled() {
		return res
	}

	taking := parseAmount(r.TakingAmount)
	making := parseAmount(r.MakingAmount)
	if taking.IsPositive() && making.IsPositive() {
		res.FillShares = taking
		res.FillCost = making
		res.FillPrice = making.Div(taking).Round(3)
		return res
	}

	res.FillPrice = quote
	res.FillShares = shares
	res.FillCost = shares.Mul(quote)
	return res
}

// parseAmount reads "24.75" or 24.75; anything else is zero
func parseAmount(raw json.RawMessage) decimal.Decimal {
	if len(raw) == 0 {
		return decimal.Zero
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	c.signL2Request(req, http.MethodPost, path, body)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return respBody, resp.StatusCode, nil
}

// signL2Request adds the HMAC-SHA256 auth headers over timestamp+method+path+body
func (c *Client) signL2Request(req *http.Request, method, path string, body []byte) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	message := timestamp + method + path
	if len(body) > 0 {
		message += string(body)
	}

	h := hmac.New(sha256.New, decodeSecret(c.apiSecret))
	h.Write([]byte(message))
	signature := base64.URLEncoding.EncodeToString(h.Sum(nil))

	// underscores, not hyphens
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("POLY_API_KEY", c.apiKey)
	req.Header.Set("POLY_SIGNATURE", signature)
	req.Header.Set("POLY_TIMESTAMP", timestamp)
	req.Header.Set("POLY_PASSPHRASE", c.passphrase)
	req.Header.Set("POLY_ADDRESS", c.signer.Address().Hex())
}

// decodeSecret accepts URL-safe base64 with or without padding, then standard base64
func decodeSecret(secret string) []byte {
	if b, err := base64.URLEncoding.DecodeString(secret); err == nil {
		return b
	}
	padded := secret
	if len(padded)%4 != 0 {
		padded += strings.Repeat("=", 4-len(padded)%4)
	}
	if b, err := base64.URLEncoding.DecodeString(padded); err == nil {
		return b
	}
	b, _ := base64.StdEncoding.DecodeString(secret)
	return b
}
