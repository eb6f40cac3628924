package exec

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"math/rand"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// EIP-712 ORDER SIGNING - Polymarket CTF Exchange (Polygon)
// ═══════════════════════════════════════════════════════════════════════════════
//
// BUY only: maker gives USDC, taker side receives outcome tokens.
// Amounts are in 6-decimal token units:
//   makerAmount = shares × price, truncated to 4 decimals
//   takerAmount = shares, rounded to 4 decimals
//
// ═══════════════════════════════════════════════════════════════════════════════

const (
	PolygonChainID     = 137
	CTFExchangeAddress = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
	ZeroAddress        = "0x0000000000000000000000000000000000000000"

	sideBuy       = 0
	feeRateBps    = 1000
	tokenDecimals = 6
	amountDigits  = 4
)

// CTFOrder is the struct hashed and signed by the exchange
type CTFOrder struct {
	Salt          *big.Int
	Maker         common.Address
	Signer        common.Address
	Taker         common.Address
	TokenID       *big.Int
	MakerAmount   *big.Int
	TakerAmount   *big.Int
	Expiration    *big.Int
	Nonce         *big.Int
	FeeRateBps    *big.Int
	Side          uint8
	SignatureType uint8
}

// SignedOrder is an order with its 65-byte signature
type SignedOrder struct {
	Order     *CTFOrder
	Signature string
}

// OrderSigner signs buy orders with the wallet key
type OrderSigner struct {
	privateKey    *ecdsa.PrivateKey
	signerAddress common.Address
	funderAddress common.Address
	exchangeAddr  common.Address
	signatureType int
}

// NewOrderSigner creates a signer; a zero funder means the signer holds the funds
func NewOrderSigner(privateKey *ecdsa.PrivateKey, funder common.Address, signatureType int) *OrderSigner {
	signer := crypto.PubkeyToAddress(privateKey.PublicKey)
	if funder == (common.Address{}) {
		funder = signer
	}
	return &OrderSigner{
		privateKey:    privateKey,
		signerAddress: signer,
		funderAddress: funder,
		exchangeAddr:  common.HexToAddress(CTFExchangeAddress),
		signatureType: signatureType,
	}
}

// Address of the signing key
func (s *OrderSigner) Address() common.Address {
	return s.signerAddress
}

// BuildBuy creates an unsigned BUY for shares at limit price
func (s *OrderSigner) BuildBuy(tokenID string, price, shares decimal.Decimal) (*CTFOrder, error) {
	token, ok := new(big.Int).SetString(tokenID, 10)
	if !ok {
		return nil, fmt.Errorf("invalid token id %q", tokenID)
	}

	return &CTFOrder{
		Salt:          big.NewInt(rand.Int63()),
		Maker:         s.funderAddress,
		Signer:        s.signerAddress,
		Taker:         common.HexToAddress(ZeroAddress),
		TokenID:       token,
		MakerAmount:   MakerAmount(price, shares),
		TakerAmount:   TakerAmount(shares),
		Expiration:    big.NewInt(0),
		Nonce:         big.NewInt(0),
		FeeRateBps:    big.NewInt(feeRateBps),
		Side:          sideBuy,
		SignatureType: uint8(s.signatureType),
	}, nil
}

// Sign hashes the order per EIP-712 and signs it
func (s *OrderSigner) Sign(order *CTFOrder) (*SignedOrder, error) {
	hash, err := s.Hash(order)
	if err != nil {
		return nil, err
	}

	signature, err := crypto.Sign(hash, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	if signature[64] < 27 {
		signature[64] += 27
	}

	return &SignedOrder{Order: order, Signature: fmt.Sprintf("0x%x", signature)}, nil
}

// Hash is keccak256("\x19\x01" ‖ domainSeparator ‖ hashStruct(order))
func (s *OrderSigner) Hash(order *CTFOrder) ([]byte, error) {
	typedData := s.typedData(order)

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("hash domain: %w", err)
	}
	messageHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("hash order: %w", err)
	}

	raw := make([]byte, 0, 2+len(domainSeparator)+len(messageHash))
	raw = append(raw, 0x19, 0x01)
	raw = append(raw, domainSeparator...)
	raw = append(raw, messageHash...)
	return crypto.Keccak256(raw), nil
}

func (s *OrderSigner) typedData(order *CTFOrder) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Order": {
				{Name: "salt", Type: "uint256"},
				{Name: "maker", Type: "address"},
				{Name: "signer", Type: "address"},
				{Name: "taker", Type: "address"},
				{Name: "tokenId", Type: "uint256"},
				{Name: "makerAmount", Type: "uint256"},
				{Name: "takerAmount", Type: "uint256"},
				{Name: "expiration", Type: "uint256"},
				{Name: "nonce", Type: "uint256"},
				{Name: "feeRateBps", Type: "uint256"},
				{Name: "side", Type: "uint8"},
				{Name: "signatureType", Type: "uint8"},
			},
		},
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              "Polymarket CTF Exchange",
			Version:           "1",
			ChainId:           math.NewHexOrDecimal256(PolygonChainID),
			VerifyingContract: s.exchangeAddr.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"salt":          order.Salt.String(),
			"maker":         order.Maker.Hex(),
			"signer":        order.Signer.Hex(),
			"taker":         order.Taker.Hex(),
			"tokenId":       order.TokenID.String(),
			"makerAmount":   order.MakerAmount.String(),
			"takerAmount":   order.TakerAmount.String(),
			"expiration":    order.Expiration.String(),
			"nonce":         order.Nonce.String(),
			"feeRateBps":    order.FeeRateBps.String(),
			"side":          fmt.Sprintf("%d", order.Side),
			"signatureType": fmt.Sprintf("%d", order.SignatureType),
		},
	}
}

// MakerAmount is the USDC paid, truncated so the budget is never exceeded
func MakerAmount(price, shares decimal.Decimal) *big.Int {
	return shares.Mul(price).Truncate(amountDigits).Shift(tokenDecimals).BigInt()
}

// TakerAmount is the token quantity received
func TakerAmount(shares decimal.Decimal) *big.Int {
	return shares.Round(amountDigits).Shift(tokenDecimals).BigInt()
}

// Payload is the POST /order body
func (o *SignedOrder) Payload(apiKey, orderType string) map[string]interface{} {
	return map[string]interface{}{
		"order": map[string]interface{}{
			"salt":          o.Order.Salt.Int64(),
			"maker":         o.Order.Maker.Hex(),
			"signer":        o.Order.Signer.Hex(),
			"taker":         o.Order.Taker.Hex(),
			"tokenId":       o.Order.TokenID.String(),
			"makerAmount":   o.Order.MakerAmount.String(),
			"takerAmount":   o.Order.TakerAmount.String(),
			"expiration":    o.Order.Expiration.String(),
			"nonce":         o.Order.Nonce.String(),
			"feeRateBps":    o.Order.FeeRateBps.String(),
			"side":          "BUY",
			"signatureType": int(o.Order.SignatureType),
			"signature":     o.Signature,
		},
		"owner":     apiKey, // API key, not the maker address
		"orderType": orderType,
		"postOnly":  false,
	}
}
