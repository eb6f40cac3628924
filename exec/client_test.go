package exec

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var testSecret = base64.URLEncoding.EncodeToString([]byte("super-secret-key"))

func testCredentials(t *testing.T) Credentials {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return Credentials{
		APIKey:     "api-key",
		APISecret:  testSecret,
		Passphrase: "pass",
		PrivateKey: "0x" + hex.EncodeToString(crypto.FromECDSA(key)),
	}
}

func TestAmounts(t *testing.T) {
	assert.Equal(t, "44550000", MakerAmount(d("0.99"), d("45")).String())
	assert.Equal(t, "45000000", TakerAmount(d("45")).String())
	// truncated, never rounded up
	assert.Equal(t, "3333300", MakerAmount(d("0.333339"), d("10")).String())
}

func TestOrderSigner_SignatureRecoversSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := NewOrderSigner(key, common.Address{}, 0)

	order, err := signer.BuildBuy("123456789", LimitPrice, d("45"))
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), order.Maker, "maker defaults to the signer")

	signed, err := signer.Sign(order)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(signed.Signature, "0x"))

	sig, err := hex.DecodeString(strings.TrimPrefix(signed.Signature, "0x"))
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.GreaterOrEqual(t, sig[64], byte(27))

	hash, err := signer.Hash(order)
	require.NoError(t, err)
	sig[64] -= 27
	pub, err := crypto.SigToPub(hash, sig)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), crypto.PubkeyToAddress(*pub))
}

func TestOrderSigner_InvalidToken(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	_, err = NewOrderSigner(key, common.Address{}, 0).BuildBuy("not-a-number", LimitPrice, d("5"))
	assert.Error(t, err)
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := NewClient("", Credentials{})
	assert.ErrorContains(t, err, "credentials")

	creds := testCredentials(t)
	creds.PrivateKey = "zz"
	_, err = NewClient("", creds)
	assert.ErrorContains(t, err, "private key")
}

func TestClient_BuyGTC(t *testing.T) {
	tests := []struct {
		name      string
		response  string
		status    int
		wantErr   bool
		filled    bool
		wantPrice string
		wantQty   string
		wantCost  string
	}{
		{
			name:      "matched with amounts",
			response:  `{"success":true,"orderID":"0xabc","status":"matched","makingAmount":"24.75","takingAmount":"45"}`,
			status:    http.StatusOK,
			filled:    true,
			wantPrice: "0.55",
			wantQty:   "45",
			wantCost:  "24.75",
		},
		{
			name:      "success flag without amounts uses the quote",
			response:  `{"success":true,"orderID":"0xdef","status":"","makingAmount":"","takingAmount":""}`,
			status:    http.StatusOK,
			filled:    true,
			wantPrice: "0.56",
			wantQty:   "45",
			wantCost:  "25.2",
		},
		{
			name:     "resting order is not a fill",
			response: `{"success":false,"orderID":"0x1","status":"live"}`,
			status:   http.StatusOK,
		},
		{
			name:     "http error",
			response: `{"errorMsg":"not enough balance"}`,
			status:   http.StatusBadRequest,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/order", r.URL.Path)
				body, _ := io.ReadAll(r.Body)

				// HMAC over timestamp + method + path + body
				mac := hmac.New(sha256.New, []byte("super-secret-key"))
				mac.Write([]byte(r.Header.Get("POLY_TIMESTAMP") + "POST/order" + string(body)))
				assert.Equal(t, base64.URLEncoding.EncodeToString(mac.Sum(nil)), r.Header.Get("POLY_SIGNATURE"))
				assert.Equal(t, "api-key", r.Header.Get("POLY_API_KEY"))
				assert.NotEmpty(t, r.Header.Get("POLY_ADDRESS"))

				var payload map[string]interface{}
				require.NoError(t, json.Unmarshal(body, &payload))
				assert.Equal(t, "GTC", payload["orderType"])
				assert.Equal(t, "api-key", payload["owner"])
				order := payload["order"].(map[string]interface{})
				assert.Equal(t, "BUY", order["side"])
				assert.Equal(t, "45000000", order["takerAmount"])

				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.response))
			}))
			defer srv.Close()

			client, err := NewClient(srv.URL, testCredentials(t))
			require.NoError(t, err)

			res, err := client.BuyGTC(context.Background(), "987654321", d("0.56"), d("45"))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.filled, res.Filled())
			if !tt.filled {
				return
			}
			assert.True(t, res.FillPrice.Equal(d(tt.wantPrice)), res.FillPrice.String())
			assert.True(t, res.FillShares.Equal(d(tt.wantQty)), res.FillShares.String())
			assert.True(t, res.FillCost.Equal(d(tt.wantCost)), res.FillCost.String())
		})
	}
}

func TestClient_Ping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/time", r.URL.Path)
		_, _ = w.Write([]byte("1700000000"))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, testCredentials(t))
	require.NoError(t, err)
	assert.NoError(t, client.Ping(context.Background()))
}
