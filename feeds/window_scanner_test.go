package feeds

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotStart_QuarterHourAligned(t *testing.T) {
	now := time.Date(2024, 3, 15, 14, 37, 42, 0, time.UTC)
	start := SlotStart(now)
	assert.Equal(t, time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC), start)

	// exactly on a boundary starts a new slot
	assert.Equal(t, now.Truncate(time.Hour).Add(45*time.Minute),
		SlotStart(time.Date(2024, 3, 15, 14, 45, 0, 0, time.UTC)))
}

func TestSlotSlug(t *testing.T) {
	now := time.Date(2024, 3, 15, 14, 37, 42, 0, time.UTC)
	want := "btc-updown-15m-" + "1710513000"
	assert.Equal(t, want, SlotSlug("BTC", now))
}

func TestParseTokenIDs(t *testing.T) {
	assert.Equal(t, []string{"1", "2"}, ParseTokenIDs(json.RawMessage(`["1","2"]`)))
	assert.Equal(t, []string{"1", "2"}, ParseTokenIDs(json.RawMessage(`"[\"1\", \"2\"]"`)))
	assert.Equal(t, []string{"1", "2"}, ParseTokenIDs(json.RawMessage(`"[1, 2]"`)))
	assert.Nil(t, ParseTokenIDs(nil))
}

func TestWindowScanner_Discover(t *testing.T) {
	now := time.Date(2024, 3, 15, 14, 37, 42, 0, time.UTC)
	slug := SlotSlug("SOL", now)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets/slug/"+slug {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"id":"55","conditionId":"0xabc","slug":"` + slug + `","clobTokenIds":"[\"111\", \"222\"]"}`))
	}))
	defer srv.Close()

	scanner := NewWindowScanner(srv.URL)
	m, err := scanner.Discover(context.Background(), "sol", now)
	require.NoError(t, err)
	assert.Equal(t, "SOL", m.Symbol)
	assert.Equal(t, "0xabc", m.MarketID)
	assert.Equal(t, "111", m.YesToken)
	assert.Equal(t, "222", m.NoToken)
	assert.Equal(t, 15*time.Minute, m.EndTime.Sub(m.StartTime))

	_, err = scanner.Discover(context.Background(), "BTC", now)
	assert.True(t, errors.Is(err, ErrMarketNotFound))

	all := scanner.DiscoverAll(context.Background(), []string{"SOL", "BTC"}, now)
	assert.Len(t, all, 1)
	assert.Contains(t, all, "SOL")
}
