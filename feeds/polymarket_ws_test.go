package feeds

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBookMessages_SingleAndArray(t *testing.T) {
	single := []byte(`{"event_type":"book","asset_id":"tok-a","market":"m1","bids":[{"price":"0.45","size":"10"}],"asks":[{"price":"0.47","size":"10"}]}`)
	updates := ParseBookMessages(single)
	require.Len(t, updates, 1)
	assert.Equal(t, "tok-a", updates[0].TokenID)

	array := []byte(`[
		{"event_type":"book","asset_id":"tok-a","buys":[["0.45","10"]],"sells":[["0.47","10"]]},
		{"event_type":"price_change","asset_id":"tok-b"},
		{"event_type":"book","asset_id":"tok-b","bids":[],"asks":[]}
	]`)
	updates = ParseBookMessages(array)
	require.Len(t, updates, 1)
	levels, ok := NormalizeLevels(updates[0].Bids)
	require.True(t, ok)
	require.Len(t, levels, 1)
	assert.True(t, levels[0].Price.Equal(dec("0.45")))
}

func TestParseBookMessages_Garbage(t *testing.T) {
	assert.Empty(t, ParseBookMessages([]byte("PONG")))
	assert.Empty(t, ParseBookMessages(nil))
}

func TestMarketFeed_SubscribesAndDelivers(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subscribed := make(chan map[string]interface{}, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var msg map[string]interface{}
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		subscribed <- msg

		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`[{"event_type":"book","asset_id":"tok-a","bids":[["0.40","5"]],"asks":[["0.42","5"]]}]`))

		// hold the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	feed := NewMarketFeed("ws" + strings.TrimPrefix(srv.URL, "http"))
	updates := feed.Subscribe()
	feed.Resubscribe([]string{"tok-a", "tok-b"})
	feed.Start()
	defer feed.Stop()

	select {
	case msg := <-subscribed:
		assert.Equal(t, "market", msg["type"])
		assert.Len(t, msg["assets_ids"], 2)
	case <-time.After(3 * time.Second):
		t.Fatal("no subscription received")
	}

	select {
	case u := <-updates:
		assert.Equal(t, "tok-a", u.TokenID)
	case <-time.After(3 * time.Second):
		t.Fatal("no book update delivered")
	}
	assert.Equal(t, uint64(1), feed.MessageCount())
}

func TestMarketFeed_DropConnClearsState(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	dial := func() *websocket.Conn {
		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
		require.NoError(t, err)
		return conn
	}

	feed := NewMarketFeed("ws://unused")
	stale, live := dial(), dial()
	feed.conn, feed.connected = live, true

	// an older connection going away leaves the live one alone
	feed.dropConn(stale)
	assert.True(t, feed.Connected())

	feed.dropConn(live)
	assert.False(t, feed.Connected())
	assert.Nil(t, feed.conn)
}
