package feed

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valmere/tradesman/internal/config"
	"github.com/valmere/tradesman/internal/logging"
	"github.com/valmere/tradesman/internal/market"
)

type captured struct {
	recs     []*market.Recommendation
	chats    []string
	fills    []string
	listings []market.Listing
}

func testSocket(c *captured) *Socket {
	return NewSocket(config.SocketConfig{}, logging.New(io.Discard, logging.LevelError, "feed"), Handlers{
		Recommendation: func(r *market.Recommendation) { c.recs = append(c.recs, r) },
		Chat:           func(text string) { c.chats = append(c.chats, text) },
		Fill:           func(item string, side market.Side) { c.fills = append(c.fills, item+"/"+string(side)) },
		Listing:        func(l market.Listing) { c.listings = append(c.listings, l) },
	})
}

func TestDispatchRecommendation(t *testing.T) {
	var c captured
	s := testSocket(&c)

	s.dispatch([]byte(`{"type":"recommendation","data":{"item_id":"ENCHANTED_COAL","quantity":64,"unit_price":10.5,"side":"buy"}}`))
	require.Len(t, c.recs, 1)
	assert.Equal(t, "ENCHANTED_COAL", c.recs[0].ItemID)
	assert.Equal(t, 64, c.recs[0].Quantity)

	// malformed recommendations are dropped, not fatal
	s.dispatch([]byte(`{"type":"recommendation","data":{"quantity":64}}`))
	assert.Len(t, c.recs, 1)
}

func TestDispatchChat(t *testing.T) {
	var c captured
	s := testSocket(&c)

	s.dispatch([]byte(`{"type":"chat","data":{"text":"Selling in 10 seconds!"}}`))
	assert.Equal(t, []string{"Selling in 10 seconds!"}, c.chats)
}

func TestDispatchFill(t *testing.T) {
	var c captured
	s := testSocket(&c)

	s.dispatch([]byte(`{"type":"fill","data":{"item_id":"ENCHANTED_COAL","side":"buy"}}`))
	assert.Equal(t, []string{"ENCHANTED_COAL/buy"}, c.fills)

	// invalid side is rejected
	s.dispatch([]byte(`{"type":"fill","data":{"item_id":"ENCHANTED_COAL","side":"short"}}`))
	assert.Len(t, c.fills, 1)
}

func TestDispatchListing(t *testing.T) {
	var c captured
	s := testSocket(&c)

	s.dispatch([]byte(`{"type":"listing","data":{"item_id":"ENCHANTED_COAL","seller":"Dealer","price":4200,"ends_at":"2026-08-30T12:00:00Z"}}`))
	require.Len(t, c.listings, 1)
	assert.Equal(t, "ENCHANTED_COAL", c.listings[0].ItemID)
	assert.Equal(t, 4200.0, c.listings[0].Price)
	assert.Equal(t, "Dealer", c.listings[0].Seller)
	assert.False(t, c.listings[0].EndsAt.IsZero())

	// listing without an item is rejected
	s.dispatch([]byte(`{"type":"listing","data":{"price":1}}`))
	assert.Len(t, c.listings, 1)
}

func TestConnectAndReadReleasesWatcher(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	s := NewSocket(config.SocketConfig{URL: url}, logging.New(io.Discard, logging.LevelError, "feed"), Handlers{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	before := runtime.NumGoroutine()
	for i := 0; i < 20; i++ {
		require.Error(t, s.connectAndRead(ctx))
	}
	time.Sleep(50 * time.Millisecond)

	// each dropped connection cleans up its own watcher goroutine
	after := runtime.NumGoroutine()
	assert.LessOrEqual(t, after, before+3)
}

func TestDispatchIgnoresUnknownAndMalformed(t *testing.T) {
	var c captured
	s := testSocket(&c)

	s.dispatch([]byte(`{"type":"presence","data":{}}`))
	s.dispatch([]byte(`not json at all`))

	assert.Empty(t, c.recs)
	assert.Empty(t, c.chats)
	assert.Empty(t, c.fills)
	assert.Empty(t, c.listings)
}
