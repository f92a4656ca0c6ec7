// Package feed ingests external events: a websocket stream of structured
// messages and a drop directory of recommendation files.
package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/valmere/tradesman/internal/config"
	"github.com/valmere/tradesman/internal/logging"
	"github.com/valmere/tradesman/internal/market"
)

// Handlers routes decoded socket messages into the core.
type Handlers struct {
	Recommendation func(*market.Recommendation)
	Chat           func(text string)
	Fill           func(item string, side market.Side)
	Listing        func(market.Listing)
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type chatMessage struct {
	Text string `json:"text"`
}

type fillMessage struct {
	ItemID string `json:"item_id"`
	Side   string `json:"side"`
}

type listingMessage struct {
	ItemID string  `json:"item_id"`
	Seller string  `json:"seller"`
	Price  float64 `json:"price"`
	EndsAt string  `json:"ends_at"`
}

// Socket is the structured event source. It redials with a fixed delay when
// the connection drops.
type Socket struct {
	cfg      config.SocketConfig
	log      *logging.Logger
	handlers Handlers
}

func NewSocket(cfg config.SocketConfig, log *logging.Logger, handlers Handlers) *Socket {
	return &Socket{cfg: cfg, log: log, handlers: handlers}
}

// Run connects and reads until ctx is cancelled.
func (s *Socket) Run(ctx context.Context) error {
	delay := time.Duration(s.cfg.ReconnectSec) * time.Second
	if delay <= 0 {
		delay = 5 * time.Second
	}

	for {
		if err := s.connectAndRead(ctx); err != nil && ctx.Err() == nil {
			s.log.Warnf("socket disconnected: %v, redialing in %s", err, delay)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (s *Socket) connectAndRead(ctx context.Context) error {
	header := http.Header{}
	if s.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+s.cfg.Token)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.cfg.URL, header)
	if err != nil {
		return err
	}
	defer conn.Close()
	s.log.Infof("socket connected url=%s", s.cfg.URL)

	// the watcher must die with this connection, not with the daemon
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.dispatch(payload)
	}
}

func (s *Socket) dispatch(payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		s.log.Warnf("undecodable socket message: %v", err)
		return
	}

	switch env.Type {
	case "recommendation":
		rec, err := market.ParseRecommendation(env.Data)
		if err != nil {
			s.log.Warnf("dropping recommendation: %v", err)
			return
		}
		if s.handlers.Recommendation != nil {
			s.handlers.Recommendation(rec)
		}
	case "chat":
		var m chatMessage
		if err := json.Unmarshal(env.Data, &m); err != nil {
			s.log.Warnf("undecodable chat message: %v", err)
			return
		}
		if s.handlers.Chat != nil {
			s.handlers.Chat(m.Text)
		}
	case "fill":
		var m fillMessage
		if err := json.Unmarshal(env.Data, &m); err != nil || !market.Side(m.Side).Valid() {
			s.log.Warnf("undecodable fill message: %v", err)
			return
		}
		if s.handlers.Fill != nil {
			s.handlers.Fill(m.ItemID, market.Side(m.Side))
		}
	case "listing":
		var m listingMessage
		if err := json.Unmarshal(env.Data, &m); err != nil || m.ItemID == "" {
			s.log.Warnf("undecodable listing message: %v", err)
			return
		}
		endsAt, _ := time.Parse(time.RFC3339, m.EndsAt)
		if s.handlers.Listing != nil {
			s.handlers.Listing(market.Listing{
				ItemID: m.ItemID,
				Seller: m.Seller,
				Price:  m.Price,
				EndsAt: endsAt,
			})
		}
	default:
		s.log.Debugf("ignoring socket message type=%q", env.Type)
	}
}
