package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

// MidsFeed keeps a live mid-price cache from the venue's websocket stream.
// Consumers read the cache; a background loop reconnects on failure. REST
// Mids remains the fallback when the feed has no price yet.
type MidsFeed struct {
	wsURL string

	mu   sync.RWMutex
	mids map[string]decimal.Decimal

	reconnectDelay time.Duration
}

func NewMidsFeed(cfg Config) *MidsFeed {
	return &MidsFeed{
		wsURL:          cfg.WSURL,
		mids:           make(map[string]decimal.Decimal),
		reconnectDelay: 5 * time.Second,
	}
}

// Get returns the cached mid for coin and whether one is known.
func (f *MidsFeed) Get(coin string) (decimal.Decimal, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	px, ok := f.mids[coin]
	return px, ok
}

// Run blocks, maintaining the subscription until ctx is cancelled.
func (f *MidsFeed) Run(ctx context.Context) {
	for {
		if err := f.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.WithError(err).Warn("mids feed disconnected, will reconnect")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(f.reconnectDelay):
		}
	}
}

type midsMessage struct {
	Channel string `json:"channel"`
	Data    struct {
		Mids map[string]string `json:"mids"`
	} `json:"data"`
}

func (f *MidsFeed) consume(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
		Proxy:            http.ProxyFromEnvironment,
	}

	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	sub := map[string]interface{}{
		"method":       "subscribe",
		"subscription": map[string]string{"type": "allMids"},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}

	logger.WithField("url", f.wsURL).Info("mids feed connected")

	// Close the connection when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var parsed midsMessage
		if err := json.Unmarshal(msg, &parsed); err != nil {
			logger.WithError(err).Debug("skipping unparseable ws frame")
			continue
		}
		if parsed.Channel != "allMids" {
			continue
		}

		f.mu.Lock()
		for coin, px := range parsed.Data.Mids {
			f.mids[coin] = parseDecimal(px)
		}
		f.mu.Unlock()
	}
}
