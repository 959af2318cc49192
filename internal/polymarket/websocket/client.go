// Package websocket streams crypto reference prices from Polymarket's
// real-time data socket.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	HandshakeTimeout    = 30 * time.Second
	DefaultCloseTimeout = 5 * time.Second
	DefaultWriteTimeout = 10 * time.Second
	PingInterval        = 5 * time.Second
)

const (
	CryptoPricesTopic          = "crypto_prices"
	CryptoPricesChainlinkTopic = "crypto_prices_chainlink"
)

type Client struct {
	conn     *websocket.Conn
	writeMu  sync.Mutex
	stopPing chan struct{}
	stopOnce sync.Once
	log      *slog.Logger
}

type Subscription struct {
	Topic   string `json:"topic"`
	Type    string `json:"type"`
	Filters string `json:"filters,omitempty"`
}

type subscribeRequest struct {
	Action        string         `json:"action"`
	Subscriptions []Subscription `json:"subscriptions"`
}

func New(ctx context.Context, url string, log *slog.Logger) (*Client, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, url, http.Header{})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Client{
		conn:     conn,
		stopPing: make(chan struct{}),
		log:      log.With("component", "rtds"),
	}
	c.log.Info("connected", "url", url, "status", resp.Status)

	go c.pingLoop()

	return c, nil
}

// The data socket expects an application-level PING text frame.
func (c *Client) pingLoop() {
	ticker := time.NewTicker(PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopPing:
			return
		case <-ticker.C:
			if err := c.write(websocket.TextMessage, []byte("PING"), time.Now().Add(DefaultWriteTimeout)); err != nil {
				c.log.Warn("failed to send ping", "error", err)
				return
			}
		}
	}
}

func (c *Client) write(messageType int, data []byte, deadline time.Time) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

func (c *Client) Close(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stopPing) })

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultCloseTimeout)
	}

	c.writeMu.Lock()
	err := c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		deadline,
	)
	c.writeMu.Unlock()
	if err != nil {
		c.log.Debug("failed to send close message", "error", err)
	}

	return c.conn.Close()
}

// SubscribeCryptoPrices subscribes to price updates for a symbol such as "btcusdt".
func (c *Client) SubscribeCryptoPrices(ctx context.Context, topic, symbol string) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultWriteTimeout)
	}

	req := subscribeRequest{
		Action: "subscribe",
		Subscriptions: []Subscription{{
			Topic:   topic,
			Type:    "update",
			Filters: symbol,
		}},
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("couldn't encode subscription: %w", err)
	}
	return c.write(websocket.TextMessage, raw, deadline)
}

type result struct {
	RawMessage []byte
	Error      error
}

// ReadPrice blocks until the next price update arrives. Keepalive replies and
// other topics are skipped.
func (c *Client) ReadPrice(ctx context.Context) (*PriceUpdate, error) {
	for {
		raw, err := c.readRaw(ctx)
		if err != nil {
			return nil, err
		}
		update, err := ParseMessage(raw)
		if err != nil {
			c.log.Debug("skipping message", "error", err)
			continue
		}
		if update != nil {
			return update, nil
		}
	}
}

func (c *Client) readRaw(ctx context.Context) ([]byte, error) {
	resultCh := make(chan result, 1)

	go func() {
		_, msg, err := c.conn.ReadMessage()
		resultCh <- result{
			RawMessage: msg,
			Error:      err,
		}
	}()

	select {
	case <-ctx.Done():
		if err := c.conn.SetReadDeadline(time.Now()); err != nil {
			c.log.Debug("failed to set read deadline", "error", err)
		}
		return nil, fmt.Errorf("reading message: %w", ctx.Err())
	case result := <-resultCh:
		if result.Error != nil {
			return nil, fmt.Errorf("couldn't read message: %w", result.Error)
		}
		return result.RawMessage, nil
	}
}

type Message struct {
	Topic     string          `json:"topic"`
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

type pricePayload struct {
	Symbol    string  `json:"symbol"`
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// PriceUpdate is one reference price observation.
type PriceUpdate struct {
	Topic     string
	Symbol    string
	Value     float64
	Timestamp time.Time
}

// ParseMessage decodes a data socket frame. It returns nil without error for
// frames that carry no price (keepalives, acks, other topics).
func ParseMessage(msg []byte) (*PriceUpdate, error) {
	trimmed := strings.TrimSpace(string(msg))
	if trimmed == "" || !strings.HasPrefix(trimmed, "{") {
		return nil, nil
	}

	base := &Message{}
	if err := json.Unmarshal(msg, base); err != nil {
		return nil, fmt.Errorf("couldn't parse base message: %w", err)
	}

	switch base.Topic {
	case CryptoPricesTopic, CryptoPricesChainlinkTopic:
	default:
		return nil, nil
	}
	if base.Type != "update" || len(base.Payload) == 0 {
		return nil, nil
	}

	p := &pricePayload{}
	if err := json.Unmarshal(base.Payload, p); err != nil {
		return nil, fmt.Errorf("couldn't parse price payload: %w", err)
	}
	if p.Value <= 0 {
		return nil, fmt.Errorf("invalid price %v for %s", p.Value, p.Symbol)
	}

	ts := p.Timestamp
	if ts == 0 {
		ts = base.Timestamp
	}
	return &PriceUpdate{
		Topic:     base.Topic,
		Symbol:    p.Symbol,
		Value:     p.Value,
		Timestamp: time.UnixMilli(ts),
	}, nil
}
