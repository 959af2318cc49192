package websocket

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    *PriceUpdate
		wantErr bool
	}{
		{
			name:  "price update",
			input: `{"topic":"crypto_prices","type":"update","timestamp":1704078000500,"payload":{"symbol":"btcusdt","timestamp":1704078000123,"value":42250.5}}`,
			want: &PriceUpdate{
				Topic:     CryptoPricesTopic,
				Symbol:    "btcusdt",
				Value:     42250.5,
				Timestamp: time.UnixMilli(1704078000123),
			},
		},
		{name: "pong", input: "PONG"},
		{name: "empty", input: ""},
		{name: "other topic", input: `{"topic":"activity","type":"trades","payload":{}}`},
		{name: "broken json", input: `{"topic":`, wantErr: true},
		{name: "zero price", input: `{"topic":"crypto_prices","type":"update","payload":{"symbol":"btcusdt","value":0}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMessage([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClientSubscribeAndRead(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subscribed := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		subscribed <- string(msg)

		_ = conn.WriteMessage(websocket.TextMessage, []byte("PONG"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"topic":"crypto_prices","type":"update","payload":{"symbol":"btcusdt","timestamp":1704078000000,"value":42000}}`))

		// Hold the connection until the client closes it.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx := t.Context()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, err := New(ctx, url, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer c.Close(ctx)

	require.NoError(t, c.SubscribeCryptoPrices(ctx, CryptoPricesTopic, "btcusdt"))
	sub := <-subscribed
	assert.Contains(t, sub, `"action":"subscribe"`)
	assert.Contains(t, sub, `"filters":"btcusdt"`)

	update, err := c.ReadPrice(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42000.0, update.Value)
	assert.Equal(t, "btcusdt", update.Symbol)
}
