package pricefeed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daszybak/interval_trader/internal/polymarket/websocket"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBinanceCurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","price":"42123.45000000"}`))
	}))
	defer srv.Close()

	observed := time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC)
	b := NewBinance(srv.URL, "btcusdt", time.Second)
	b.now = func() time.Time { return observed }

	s, err := b.Current(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 42123.45, s.Value)
	assert.Equal(t, observed, s.ObservedAt)
	assert.Equal(t, "binance", s.Source)
}

func TestBinanceFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) }},
		{"malformed", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"price":"abc"}`)) }},
		{"zero", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"price":"0"}`)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewBinance(srv.URL, "", time.Second).Current(t.Context())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrFeed)
		})
	}
}

func TestBinanceTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	start := time.Now()
	_, err := NewBinance(srv.URL, "", 100*time.Millisecond).Current(t.Context())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFeed)
	assert.Less(t, time.Since(start), time.Second)
}

func TestStreamStaleness(t *testing.T) {
	now := time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC)
	s := NewStream("ws://unused", "", "btcusdt", 30*time.Second, discardLogger())
	s.now = func() time.Time { return now }

	_, err := s.Current(t.Context())
	require.ErrorIs(t, err, ErrFeed)

	s.set(&websocket.PriceUpdate{Topic: websocket.CryptoPricesTopic, Symbol: "btcusdt", Value: 42000})
	got, err := s.Current(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 42000.0, got.Value)

	now = now.Add(31 * time.Second)
	_, err = s.Current(t.Context())
	require.ErrorIs(t, err, ErrStale)
	assert.ErrorIs(t, err, ErrFeed)
}

func TestStreamRun(t *testing.T) {
	upgrader := gorilla.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.WriteMessage(gorilla.TextMessage, []byte(`{"topic":"crypto_prices","type":"update","payload":{"symbol":"ethusdt","value":2300}}`))
		_ = conn.WriteMessage(gorilla.TextMessage, []byte(`{"topic":"crypto_prices","type":"update","payload":{"symbol":"btcusdt","value":42001}}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(t.Context())
	s := NewStream("ws"+strings.TrimPrefix(srv.URL, "http"), "", "BTCUSDT", time.Minute, discardLogger())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		got, err := s.Current(ctx)
		return err == nil && got.Value == 42001
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop")
	}
}

func TestNextBackoff(t *testing.T) {
	var delays []time.Duration
	d := time.Duration(0)
	for range 8 {
		d = nextBackoff(d, false)
		delays = append(delays, d)
	}
	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 32 * time.Second, time.Minute, time.Minute,
	}, delays)

	// A session that subscribed starts the backoff over.
	assert.Equal(t, time.Second, nextBackoff(time.Minute, true))
	assert.Equal(t, 2*time.Second, nextBackoff(nextBackoff(time.Minute, true), false))
}

func TestFallback(t *testing.T) {
	failing := FeedFunc(func(context.Context) (Sample, error) {
		return Sample{}, feedError("first", errors.New("down"))
	})
	working := FeedFunc(func(context.Context) (Sample, error) {
		return Sample{Value: 1, Source: "second"}, nil
	})

	got, err := Fallback{failing, working}.Current(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "second", got.Source)

	_, err = Fallback{failing, failing}.Current(t.Context())
	require.ErrorIs(t, err, ErrFeed)

	_, err = Fallback{}.Current(t.Context())
	require.ErrorIs(t, err, ErrFeed)
}
