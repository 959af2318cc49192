package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/daszybak/interval_trader/internal/polymarket/websocket"
)

const (
	minReconnectDelay = time.Second
	maxReconnectDelay = time.Minute
)

// Stream keeps the latest price pushed over Polymarket's data socket.
// Run must be started for Current to return anything.
type Stream struct {
	URL    string
	Topic  string
	Symbol string
	MaxAge time.Duration
	Logger *slog.Logger

	mu     sync.RWMutex
	latest Sample
	now    func() time.Time
}

func NewStream(url, topic, symbol string, maxAge time.Duration, log *slog.Logger) *Stream {
	if topic == "" {
		topic = websocket.CryptoPricesTopic
	}
	return &Stream{
		URL:    url,
		Topic:  topic,
		Symbol: strings.ToLower(symbol),
		MaxAge: maxAge,
		Logger: log.With("component", "price_stream"),
		now:    time.Now,
	}
}

func (s *Stream) Current(_ context.Context) (Sample, error) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()

	if latest.ObservedAt.IsZero() {
		return Sample{}, feedError("stream", errors.New("no price received yet"))
	}
	if age := s.now().Sub(latest.ObservedAt); age > s.MaxAge {
		return Sample{}, feedError("stream", fmt.Errorf("%w: last update %s ago", ErrStale, age.Round(time.Second)))
	}
	return latest, nil
}

func (s *Stream) set(u *websocket.PriceUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = Sample{
		Value:      u.Value,
		ObservedAt: s.now(),
		Source:     u.Topic,
	}
}

// Run connects and reads until ctx is cancelled, reconnecting with backoff.
func (s *Stream) Run(ctx context.Context) {
	var delay time.Duration
	for {
		subscribed, err := s.session(ctx)
		if ctx.Err() != nil {
			s.Logger.Info("price stream stopped", "reason", ctx.Err())
			return
		}
		delay = nextBackoff(delay, subscribed)
		s.Logger.Warn("price stream disconnected", "error", err, "retry_in", delay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// nextBackoff doubles the reconnect delay up to maxReconnectDelay and starts
// over once a session got as far as subscribing.
func nextBackoff(prev time.Duration, subscribed bool) time.Duration {
	if subscribed || prev <= 0 {
		return minReconnectDelay
	}
	return min(prev*2, maxReconnectDelay)
}

// session reports whether it subscribed before failing.
func (s *Stream) session(ctx context.Context) (bool, error) {
	c, err := websocket.New(ctx, s.URL, s.Logger)
	if err != nil {
		return false, err
	}
	defer c.Close(context.Background())

	if err := c.SubscribeCryptoPrices(ctx, s.Topic, s.Symbol); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}

	for {
		u, err := c.ReadPrice(ctx)
		if err != nil {
			return true, err
		}
		if s.Symbol != "" && !strings.EqualFold(u.Symbol, s.Symbol) {
			continue
		}
		s.set(u)
	}
}
