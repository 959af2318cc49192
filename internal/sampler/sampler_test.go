package sampler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daszybak/interval_trader/internal/pricefeed"
)

type recorderFunc func(ctx context.Context, s pricefeed.Sample) error

func (f recorderFunc) RecordPrice(ctx context.Context, s pricefeed.Sample) error {
	return f(ctx, s)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSampleOnceAppendsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices", "btc_15min_prices.csv")
	at := time.Date(2025, 1, 10, 2, 15, 0, 0, time.UTC)
	values := []float64{42123.45, 42200}
	i := 0
	feed := pricefeed.FeedFunc(func(context.Context) (pricefeed.Sample, error) {
		v := values[i]
		i++
		return pricefeed.Sample{Value: v, ObservedAt: at, Source: "binance"}, nil
	})
	var recorded []float64
	rec := recorderFunc(func(_ context.Context, s pricefeed.Sample) error {
		recorded = append(recorded, s.Value)
		return nil
	})

	s, err := New(Config{CSVPath: path, Location: time.FixedZone("CST", 8*3600)}, feed, rec, discard())
	require.NoError(t, err)
	require.NoError(t, s.SampleOnce(context.Background()))
	require.NoError(t, s.SampleOnce(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"timestamp,datetime,price,source",
		"1736475300,2025-01-10 10:15:00,42123.45,binance",
		"1736475300,2025-01-10 10:15:00,42200,binance",
		"",
	}, "\n"), string(data))
	assert.Equal(t, values, recorded)
}

func TestSampleOnceFeedError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.csv")
	feed := pricefeed.FeedFunc(func(context.Context) (pricefeed.Sample, error) {
		return pricefeed.Sample{}, pricefeed.ErrFeed
	})

	s, err := New(Config{CSVPath: path}, feed, nil, discard())
	require.NoError(t, err)

	assert.ErrorIs(t, s.SampleOnce(context.Background()), pricefeed.ErrFeed)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestSampleOnceRecorderErrorKeepsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.csv")
	feed := pricefeed.FeedFunc(func(context.Context) (pricefeed.Sample, error) {
		return pricefeed.Sample{Value: 1, ObservedAt: time.Unix(0, 0), Source: "test"}, nil
	})
	dbErr := errors.New("db down")
	rec := recorderFunc(func(context.Context, pricefeed.Sample) error { return dbErr })

	s, err := New(Config{CSVPath: path}, feed, rec, discard())
	require.NoError(t, err)

	assert.ErrorIs(t, s.SampleOnce(context.Background()), dbErr)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), ",1,test")
}

func TestInvalidSchedule(t *testing.T) {
	_, err := New(Config{Schedule: "every quarter"}, nil, nil, discard())
	assert.Error(t, err)
}

func TestStartStopsOnCancel(t *testing.T) {
	s, err := New(Config{CSVPath: filepath.Join(t.TempDir(), "p.csv")}, pricefeed.FeedFunc(func(context.Context) (pricefeed.Sample, error) {
		return pricefeed.Sample{}, pricefeed.ErrFeed
	}), nil, discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("sampler did not stop")
	}
}
