package market

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daszybak/interval_trader/internal/cache"
	"github.com/daszybak/interval_trader/internal/timegrid"
)

func TestUsable(t *testing.T) {
	tests := []struct {
		name string
		m    Market
		want bool
	}{
		{"both tokens", Market{ID: "1", YesToken: "a", NoToken: "b"}, true},
		{"missing yes", Market{ID: "1", NoToken: "b"}, false},
		{"missing no", Market{ID: "1", YesToken: "a"}, false},
		{"same token", Market{ID: "1", YesToken: "a", NoToken: "a"}, false},
		{"missing id", Market{YesToken: "a", NoToken: "b"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.m.Usable())
		})
	}
}

func TestFirstUsable(t *testing.T) {
	_, ok := FirstUsable(nil)
	assert.False(t, ok)

	got, ok := FirstUsable([]Market{
		{ID: "broken", YesToken: "a"},
		{ID: "good", YesToken: "a", NoToken: "b"},
		{ID: "later", YesToken: "c", NoToken: "d"},
	})
	require.True(t, ok)
	assert.Equal(t, "good", got.ID)
}

func TestLookupError(t *testing.T) {
	err := LookupError(900, io.ErrUnexpectedEOF)
	assert.ErrorIs(t, err, ErrLookup)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestCachedLookup(t *testing.T) {
	calls := 0
	var result []Market
	var resultErr error
	next := LookupFunc(func(context.Context, timegrid.IntervalID) ([]Market, error) {
		calls++
		return result, resultErr
	})

	c := &CachedLookup{
		Next:   next,
		Cache:  cache.NewMemoryStore(),
		TTL:    time.Minute,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	ctx := t.Context()

	// Empty results are not cached.
	got, err := c.Find(ctx, 900)
	require.NoError(t, err)
	assert.Empty(t, got)

	result = []Market{{ID: "m1", YesToken: "y", NoToken: "n", AcceptingOrders: true}}
	got, err = c.Find(ctx, 900)
	require.NoError(t, err)
	require.Len(t, got, 1)

	result = nil
	resultErr = errors.New("network down")
	got, err = c.Find(ctx, 900)
	require.NoError(t, err, "second call should be served from cache")
	require.Len(t, got, 1)
	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, 2, calls)

	_, err = c.Find(ctx, 1800)
	require.Error(t, err)
}
