package market

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/daszybak/interval_trader/internal/cache"
	"github.com/daszybak/interval_trader/internal/timegrid"
)

// CachedLookup remembers non-empty results per interval. Cache failures are
// logged and fall through to Next.
type CachedLookup struct {
	Next   Lookup
	Cache  cache.Store
	TTL    time.Duration
	Logger *slog.Logger
}

func (c *CachedLookup) Find(ctx context.Context, id timegrid.IntervalID) ([]Market, error) {
	key := "markets:" + id.String()

	raw, ok, err := c.Cache.Get(ctx, key)
	if err != nil {
		c.Logger.Warn("market cache read failed", "interval", id, "error", err)
	}
	if ok {
		var markets []Market
		if err := json.Unmarshal(raw, &markets); err == nil {
			return markets, nil
		}
		c.Logger.Warn("dropping corrupt market cache entry", "interval", id)
		_ = c.Cache.Delete(ctx, key)
	}

	markets, err := c.Next.Find(ctx, id)
	if err != nil || len(markets) == 0 {
		return markets, err
	}

	if raw, err := json.Marshal(markets); err == nil {
		if err := c.Cache.Set(ctx, key, raw, c.TTL); err != nil {
			c.Logger.Warn("market cache write failed", "interval", id, "error", err)
		}
	}
	return markets, nil
}
