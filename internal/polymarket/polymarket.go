// Package polymarket adapts Polymarket's APIs (Gamma, CLOB) to market.Lookup
// for the BTC 15-minute up/down series.
package polymarket

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/daszybak/interval_trader/internal/market"
	"github.com/daszybak/interval_trader/internal/polymarket/clob"
	"github.com/daszybak/interval_trader/internal/polymarket/gamma"
	"github.com/daszybak/interval_trader/internal/timegrid"
)

// DefaultSlugPrefix names the BTC up/down 15-minute markets; the interval id is appended.
const DefaultSlugPrefix = "btc-updown-15m-"

type Lookup struct {
	gamma      *gamma.Client
	clob       *clob.Client
	slugPrefix string
	log        *slog.Logger
}

// NewLookup creates a Lookup. clobClient may be nil, in which case token ids
// come from Gamma only.
func NewLookup(g *gamma.Client, clobClient *clob.Client, slugPrefix string, log *slog.Logger) *Lookup {
	if slugPrefix == "" {
		slugPrefix = DefaultSlugPrefix
	}
	return &Lookup{
		gamma:      g,
		clob:       clobClient,
		slugPrefix: slugPrefix,
		log:        log.With("component", "polymarket_lookup"),
	}
}

// Slug returns the market slug for an interval.
func (l *Lookup) Slug(id timegrid.IntervalID) string {
	return l.slugPrefix + id.String()
}

// Find returns the open markets for the interval sorted by end time. A missing
// market is an empty result, not an error.
func (l *Lookup) Find(ctx context.Context, id timegrid.IntervalID) ([]market.Market, error) {
	slug := l.Slug(id)

	candidates, err := l.fetch(ctx, slug)
	if errors.Is(err, gamma.ErrNotFound) {
		l.log.Info("no market for interval", "slug", slug)
		return nil, nil
	}
	if err != nil {
		return nil, market.LookupError(id, err)
	}

	markets := make([]market.Market, 0, len(candidates))
	for _, gm := range candidates {
		m, ok := l.convert(ctx, gm)
		if !ok {
			continue
		}
		markets = append(markets, m)
	}

	sort.SliceStable(markets, func(i, j int) bool {
		return markets[i].EndsAt.Before(markets[j].EndsAt)
	})

	l.log.Info("resolved markets", "slug", slug, "found", len(candidates), "open", len(markets))
	return markets, nil
}

func (l *Lookup) fetch(ctx context.Context, slug string) ([]*gamma.Market, error) {
	m, err := l.gamma.GetMarketBySlug(ctx, slug)
	if err == nil {
		return []*gamma.Market{m}, nil
	}
	if !errors.Is(err, gamma.ErrNotFound) {
		return nil, err
	}

	// Some series are only published as events.
	ev, err := l.gamma.GetEventBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return ev.Markets, nil
}

func (l *Lookup) convert(ctx context.Context, gm *gamma.Market) (market.Market, bool) {
	if gm.Closed || !gm.Accepting() {
		l.log.Info("skipping market not open for orders", "market_id", gm.ID, "closed", gm.Closed, "accepting_orders", gm.Accepting())
		return market.Market{}, false
	}
	if len(gm.ClobTokenIDs) < 2 {
		l.log.Warn("skipping market with missing tokens", "market_id", gm.ID, "tokens", len(gm.ClobTokenIDs))
		return market.Market{}, false
	}

	m := market.Market{
		ID:              gm.ID,
		ConditionID:     gm.ConditionID,
		Slug:            gm.Slug,
		Question:        strings.TrimSpace(gm.Question),
		YesToken:        gm.ClobTokenIDs[0],
		NoToken:         gm.ClobTokenIDs[1],
		EndsAt:          gm.EndsAt(),
		AcceptingOrders: true,
	}

	if l.clob == nil || gm.ConditionID == "" {
		return m, true
	}

	cm, err := l.clob.GetMarketByConditionID(ctx, gm.ConditionID)
	if err != nil {
		l.log.Warn("clob cross-check failed, using gamma tokens", "market_id", gm.ID, "error", err)
		return m, true
	}
	if !cm.AcceptingOrders || cm.Closed {
		l.log.Info("clob reports market not accepting orders", "market_id", gm.ID)
		return market.Market{}, false
	}
	if yes, no, ok := outcomeTokens(cm.Tokens); ok {
		m.YesToken, m.NoToken = yes, no
	}
	return m, true
}

// outcomeTokens picks the up/yes and down/no tokens by outcome label.
func outcomeTokens(tokens []clob.MarketToken) (yes, no string, ok bool) {
	for _, t := range tokens {
		switch strings.ToLower(t.Outcome) {
		case "yes", "up":
			yes = t.TokenID
		case "no", "down":
			no = t.TokenID
		}
	}
	return yes, no, yes != "" && no != ""
}
