// Package market defines the tradeable binary-outcome market and the lookup
// boundary that resolves markets for an interval.
package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/daszybak/interval_trader/internal/timegrid"
)

// ErrLookup wraps every network or parsing failure of a Lookup.
var ErrLookup = errors.New("market lookup failed")

// Market is one binary-outcome market. It is never mutated after a Lookup returns it.
type Market struct {
	ID              string    `json:"id"`
	ConditionID     string    `json:"condition_id,omitempty"`
	Slug            string    `json:"slug,omitempty"`
	Question        string    `json:"question,omitempty"`
	YesToken        string    `json:"yes_token"`
	NoToken         string    `json:"no_token"`
	EndsAt          time.Time `json:"ends_at"`
	AcceptingOrders bool      `json:"accepting_orders"`
}

// Usable reports whether both outcome tokens are set and distinct.
func (m Market) Usable() bool {
	return m.ID != "" && m.YesToken != "" && m.NoToken != "" && m.YesToken != m.NoToken
}

// Lookup resolves the markets trading in an interval. Implementations rank
// results; callers take the first usable one.
type Lookup interface {
	Find(ctx context.Context, id timegrid.IntervalID) ([]Market, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, id timegrid.IntervalID) ([]Market, error)

func (f LookupFunc) Find(ctx context.Context, id timegrid.IntervalID) ([]Market, error) {
	return f(ctx, id)
}

// FirstUsable returns the first market with both tokens populated.
func FirstUsable(markets []Market) (Market, bool) {
	for _, m := range markets {
		if m.Usable() {
			return m, true
		}
	}
	return Market{}, false
}

// LookupError builds an error matching ErrLookup.
func LookupError(id timegrid.IntervalID, err error) error {
	return fmt.Errorf("%w: interval %d: %w", ErrLookup, id, err)
}
