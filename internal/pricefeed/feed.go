// Package pricefeed samples the reference price of the underlying asset.
package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrFeed wraps every failure to produce a sample.
	ErrFeed = errors.New("price feed failed")
	// ErrStale is returned by streaming feeds when the latest value is too old.
	ErrStale = errors.New("price is stale")
)

// Sample is one observation, consumed once per cycle.
type Sample struct {
	Value      float64
	ObservedAt time.Time
	Source     string
}

type Feed interface {
	Current(ctx context.Context) (Sample, error)
}

// FeedFunc adapts a function to Feed.
type FeedFunc func(ctx context.Context) (Sample, error)

func (f FeedFunc) Current(ctx context.Context) (Sample, error) {
	return f(ctx)
}

func feedError(source string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrFeed, source, err)
}
