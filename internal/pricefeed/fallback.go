package pricefeed

import (
	"context"
	"errors"
)

// Fallback asks each feed in order and returns the first sample.
type Fallback []Feed

func (f Fallback) Current(ctx context.Context) (Sample, error) {
	var errs []error
	for _, feed := range f {
		s, err := feed.Current(ctx)
		if err == nil {
			return s, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return Sample{}, feedError("fallback", errors.New("no feeds configured"))
	}
	return Sample{}, errors.Join(errs...)
}
