// Package decision chooses between joining the interval that is already
// running and waiting for the next one.
package decision

import (
	"fmt"
	"time"

	"github.com/daszybak/interval_trader/internal/timegrid"
)

// DefaultJoinThreshold is how late into an interval a join is still worthwhile.
const DefaultJoinThreshold = 5 * time.Minute

type Kind int

const (
	Join Kind = iota + 1
	AwaitNext
)

func (k Kind) String() string {
	switch k {
	case Join:
		return "join"
	case AwaitNext:
		return "await_next"
	default:
		return "unknown"
	}
}

// Decision is the outcome of Policy.Decide.
type Decision struct {
	Kind Kind
	// Interval to trade: the running one for Join, the next one for AwaitNext.
	Interval timegrid.Interval
	// SincePrev is the time elapsed since the running interval started.
	SincePrev time.Duration
	// Wait is the time left until Interval starts. Zero for Join.
	Wait time.Duration
}

func (d Decision) String() string {
	if d.Kind == Join {
		return fmt.Sprintf("join %s (%.1f min in)", d.Interval, d.SincePrev.Minutes())
	}
	return fmt.Sprintf("await %s (%.1f min left)", d.Interval, d.Wait.Minutes())
}

type Policy struct {
	Grid          timegrid.Grid
	JoinThreshold time.Duration
}

// Decide joins the running interval when it started no more than
// JoinThreshold ago, otherwise it waits for the next one.
func (p Policy) Decide(now time.Time) Decision {
	prev := p.Grid.Current(now)
	sincePrev := now.Sub(prev.Start.Time)

	if sincePrev <= p.JoinThreshold {
		return Decision{
			Kind:      Join,
			Interval:  prev,
			SincePrev: sincePrev,
		}
	}

	next := p.Grid.At(prev.End)
	return Decision{
		Kind:      AwaitNext,
		Interval:  next,
		SincePrev: sincePrev,
		Wait:      next.Start.Sub(now),
	}
}
