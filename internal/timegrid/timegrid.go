// Package timegrid aligns wall-clock time to the 15-minute trading grid.
//
// Intervals are cut in a local civil timezone and identified by their start
// instant expressed in a fixed-offset settlement timezone. The two
// representations are distinct types so local minute arithmetic never mixes
// with settlement timestamps.
package timegrid

import (
	"fmt"
	"time"
)

// Length of one trading interval.
const Length = 15 * time.Minute

// LocalTime is an instant expressed in the local civil timezone.
type LocalTime struct{ time.Time }

// SettlementTime is an instant expressed in the fixed-offset settlement timezone.
type SettlementTime struct{ time.Time }

// IntervalID identifies one interval: the Unix seconds of its start in the
// settlement timezone.
type IntervalID int64

func (id IntervalID) String() string {
	return fmt.Sprintf("%d", int64(id))
}

// Interval is one [Start, End) window on the grid.
type Interval struct {
	ID         IntervalID
	Start      LocalTime
	End        LocalTime
	Settlement SettlementTime
}

// Contains reports whether t falls inside the interval.
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start.Time) && t.Before(iv.End.Time)
}

func (iv Interval) String() string {
	return fmt.Sprintf("%s-%s (%d)", iv.Start.Format("15:04"), iv.End.Format("15:04"), iv.ID)
}

// OnBoundary selects what Upcoming returns when now sits exactly on a
// boundary minute.
type OnBoundary int

const (
	// OnBoundaryCurrent targets the interval that starts at the boundary just reached.
	OnBoundaryCurrent OnBoundary = iota
	// OnBoundaryNext targets the interval after it.
	OnBoundaryNext
)

// ParseOnBoundary maps a config value to an OnBoundary.
func ParseOnBoundary(s string) (OnBoundary, error) {
	switch s {
	case "", "current":
		return OnBoundaryCurrent, nil
	case "next":
		return OnBoundaryNext, nil
	default:
		return 0, fmt.Errorf("invalid on_boundary %q (want current or next)", s)
	}
}

func (b OnBoundary) String() string {
	if b == OnBoundaryNext {
		return "next"
	}
	return "current"
}

// Grid converts instants to intervals.
type Grid struct {
	local      *time.Location
	settlement *time.Location
}

// New builds a grid for the given local zone and settlement offset east of UTC, in minutes.
func New(local *time.Location, settlementOffsetMinutes int) Grid {
	name := fmt.Sprintf("UTC%+03d:%02d", settlementOffsetMinutes/60, abs(settlementOffsetMinutes%60))
	return Grid{
		local:      local,
		settlement: time.FixedZone(name, settlementOffsetMinutes*60),
	}
}

// LoadGrid resolves the local zone by IANA name.
func LoadGrid(localZone string, settlementOffsetMinutes int) (Grid, error) {
	loc, err := time.LoadLocation(localZone)
	if err != nil {
		return Grid{}, fmt.Errorf("couldn't load timezone %s: %w", localZone, err)
	}
	return New(loc, settlementOffsetMinutes), nil
}

// Location is the local civil timezone.
func (g Grid) Location() *time.Location {
	return g.local
}

// Local converts t to the local civil timezone.
func (g Grid) Local(t time.Time) LocalTime {
	return LocalTime{t.In(g.local)}
}

// Settlement converts a local instant to the settlement timezone.
func (g Grid) Settlement(t LocalTime) SettlementTime {
	return SettlementTime{t.In(g.settlement)}
}

// At returns the interval starting at start, which must be on the grid.
func (g Grid) At(start LocalTime) Interval {
	settle := g.Settlement(start)
	return Interval{
		ID:         IntervalID(settle.Unix()),
		Start:      start,
		End:        LocalTime{start.Add(Length)},
		Settlement: settle,
	}
}

// Current returns the interval that started at or before now.
func (g Grid) Current(now time.Time) Interval {
	l := g.Local(now)
	start := time.Date(l.Year(), l.Month(), l.Day(), l.Hour(), (l.Minute()/15)*15, 0, 0, g.local)
	return g.At(LocalTime{start})
}

// Next returns the interval starting at the next boundary after now.
func (g Grid) Next(now time.Time) Interval {
	return g.At(g.Current(now).End)
}

// UntilNext returns the time left until the next boundary.
func (g Grid) UntilNext(now time.Time) time.Duration {
	return g.Current(now).End.Sub(now)
}

// OnBoundaryMinute reports whether now is inside a boundary minute (hh:00, :15, :30, :45).
func (g Grid) OnBoundaryMinute(now time.Time) bool {
	return g.Local(now).Minute()%15 == 0
}

// Upcoming returns the interval a boundary-synchronized caller should trade:
// the one starting at the next boundary, or, inside a boundary minute, the
// one that just started (OnBoundaryCurrent) or the one after (OnBoundaryNext).
func (g Grid) Upcoming(now time.Time, b OnBoundary) Interval {
	if g.OnBoundaryMinute(now) && b == OnBoundaryCurrent {
		return g.Current(now)
	}
	return g.Next(now)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
