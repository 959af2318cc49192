package scheduler

import (
	"fmt"
	"time"

	"github.com/daszybak/interval_trader/internal/decision"
	"github.com/daszybak/interval_trader/internal/supervisor"
	"github.com/daszybak/interval_trader/internal/timegrid"
)

// Mode selects how the scheduler picks the interval to trade.
type Mode int

const (
	// ModeBoundary always waits for the next 15-minute boundary.
	ModeBoundary Mode = iota
	// ModeDecision joins the running interval when it is young enough.
	ModeDecision
)

func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "boundary":
		return ModeBoundary, nil
	case "decision":
		return ModeDecision, nil
	default:
		return 0, fmt.Errorf("invalid mode %q (want boundary or decision)", s)
	}
}

func (m Mode) String() string {
	if m == ModeDecision {
		return "decision"
	}
	return "boundary"
}

const (
	DefaultBoundaryTolerance = 30 * time.Second
	DefaultMaxSleep          = 60 * time.Second
	DefaultCycleInterval     = 60 * time.Second
	DefaultLookupTimeout     = 60 * time.Second
	DefaultPriceTimeout      = 10 * time.Second
	DefaultAmount            = 5.0
)

type Config struct {
	Mode          Mode
	OnBoundary    timegrid.OnBoundary
	JoinThreshold time.Duration

	// BoundaryTolerance is how close to a boundary counts as reached.
	BoundaryTolerance time.Duration
	// MaxSleep caps every wait so shutdown is observed within one tick.
	MaxSleep time.Duration
	// CycleInterval is the flat pause between loop iterations.
	CycleInterval time.Duration
	LookupTimeout time.Duration
	PriceTimeout  time.Duration
	GracePeriod   time.Duration

	// Command and Args start the strategy; market id, amount and price are appended.
	Command string
	Args    []string
	Dir     string
	Amount  float64
}

func (c Config) withDefaults() Config {
	if c.JoinThreshold <= 0 {
		c.JoinThreshold = decision.DefaultJoinThreshold
	}
	if c.BoundaryTolerance <= 0 {
		c.BoundaryTolerance = DefaultBoundaryTolerance
	}
	if c.MaxSleep <= 0 {
		c.MaxSleep = DefaultMaxSleep
	}
	if c.CycleInterval <= 0 {
		c.CycleInterval = DefaultCycleInterval
	}
	if c.LookupTimeout <= 0 {
		c.LookupTimeout = DefaultLookupTimeout
	}
	if c.PriceTimeout <= 0 {
		c.PriceTimeout = DefaultPriceTimeout
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = supervisor.DefaultGracePeriod
	}
	if c.Amount <= 0 {
		c.Amount = DefaultAmount
	}
	return c
}
