package supervisor

import (
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/daszybak/interval_trader/internal/market"
	"github.com/daszybak/interval_trader/internal/pricefeed"
	"github.com/daszybak/interval_trader/internal/timegrid"
)

// State of a strategy run.
//
//	Idle -> Starting -> Running -> Exited | Killed
type State int

const (
	Idle State = iota
	Starting
	Running
	Exited
	Killed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Exited:
		return "exited"
	case Killed:
		return "killed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether the run can no longer change state.
func (s State) Terminal() bool {
	return s == Exited || s == Killed
}

// Run is one strategy child process.
type Run struct {
	ID        string
	PID       int
	StartedAt time.Time
	Interval  timegrid.IntervalID
	Market    market.Market
	Price     pricefeed.Sample
	Command   []string

	mu       sync.Mutex
	state    State
	exitCode int
	exitedAt time.Time

	cmd    *exec.Cmd
	stdout *tailBuffer
	stderr *tailBuffer
	done   chan struct{}
}

func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Run) setState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
}

// Status is the result of a non-blocking poll.
type Status struct {
	Running  bool
	State    State
	ExitCode int
	Killed   bool
	Stdout   string
	Stderr   string
	Runtime  time.Duration
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu        sync.Mutex
	buf       []byte
	max       int
	truncated bool
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(p)
	if n >= b.max {
		b.buf = append(b.buf[:0], p[n-b.max:]...)
		b.truncated = true
		return n, nil
	}
	if over := len(b.buf) + n - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
		b.truncated = true
	}
	b.buf = append(b.buf, p...)
	return n, nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.truncated {
		return "..." + string(b.buf)
	}
	return string(b.buf)
}
