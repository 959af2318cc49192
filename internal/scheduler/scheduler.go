// Package scheduler runs the trading loop: wait for a 15-minute boundary (or
// join the running interval), find that interval's market, sample the price,
// and hand both to exactly one strategy process.
package scheduler

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/shopspring/decimal"

	"github.com/daszybak/interval_trader/internal/decision"
	"github.com/daszybak/interval_trader/internal/market"
	"github.com/daszybak/interval_trader/internal/pricefeed"
	"github.com/daszybak/interval_trader/internal/supervisor"
	"github.com/daszybak/interval_trader/internal/timegrid"
	"github.com/daszybak/interval_trader/pkg/hashset"
)

// ProcessSupervisor is the subset of *supervisor.Supervisor the loop needs.
type ProcessSupervisor interface {
	Launch(spec supervisor.Spec) (*supervisor.Run, error)
	Poll(run *supervisor.Run) supervisor.Status
	Terminate(run *supervisor.Run, grace time.Duration) error
}

// RunRecorder persists run lifecycle events. Errors are logged, never fatal.
type RunRecorder interface {
	RunStarted(ctx context.Context, run *supervisor.Run) error
	RunFinished(ctx context.Context, run *supervisor.Run, st supervisor.Status) error
}

type Deps struct {
	Grid       timegrid.Grid
	Lookup     market.Lookup
	Feed       pricefeed.Feed
	Supervisor ProcessSupervisor

	// Optional.
	Clock    Clock
	Recorder RunRecorder
	Logger   *slog.Logger
}

type Scheduler struct {
	cfg      Config
	grid     timegrid.Grid
	policy   decision.Policy
	lookup   market.Lookup
	feed     pricefeed.Feed
	sup      ProcessSupervisor
	clock    Clock
	recorder RunRecorder
	log      *slog.Logger

	current *supervisor.Run
	// Intervals already dispatched or skipped; none is attempted twice.
	attempted hashset.Set[timegrid.IntervalID]
}

func New(cfg Config, d Deps) *Scheduler {
	cfg = cfg.withDefaults()
	clock := d.Clock
	if clock == nil {
		clock = realClock{}
	}
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		cfg:       cfg,
		grid:      d.Grid,
		policy:    decision.Policy{Grid: d.Grid, JoinThreshold: cfg.JoinThreshold},
		lookup:    d.Lookup,
		feed:      d.Feed,
		sup:       d.Supervisor,
		clock:     clock,
		recorder:  d.Recorder,
		log:       log.With("component", "scheduler"),
		attempted: hashset.NewSet[timegrid.IntervalID](),
	}
}

// Run loops until ctx is cancelled, then stops the live strategy and returns.
// Cycle failures are logged and never end the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler started",
		"mode", s.cfg.Mode,
		"on_boundary", s.cfg.OnBoundary,
		"amount", s.cfg.Amount,
		"join_threshold", s.cfg.JoinThreshold,
	)
	defer s.shutdown()

	for ctx.Err() == nil {
		s.cycle(ctx)
		if err := s.clock.Sleep(ctx, s.cfg.CycleInterval); err != nil {
			break
		}
	}
	return nil
}

func (s *Scheduler) cycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("cycle panicked, skipping", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	s.pollCurrent(ctx)

	iv, ok := s.target(ctx)
	if !ok {
		return
	}
	s.dispatch(ctx, iv)
	s.prune(iv)
}

// target blocks until an interval should be dispatched. It returns false when
// ctx is cancelled first.
func (s *Scheduler) target(ctx context.Context) (timegrid.Interval, bool) {
	now := s.clock.Now()
	if s.cfg.Mode == ModeBoundary {
		// Picked once: re-evaluating after waking on the boundary would
		// move OnBoundaryNext on to the following interval.
		iv := s.grid.Upcoming(now, s.cfg.OnBoundary)
		if s.attempted.Has(iv.ID) {
			iv = s.grid.At(iv.End)
		}
		return s.waitFor(ctx, iv)
	}

	d := s.policy.Decide(now)
	s.log.Info("decision", "decision", d.String(), "since_prev", d.SincePrev.Round(time.Second))

	if d.Kind == decision.Join && !s.attempted.Has(d.Interval.ID) {
		return d.Interval, true
	}
	next := d.Interval
	if d.Kind == decision.Join || s.attempted.Has(next.ID) {
		next = s.grid.At(d.Interval.End)
	}
	return s.waitFor(ctx, next)
}

// waitFor sleeps in MaxSleep steps until iv's start is within
// BoundaryTolerance, polling the live run at every wake.
func (s *Scheduler) waitFor(ctx context.Context, iv timegrid.Interval) (timegrid.Interval, bool) {
	for {
		now := s.clock.Now()
		remaining := iv.Start.Sub(now)
		if remaining <= s.cfg.BoundaryTolerance {
			return iv, true
		}

		s.log.Info("waiting for boundary",
			"interval", iv.String(),
			"remaining", remaining.Round(time.Second),
		)
		if err := s.clock.Sleep(ctx, min(s.cfg.MaxSleep, remaining)); err != nil {
			return iv, false
		}
		s.pollCurrent(ctx)
	}
}

func (s *Scheduler) dispatch(ctx context.Context, iv timegrid.Interval) {
	s.attempted.Set(iv.ID)
	log := s.log.With("interval", iv.ID, "start", iv.Start.Format(time.DateTime))
	log.Info("starting trading cycle")

	lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.LookupTimeout)
	markets, err := s.lookup.Find(lookupCtx, iv.ID)
	cancel()
	if err != nil {
		log.Error("market lookup failed, skipping cycle", "error", err)
		return
	}
	m, ok := market.FirstUsable(markets)
	if !ok {
		log.Warn("no usable market, skipping cycle", "found", len(markets))
		return
	}
	log = log.With("market_id", m.ID)
	log.Info("market found", "question", m.Question, "yes_token", m.YesToken, "no_token", m.NoToken)

	priceCtx, cancel := context.WithTimeout(ctx, s.cfg.PriceTimeout)
	sample, err := s.feed.Current(priceCtx)
	cancel()
	if err != nil {
		log.Error("price unavailable, skipping cycle", "error", err)
		return
	}
	log.Info("price sampled", "price", sample.Value, "source", sample.Source)

	if ctx.Err() != nil {
		log.Info("shutting down, not launching")
		return
	}
	if s.current != nil && !s.stopCurrent(ctx) {
		log.Error("previous strategy still alive, not launching")
		return
	}

	args := append(append([]string{}, s.cfg.Args...), m.ID, FormatAmount(s.cfg.Amount), FormatAmount(sample.Value))
	run, err := s.sup.Launch(supervisor.Spec{
		Command:  s.cfg.Command,
		Args:     args,
		Dir:      s.cfg.Dir,
		Interval: iv.ID,
		Market:   m,
		Price:    sample,
	})
	if err != nil {
		log.Error("couldn't launch strategy, skipping cycle", "error", err)
		return
	}
	s.current = run
	log.Info("strategy launched", "run_id", run.ID, "pid", run.PID)

	if s.recorder != nil {
		rctx, cancel := s.recorderContext(ctx)
		defer cancel()
		if err := s.recorder.RunStarted(rctx, run); err != nil {
			log.Warn("couldn't record run start", "error", err)
		}
	}
}

// stopCurrent terminates the live run and reports whether it is confirmed dead.
func (s *Scheduler) stopCurrent(ctx context.Context) bool {
	run := s.current
	if err := s.sup.Terminate(run, s.cfg.GracePeriod); err != nil {
		s.log.Error("couldn't terminate strategy", "run_id", run.ID, "error", err)
	}
	st := s.sup.Poll(run)
	if st.Running {
		return false
	}
	s.finish(ctx, run, st)
	return true
}

func (s *Scheduler) pollCurrent(ctx context.Context) {
	if s.current == nil {
		return
	}
	st := s.sup.Poll(s.current)
	if st.Running {
		s.log.Debug("strategy running", "run_id", s.current.ID, "runtime", st.Runtime.Round(time.Second))
		return
	}
	s.finish(ctx, s.current, st)
}

func (s *Scheduler) finish(ctx context.Context, run *supervisor.Run, st supervisor.Status) {
	s.current = nil
	log := s.log.With("run_id", run.ID, "interval", run.Interval, "runtime", st.Runtime.Round(time.Second))
	switch {
	case st.Killed:
		log.Warn("strategy killed", "stderr", st.Stderr)
	case st.ExitCode != 0:
		log.Error("strategy failed", "exit_code", st.ExitCode, "stderr", st.Stderr, "stdout", st.Stdout)
	default:
		log.Info("strategy finished")
	}

	if s.recorder != nil {
		rctx, cancel := s.recorderContext(ctx)
		defer cancel()
		if err := s.recorder.RunFinished(rctx, run, st); err != nil {
			log.Warn("couldn't record run finish", "error", err)
		}
	}
}

func (s *Scheduler) shutdown() {
	if s.current != nil {
		s.log.Info("stopping strategy", "run_id", s.current.ID)
		if !s.stopCurrent(context.Background()) {
			s.log.Error("strategy still alive at shutdown", "run_id", s.current.ID, "pid", s.current.PID)
		}
	}
	s.log.Info("scheduler stopped")
}

// prune forgets attempted intervals older than the one just dispatched.
func (s *Scheduler) prune(last timegrid.Interval) {
	s.attempted.DeleteFunc(func(id timegrid.IntervalID) bool {
		return id < last.ID
	})
}

// recorderContext survives shutdown so the final run is still recorded.
func (s *Scheduler) recorderContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
}

// FormatAmount renders a float as the shortest decimal string, e.g. 5 or 42123.45.
func FormatAmount(v float64) string {
	return decimal.NewFromFloat(v).String()
}
