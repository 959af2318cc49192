// Package supervisor owns the lifecycle of strategy child processes: spawn
// with captured output, non-blocking status polls, and graceful-then-forced
// termination.
package supervisor

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/daszybak/interval_trader/internal/market"
	"github.com/daszybak/interval_trader/internal/pricefeed"
	"github.com/daszybak/interval_trader/internal/timegrid"
)

const (
	DefaultGracePeriod = 10 * time.Second
	DefaultTailBytes   = 500
)

// ErrNotFound is returned by Launch when the strategy executable or script is missing.
var ErrNotFound = errors.New("strategy executable not found")

// Spec describes one launch.
type Spec struct {
	Command  string
	Args     []string
	Dir      string
	Env      []string
	Interval timegrid.IntervalID
	Market   market.Market
	Price    pricefeed.Sample
}

type Supervisor struct {
	log       *slog.Logger
	tailBytes int
	// Bounds how long Wait keeps draining pipes held open by grandchildren.
	waitDelay time.Duration
	now       func() time.Time
}

func New(tailBytes int, log *slog.Logger) *Supervisor {
	if tailBytes <= 0 {
		tailBytes = DefaultTailBytes
	}
	return &Supervisor{
		log:       log.With("component", "supervisor"),
		tailBytes: tailBytes,
		waitDelay: 5 * time.Second,
		now:       time.Now,
	}
}

// Launch spawns the strategy. Output goes to bounded tail buffers, never to
// the parent's streams. Launch does not check for other live runs; callers
// terminate the previous run first.
func (s *Supervisor) Launch(spec Spec) (*Run, error) {
	path, err := resolve(spec.Command)
	if err != nil {
		return nil, err
	}
	for _, a := range spec.Args {
		// Interpreter invocations: the script must exist too.
		if isScript(a) {
			if _, err := os.Stat(scriptPath(spec.Dir, a)); err != nil {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, a)
			}
		}
	}

	run := &Run{
		ID:       uuid.NewString(),
		Interval: spec.Interval,
		Market:   spec.Market,
		Price:    spec.Price,
		Command:  append([]string{path}, spec.Args...),
		stdout:   newTailBuffer(s.tailBytes),
		stderr:   newTailBuffer(s.tailBytes),
		done:     make(chan struct{}),
	}
	log := s.log.With("run_id", run.ID, "interval", spec.Interval, "market_id", spec.Market.ID)

	cmd := exec.Command(path, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	cmd.Stdin = nil
	cmd.Stdout = run.stdout
	cmd.Stderr = run.stderr
	cmd.WaitDelay = s.waitDelay
	setProcessGroup(cmd)
	run.cmd = cmd

	run.setState(Starting)
	log.Info("starting strategy", "command", strings.Join(run.Command, " "))

	if err := cmd.Start(); err != nil {
		run.setState(Idle)
		return nil, fmt.Errorf("couldn't start strategy: %w", err)
	}

	run.PID = cmd.Process.Pid
	run.StartedAt = s.now()
	run.setState(Running)
	log.Info("strategy running", "pid", run.PID)

	go s.wait(run, log)

	return run, nil
}

func (s *Supervisor) wait(run *Run, log *slog.Logger) {
	err := run.cmd.Wait()

	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
			log.Warn("strategy wait failed", "error", err)
		}
	}

	run.mu.Lock()
	run.exitCode = code
	run.exitedAt = s.now()
	if run.state != Killed {
		run.state = Exited
	}
	state := run.state
	run.mu.Unlock()

	log.Info("strategy stopped", "pid", run.PID, "state", state, "exit_code", code)
	close(run.done)
}

// Poll reports the run's status without blocking.
func (s *Supervisor) Poll(run *Run) Status {
	select {
	case <-run.done:
	default:
		return Status{Running: true, State: run.State(), Runtime: s.now().Sub(run.StartedAt)}
	}

	run.mu.Lock()
	defer run.mu.Unlock()
	return Status{
		State:    run.state,
		ExitCode: run.exitCode,
		Killed:   run.state == Killed,
		Stdout:   run.stdout.String(),
		Stderr:   run.stderr.String(),
		Runtime:  run.exitedAt.Sub(run.StartedAt),
	}
}

// Terminate asks the run's process group to stop, waits up to grace, then
// kills the group. It is safe to call on runs that already exited and to call more than once.
func (s *Supervisor) Terminate(run *Run, grace time.Duration) error {
	if run == nil || run.cmd == nil || run.cmd.Process == nil {
		return nil
	}
	select {
	case <-run.done:
		return nil
	default:
	}

	log := s.log.With("run_id", run.ID, "pid", run.PID)
	log.Info("terminating strategy", "grace", grace)

	if err := signalGroup(run.cmd.Process, syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		log.Warn("graceful stop failed, killing", "error", err)
		return s.kill(run, log)
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-run.done:
		log.Info("strategy stopped gracefully")
		return nil
	case <-timer.C:
	}

	log.Warn("strategy ignored termination request, killing")
	return s.kill(run, log)
}

func (s *Supervisor) kill(run *Run, log *slog.Logger) error {
	run.mu.Lock()
	if !run.state.Terminal() {
		run.state = Killed
	}
	run.mu.Unlock()

	if err := signalGroup(run.cmd.Process, syscall.SIGKILL); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("couldn't kill strategy %d: %w", run.PID, err)
	}

	select {
	case <-run.done:
		return nil
	case <-time.After(s.waitDelay + time.Second):
		log.Error("strategy did not exit after kill")
		return fmt.Errorf("strategy %d did not exit after kill", run.PID)
	}
}

func resolve(command string) (string, error) {
	if command == "" {
		return "", fmt.Errorf("%w: empty command", ErrNotFound)
	}
	path, err := exec.LookPath(command)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrNotFound, command, err)
	}
	return path, nil
}

func isScript(arg string) bool {
	switch filepath.Ext(arg) {
	case ".py", ".sh", ".js", ".rb":
		return true
	}
	return false
}

func scriptPath(dir, script string) string {
	if filepath.IsAbs(script) || dir == "" {
		return script
	}
	return filepath.Join(dir, script)
}
