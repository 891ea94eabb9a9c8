package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"slices"
	"syscall"
	"time"

	"github.com/hugo-lorenzo-mato/crashguard/internal/events"
	"github.com/hugo-lorenzo-mato/crashguard/internal/logging"
	"github.com/hugo-lorenzo-mato/crashguard/internal/snapshot"
)

// WatchdogConfig configures a Watchdog.
type WatchdogConfig struct {
	Timeout        time.Duration // zero waits forever
	Grace          time.Duration // between the termination request and the kill
	DumpDir        string        // scanned for snapshots the child leaves behind
	SampleInterval time.Duration
	Env            []string // added to the inherited environment
	Stdin          io.Reader
	Stdout         io.Writer
	Stderr         io.Writer
	Logger         *logging.Logger
	Events         *events.EventBus // optional; dump and exit events go to priority subscribers
}

// RunResult describes one supervised run.
type RunResult struct {
	ExitCode int
	TimedOut bool
	Duration time.Duration
	NewDumps []string
	Peak     *ProcessSample
}

// Watchdog runs a command under a deadline. When the deadline passes the
// child is asked to terminate and killed after the grace period.
type Watchdog struct {
	cfg    WatchdogConfig
	logger *logging.Logger
}

// NewWatchdog creates a watchdog.
func NewWatchdog(cfg WatchdogConfig) *Watchdog {
	if cfg.Grace <= 0 {
		cfg.Grace = 5 * time.Second
	}
	if cfg.DumpDir == "" {
		cfg.DumpDir = "crashdumps"
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	return &Watchdog{cfg: cfg, logger: cfg.Logger.WithComponent("watchdog")}
}

// Run starts name with args and waits for it. A non-zero exit is reported
// through the result, not as an error.
func (w *Watchdog) Run(ctx context.Context, name string, args ...string) (*RunResult, error) {
	before := w.dumps()

	runCtx := ctx
	if w.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.cfg.Timeout)
		defer cancel()
	}

	// #nosec G204 -- running the given command is the purpose of the watchdog
	cmd := exec.CommandContext(runCtx, name, args...)
	if len(w.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), w.cfg.Env...)
	}
	cmd.Stdin = w.cfg.Stdin
	cmd.Stdout = w.cfg.Stdout
	cmd.Stderr = w.cfg.Stderr
	cmd.Cancel = func() error { return terminate(cmd.Process) }
	cmd.WaitDelay = w.cfg.Grace

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", name, err)
	}
	pid := cmd.Process.Pid
	w.logger.Debug("child started", "pid", pid, "command", name)
	w.cfg.Events.Publish(events.NewChildStartedEvent(name, pid, name))

	monitor := NewProcessMonitor(pid, w.cfg.SampleInterval, 0, w.cfg.Logger)
	monitor.Start(runCtx)
	waitErr := cmd.Wait()
	monitor.Stop()

	res := &RunResult{
		Duration: time.Since(start),
		TimedOut: errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil,
	}
	if peak, ok := monitor.Peak(); ok {
		res.Peak = &peak
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
	case errors.As(waitErr, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	case res.TimedOut && errors.Is(waitErr, exec.ErrWaitDelay):
		res.ExitCode = -1
	default:
		return res, fmt.Errorf("waiting for %s: %w", name, waitErr)
	}

	if res.TimedOut {
		w.logger.Warn("child exceeded deadline", "timeout", w.cfg.Timeout, "exit_code", res.ExitCode)
		w.cfg.Events.Publish(events.NewChildTimedOutEvent(name, pid, w.cfg.Timeout))
	}
	for _, d := range w.dumps() {
		if !slices.Contains(before, d) {
			res.NewDumps = append(res.NewDumps, d)
			w.cfg.Events.PublishPriority(events.NewDumpDetectedEvent(name, d))
		}
	}
	w.cfg.Events.PublishPriority(events.NewChildExitedEvent(name, pid, res.ExitCode, res.Duration))
	return res, nil
}

func (w *Watchdog) dumps() []string {
	dumps, err := snapshot.List(w.cfg.DumpDir)
	if err != nil {
		return nil
	}
	return dumps
}

func terminate(p *os.Process) error {
	if runtime.GOOS == "windows" {
		return p.Kill()
	}
	return p.Signal(syscall.SIGTERM)
}
