package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/crashguard/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/crashguard/internal/events"
	"github.com/hugo-lorenzo-mato/crashguard/internal/sysinfo"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- command [args...]",
	Short: "Run a command under a watchdog",
	Long: `Run a command, relay its exit status and list any dumps it left in the
artifact directory. With --timeout the command is asked to terminate when
the deadline passes and killed after the grace period.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

var (
	runTimeout time.Duration
	runGrace   time.Duration
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Deadline for the command (default: watchdog.timeout)")
	runCmd.Flags().DurationVar(&runGrace, "grace", 0, "Time between terminate and kill (default: watchdog.grace)")
}

func runRun(cmd *cobra.Command, args []string) error {
	wcfg := diagnostics.WatchdogFromConfig(cfg, logger)
	if cmd.Flags().Changed("timeout") {
		wcfg.Timeout = runTimeout
	}
	if cmd.Flags().Changed("grace") {
		wcfg.Grace = runGrace
	}
	wcfg.Stdin = os.Stdin
	wcfg.Stdout = os.Stdout
	wcfg.Stderr = os.Stderr

	bus := events.New(0)
	wcfg.Events = bus
	notices := bus.SubscribePriority()
	done := make(chan struct{})
	go func() {
		defer close(done)
		printRunEvents(notices)
	}()

	res, err := diagnostics.NewWatchdog(wcfg).Run(cmd.Context(), args[0], args[1:]...)
	bus.Close()
	<-done
	if err != nil {
		return err
	}

	if !quiet {
		status := fmt.Sprintf("exit status %d", res.ExitCode)
		if res.TimedOut {
			status = warnColor.Sprintf("timed out after %s", wcfg.Timeout)
		}
		fmt.Fprintf(errOut, "%s %s in %s\n", headerColor.Sprint("crashguard:"), status, res.Duration.Round(time.Millisecond))
		if res.Peak != nil {
			fmt.Fprintf(errOut, "%s peak rss %s, %d threads\n", headerColor.Sprint("crashguard:"),
				sysinfo.FormatSize(res.Peak.RSS), res.Peak.NumThreads)
		}
	}

	if res.ExitCode != 0 {
		return &ExitError{Code: res.ExitCode}
	}
	return nil
}

// printRunEvents drains the watchdog's priority events until the bus closes.
// The watchdog blocks on this channel, so it is read even when quiet.
func printRunEvents(ch <-chan events.Event) {
	for e := range ch {
		if quiet {
			continue
		}
		switch e := e.(type) {
		case events.DumpDetectedEvent:
			fmt.Fprintf(errOut, "%s new dump %s\n", faultColor.Sprint("crashguard:"), pathColor.Sprint(e.Path))
		case events.ChildExitedEvent:
			logger.Debug("child exited", "pid", e.PID, "exit_code", e.ExitCode)
		}
	}
}
