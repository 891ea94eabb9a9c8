package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/crashguard/internal/events"
)

// signalWait bounds how long emulate waits for an asynchronous signal to be
// reported.
const signalWait = 5 * time.Second

var emulateCmd = &cobra.Command{
	Use:   "emulate [kind]",
	Short: "Raise a fault of the given kind through the installed hooks",
	Long: `Install the configured hooks, raise one fault of the given kind and let
the pipeline write its snapshot and report. The process exits with status 1
as a real fault would, unless --continue is given.

Run with --list to see the available kinds.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEmulate,
}

var (
	emulateList     bool
	emulateContinue bool

	// read by the report callback
	registryForEmulate *diagnostics.Registry
)

func init() {
	rootCmd.AddCommand(emulateCmd)
	emulateCmd.Flags().BoolVar(&emulateList, "list", false, "List fault kinds")
	emulateCmd.Flags().BoolVar(&emulateContinue, "continue", false, "Keep running after the report is written")
}

func runEmulate(_ *cobra.Command, args []string) error {
	if emulateList || len(args) == 0 {
		listKinds()
		return nil
	}

	kind, err := core.ParseKind(args[0])
	if err != nil {
		return err
	}

	bus := events.New(10)
	defer bus.Close()
	written := bus.Subscribe(events.TypeArtifactWritten)

	opts := diagnostics.OptionsFromConfig(cfg)
	opts.Logger = logger
	opts.Events = bus
	opts.OnReport = func(a *core.Artifact) {
		printArtifact(a)
		if emulateContinue {
			registryForEmulate.ContinueExecution()
		}
	}
	registryForEmulate = diagnostics.New(opts)

	mask, err := cfg.Mask()
	if err != nil {
		return err
	}
	if !mask.Has(kind.Hook()) {
		warnColor.Fprintf(out, "hook %s is not in the configured hooks; the fault takes its default course\n", kind.Hook())
	}
	if err := registryForEmulate.Install(mask); err != nil {
		return err
	}
	defer func() { _ = registryForEmulate.Uninstall() }()

	err = diagnostics.Emulate(kind)
	if kind.IsSignal() && err == nil {
		select {
		case <-written:
		case <-time.After(signalWait):
			return fmt.Errorf("%s was not reported within %s", kind, signalWait)
		}
		return nil
	}

	var fe *core.FaultError
	if errors.As(err, &fe) {
		// The handler returned: the report was written and execution continued.
		return nil
	}
	return err
}

func listKinds() {
	headerColor.Fprintf(out, "%-18s %-18s %s\n", "KIND", "HOOK", "DESCRIPTION")
	for _, k := range core.AllKinds() {
		fmt.Fprintf(out, "%-18s %-18s %s\n", k, k.Hook(), dimColor.Sprint(k.Description()))
	}
}

func printArtifact(a *core.Artifact) {
	if quiet {
		if a.SnapshotPath != "" {
			fmt.Fprintln(out, a.SnapshotPath)
		}
		return
	}
	faultColor.Fprintf(out, "Fault: %s (%s)\n", a.Kind, a.Kind.Description())
	if a.SnapshotPath != "" {
		fmt.Fprintf(out, "Snapshot: %s\n", pathColor.Sprint(a.SnapshotPath))
	}
	if a.ReportPath != "" {
		fmt.Fprintf(out, "Report:   %s\n", pathColor.Sprint(a.ReportPath))
	}
	for _, err := range a.Errors {
		warnColor.Fprintf(out, "degraded: %v\n", err)
	}
}
