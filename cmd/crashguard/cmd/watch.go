package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/crashguard/internal/snapshot"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print a summary of each new dump as it is written",
	Long: `Watch the artifact directory and print a one-line summary of every new
.dmp file once it has been completely written. Stops on interrupt.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var watchSettle time.Duration

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchSettle, "settle", snapshot.DefaultSettle, "Quiet period before a new dump is read")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	dir := cfg.Artifact.Dir
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	w, err := snapshot.NewWatcher(dir, watchSettle)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !quiet {
		fmt.Fprintf(out, "Watching %s for dumps (Ctrl+C to stop)\n", pathColor.Sprint(dir))
	}
	return w.Run(ctx, summarizeDump)
}

func summarizeDump(path string) {
	dump, err := snapshot.Open(path)
	if err != nil {
		warnColor.Fprintf(out, "%s  unreadable: %v\n", filepath.Base(path), err)
		return
	}
	s := dump.Snapshot
	top := "<no frames>"
	if len(s.Frames) > 0 && s.Frames[0].Function != "" {
		top = s.Frames[0].Function
	}
	fmt.Fprintf(out, "%s  %s  %s  pid %d  %s\n",
		s.CreatedAt.Local().Format("15:04:05"),
		faultColor.Sprintf("%-16s", s.Kind),
		s.App, s.PID, dimColor.Sprint(top))
	if !quiet {
		fmt.Fprintf(out, "          %s\n", pathColor.Sprint(path))
	}
}
