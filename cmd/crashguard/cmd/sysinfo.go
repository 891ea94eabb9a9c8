package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/report"
	"github.com/hugo-lorenzo-mato/crashguard/internal/sysinfo"
)

var sysinfoCmd = &cobra.Command{
	Use:   "sysinfo",
	Short: "Print the host description used in fault reports",
	Args:  cobra.NoArgs,
	RunE:  runSysinfo,
}

var (
	sysinfoFormat  string
	sysinfoTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(sysinfoCmd)
	sysinfoCmd.Flags().StringVarP(&sysinfoFormat, "format", "f", core.OutputText, "Output format: text | json | yaml")
	sysinfoCmd.Flags().DurationVar(&sysinfoTimeout, "timeout", 5*time.Second, "Probe deadline")
}

func runSysinfo(cmd *cobra.Command, _ []string) error {
	if err := validateFormat(sysinfoFormat); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), sysinfoTimeout)
	defer cancel()

	info, err := sysinfo.New(logger).Collect(ctx)
	if info == nil {
		return err
	}
	if err != nil {
		logger.Warn("system probe incomplete", "error", err)
	}

	if sysinfoFormat != core.OutputText {
		return encode(out, sysinfoFormat, info)
	}
	report.WriteSystemInfo(out, info)
	for _, e := range info.Errors {
		warnColor.Fprintf(out, "probe %s\n", e)
	}
	return nil
}
