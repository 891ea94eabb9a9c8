package diagnostics

import (
	"github.com/hugo-lorenzo-mato/crashguard/internal/config"
	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/logging"
	"github.com/hugo-lorenzo-mato/crashguard/internal/report"
)

// OptionsFromConfig maps a validated configuration onto registry options.
// The logger writes to stderr at the configured level and format.
func OptionsFromConfig(cfg *config.Config) Options {
	mode, err := report.ParseMode(cfg.Artifact.ReportMode)
	if err != nil {
		mode = report.ModeAlongside
	}
	return Options{
		App:               cfg.Artifact.AppName,
		Dir:               cfg.Artifact.Dir,
		MaxFiles:          cfg.Artifact.MaxFiles,
		Detail:            core.Detail(cfg.Artifact.Detail),
		ReportMode:        mode,
		IncludeEnv:        cfg.Artifact.IncludeEnv,
		IncludeGoroutines: cfg.Artifact.IncludeGoroutines,
		FatalOutput:       cfg.FatalOutput.Enabled,
		Report: report.Config{
			MaxDepth:   cfg.Report.MaxDepth,
			Skip:       cfg.Report.Skip,
			SystemInfo: cfg.Report.SystemInfo,
		},
		Logger: logging.New(logging.Config{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			File:   cfg.Log.File,
		}),
	}
}

// WatchdogFromConfig maps the watchdog and artifact settings onto a
// WatchdogConfig.
func WatchdogFromConfig(cfg *config.Config, logger *logging.Logger) WatchdogConfig {
	return WatchdogConfig{
		Timeout: cfg.Watchdog.TimeoutDuration(),
		Grace:   cfg.Watchdog.GraceDuration(),
		DumpDir: cfg.Artifact.Dir,
		Logger:  logger,
	}
}
