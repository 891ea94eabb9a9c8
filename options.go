package crashguard

import (
	"fmt"
	"log/slog"

	"github.com/hugo-lorenzo-mato/crashguard/internal/config"
	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/crashguard/internal/logging"
	"github.com/hugo-lorenzo-mato/crashguard/internal/report"
)

// Option adjusts the configuration applied by Configure.
type Option func(*diagnostics.Options) error

// WithDir sets the artifact directory.
func WithDir(dir string) Option {
	return func(o *diagnostics.Options) error {
		o.Dir = dir
		return nil
	}
}

// WithAppName sets the name used in artifact file names.
func WithAppName(app string) Option {
	return func(o *diagnostics.Options) error {
		o.App = app
		return nil
	}
}

// WithLogger routes crashguard's own logging through l.
func WithLogger(l *slog.Logger) Option {
	return func(o *diagnostics.Options) error {
		o.Logger = logging.FromSlog(l)
		return nil
	}
}

// WithDetail selects how much the snapshot carries.
func WithDetail(d Detail) Option {
	return func(o *diagnostics.Options) error {
		if !core.IsValidDetail(string(d)) {
			return core.ErrCallerError(core.CodeInvalidConfig, fmt.Sprintf("unknown detail %q", d))
		}
		o.Detail = d
		return nil
	}
}

// WithReportMode selects "alongside" or "append" report output.
func WithReportMode(mode string) Option {
	return func(o *diagnostics.Options) error {
		m, err := report.ParseMode(mode)
		if err != nil {
			return err
		}
		o.ReportMode = m
		return nil
	}
}

// WithMaxFiles bounds the number of retained snapshots. Zero keeps all.
func WithMaxFiles(n int) Option {
	return func(o *diagnostics.Options) error {
		o.MaxFiles = n
		return nil
	}
}

// WithSystemInfo toggles the hardware and operating system sections.
func WithSystemInfo(enabled bool) Option {
	return func(o *diagnostics.Options) error {
		o.Report.SystemInfo = enabled
		return nil
	}
}

// WithStackDepth bounds the number of frames in the report.
func WithStackDepth(depth int) Option {
	return func(o *diagnostics.Options) error {
		o.Report.MaxDepth = depth
		return nil
	}
}

// WithFatalOutput sends unrecoverable runtime failures to <app>_fatal.log
// while hooks are installed.
func WithFatalOutput(enabled bool) Option {
	return func(o *diagnostics.Options) error {
		o.FatalOutput = enabled
		return nil
	}
}

// WithOnReport sets the callback run after the artifacts are written. It
// may call ContinueExecution.
func WithOnReport(fn func(*Artifact)) Option {
	return func(o *diagnostics.Options) error {
		o.OnReport = fn
		return nil
	}
}

// WithConfigFile loads settings from a YAML file. An empty path searches
// .crashguard.yaml and the user configuration, with CRASHGUARD_*
// environment overrides. Options after it override the file; options
// before it are replaced, except the logger and the report callback.
func WithConfigFile(path string) Option {
	return func(o *diagnostics.Options) error {
		loader := config.NewLoader()
		if path != "" {
			loader.WithConfigFile(path)
		}
		cfg, err := loader.Load()
		if err != nil {
			return err
		}
		if err := config.ValidateConfig(cfg); err != nil {
			return err
		}
		keep := *o
		*o = diagnostics.OptionsFromConfig(cfg)
		if keep.Logger != nil {
			o.Logger = keep.Logger
		}
		o.OnReport = keep.OnReport
		return nil
	}
}
