package config

import (
	"time"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
)

// Config holds all crashguard configuration.
type Config struct {
	Log         LogConfig         `mapstructure:"log"`
	Hooks       []string          `mapstructure:"hooks"`
	Artifact    ArtifactConfig    `mapstructure:"artifact"`
	Report      ReportConfig      `mapstructure:"report"`
	FatalOutput FatalOutputConfig `mapstructure:"fatal_output"`
	Watchdog    WatchdogConfig    `mapstructure:"watchdog"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// ArtifactConfig configures where and how fault artifacts are written.
type ArtifactConfig struct {
	Dir               string `mapstructure:"dir"`
	AppName           string `mapstructure:"app_name"`
	MaxFiles          int    `mapstructure:"max_files"`
	Detail            string `mapstructure:"detail"`
	ReportMode        string `mapstructure:"report_mode"`
	IncludeEnv        bool   `mapstructure:"include_env"`
	IncludeGoroutines bool   `mapstructure:"include_goroutines"`
}

// ReportConfig configures the text report.
type ReportConfig struct {
	MaxDepth   int  `mapstructure:"max_depth"`
	Skip       int  `mapstructure:"skip"`
	SystemInfo bool `mapstructure:"system_info"`
}

// FatalOutputConfig configures the fatal runtime output file.
type FatalOutputConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// WatchdogConfig configures `crashguard run`.
type WatchdogConfig struct {
	Timeout string `mapstructure:"timeout"`
	Grace   string `mapstructure:"grace"`
}

// Mask resolves the configured hook names. An empty list selects every hook.
func (c *Config) Mask() (core.Mask, error) {
	return core.ParseMask(c.Hooks)
}

// TimeoutDuration parses the watchdog timeout. Invalid values yield zero.
func (w WatchdogConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(w.Timeout)
	return d
}

// GraceDuration parses the watchdog grace period. Invalid values yield zero.
func (w WatchdogConfig) GraceDuration() time.Duration {
	d, _ := time.ParseDuration(w.Grace)
	return d
}
