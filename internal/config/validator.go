package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.validateLog(&cfg.Log)
	v.validateHooks(cfg.Hooks)
	v.validateArtifact(&cfg.Artifact)
	v.validateReport(&cfg.Report)
	v.validateWatchdog(&cfg.Watchdog)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

// Errors returns the collected validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: msg,
	})
}

func (v *Validator) validateLog(cfg *LogConfig) {
	if !core.IsValidLogLevel(cfg.Level) {
		v.addError("log.level", cfg.Level, "must be one of: "+strings.Join(core.LogLevels, ", "))
	}

	if !core.IsValidLogFormat(cfg.Format) {
		v.addError("log.format", cfg.Format, "must be one of: "+strings.Join(core.LogFormats, ", "))
	}

	if cfg.File != "" && !isValidPath(cfg.File) {
		v.addError("log.file", cfg.File, "invalid file path")
	}
}

func (v *Validator) validateHooks(hooks []string) {
	for _, name := range hooks {
		if _, err := core.ParseMask([]string{name}); err != nil {
			v.addError("hooks", name, "unknown hook")
		}
	}
}

func (v *Validator) validateArtifact(cfg *ArtifactConfig) {
	if cfg.Dir == "" {
		v.addError("artifact.dir", cfg.Dir, "directory required")
	} else if !isValidPath(cfg.Dir) {
		v.addError("artifact.dir", cfg.Dir, "invalid directory path")
	}

	if cfg.AppName != "" && core.SanitizeAppName(cfg.AppName) != cfg.AppName {
		v.addError("artifact.app_name", cfg.AppName, "must be a plain name of letters, digits and dashes")
	}

	if cfg.MaxFiles < 0 {
		v.addError("artifact.max_files", cfg.MaxFiles, "must be non-negative")
	}

	if !core.IsValidDetail(cfg.Detail) {
		v.addError("artifact.detail", cfg.Detail, "must be one of: "+strings.Join(core.Details, ", "))
	}

	if !core.IsValidReportMode(cfg.ReportMode) {
		v.addError("artifact.report_mode", cfg.ReportMode, "must be one of: "+strings.Join(core.ReportModes, ", "))
	}
}

func (v *Validator) validateReport(cfg *ReportConfig) {
	if cfg.MaxDepth <= 0 || cfg.MaxDepth > 1024 {
		v.addError("report.max_depth", cfg.MaxDepth, "must be between 1 and 1024")
	}

	if cfg.Skip < 0 {
		v.addError("report.skip", cfg.Skip, "must be non-negative")
	}
}

func (v *Validator) validateWatchdog(cfg *WatchdogConfig) {
	for field, value := range map[string]string{
		"watchdog.timeout": cfg.Timeout,
		"watchdog.grace":   cfg.Grace,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			v.addError(field, value, "invalid duration format")
			continue
		}
		if d < 0 {
			v.addError(field, value, "must be non-negative")
		}
	}
}

func isValidPath(path string) bool {
	dir := filepath.Dir(path)
	_, err := os.Stat(dir)
	return err == nil || os.IsNotExist(err)
}

// ValidateConfig is a convenience function that creates a validator and validates config.
func ValidateConfig(cfg *Config) error {
	v := NewValidator()
	return v.Validate(cfg)
}
