package core

import "slices"

// Log levels
const (
	LogDebug = "debug"
	LogInfo  = "info"
	LogWarn  = "warn"
	LogError = "error"
)

// LogLevels is the ordered list of log levels.
var LogLevels = []string{LogDebug, LogInfo, LogWarn, LogError}

// Log formats
const (
	LogFormatAuto = "auto"
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// LogFormats is the ordered list of log formats.
var LogFormats = []string{LogFormatAuto, LogFormatText, LogFormatJSON}

// Details is the ordered list of snapshot detail levels.
var Details = []string{string(DetailNormal), string(DetailFull)}

// Report modes
const (
	ReportModeAlongside = "alongside"
	ReportModeAppend    = "append"
)

// ReportModes is the ordered list of report sink modes.
var ReportModes = []string{ReportModeAlongside, ReportModeAppend}

// Inspect output formats
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// OutputFormats is the ordered list of inspect output formats.
var OutputFormats = []string{OutputText, OutputJSON, OutputYAML}

// IsValidLogLevel checks if the given log level is known.
func IsValidLogLevel(level string) bool {
	return slices.Contains(LogLevels, level)
}

// IsValidLogFormat checks if the given log format is known.
func IsValidLogFormat(format string) bool {
	return slices.Contains(LogFormats, format)
}

// IsValidDetail checks if the given snapshot detail level is known.
func IsValidDetail(detail string) bool {
	return slices.Contains(Details, detail)
}

// IsValidReportMode checks if the given report mode is known.
func IsValidReportMode(mode string) bool {
	return slices.Contains(ReportModes, mode)
}

// IsValidOutputFormat checks if the given inspect format is known.
func IsValidOutputFormat(format string) bool {
	return slices.Contains(OutputFormats, format)
}
