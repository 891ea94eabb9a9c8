package events

import "time"

// Event type constants for supervised runs.
const (
	TypeChildStarted  = "child_started"
	TypeChildExited   = "child_exited"
	TypeChildTimedOut = "child_timed_out"
	TypeDumpDetected  = "dump_detected"
)

// ChildStartedEvent is emitted when a supervised command starts.
type ChildStartedEvent struct {
	BaseEvent
	PID     int    `json:"pid"`
	Command string `json:"command"`
}

// NewChildStartedEvent creates a new child started event.
func NewChildStartedEvent(app string, pid int, command string) ChildStartedEvent {
	return ChildStartedEvent{
		BaseEvent: NewBaseEvent(TypeChildStarted, app),
		PID:       pid,
		Command:   command,
	}
}

// ChildExitedEvent is emitted when a supervised command ends. TimedOut
// runs emit a ChildTimedOutEvent first.
type ChildExitedEvent struct {
	BaseEvent
	PID      int           `json:"pid"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
}

// NewChildExitedEvent creates a new child exited event.
func NewChildExitedEvent(app string, pid, exitCode int, duration time.Duration) ChildExitedEvent {
	return ChildExitedEvent{
		BaseEvent: NewBaseEvent(TypeChildExited, app),
		PID:       pid,
		ExitCode:  exitCode,
		Duration:  duration,
	}
}

// ChildTimedOutEvent is emitted when the watchdog deadline passes.
type ChildTimedOutEvent struct {
	BaseEvent
	PID     int           `json:"pid"`
	Timeout time.Duration `json:"timeout"`
}

// NewChildTimedOutEvent creates a new child timed out event.
func NewChildTimedOutEvent(app string, pid int, timeout time.Duration) ChildTimedOutEvent {
	return ChildTimedOutEvent{
		BaseEvent: NewBaseEvent(TypeChildTimedOut, app),
		PID:       pid,
		Timeout:   timeout,
	}
}

// DumpDetectedEvent is emitted for each snapshot a supervised run left.
type DumpDetectedEvent struct {
	BaseEvent
	Path string `json:"path"`
}

// NewDumpDetectedEvent creates a new dump detected event.
func NewDumpDetectedEvent(app, path string) DumpDetectedEvent {
	return DumpDetectedEvent{
		BaseEvent: NewBaseEvent(TypeDumpDetected, app),
		Path:      path,
	}
}
