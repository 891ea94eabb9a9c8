package events

import "time"

// Event type constants for fault dispatch.
const (
	TypeFaultIntercepted = "fault_intercepted"
	TypeFaultSuppressed  = "fault_suppressed"
	TypeArtifactWritten  = "artifact_written"
)

// FaultInterceptedEvent is emitted when a dispatch enters report generation.
type FaultInterceptedEvent struct {
	BaseEvent
	ArtifactID string `json:"artifact_id"`
	Kind       string `json:"kind"`
	Summary    string `json:"summary"`
	Manual     bool   `json:"manual"`
}

// NewFaultInterceptedEvent creates a new fault intercepted event.
func NewFaultInterceptedEvent(app, artifactID, kind, summary string, manual bool) FaultInterceptedEvent {
	return FaultInterceptedEvent{
		BaseEvent:  NewBaseEvent(TypeFaultIntercepted, app),
		ArtifactID: artifactID,
		Kind:       kind,
		Summary:    summary,
		Manual:     manual,
	}
}

// FaultSuppressedEvent is emitted when the recursion guard rejects a fault.
type FaultSuppressedEvent struct {
	BaseEvent
	Kind    string `json:"kind"`
	Attempt int64  `json:"attempt"`
}

// NewFaultSuppressedEvent creates a new fault suppressed event.
func NewFaultSuppressedEvent(app, kind string, attempt int64) FaultSuppressedEvent {
	return FaultSuppressedEvent{
		BaseEvent: NewBaseEvent(TypeFaultSuppressed, app),
		Kind:      kind,
		Attempt:   attempt,
	}
}

// ArtifactWrittenEvent is emitted once the snapshot and report steps ran.
// Errors lists the steps that degraded.
type ArtifactWrittenEvent struct {
	BaseEvent
	ArtifactID   string        `json:"artifact_id"`
	Kind         string        `json:"kind"`
	SnapshotPath string        `json:"snapshot_path,omitempty"`
	ReportPath   string        `json:"report_path,omitempty"`
	Duration     time.Duration `json:"duration"`
	Errors       []string      `json:"errors,omitempty"`
}

// NewArtifactWrittenEvent creates a new artifact written event.
func NewArtifactWrittenEvent(app, artifactID, kind, snapshotPath, reportPath string, duration time.Duration, errs []string) ArtifactWrittenEvent {
	return ArtifactWrittenEvent{
		BaseEvent:    NewBaseEvent(TypeArtifactWritten, app),
		ArtifactID:   artifactID,
		Kind:         kind,
		SnapshotPath: snapshotPath,
		ReportPath:   reportPath,
		Duration:     duration,
		Errors:       errs,
	}
}
