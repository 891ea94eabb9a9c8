package core

import (
	"context"
	"io"
	"time"
)

// =============================================================================
// Symbol Provider Port
// =============================================================================

// SymbolProvider maps a captured context to frames, names, source positions,
// locals and a binary snapshot. A session spans one report build and is used
// by one goroutine at a time.
type SymbolProvider interface {
	// Initialize opens a session. Calling it twice without Cleanup fails.
	Initialize() error

	// Cleanup closes the session. Safe to call when no session is open.
	Cleanup() error

	// Unwind advances cur to the next frame of ctx. It returns false when no
	// further frame can be produced.
	Unwind(ctx *Context, cur *FrameCursor) bool

	// SymbolFromAddr resolves the function containing pc and the
	// displacement of pc from its entry.
	SymbolFromAddr(pc uintptr) (name string, offset uintptr, ok bool)

	// LineFromAddr resolves the source position of pc.
	LineFromAddr(pc uintptr) (file string, line int, ok bool)

	// Locals enumerates parameters and locals visible in frame.
	Locals(ctx *Context, frame StackFrame) ([]Variable, error)

	// Memory returns the reader used to dereference variables.
	Memory() MemoryReader

	// ModuleFromAddr resolves the module owning addr.
	ModuleFromAddr(addr uintptr) (string, error)

	// WriteSnapshot serializes a process snapshot referencing req.Context.
	WriteSnapshot(w io.Writer, req SnapshotRequest) error
}

// MemoryReader reads process memory without faulting.
type MemoryReader interface {
	// Read returns n bytes at addr, or an error if any byte is unreadable.
	Read(addr uintptr, n int) ([]byte, error)
}

// Detail selects how much a snapshot carries.
type Detail string

const (
	DetailNormal Detail = "normal"
	DetailFull   Detail = "full"
)

// SnapshotRequest carries what a snapshot references.
type SnapshotRequest struct {
	ID         string
	App        string
	Descriptor *Descriptor
	Context    *Context
	Detail     Detail
	IncludeEnv bool
	CreatedAt  time.Time
}

// =============================================================================
// System Probe Port
// =============================================================================

// SystemInfo is the host description printed at the end of a report.
type SystemInfo struct {
	CPUModel        string
	CPUCount        int
	PhysicalCores   int
	TotalMemory     uint64
	AvailableMemory uint64
	CommitLimit     uint64
	OS              string
	Platform        string
	KernelVersion   string
	Arch            string
	Hostname        string
	DiskPath        string
	DiskTotal       uint64
	DiskFree        uint64
	LoadAvg         []float64 // 1, 5 and 15 minute averages; nil when unavailable
	Errors          []string  // probes that failed
}

// SystemProbe collects SystemInfo.
type SystemProbe interface {
	Collect(ctx context.Context) (*SystemInfo, error)
}
