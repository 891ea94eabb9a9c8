package core

import (
	"fmt"
	"time"
)

// Context is the captured execution state at the faulting point. PCs[0] is
// the faulting function; the slice comes from runtime.Callers.
type Context struct {
	PCs         []uintptr
	GoroutineID uint64
	ThreadID    int
	CapturedAt  time.Time
	Goroutines  []byte // all-goroutine stack text, when captured
}

// PC returns the faulting program counter, or zero for an empty context.
func (c *Context) PC() uintptr {
	if c == nil || len(c.PCs) == 0 {
		return 0
	}
	return c.PCs[0]
}

// Empty reports whether the context carries no frames.
func (c *Context) Empty() bool {
	return c == nil || len(c.PCs) == 0
}

// ContractViolation details an invalid-argument fault.
type ContractViolation struct {
	Expression string
	Function   string
	File       string
	Line       int
}

func (v *ContractViolation) Error() string {
	return fmt.Sprintf("contract violation: %s in %s at %s:%d", v.Expression, v.Function, v.File, v.Line)
}

// Descriptor is the immutable record of one fault occurrence.
type Descriptor struct {
	Kind      Kind
	Context   *Context // nil for signal kinds; synthesized by dispatch
	Code      Code
	SubCode   FPESubCode
	FaultAddr uintptr
	HasAddr   bool
	Access    Access
	Contract  *ContractViolation
	Signal    string // signal name for signal kinds
	Value     string // panic value or error text
	Manual    bool

	// Terminate requests the terminate disposition on the manual path.
	Terminate bool
}

// Summary returns a one-line description used in logs.
func (d *Descriptor) Summary() string {
	if d == nil {
		return "<nil descriptor>"
	}
	s := d.Kind.Description()
	if d.Value != "" {
		s += ": " + d.Value
	}
	return s
}

// Panic values used by fault injection for the synthetic kinds.

// NonContinuable is raised to emulate a noncontinuable software exception.
type NonContinuable struct{}

func (NonContinuable) Error() string { return "noncontinuable software exception" }

// Thrown is raised to emulate a typed throw that has no handler.
type Thrown struct {
	Type  string
	Value any
}

func (t *Thrown) Error() string {
	return fmt.Sprintf("unhandled throw of %s: %v", t.Type, t.Value)
}

// StackExhausted is raised when a recursion budget runs out.
type StackExhausted struct {
	Depth int
}

func (s *StackExhausted) Error() string {
	return fmt.Sprintf("stack exhausted at depth %d", s.Depth)
}

// FaultError is returned from a guarded call whose fault was dispatched and
// whose disposition was to continue. Err holds the dispatch result.
type FaultError struct {
	Descriptor *Descriptor
	Err        error
}

func (e *FaultError) Error() string {
	if e.Err != nil {
		return "fault dispatched: " + e.Descriptor.Summary() + ": " + e.Err.Error()
	}
	return "fault dispatched: " + e.Descriptor.Summary()
}

func (e *FaultError) Unwrap() error {
	return e.Err
}
