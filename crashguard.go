package crashguard

import (
	"errors"
	"sync"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/crashguard/internal/fault"
	"github.com/hugo-lorenzo-mato/crashguard/internal/hooks"
	"github.com/hugo-lorenzo-mato/crashguard/internal/symbols"
)

type (
	// Kind classifies a fault.
	Kind = core.Kind
	// HookKind is one interception point; its value is a Mask bit.
	HookKind = core.HookKind
	// Mask selects hooks for Install. Zero selects all of them.
	Mask = core.Mask
	// Descriptor describes one fault occurrence.
	Descriptor = core.Descriptor
	// Artifact names the files written for one fault.
	Artifact = core.Artifact
	// FaultError is returned by Protect when a handler let execution continue.
	FaultError = core.FaultError
	// Detail selects how much a snapshot carries.
	Detail = core.Detail
)

const (
	KindUnknown         = core.KindUnknown
	KindTrap            = core.KindTrap
	KindUnhandled       = core.KindUnhandled
	KindPureCall        = core.KindPureCall
	KindAllocation      = core.KindAllocation
	KindBufferOverrun   = core.KindBufferOverrun
	KindInvalidArgument = core.KindInvalidArgument
	KindSigAbort        = core.KindSigAbort
	KindSigFPE          = core.KindSigFPE
	KindSigIll          = core.KindSigIll
	KindSigInt          = core.KindSigInt
	KindSigSegv         = core.KindSigSegv
	KindSigTerm         = core.KindSigTerm
	KindNonContinuable  = core.KindNonContinuable
	KindThrow           = core.KindThrow
	KindStackOverflow   = core.KindStackOverflow
)

const (
	HookTrap            = core.HookTrap
	HookUnhandled       = core.HookUnhandled
	HookPureCall        = core.HookPureCall
	HookAllocation      = core.HookAllocation
	HookBufferOverrun   = core.HookBufferOverrun
	HookInvalidArgument = core.HookInvalidArgument
	HookSigAbort        = core.HookSigAbort
	HookSigFPE          = core.HookSigFPE
	HookSigIll          = core.HookSigIll
	HookSigInt          = core.HookSigInt
	HookSigSegv         = core.HookSigSegv
	HookSigTerm         = core.HookSigTerm
)

const (
	DetailNormal = core.DetailNormal
	DetailFull   = core.DetailFull
)

var (
	// ErrSuppressed is returned when a fault arrives after report
	// generation was already attempted in this process.
	ErrSuppressed = core.ErrSuppressed
	// ErrInstalled is returned by Configure while hooks are installed.
	ErrInstalled = errors.New("crashguard: hooks are installed")
)

var (
	mu        sync.Mutex
	installed bool
	current   *diagnostics.Registry
)

// registry returns the configured registry, creating a default one on
// first use.
func registry() *diagnostics.Registry {
	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		current = diagnostics.New(diagnostics.Options{})
	}
	return current
}

// Configure replaces the settings used by the next Install. It fails while
// hooks are installed.
func Configure(opts ...Option) error {
	var o diagnostics.Options
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return err
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if installed {
		return ErrInstalled
	}
	current = diagnostics.New(o)
	return nil
}

// Install routes the hooks selected by mask to the fault pipeline. A zero
// mask installs every hook.
func Install(mask Mask) error {
	if err := mask.Validate(); err != nil {
		return err
	}
	r := registry()
	err := r.Install(mask)

	mu.Lock()
	installed = true
	mu.Unlock()
	return err
}

// Uninstall restores the handlers that were in place before Install.
func Uninstall() error {
	r := registry()
	err := r.Uninstall()

	mu.Lock()
	installed = false
	mu.Unlock()
	return err
}

// GenerateReport writes a snapshot and a report for d without a fault. A nil
// d describes the calling goroutine. The process keeps running unless
// d.Terminate is set.
func GenerateReport(d *Descriptor) error {
	if d == nil {
		d = &Descriptor{Kind: KindUnknown, Value: "manual report"}
	}
	if d.Context == nil {
		d.Context = fault.Capture(1)
	}
	return registry().GenerateReport(d)
}

// EmulateFault raises a fault of kind through the installed hooks. For
// kinds other than signals it returns only when the report callback
// continued execution.
func EmulateFault(kind Kind) error {
	return diagnostics.Emulate(kind)
}

// ContinueExecution lets the code that faulted carry on once the report is
// written. Call it from the WithOnReport callback.
func ContinueExecution() {
	registry().ContinueExecution()
}

// Protect runs fn and routes a panic it raises, or a memory fault while the
// trap hook is installed, to the matching hook. It returns a *FaultError
// when the handler let execution continue.
func Protect(fn func()) error {
	return hooks.Protect(fn)
}

// Go runs fn on a new goroutine under Protect.
func Go(fn func()) {
	hooks.Go(fn, nil)
}

// Require reports a contract violation through the invalid-argument hook
// when cond is false. The report names the caller of Require.
func Require(cond bool, expr string) error {
	return hooks.RequireAt(cond, expr, 1)
}

// Annotate exposes *ptr as a local variable of the calling function in
// fault reports until release is called.
func Annotate(name string, ptr any) (release func()) {
	return symbols.Default.Annotate(1, name, ptr, core.VarLocal)
}

// AnnotateParam is Annotate for a function parameter.
func AnnotateParam(name string, ptr any) (release func()) {
	return symbols.Default.Annotate(1, name, ptr, core.VarParam)
}
