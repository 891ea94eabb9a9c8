// Package fault maps raw runtime notifications (recovered panic values and
// OS signals) to fault descriptors, and captures the execution context at
// the faulting point. Everything here is stateless.
package fault

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"syscall"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
)

// addresser is implemented by runtime errors raised with a known faulting
// address (see runtime/debug.SetPanicOnFault).
type addresser interface {
	Addr() uintptr
}

// Classify maps a recovered panic value to a descriptor. The returned
// descriptor carries no context.
func Classify(v any) *core.Descriptor {
	d := &core.Descriptor{Value: valueText(v)}

	switch x := v.(type) {
	case core.NonContinuable, *core.NonContinuable:
		d.Kind = core.KindNonContinuable
		d.Code = core.CodeNonContinuable
	case *core.Thrown:
		d.Kind = core.KindThrow
		d.Code = core.CodeTypedThrow
	case *core.StackExhausted:
		d.Kind = core.KindStackOverflow
		d.Code = core.CodeStackOverflow
	case *core.ContractViolation:
		d.Kind = core.KindInvalidArgument
		d.Code = core.CodeInvalidParameter
		d.Contract = x
	case *runtime.TypeAssertionError:
		d.Kind = core.KindPureCall
	case runtime.Error:
		classifyRuntime(x, d)
	case error:
		// Wrapped synthetic values still classify by their innermost type.
		var thrown *core.Thrown
		var exhausted *core.StackExhausted
		var violation *core.ContractViolation
		switch {
		case errors.As(x, &thrown):
			return withValue(Classify(thrown), d.Value)
		case errors.As(x, &exhausted):
			return withValue(Classify(exhausted), d.Value)
		case errors.As(x, &violation):
			return withValue(Classify(violation), d.Value)
		}
		d.Kind = core.KindUnhandled
	default:
		d.Kind = core.KindUnhandled
	}
	return d
}

func withValue(d *core.Descriptor, value string) *core.Descriptor {
	d.Value = value
	return d
}

func classifyRuntime(err runtime.Error, d *core.Descriptor) {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "index out of range"),
		strings.Contains(msg, "slice bounds out of range"):
		d.Kind = core.KindBufferOverrun
		d.Code = core.CodeArrayBoundsExceeded
	case strings.Contains(msg, "makeslice"),
		strings.Contains(msg, "makechan"),
		strings.Contains(msg, "growslice"),
		strings.Contains(msg, "out of memory"):
		d.Kind = core.KindAllocation
		d.Code = core.CodeNoMemory
	case strings.Contains(msg, "hash of unhashable type"),
		strings.Contains(msg, "comparing uncomparable type"):
		d.Kind = core.KindPureCall
	case strings.Contains(msg, "integer divide by zero"):
		d.Kind = core.KindTrap
		d.Code = core.CodeIntDivideByZero
		d.SubCode = core.FPEIntDivide
	case strings.Contains(msg, "integer overflow"):
		d.Kind = core.KindTrap
		d.Code = core.CodeIntOverflow
		d.SubCode = core.FPEIntOverflow
	default:
		d.Kind = core.KindTrap
		d.Code = core.CodeAccessViolation
		if a, ok := err.(addresser); ok {
			d.FaultAddr = a.Addr()
			d.HasAddr = true
		} else if strings.Contains(msg, "nil pointer dereference") {
			// Without an address the fault lies in the guard page at zero.
			d.HasAddr = true
		}
	}
}

func valueText(v any) string {
	switch x := v.(type) {
	case nil:
		return "<nil>"
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	case string:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}

var signalKinds = map[syscall.Signal]core.Kind{
	syscall.SIGABRT: core.KindSigAbort,
	syscall.SIGFPE:  core.KindSigFPE,
	syscall.SIGILL:  core.KindSigIll,
	syscall.SIGINT:  core.KindSigInt,
	syscall.SIGSEGV: core.KindSigSegv,
	syscall.SIGTERM: core.KindSigTerm,
}

var signalNames = map[core.Kind]string{
	core.KindSigAbort: "SIGABRT",
	core.KindSigFPE:   "SIGFPE",
	core.KindSigIll:   "SIGILL",
	core.KindSigInt:   "SIGINT",
	core.KindSigSegv:  "SIGSEGV",
	core.KindSigTerm:  "SIGTERM",
}

// FromSignal maps a delivered signal to a descriptor. Unknown signals map
// to KindUnknown.
func FromSignal(sig os.Signal) *core.Descriptor {
	d := &core.Descriptor{Kind: core.KindUnknown, Value: sig.String()}
	s, ok := sig.(syscall.Signal)
	if !ok {
		return d
	}
	if kind, ok := signalKinds[s]; ok {
		d.Kind = kind
		d.Signal = signalNames[kind]
	}
	if d.Kind == core.KindSigFPE {
		// Asynchronously delivered signals carry no si_code.
		d.SubCode = core.FPEUnknown
	}
	return d
}

// SignalFor returns the OS signal backing a signal kind or hook.
func SignalFor(kind core.Kind) (syscall.Signal, bool) {
	for s, k := range signalKinds {
		if k == kind {
			return s, true
		}
	}
	return 0, false
}

// HookSignal returns the OS signal backing a signal hook.
func HookSignal(h core.HookKind) (syscall.Signal, bool) {
	for s, k := range signalKinds {
		if k.Hook() == h {
			return s, true
		}
	}
	return 0, false
}
