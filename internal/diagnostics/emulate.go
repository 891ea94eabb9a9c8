package diagnostics

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/fault"
	"github.com/hugo-lorenzo-mato/crashguard/internal/hooks"
)

// recursionBudget bounds emulated stack exhaustion well below the runtime's
// own stack limit.
const recursionBudget = 1 << 14

// Values kept in package variables so the compiler cannot prove the faults
// below at build time.
var (
	sink           any
	nilTarget      *int32
	runawayLen     = math.MaxInt
	overrunIndex   = 16
	emulatedFormat = "%s expects %d operands"
)

// Emulate raises a fault of kind through the installed hooks. Signal kinds
// are delivered asynchronously. For the other kinds Emulate returns only if
// the handler lets execution continue, with the *core.FaultError produced.
// With no handler installed the fault takes its default course.
func Emulate(kind core.Kind) error {
	if kind.IsSignal() {
		sig, _ := fault.SignalFor(kind)
		return raise(sig)
	}

	switch kind {
	case core.KindTrap:
		return hooks.ProtectFunc(nullWrite, func(d *core.Descriptor) {
			d.Access = core.AccessWrite
		})
	case core.KindUnhandled:
		return hooks.Protect(unhandledError)
	case core.KindPureCall:
		return hooks.Protect(incompleteDispatch)
	case core.KindAllocation:
		return hooks.Protect(runawayAllocation)
	case core.KindBufferOverrun:
		return hooks.Protect(bufferOverrun)
	case core.KindInvalidArgument:
		var err error
		if perr := hooks.Protect(func() { err = malformedFormat() }); perr != nil {
			return perr
		}
		return err
	case core.KindNonContinuable:
		return hooks.Protect(func() { panic(core.NonContinuable{}) })
	case core.KindThrow:
		return hooks.Protect(func() { panic(&core.Thrown{Type: "int", Value: 42}) })
	case core.KindStackOverflow:
		return hooks.Protect(func() { sink = recurse(0) })
	}
	return core.ErrCallerError(core.CodeUnknownKind, fmt.Sprintf("cannot emulate %s", kind))
}

func nullWrite() {
	*nilTarget = 1
}

func unhandledError() {
	panic(errors.New("emulated error without handler"))
}

func incompleteDispatch() {
	var v any
	sink = v.(fmt.Stringer).String()
}

func runawayAllocation() {
	sink = make([]uint64, runawayLen)
}

func bufferOverrun() {
	var buf [8]byte
	s := buf[:]
	for i := 0; i <= overrunIndex; i++ {
		s[i] = 'A'
	}
	sink = s
}

func malformedFormat() error {
	out := fmt.Sprintf(emulatedFormat, "format")
	return hooks.RequireAt(!strings.Contains(out, "%!"),
		"fmt.Sprintf("+strconv.Quote(emulatedFormat)+", \"format\")", 0)
}

//go:noinline
func recurse(depth int) int {
	var frame [64]byte
	if depth >= recursionBudget {
		panic(&core.StackExhausted{Depth: depth})
	}
	frame[depth%len(frame)] = byte(depth)
	return recurse(depth+1) + int(frame[0])
}
