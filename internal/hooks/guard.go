package hooks

import (
	"runtime/debug"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/fault"
)

// Protect runs fn and routes any panic it raises to the hook matching its
// classification. With a trap handler installed, memory faults at arbitrary
// addresses are turned into recoverable panics for the duration of fn.
//
// If the matching slot is empty the panic continues unwinding. If the
// handler returns, Protect returns a *core.FaultError.
func Protect(fn func()) error {
	return ProtectFunc(fn, nil)
}

// ProtectFunc is Protect with a refine step that may add detail the
// classifier cannot know to the descriptor before it is delivered.
func ProtectFunc(fn func(), refine func(*core.Descriptor)) (err error) {
	if Get(core.HookTrap) != nil {
		defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	}
	defer func() {
		v := recover()
		if v == nil {
			return
		}
		ctx := fault.CaptureFromPanic()
		err = deliver(v, ctx, refine)
	}()

	fn()
	return nil
}

// Go runs fn on a new goroutine under Protect. onFault, if not nil,
// receives the error of a fault whose handler returned.
func Go(fn func(), onFault func(error)) {
	go func() {
		if err := Protect(fn); err != nil && onFault != nil {
			onFault(err)
		}
	}()
}

func deliver(v any, ctx *core.Context, refine func(*core.Descriptor)) error {
	d := fault.Classify(v)
	d.Context = ctx
	if refine != nil {
		refine(d)
	}

	h := Get(d.Kind.Hook())
	if h == nil {
		panic(v)
	}
	return &core.FaultError{Descriptor: d, Err: h.HandleFault(d)}
}
