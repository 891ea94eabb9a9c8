package hooks

import (
	"path/filepath"
	"runtime"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/fault"
)

// Require checks a precondition of the calling function. A violation is
// delivered to the invalid-argument hook with the caller's function, file
// and line, or raised as a *core.ContractViolation panic when that hook is
// empty.
func Require(cond bool, expr string) error {
	if cond {
		return nil
	}
	return violate(expr, 2)
}

// RequireAt is Require for wrappers: skip counts the wrapper frames between
// the checked function and RequireAt.
func RequireAt(cond bool, expr string, skip int) error {
	if cond {
		return nil
	}
	return violate(expr, skip+2)
}

func violate(expr string, skip int) error {
	v := &core.ContractViolation{Expression: expr}
	if pc, file, line, ok := runtime.Caller(skip); ok {
		v.File = filepath.Base(file)
		v.Line = line
		if fn := runtime.FuncForPC(pc); fn != nil {
			v.Function = fn.Name()
		}
	}

	h := Get(core.HookInvalidArgument)
	if h == nil {
		panic(v)
	}
	d := fault.Classify(v)
	d.Context = fault.Capture(skip)
	return &core.FaultError{Descriptor: d, Err: h.HandleFault(d)}
}
