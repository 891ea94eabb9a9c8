// Package hooks holds the process-wide registration points that receive
// faults: one handler slot per hook kind. Guarded calls, signal relays and
// contract checks look up their slot when a fault occurs and hand the
// classified descriptor to whatever handler is installed there.
//
// An empty slot means the runtime default: panics keep unwinding and
// signals are left to the Go runtime.
package hooks

import (
	"fmt"
	"sync"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
)

// Handler receives a classified fault. A handler that returns lets the
// faulting code continue; the returned error is surfaced to the caller of
// the guarded call.
type Handler interface {
	HandleFault(d *core.Descriptor) error
}

// HandlerFunc adapts a function to Handler. Func values are not comparable,
// so identity checks against a previous handler need a pointer type.
type HandlerFunc func(d *core.Descriptor) error

// HandleFault calls f(d).
func (f HandlerFunc) HandleFault(d *core.Descriptor) error {
	return f(d)
}

var table = struct {
	mu     sync.RWMutex
	slots  map[core.HookKind]Handler
	relays map[core.HookKind]*relay
}{
	slots:  make(map[core.HookKind]Handler),
	relays: make(map[core.HookKind]*relay),
}

// Set installs h in the slot for kind and returns the handler it replaced.
// A nil h empties the slot. Signal hooks start or stop their relay.
func Set(kind core.HookKind, h Handler) (Handler, error) {
	if _, known := hookSignal(kind); !known && !isGuardHook(kind) {
		return nil, core.ErrCallerError(core.CodeUnknownHook, fmt.Sprintf("unknown hook %s", kind))
	}

	table.mu.Lock()
	defer table.mu.Unlock()

	prev := table.slots[kind]
	if kind.IsSignal() {
		if err := syncRelay(kind, h != nil); err != nil {
			return prev, err
		}
	}
	if h == nil {
		delete(table.slots, kind)
	} else {
		table.slots[kind] = h
	}
	return prev, nil
}

// Get returns the handler installed for kind, or nil.
func Get(kind core.HookKind) Handler {
	table.mu.RLock()
	defer table.mu.RUnlock()
	return table.slots[kind]
}

// Installed lists the hook kinds with a handler, in ascending bit order.
func Installed() []core.HookKind {
	table.mu.RLock()
	defer table.mu.RUnlock()

	var out []core.HookKind
	for _, kind := range core.MaskAll.Hooks() {
		if table.slots[kind] != nil {
			out = append(out, kind)
		}
	}
	return out
}

func isGuardHook(kind core.HookKind) bool {
	switch kind {
	case core.HookTrap, core.HookUnhandled, core.HookPureCall,
		core.HookAllocation, core.HookBufferOverrun, core.HookInvalidArgument:
		return true
	}
	return false
}
