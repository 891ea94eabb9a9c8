package hooks

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/fault"
)

// relay forwards one OS signal to the handler in its slot.
type relay struct {
	kind core.HookKind
	sig  syscall.Signal
	ch   chan os.Signal
	done chan struct{}
}

func hookSignal(kind core.HookKind) (syscall.Signal, bool) {
	return fault.HookSignal(kind)
}

// syncRelay starts or stops the relay for kind. Called with table.mu held.
func syncRelay(kind core.HookKind, want bool) error {
	r, running := table.relays[kind]
	switch {
	case want && !running:
		sig, ok := hookSignal(kind)
		if !ok {
			return core.ErrCallerError(core.CodeUnknownHook, "hook has no signal: "+kind.String())
		}
		r = &relay{
			kind: kind,
			sig:  sig,
			ch:   make(chan os.Signal, 1),
			done: make(chan struct{}),
		}
		signal.Notify(r.ch, sig)
		table.relays[kind] = r
		go r.run()
	case !want && running:
		signal.Stop(r.ch)
		close(r.ch)
		delete(table.relays, kind)
	}
	return nil
}

func (r *relay) run() {
	defer close(r.done)
	for sig := range r.ch {
		h := Get(r.kind)
		if h == nil {
			continue
		}
		d := fault.FromSignal(sig)
		_ = h.HandleFault(d)
	}
}

// relayDone returns a channel closed once the relay for kind has exited, or
// nil if no relay was ever started for it. Used by tests.
func relayDone(kind core.HookKind) <-chan struct{} {
	table.mu.RLock()
	defer table.mu.RUnlock()
	if r, ok := table.relays[kind]; ok {
		return r.done
	}
	return nil
}
