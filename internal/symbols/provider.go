// Package symbols implements the symbol provider over the Go runtime:
// unwinding captured program counters, resolving functions and source
// lines, enumerating annotated locals, reading memory without faulting and
// serializing process snapshots.
package symbols

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/logging"
)

// Options configures a Provider.
type Options struct {
	Annotations       *Registry // default: Default
	Logger            *logging.Logger
	IncludeGoroutines bool
}

// Provider is the runtime-backed core.SymbolProvider.
type Provider struct {
	annotations       *Registry
	logger            *logging.Logger
	mem               SafeReader
	includeGoroutines bool

	mu     sync.Mutex
	active bool
}

var _ core.SymbolProvider = (*Provider)(nil)

// New creates a provider.
func New(opts Options) *Provider {
	if opts.Annotations == nil {
		opts.Annotations = Default
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Provider{
		annotations:       opts.Annotations,
		logger:            opts.Logger.WithComponent("symbols"),
		includeGoroutines: opts.IncludeGoroutines,
	}
}

// Initialize opens a symbol session.
func (p *Provider) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active {
		return core.ErrSessionActive
	}
	p.active = true
	return nil
}

// Cleanup closes the session.
func (p *Provider) Cleanup() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = false
	return nil
}

func (p *Provider) isActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Unwind steps through the captured return addresses. FramePtr carries the
// raw return address; PC points into the call instruction so that symbol
// and line lookups land on the calling line.
func (p *Provider) Unwind(ctx *core.Context, cur *core.FrameCursor) bool {
	if ctx == nil || cur.Index < 0 || cur.Index >= len(ctx.PCs) {
		return false
	}
	raw := ctx.PCs[cur.Index]
	cur.Index++
	cur.FramePtr = raw
	cur.PC = raw
	if raw > 0 {
		cur.PC = raw - 1
	}
	return true
}

// SymbolFromAddr resolves the function containing pc.
func (p *Provider) SymbolFromAddr(pc uintptr) (string, uintptr, bool) {
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "", 0, false
	}
	return fn.Name(), pc - fn.Entry(), true
}

// LineFromAddr resolves the source position of pc.
func (p *Provider) LineFromAddr(pc uintptr) (string, int, bool) {
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "", 0, false
	}
	file, line := fn.FileLine(pc)
	if file == "" || line == 0 {
		return "", 0, false
	}
	return file, line, true
}

// Locals returns the variables annotated by the frame's function on the
// goroutine the context was captured from.
func (p *Provider) Locals(ctx *core.Context, frame core.StackFrame) ([]core.Variable, error) {
	if !p.isActive() {
		return nil, core.ErrSessionClosed
	}
	if ctx == nil {
		return nil, nil
	}
	fn := runtime.FuncForPC(frame.PC)
	if fn == nil {
		return nil, nil
	}
	// FuncForPC names the innermost inlined function at PC and gives the
	// entry of the physical function, the same pair Annotate records.
	return p.annotations.Lookup(ctx.GoroutineID, fn.Entry(), fn.Name()), nil
}

// Memory returns the fault-safe reader.
func (p *Provider) Memory() core.MemoryReader {
	return p.mem
}

// ModuleFromAddr names the mapped file containing addr, falling back to the
// executable when mappings cannot be queried.
func (p *Provider) ModuleFromAddr(addr uintptr) (string, error) {
	regions, err := Regions()
	if err == nil {
		if r, ok := regionFor(regions, addr); ok && r.Path != "" {
			return r.Path, nil
		}
	}
	exe, exeErr := os.Executable()
	if exeErr != nil {
		return "", fmt.Errorf("resolving module for %#x: %w", addr, exeErr)
	}
	return exe, nil
}
