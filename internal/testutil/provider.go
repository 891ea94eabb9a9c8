package testutil

import (
	"io"
	"sync"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
)

// FakeFrame is the symbol information a FakeProvider returns for one PC.
type FakeFrame struct {
	Function string
	Entry    uintptr
	File     string
	Line     int
	Vars     []core.Variable
	VarsErr  error
}

// FakeProvider is a scripted core.SymbolProvider. Contexts are unwound
// PC by PC; symbols come from Frames keyed by PC.
type FakeProvider struct {
	Frames       map[uintptr]FakeFrame
	Mem          core.MemoryReader
	Module       string
	InitErr      error
	SnapshotFunc func(w io.Writer, req core.SnapshotRequest) error

	mu       sync.Mutex
	active   bool
	inits    int
	requests []core.SnapshotRequest
}

// NewFakeProvider returns a provider with no symbols.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{Frames: make(map[uintptr]FakeFrame), Module: "/opt/app/bin/app"}
}

// Initialize implements core.SymbolProvider.
func (p *FakeProvider) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.InitErr != nil {
		return p.InitErr
	}
	if p.active {
		return core.ErrSessionActive
	}
	p.active = true
	p.inits++
	return nil
}

// Cleanup implements core.SymbolProvider.
func (p *FakeProvider) Cleanup() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = false
	return nil
}

// Active reports whether a session is open.
func (p *FakeProvider) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Inits counts successful Initialize calls.
func (p *FakeProvider) Inits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inits
}

// Unwind implements core.SymbolProvider.
func (p *FakeProvider) Unwind(ctx *core.Context, cur *core.FrameCursor) bool {
	if ctx == nil || cur.Index >= len(ctx.PCs) {
		return false
	}
	pc := ctx.PCs[cur.Index]
	cur.PC = pc
	cur.FramePtr = pc
	cur.Index++
	return true
}

// SymbolFromAddr implements core.SymbolProvider.
func (p *FakeProvider) SymbolFromAddr(pc uintptr) (string, uintptr, bool) {
	f, ok := p.Frames[pc]
	if !ok || f.Function == "" {
		return "", 0, false
	}
	return f.Function, pc - f.Entry, true
}

// LineFromAddr implements core.SymbolProvider.
func (p *FakeProvider) LineFromAddr(pc uintptr) (string, int, bool) {
	f, ok := p.Frames[pc]
	if !ok || f.File == "" {
		return "", 0, false
	}
	return f.File, f.Line, true
}

// Locals implements core.SymbolProvider.
func (p *FakeProvider) Locals(_ *core.Context, frame core.StackFrame) ([]core.Variable, error) {
	f := p.Frames[frame.PC]
	return f.Vars, f.VarsErr
}

// Memory implements core.SymbolProvider.
func (p *FakeProvider) Memory() core.MemoryReader {
	return p.Mem
}

// ModuleFromAddr implements core.SymbolProvider.
func (p *FakeProvider) ModuleFromAddr(uintptr) (string, error) {
	return p.Module, nil
}

// WriteSnapshot implements core.SymbolProvider.
func (p *FakeProvider) WriteSnapshot(w io.Writer, req core.SnapshotRequest) error {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()
	if p.SnapshotFunc != nil {
		return p.SnapshotFunc(w, req)
	}
	_, err := w.Write([]byte("snapshot:" + req.ID))
	return err
}

// Requests returns the snapshot requests seen so far.
func (p *FakeProvider) Requests() []core.SnapshotRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]core.SnapshotRequest(nil), p.requests...)
}
