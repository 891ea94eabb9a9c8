// Package stackwalk turns a captured context into symbolized frames with
// their locals.
package stackwalk

import (
	"fmt"
	"iter"
	"slices"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/logging"
	"github.com/hugo-lorenzo-mato/crashguard/internal/valuefmt"
)

// DefaultMaxDepth is used when a walk is requested with no depth bound.
const DefaultMaxDepth = 64

// Walker walks captured contexts through a symbol provider.
type Walker struct {
	provider  core.SymbolProvider
	formatter *valuefmt.Formatter
	logger    *logging.Logger
}

// New creates a walker. The provider's session must be open while frames
// are produced.
func New(provider core.SymbolProvider, logger *logging.Logger) *Walker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Walker{
		provider:  provider,
		formatter: valuefmt.New(provider.Memory()),
		logger:    logger.WithComponent("stackwalk"),
	}
}

// Frames yields the frames of ctx. The first skip unwound frames are not
// yielded; at most maxDepth frames are. The walk ends early when the
// provider cannot unwind or returns a zero frame anchor.
func (w *Walker) Frames(ctx *core.Context, skip, maxDepth int) iter.Seq[core.StackFrame] {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return func(yield func(core.StackFrame) bool) {
		var cur core.FrameCursor
		emitted := 0
		for unwound := 0; emitted < maxDepth; unwound++ {
			if !w.unwind(ctx, &cur) || cur.FramePtr == 0 {
				return
			}
			if unwound < skip {
				continue
			}
			emitted++
			if !yield(w.frame(ctx, cur)) {
				return
			}
		}
	}
}

// Walk collects Frames.
func (w *Walker) Walk(ctx *core.Context, skip, maxDepth int) []core.StackFrame {
	return slices.Collect(w.Frames(ctx, skip, maxDepth))
}

func (w *Walker) unwind(ctx *core.Context, cur *core.FrameCursor) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Warn("unwind faulted", "index", cur.Index, "panic", fmt.Sprint(r))
			ok = false
		}
	}()
	return w.provider.Unwind(ctx, cur)
}

func (w *Walker) frame(ctx *core.Context, cur core.FrameCursor) core.StackFrame {
	f := core.StackFrame{PC: cur.PC, FramePtr: cur.FramePtr}
	w.resolve(&f)
	f.Locals = w.locals(ctx, f)
	return f
}

// resolve fills symbol and line information. Either may be missing.
func (w *Walker) resolve(f *core.StackFrame) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Debug("symbol lookup faulted", "pc", fmt.Sprintf("%#x", f.PC), "panic", fmt.Sprint(r))
		}
	}()
	if name, off, ok := w.provider.SymbolFromAddr(f.PC); ok {
		f.Function, f.Offset = name, off
	}
	if file, line, ok := w.provider.LineFromAddr(f.PC); ok {
		f.File, f.Line = file, line
	}
}

func (w *Walker) locals(ctx *core.Context, f core.StackFrame) []core.LocalValue {
	vars, err := w.enumerate(ctx, f)
	if err != nil {
		w.logger.Debug("locals unavailable", "function", f.Function, "error", err)
		return nil
	}
	var out []core.LocalValue
	for _, v := range vars {
		if text, ok := w.format(v); ok {
			out = append(out, core.LocalValue{Name: v.Name, Text: text})
		}
	}
	return out
}

func (w *Walker) enumerate(ctx *core.Context, f core.StackFrame) (vars []core.Variable, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("enumerating locals: %v", r)
		}
	}()
	return w.provider.Locals(ctx, f)
}

// format renders one local. A fault while reading it drops that local only.
func (w *Walker) format(v core.Variable) (text string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Debug("formatting local faulted", "name", v.Name, "panic", fmt.Sprint(r))
			text, ok = "", false
		}
	}()
	return w.formatter.Variable(v), true
}
