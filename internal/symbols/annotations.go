package symbols

import (
	"reflect"
	"runtime"
	"sync"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/fault"
)

// Registry holds the variables that running functions expose to fault
// reports. Go keeps no local-variable metadata at run time, so a function
// annotates the values it wants to see in its frame.
type Registry struct {
	mu      sync.Mutex
	next    uint64
	byFrame map[frameKey][]annotation
}

// frameKey names one logical frame. Inlined functions share the entry of
// the function they were inlined into, so the function name is part of it.
type frameKey struct {
	goroutine uint64
	entry     uintptr
	function  string
}

type annotation struct {
	id   uint64
	name string
	kind core.VarKind
	ref  reflect.Value // pointer to the annotated value; keeps it alive
}

// Default is the registry used by the process-wide provider.
var Default = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byFrame: make(map[frameKey][]annotation)}
}

// Annotate exposes *ptr as a variable of the function skip frames above the
// caller of Annotate. ptr must be a non-nil pointer; anything else is
// ignored. The returned release removes the annotation.
func (r *Registry) Annotate(skip int, name string, ptr any, kind core.VarKind) (release func()) {
	ref := reflect.ValueOf(ptr)
	if !ref.IsValid() || ref.Kind() != reflect.Pointer || ref.IsNil() {
		return func() {}
	}
	function, entry, ok := logicalFrame(skip + 1)
	if !ok {
		return func() {}
	}
	key := frameKey{goroutine: fault.GoroutineID(), entry: entry, function: function}

	r.mu.Lock()
	r.next++
	id := r.next
	r.byFrame[key] = append(r.byFrame[key], annotation{id: id, name: name, kind: kind, ref: ref})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(key, id) })
	}
}

// logicalFrame resolves the function skip frames above its caller, counting
// inlined calls as frames.
func logicalFrame(skip int) (function string, entry uintptr, ok bool) {
	var pcs [1]uintptr
	if runtime.Callers(skip+2, pcs[:]) == 0 {
		return "", 0, false
	}
	frame, _ := runtime.CallersFrames(pcs[:]).Next()
	if frame.Function == "" || frame.Entry == 0 {
		return "", 0, false
	}
	return frame.Function, frame.Entry, true
}

func (r *Registry) remove(key frameKey, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.byFrame[key]
	for i, a := range list {
		if a.id == id {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(r.byFrame, key)
	} else {
		r.byFrame[key] = list
	}
}

// Lookup returns the variables annotated by function, whose code starts at
// entry, on goroutine gid. For an inlined function entry is that of the
// function it was inlined into. Parameters come first, each group in
// annotation order.
// If the registry is locked, for instance because the fault interrupted an
// Annotate call, Lookup returns nothing rather than wait.
func (r *Registry) Lookup(gid uint64, entry uintptr, function string) []core.Variable {
	if !r.mu.TryLock() {
		return nil
	}
	list := append([]annotation(nil), r.byFrame[frameKey{goroutine: gid, entry: entry, function: function}]...)
	r.mu.Unlock()

	vars := make([]core.Variable, 0, len(list))
	for _, want := range []core.VarKind{core.VarParam, core.VarLocal} {
		for _, a := range list {
			if a.kind != want {
				continue
			}
			vars = append(vars, core.Variable{
				Name: a.name,
				Kind: a.kind,
				Type: TypeOf(a.ref.Type().Elem()),
				Addr: a.ref.Pointer(),
			})
		}
	}
	return vars
}

// Len returns the number of live annotations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, list := range r.byFrame {
		n += len(list)
	}
	return n
}
