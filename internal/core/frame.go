package core

// StackFrame is one emitted frame of a walk.
type StackFrame struct {
	PC       uintptr
	FramePtr uintptr // frame anchor; the raw return address for goroutine stacks
	Function string  // empty when the symbol could not be resolved
	Offset   uintptr // displacement of PC from the function entry
	File     string
	Line     int
	Locals   []LocalValue
}

// HasSymbol reports whether the frame resolved to a function name.
func (f *StackFrame) HasSymbol() bool {
	return f.Function != ""
}

// HasLine reports whether the frame resolved to a source position.
func (f *StackFrame) HasLine() bool {
	return f.File != "" && f.Line > 0
}

// LocalValue is one formatted parameter or local.
type LocalValue struct {
	Name string
	Text string
}

// VarKind distinguishes parameters from locals.
type VarKind int

const (
	VarLocal VarKind = iota
	VarParam
)

func (k VarKind) String() string {
	if k == VarParam {
		return "Parameter"
	}
	return "Local"
}

// Variable is a parameter or local visible in a frame.
type Variable struct {
	Name     string
	Kind     VarKind
	Type     *TypeNode
	Addr     uintptr
	Register bool // held in a register, no memory location
}

// FrameCursor is the unwind state advanced by a SymbolProvider.
type FrameCursor struct {
	Index    int
	PC       uintptr
	FramePtr uintptr
}
