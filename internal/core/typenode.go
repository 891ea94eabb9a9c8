package core

// BasicTag identifies how a leaf value is rendered.
type BasicTag int

const (
	TagNone BasicTag = iota
	TagVoid
	TagCharPtr
	TagWideCharPtr
	TagString
	TagInt
	TagUint
	TagFloat
	TagComplex
	TagBool
	TagEnum
	TagPointer
	TagInterface
)

var tagNames = [...]string{
	TagNone:        "",
	TagVoid:        "void",
	TagCharPtr:     "char*",
	TagWideCharPtr: "wchar*",
	TagString:      "string",
	TagInt:         "int",
	TagUint:        "uint",
	TagFloat:       "float",
	TagComplex:     "complex",
	TagBool:        "bool",
	TagEnum:        "enum",
	TagPointer:     "pointer",
	TagInterface:   "interface",
}

func (t BasicTag) String() string {
	if t < 0 || int(t) >= len(tagNames) {
		return ""
	}
	return tagNames[t]
}

// TypeNode describes the layout of a value. A node with children is a
// composite; otherwise it is a leaf rendered by Tag and Size.
//
// Graphs may be cyclic: consumers must bound their recursion.
type TypeNode struct {
	Name     string
	Tag      BasicTag
	Size     uintptr
	Children []Member
	Enum     map[int64]string // symbolic names for TagEnum
}

// Member is one child of a composite node.
type Member struct {
	Name   string
	Offset uintptr
	Type   *TypeNode
}

// IsComposite reports whether the node has members.
func (n *TypeNode) IsComposite() bool {
	return n != nil && len(n.Children) > 0
}

// Label returns the type name, falling back to the tag name.
func (n *TypeNode) Label() string {
	if n == nil {
		return ""
	}
	if n.Name != "" {
		return n.Name
	}
	return n.Tag.String()
}

// AddMember appends a child and returns the node for chaining.
func (n *TypeNode) AddMember(name string, offset uintptr, t *TypeNode) *TypeNode {
	n.Children = append(n.Children, Member{Name: name, Offset: offset, Type: t})
	return n
}
