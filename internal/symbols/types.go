package symbols

import (
	"reflect"
	"strconv"
	"sync"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
)

const (
	// maxArrayElems bounds the children listed for one array.
	maxArrayElems = 64
	// maxTypeDepth bounds nested value types when building a node.
	maxTypeDepth = 32
)

var ptrSize = reflect.TypeFor[uintptr]().Size()

// Integer is the set of types RegisterEnum accepts.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

var enums sync.Map // reflect.Type -> map[int64]string

// RegisterEnum makes values of T render by name in reports.
func RegisterEnum[T Integer](names map[T]string) {
	table := make(map[int64]string, len(names))
	for v, name := range names {
		table[int64(v)] = name
	}
	enums.Store(reflect.TypeFor[T](), table)
}

func enumTable(t reflect.Type) map[int64]string {
	if v, ok := enums.Load(t); ok {
		return v.(map[int64]string)
	}
	return nil
}

// TypeOf describes the memory layout of t.
func TypeOf(t reflect.Type) *core.TypeNode {
	if t == nil {
		return nil
	}
	return typeNode(t, 0)
}

func typeNode(t reflect.Type, depth int) *core.TypeNode {
	n := &core.TypeNode{Name: t.String(), Size: t.Size()}
	if depth >= maxTypeDepth {
		return n
	}

	switch t.Kind() {
	case reflect.Bool:
		n.Tag = core.TagBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n.Tag = core.TagInt
		if table := enumTable(t); table != nil {
			n.Tag, n.Enum = core.TagEnum, table
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n.Tag = core.TagUint
		if table := enumTable(t); table != nil {
			n.Tag, n.Enum = core.TagEnum, table
		}
	case reflect.Float32, reflect.Float64:
		n.Tag = core.TagFloat
	case reflect.Complex64, reflect.Complex128:
		n.Tag = core.TagComplex
	case reflect.String:
		n.Tag = core.TagString
	case reflect.Pointer:
		switch t.Elem().Kind() {
		case reflect.Uint8:
			n.Tag = core.TagCharPtr
		case reflect.Uint16:
			n.Tag = core.TagWideCharPtr
		default:
			n.Tag = core.TagPointer
		}
	case reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		n.Tag = core.TagPointer
	case reflect.Interface:
		n.Tag = core.TagInterface
	case reflect.Struct:
		for i := range t.NumField() {
			f := t.Field(i)
			n.AddMember(f.Name, f.Offset, typeNode(f.Type, depth+1))
		}
	case reflect.Array:
		if t.Len() == 0 {
			break
		}
		elem := typeNode(t.Elem(), depth+1)
		for i := range min(t.Len(), maxArrayElems) {
			n.AddMember("["+strconv.Itoa(i)+"]", uintptr(i)*t.Elem().Size(), elem)
		}
	case reflect.Slice:
		data := &core.TypeNode{Name: "*" + t.Elem().String(), Tag: core.TagPointer, Size: ptrSize}
		length := &core.TypeNode{Name: "int", Tag: core.TagInt, Size: ptrSize}
		n.AddMember("data", 0, data)
		n.AddMember("len", ptrSize, length)
		n.AddMember("cap", 2*ptrSize, length)
	}
	return n
}
