// Package valuefmt renders typed memory as report text.
//
// A variable renders as one header line followed, for composites, by one
// line per member indented one tab per nesting level:
//
//	Local 'p' main.point
//		X int32 = 0x1
//		Y int32 = 0x2
//
// Expansion stops at MaxDepth; deeper composites render as an opaque
// address. Type graphs are never trusted to be finite.
package valuefmt

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"

	"fortio.org/safecast"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
)

const (
	// MaxDepth is the deepest nesting level that is expanded.
	MaxDepth = 20

	// maxStringLen bounds quoted string and char-pointer values.
	maxStringLen = 31

	// maxRawBytes bounds the byte dump of values with an unknown layout.
	maxRawBytes = 16

	ptrSize = 4 << (^uintptr(0) >> 63)
)

// Formatter renders values read through a MemoryReader.
type Formatter struct {
	mem core.MemoryReader
}

// New creates a formatter over mem.
func New(mem core.MemoryReader) *Formatter {
	return &Formatter{mem: mem}
}

// Variable renders v with its header line.
func (f *Formatter) Variable(v core.Variable) string {
	head := fmt.Sprintf("%s '%s'", v.Kind, v.Name)
	if label := v.Type.Label(); label != "" {
		head += " " + label
	}
	if v.Register {
		return head + " = <register>"
	}
	return head + f.Format(v.Type, v.Addr)
}

// Format renders the value of type t stored at addr. Leaves render as
// " = value"; composites as one indented line per member.
func (f *Formatter) Format(t *core.TypeNode, addr uintptr) string {
	var b strings.Builder
	f.render(&b, t, addr, 0)
	return b.String()
}

func (f *Formatter) render(b *strings.Builder, t *core.TypeNode, addr uintptr, depth int) {
	if !t.IsComposite() {
		b.WriteString(" = ")
		b.WriteString(f.leaf(t, addr))
		return
	}
	if depth >= MaxDepth {
		fmt.Fprintf(b, " <%s> @ 0x%X", t.Label(), addr)
		return
	}
	for _, m := range t.Children {
		b.WriteByte('\n')
		b.WriteString(strings.Repeat("\t", depth+1))
		b.WriteString(m.Name)
		if label := m.Type.Label(); label != "" {
			b.WriteByte(' ')
			b.WriteString(label)
		}
		f.render(b, m.Type, addr+m.Offset, depth+1)
	}
}

func (f *Formatter) leaf(t *core.TypeNode, addr uintptr) string {
	if t == nil {
		// No metadata: guess a machine word.
		return f.hex(addr, ptrSize)
	}

	switch t.Tag {
	case core.TagVoid:
		return "void"
	case core.TagBool:
		b, err := f.mem.Read(addr, 1)
		if err != nil {
			return unreadable(addr)
		}
		return strconv.FormatBool(b[0] != 0)
	case core.TagFloat:
		return f.float(addr, t.Size)
	case core.TagComplex:
		return f.complex(addr, t.Size)
	case core.TagEnum:
		return f.enum(t, addr)
	case core.TagCharPtr:
		return f.charPtr(addr)
	case core.TagWideCharPtr:
		return f.wideCharPtr(addr)
	case core.TagString:
		return f.str(addr)
	case core.TagInterface:
		return f.iface(addr)
	}

	switch t.Size {
	case 0:
		return "{}"
	case 1, 2, 4, 8:
		return f.hex(addr, t.Size)
	}
	return f.raw(addr, t.Size)
}

func (f *Formatter) word(addr, size uintptr) (uint64, error) {
	n, err := safecast.Conv[int](size)
	if err != nil {
		return 0, err
	}
	b, err := f.mem.Read(addr, n)
	if err != nil {
		return 0, err
	}
	switch size {
	case 1:
		return uint64(b[0]), nil
	case 2:
		return uint64(binary.NativeEndian.Uint16(b)), nil
	case 4:
		return uint64(binary.NativeEndian.Uint32(b)), nil
	case 8:
		return binary.NativeEndian.Uint64(b), nil
	}
	return 0, fmt.Errorf("unsupported width %d", size)
}

func (f *Formatter) hex(addr, size uintptr) string {
	v, err := f.word(addr, size)
	if err != nil {
		return unreadable(addr)
	}
	return fmt.Sprintf("0x%X", v)
}

func (f *Formatter) float(addr, size uintptr) string {
	if size != 4 && size != 8 {
		return f.raw(addr, size)
	}
	v, err := f.word(addr, size)
	if err != nil {
		return unreadable(addr)
	}
	if size == 4 {
		return strconv.FormatFloat(float64(math.Float32frombits(uint32(v))), 'g', -1, 32)
	}
	return strconv.FormatFloat(math.Float64frombits(v), 'g', -1, 64)
}

func (f *Formatter) complex(addr, size uintptr) string {
	if size != 8 && size != 16 {
		return f.raw(addr, size)
	}
	half := size / 2
	return "(" + f.float(addr, half) + ", " + f.float(addr+half, half) + ")"
}

func (f *Formatter) enum(t *core.TypeNode, addr uintptr) string {
	v, err := f.word(addr, t.Size)
	if err != nil {
		return unreadable(addr)
	}
	// Sign-extend so negative enumerators match.
	shift := 64 - 8*t.Size
	signed := int64(v<<shift) >> shift
	if name, ok := t.Enum[signed]; ok {
		return name
	}
	return fmt.Sprintf("0x%X", v)
}

// charPtr quotes the bytes a pointer refers to when they are readable,
// stopping at a NUL or maxStringLen bytes.
func (f *Formatter) charPtr(addr uintptr) string {
	p, err := f.word(addr, ptrSize)
	if err != nil {
		return unreadable(addr)
	}
	s, ok := f.cString(uintptr(p))
	if !ok {
		return fmt.Sprintf("0x%X", p)
	}
	return strconv.Quote(s)
}

func (f *Formatter) cString(p uintptr) (string, bool) {
	if p == 0 {
		return "", false
	}
	buf := make([]byte, 0, maxStringLen)
	for i := range uintptr(maxStringLen) {
		b, err := f.mem.Read(p+i, 1)
		if err != nil {
			if i == 0 {
				return "", false
			}
			break
		}
		if b[0] == 0 {
			break
		}
		buf = append(buf, b[0])
	}
	return string(buf), true
}

func (f *Formatter) wideCharPtr(addr uintptr) string {
	p, err := f.word(addr, ptrSize)
	if err != nil {
		return unreadable(addr)
	}
	if p == 0 {
		return "0x0"
	}
	units := make([]uint16, 0, maxStringLen)
	for i := range uintptr(maxStringLen) {
		b, err := f.mem.Read(uintptr(p)+2*i, 2)
		if err != nil {
			if i == 0 {
				return fmt.Sprintf("0x%X", p)
			}
			break
		}
		u := binary.NativeEndian.Uint16(b)
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return strconv.Quote(string(utf16.Decode(units)))
}

// str renders a string header {data, len}.
func (f *Formatter) str(addr uintptr) string {
	data, err := f.word(addr, ptrSize)
	if err != nil {
		return unreadable(addr)
	}
	rawLen, err := f.word(addr+ptrSize, ptrSize)
	if err != nil {
		return unreadable(addr)
	}
	n, err := safecast.Conv[int](rawLen)
	if err != nil || (n > 0 && data == 0) {
		return fmt.Sprintf("<corrupt string 0x%X len %d>", data, rawLen)
	}
	if n == 0 {
		return `""`
	}
	shown := min(n, maxStringLen)
	b, err := f.mem.Read(uintptr(data), shown)
	if err != nil {
		return fmt.Sprintf("0x%X (len %d)", data, n)
	}
	q := strconv.Quote(string(b))
	if n > shown {
		q += fmt.Sprintf("... (len %d)", n)
	}
	return q
}

func (f *Formatter) iface(addr uintptr) string {
	typ, err := f.word(addr, ptrSize)
	if err != nil {
		return unreadable(addr)
	}
	data, err := f.word(addr+ptrSize, ptrSize)
	if err != nil {
		return unreadable(addr)
	}
	if typ == 0 && data == 0 {
		return "nil"
	}
	return fmt.Sprintf("{type 0x%X, data 0x%X}", typ, data)
}

func (f *Formatter) raw(addr, size uintptr) string {
	n, err := safecast.Conv[int](min(size, maxRawBytes))
	if err != nil {
		return unreadable(addr)
	}
	b, err := f.mem.Read(addr, n)
	if err != nil {
		return unreadable(addr)
	}
	s := fmt.Sprintf("[% X]", b)
	if size > maxRawBytes {
		s += fmt.Sprintf("... (%d bytes)", size)
	}
	return s
}

func unreadable(addr uintptr) string {
	return fmt.Sprintf("<unreadable @ 0x%X>", addr)
}
