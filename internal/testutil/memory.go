package testutil

import (
	"encoding/binary"
	"fmt"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
)

// ByteMemory is a MemoryReader over a byte slice mapped at Base. Reads
// outside the slice fail the way unmapped memory does.
type ByteMemory struct {
	Base uintptr
	Data []byte
}

// NewByteMemory maps size zero bytes at base.
func NewByteMemory(base uintptr, size int) *ByteMemory {
	return &ByteMemory{Base: base, Data: make([]byte, size)}
}

// Read implements core.MemoryReader.
func (m *ByteMemory) Read(addr uintptr, n int) ([]byte, error) {
	if n < 0 || addr < m.Base || addr-m.Base+uintptr(n) > uintptr(len(m.Data)) {
		return nil, fmt.Errorf("read %#x+%d: %w", addr, n, core.ErrUnreadable)
	}
	off := addr - m.Base
	out := make([]byte, n)
	copy(out, m.Data[off:off+uintptr(n)])
	return out, nil
}

// PutUint writes v at addr using size bytes in native byte order.
func (m *ByteMemory) PutUint(addr uintptr, size int, v uint64) {
	b := m.Data[addr-m.Base : addr-m.Base+uintptr(size)]
	switch size {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.NativeEndian.PutUint16(b, uint16(v))
	case 4:
		binary.NativeEndian.PutUint32(b, uint32(v))
	case 8:
		binary.NativeEndian.PutUint64(b, v)
	default:
		panic(fmt.Sprintf("unsupported size %d", size))
	}
}

// PutBytes copies data to addr.
func (m *ByteMemory) PutBytes(addr uintptr, data []byte) {
	copy(m.Data[addr-m.Base:], data)
}
