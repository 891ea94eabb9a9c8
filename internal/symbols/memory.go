package symbols

import (
	"fmt"
	"runtime/debug"
	"unsafe"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
)

// maxRead bounds a single read.
const maxRead = 1 << 20

// SafeReader reads the memory of the current process. A read that touches
// an unmapped or protected page returns core.ErrUnreadable instead of
// crashing the process.
type SafeReader struct{}

var _ core.MemoryReader = SafeReader{}

// Read copies n bytes starting at addr.
func (SafeReader) Read(addr uintptr, n int) (out []byte, err error) {
	if n < 0 || n > maxRead {
		return nil, fmt.Errorf("read %#x+%d: bad length: %w", addr, n, core.ErrUnreadable)
	}
	if addr == 0 {
		return nil, fmt.Errorf("read %#x+%d: nil address: %w", addr, n, core.ErrUnreadable)
	}
	if addr+uintptr(n) < addr {
		return nil, fmt.Errorf("read %#x+%d: wraps address space: %w", addr, n, core.ErrUnreadable)
	}
	if n == 0 {
		return []byte{}, nil
	}

	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("read %#x+%d: %v: %w", addr, n, r, core.ErrUnreadable)
		}
	}()

	out = make([]byte, n)
	copy(out, unsafe.Slice((*byte)(pointerAt(addr)), n))
	return out, nil
}

// pointerAt turns an address into a pointer without the conversion being
// visible to checkptr instrumentation, which rejects addresses outside known
// allocations.
func pointerAt(addr uintptr) unsafe.Pointer {
	return *(*unsafe.Pointer)(unsafe.Pointer(&addr))
}

// AddrOf returns the address of the value p points to.
func AddrOf[T any](p *T) uintptr {
	return uintptr(unsafe.Pointer(p))
}
