package fault

import (
	"bytes"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
)

const maxCapturedFrames = 256

// Capture records the calling goroutine's state. skip counts frames above the
// caller of Capture to omit.
func Capture(skip int) *core.Context {
	pcs := make([]uintptr, maxCapturedFrames)
	n := runtime.Callers(skip+2, pcs)
	return newContext(pcs[:n])
}

// CaptureFromPanic records the state of a goroutine that is unwinding a
// panic. It must be called from the deferred function that recovered. Frames
// belonging to the panic machinery are dropped so that PCs[0] is the function
// that faulted.
func CaptureFromPanic() *core.Context {
	pcs := make([]uintptr, maxCapturedFrames)
	n := runtime.Callers(2, pcs)
	return newContext(TrimPanicFrames(pcs[:n]))
}

func newContext(pcs []uintptr) *core.Context {
	return &core.Context{
		PCs:         pcs,
		GoroutineID: GoroutineID(),
		ThreadID:    ThreadID(),
		CapturedAt:  time.Now(),
	}
}

// TrimPanicFrames drops everything up to runtime.gopanic and the runtime
// helpers that raised it. Stacks without a panic frame are returned as is.
func TrimPanicFrames(pcs []uintptr) []uintptr {
	start := -1
	for i, pc := range pcs {
		if funcName(pc) == "runtime.gopanic" {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return pcs
	}
	for start < len(pcs) && strings.HasPrefix(funcName(pcs[start]), "runtime.") {
		start++
	}
	if start >= len(pcs) {
		return pcs
	}
	return pcs[start:]
}

func funcName(pc uintptr) string {
	fn := runtime.FuncForPC(pc - 1)
	if fn == nil {
		return ""
	}
	return fn.Name()
}

// GoroutineID parses the current goroutine id from the stack header.
func GoroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// AllGoroutines returns the stack text of every goroutine. The capture stops
// the world, which is the closest analogue to suspending all other threads.
func AllGoroutines() []byte {
	var (
		buf       []byte
		stackSize int

		bufferLen = 16384
	)

	for stackSize == len(buf) {
		buf = make([]byte, bufferLen)
		stackSize = runtime.Stack(buf, true)
		bufferLen *= 2
	}

	return buf[:stackSize]
}
