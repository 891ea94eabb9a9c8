package fault

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
)

//go:noinline
func nilWrite() {
	var p *int
	*p = 1
}

//go:noinline
func indexPastEnd(i int) {
	var buf [4]byte
	buf[i] = 1
}

//go:noinline
func hugeAlloc(n int) {
	_ = make([]byte, n)
}

//go:noinline
func assertOnNil() {
	var x any
	_ = x.(fmt.Stringer)
}

//go:noinline
func divide(a, b int) int {
	return a / b
}

func recovered(fn func()) (v any, ctx *core.Context) {
	defer func() {
		v = recover()
		ctx = CaptureFromPanic()
	}()
	fn()
	return nil, nil
}

func TestClassify_RuntimeFaults(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
		kind core.Kind
		code core.Code
	}{
		{"nil write", nilWrite, core.KindTrap, core.CodeAccessViolation},
		{"index", func() { indexPastEnd(8) }, core.KindBufferOverrun, core.CodeArrayBoundsExceeded},
		{"alloc", func() { hugeAlloc(-1) }, core.KindAllocation, core.CodeNoMemory},
		{"type assertion", assertOnNil, core.KindPureCall, core.CodeNone},
		{"divide", func() { divide(1, 0) }, core.KindTrap, core.CodeIntDivideByZero},
		{"plain panic", func() { panic(errors.New("boom")) }, core.KindUnhandled, core.CodeNone},
		{"string panic", func() { panic("boom") }, core.KindUnhandled, core.CodeNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _ := recovered(tt.fn)
			require.NotNil(t, v)
			d := Classify(v)
			assert.Equal(t, tt.kind, d.Kind)
			assert.Equal(t, tt.code, d.Code)
			assert.NotEmpty(t, d.Value)
		})
	}
}

func TestClassify_NilWriteHasAddress(t *testing.T) {
	v, _ := recovered(nilWrite)
	d := Classify(v)
	assert.True(t, d.HasAddr)
	assert.Less(t, d.FaultAddr, uintptr(4096))
}

func TestClassify_DivideSubCode(t *testing.T) {
	v, _ := recovered(func() { divide(1, 0) })
	assert.Equal(t, core.FPEIntDivide, Classify(v).SubCode)
}

func TestClassify_SyntheticValues(t *testing.T) {
	violation := &core.ContractViolation{Expression: "n > 0", Function: "f", File: "f.go", Line: 3}
	tests := []struct {
		value any
		kind  core.Kind
	}{
		{core.NonContinuable{}, core.KindNonContinuable},
		{&core.NonContinuable{}, core.KindNonContinuable},
		{&core.Thrown{Type: "int", Value: 7}, core.KindThrow},
		{&core.StackExhausted{Depth: 10}, core.KindStackOverflow},
		{violation, core.KindInvalidArgument},
		{fmt.Errorf("wrapped: %w", &core.Thrown{Type: "x"}), core.KindThrow},
		{fmt.Errorf("wrapped: %w", violation), core.KindInvalidArgument},
		{nil, core.KindUnhandled},
		{42, core.KindUnhandled},
	}
	for _, tt := range tests {
		d := Classify(tt.value)
		assert.Equal(t, tt.kind, d.Kind, "value %v", tt.value)
	}
	assert.Same(t, violation, Classify(violation).Contract)
	assert.Equal(t, "wrapped: contract violation: n > 0 in f at f.go:3",
		Classify(fmt.Errorf("wrapped: %w", violation)).Value)
}

func TestFromSignal(t *testing.T) {
	d := FromSignal(syscall.SIGSEGV)
	assert.Equal(t, core.KindSigSegv, d.Kind)
	assert.Equal(t, "SIGSEGV", d.Signal)
	assert.Nil(t, d.Context)

	assert.Equal(t, core.KindSigInt, FromSignal(os.Interrupt).Kind)
	assert.Equal(t, core.FPEUnknown, FromSignal(syscall.SIGFPE).SubCode)
	assert.Equal(t, core.KindUnknown, FromSignal(syscall.SIGHUP).Kind)
}

func TestSignalFor_RoundTrip(t *testing.T) {
	for _, k := range core.AllKinds() {
		sig, ok := SignalFor(k)
		assert.Equal(t, k.IsSignal(), ok, "kind %s", k)
		if !ok {
			continue
		}
		assert.Equal(t, k, FromSignal(sig).Kind)
		hs, ok := HookSignal(k.Hook())
		require.True(t, ok)
		assert.Equal(t, sig, hs)
	}
	_, ok := HookSignal(core.HookTrap)
	assert.False(t, ok)
}

func TestCaptureFromPanic_StartsAtFaultingFunction(t *testing.T) {
	_, ctx := recovered(nilWrite)
	require.NotNil(t, ctx)
	require.NotEmpty(t, ctx.PCs)

	fn := runtime.FuncForPC(ctx.PC() - 1)
	require.NotNil(t, fn)
	assert.True(t, strings.HasSuffix(fn.Name(), "fault.nilWrite"), "got %s", fn.Name())
	assert.NotZero(t, ctx.GoroutineID)
	assert.NotZero(t, ctx.ThreadID)
}

func TestCapture_StartsAtCaller(t *testing.T) {
	ctx := Capture(0)
	fn := runtime.FuncForPC(ctx.PC() - 1)
	require.NotNil(t, fn)
	assert.Contains(t, fn.Name(), "TestCapture_StartsAtCaller")
}

func TestTrimPanicFrames_NoPanic(t *testing.T) {
	pcs := []uintptr{1, 2, 3}
	assert.Equal(t, pcs, TrimPanicFrames(pcs))
}

func TestAllGoroutines(t *testing.T) {
	out := AllGoroutines()
	assert.Contains(t, string(out), "goroutine ")
	assert.Contains(t, string(out), "TestAllGoroutines")
}
