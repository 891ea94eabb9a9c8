package hooks

import (
	"errors"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
)

type recorder struct {
	got chan *core.Descriptor
	err error
}

func newRecorder() *recorder {
	return &recorder{got: make(chan *core.Descriptor, 4)}
}

func (r *recorder) HandleFault(d *core.Descriptor) error {
	r.got <- d
	return r.err
}

func install(t *testing.T, kind core.HookKind, h Handler) {
	t.Helper()
	prev, err := Set(kind, h)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = Set(kind, prev)
	})
}

func TestSet_ReturnsPrevious(t *testing.T) {
	first, second := newRecorder(), newRecorder()

	prev, err := Set(core.HookPureCall, first)
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = Set(core.HookPureCall, prev) })

	got, err := Set(core.HookPureCall, second)
	require.NoError(t, err)
	assert.Same(t, first, got)
	assert.Same(t, second, Get(core.HookPureCall))
	assert.Contains(t, Installed(), core.HookPureCall)

	got, err = Set(core.HookPureCall, nil)
	require.NoError(t, err)
	assert.Same(t, second, got)
	assert.Nil(t, Get(core.HookPureCall))
	assert.NotContains(t, Installed(), core.HookPureCall)
}

func TestSet_UnknownHook(t *testing.T) {
	_, err := Set(core.HookKind(0x4), newRecorder())
	assert.True(t, core.IsCategory(err, core.ErrCatCallerError))
}

func TestProtect_NoFault(t *testing.T) {
	ran := false
	assert.NoError(t, Protect(func() { ran = true }))
	assert.True(t, ran)
}

func TestProtect_EmptySlotKeepsPanicking(t *testing.T) {
	assert.PanicsWithValue(t, "boom", func() {
		_ = Protect(func() { panic("boom") })
	})
}

func TestProtect_RoutesByKind(t *testing.T) {
	trap, unhandled := newRecorder(), newRecorder()
	install(t, core.HookTrap, trap)
	install(t, core.HookUnhandled, unhandled)

	err := Protect(func() {
		var p *int
		*p = 1
	})
	var fe *core.FaultError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, core.KindTrap, fe.Descriptor.Kind)

	d := <-trap.got
	assert.Equal(t, core.KindTrap, d.Kind)
	require.NotNil(t, d.Context)
	assert.NotEmpty(t, d.Context.PCs)

	err = Protect(func() { panic(errors.New("escaped")) })
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, core.KindUnhandled, (<-unhandled.got).Kind)
}

func TestProtect_HandlerErrorIsWrapped(t *testing.T) {
	r := newRecorder()
	r.err = core.ErrSuppressed
	install(t, core.HookUnhandled, r)

	err := Protect(func() { panic("x") })
	assert.ErrorIs(t, err, core.ErrSuppressed)
}

func TestProtect_RestoresPanicOnFault(t *testing.T) {
	install(t, core.HookTrap, newRecorder())

	var inside bool
	_ = Protect(func() {
		inside = debug.SetPanicOnFault(true)
	})
	assert.True(t, inside)
	assert.False(t, debug.SetPanicOnFault(false))
}

func TestGo_ReportsContinuedFault(t *testing.T) {
	install(t, core.HookUnhandled, newRecorder())

	errs := make(chan error, 1)
	Go(func() { panic("in goroutine") }, func(err error) { errs <- err })

	err := <-errs
	var fe *core.FaultError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "in goroutine", fe.Descriptor.Value)
}

func TestProtectFunc_Refines(t *testing.T) {
	r := newRecorder()
	install(t, core.HookTrap, r)

	err := ProtectFunc(func() {
		var p *int
		*p = 1
	}, func(d *core.Descriptor) { d.Access = core.AccessWrite })
	require.Error(t, err)

	d := <-r.got
	assert.Equal(t, core.AccessWrite, d.Access)
	assert.True(t, d.HasAddr)
}
