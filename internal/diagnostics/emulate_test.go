package diagnostics

import (
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/testutil"
)

func TestEmulate_EveryKindDispatchesOnce(t *testing.T) {
	for _, kind := range core.AllKinds() {
		t.Run(kind.String(), func(t *testing.T) {
			if kind.IsSignal() && runtime.GOOS == "windows" {
				t.Skip("signals cannot be raised on windows")
			}

			reports := make(chan *core.Artifact, 2)
			var r *testRegistry
			r = newTestRegistry(t, Options{
				OnReport: func(a *core.Artifact) {
					reports <- a
					r.ContinueExecution()
				},
			})
			require.NoError(t, r.Install(0))
			t.Cleanup(func() { _ = r.Uninstall() })

			err := Emulate(kind)
			if kind.IsSignal() {
				require.NoError(t, err)
			} else {
				var fe *core.FaultError
				require.ErrorAs(t, err, &fe)
				assert.Equal(t, kind, fe.Descriptor.Kind)
			}

			var art *core.Artifact
			select {
			case art = <-reports:
			case <-time.After(30 * time.Second):
				t.Fatalf("%s was never dispatched", kind)
			}

			assert.Equal(t, kind, art.Kind)
			text := testutil.ReadFile(t, art.ReportPath)
			assert.Contains(t, text, fmt.Sprintf("Fault kind: %s (%s)\n", kind.Description(), kind))
			assert.NotEmpty(t, art.SnapshotPath)

			assert.Equal(t, int64(1), r.Attempts())
			assert.Empty(t, reports, "dispatched more than once")
			assert.Zero(t, r.exits.Load())
		})
	}
}

func TestEmulate_Details(t *testing.T) {
	got := make(chan *core.Descriptor, 1)
	installCapture := func(t *testing.T, kind core.HookKind) {
		t.Helper()
		h := &captureHandler{got: got}
		installHandler(t, kind, h)
	}

	t.Run("null write", func(t *testing.T) {
		installCapture(t, core.HookTrap)
		require.Error(t, Emulate(core.KindTrap))
		d := <-got
		assert.Equal(t, core.CodeAccessViolation, d.Code)
		assert.Equal(t, core.AccessWrite, d.Access)
		assert.True(t, d.HasAddr)
		assert.Zero(t, d.FaultAddr)
	})

	t.Run("malformed format", func(t *testing.T) {
		installCapture(t, core.HookInvalidArgument)
		require.Error(t, Emulate(core.KindInvalidArgument))
		d := <-got
		require.NotNil(t, d.Contract)
		assert.Contains(t, d.Contract.Expression, "fmt.Sprintf")
		assert.Contains(t, d.Contract.Function, "malformedFormat")
		assert.Equal(t, "emulate.go", d.Contract.File)
	})

	t.Run("throw", func(t *testing.T) {
		installCapture(t, core.HookUnhandled)
		require.Error(t, Emulate(core.KindThrow))
		d := <-got
		assert.Equal(t, core.CodeTypedThrow, d.Code)
		assert.Contains(t, d.Value, "int")
	})

	t.Run("stack exhaustion", func(t *testing.T) {
		installCapture(t, core.HookTrap)
		require.Error(t, Emulate(core.KindStackOverflow))
		d := <-got
		assert.Equal(t, core.KindStackOverflow, d.Kind)
		assert.Equal(t, core.CodeStackOverflow, d.Code)
	})
}

func TestEmulate_UnknownKind(t *testing.T) {
	err := Emulate(core.KindUnknown)
	assert.True(t, core.IsCategory(err, core.ErrCatCallerError))
}

func TestEmulate_WithoutHandlerKeepsPanicking(t *testing.T) {
	assert.Panics(t, func() { _ = Emulate(core.KindUnhandled) })
}
