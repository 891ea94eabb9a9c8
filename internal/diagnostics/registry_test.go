package diagnostics

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/events"
	"github.com/hugo-lorenzo-mato/crashguard/internal/fault"
	"github.com/hugo-lorenzo-mato/crashguard/internal/hooks"
	"github.com/hugo-lorenzo-mato/crashguard/internal/report"
	"github.com/hugo-lorenzo-mato/crashguard/internal/snapshot"
	"github.com/hugo-lorenzo-mato/crashguard/internal/testutil"
)

type sentinel struct{ name string }

func (s *sentinel) HandleFault(*core.Descriptor) error { return nil }

type testRegistry struct {
	*Registry
	exitCode atomic.Int32
	exits    atomic.Int32
}

func newTestRegistry(t *testing.T, opts Options) *testRegistry {
	t.Helper()
	if opts.Dir == "" {
		opts.Dir = t.TempDir()
	}
	if opts.App == "" {
		opts.App = "testapp"
	}
	tr := &testRegistry{Registry: New(opts)}
	tr.guard = new(atomic.Int64)
	tr.exit = func(code int) {
		tr.exitCode.Store(int32(code))
		tr.exits.Add(1)
	}
	return tr
}

// installSentinels fills every slot in mask with its own handler and
// empties the slots when the test ends.
func installSentinels(t *testing.T, mask core.Mask) map[core.HookKind]hooks.Handler {
	t.Helper()
	out := make(map[core.HookKind]hooks.Handler)
	for _, kind := range mask.Hooks() {
		s := &sentinel{name: kind.String()}
		_, err := hooks.Set(kind, s)
		require.NoError(t, err)
		out[kind] = s
	}
	t.Cleanup(func() {
		for kind := range out {
			_, _ = hooks.Set(kind, nil)
		}
	})
	return out
}

func guardMask() core.Mask {
	return core.Mask(core.HookTrap | core.HookUnhandled | core.HookPureCall |
		core.HookAllocation | core.HookBufferOverrun | core.HookInvalidArgument)
}

func TestInstallUninstall_RoundTrip(t *testing.T) {
	masks := []core.Mask{
		0,
		core.MaskAll,
		core.Mask(core.HookTrap),
		core.Mask(core.HookTrap | core.HookSigInt),
		core.Mask(core.HookInvalidArgument | core.HookSigTerm | core.HookBufferOverrun),
	}
	for _, mask := range masks {
		t.Run(fmt.Sprintf("mask_%#x", uint32(mask)), func(t *testing.T) {
			before := installSentinels(t, core.MaskAll)
			r := newTestRegistry(t, Options{})

			require.NoError(t, r.Install(mask))
			for _, kind := range core.MaskAll.Hooks() {
				if mask.Has(kind) {
					assert.Same(t, r.Registry, hooks.Get(kind), kind.String())
					assert.True(t, r.Installed(kind))
				} else {
					assert.Same(t, before[kind], hooks.Get(kind), kind.String())
				}
			}

			require.NoError(t, r.Uninstall())
			for _, kind := range core.MaskAll.Hooks() {
				assert.Same(t, before[kind], hooks.Get(kind), kind.String())
				assert.False(t, r.Installed(kind))
			}
		})
	}
}

func TestInstall_RejectsUnknownBits(t *testing.T) {
	before := installSentinels(t, core.MaskAll)
	r := newTestRegistry(t, Options{})

	err := r.Install(core.Mask(core.HookTrap) | 0x0004)
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatCallerError))
	for kind, h := range before {
		assert.Same(t, h, hooks.Get(kind), "nothing is installed for %s", kind)
		assert.False(t, r.Installed(kind))
	}
}

func TestUninstall_WithoutInstallIsNoop(t *testing.T) {
	before := installSentinels(t, guardMask())
	r := newTestRegistry(t, Options{})

	require.NoError(t, r.Uninstall())
	for kind, h := range before {
		assert.Same(t, h, hooks.Get(kind))
	}
}

func TestInstall_TwiceLosesOriginal(t *testing.T) {
	installSentinels(t, core.Mask(core.HookTrap))
	r := newTestRegistry(t, Options{})

	require.NoError(t, r.Install(core.Mask(core.HookTrap)))
	require.NoError(t, r.Install(core.Mask(core.HookTrap)))
	require.NoError(t, r.Uninstall())

	assert.Same(t, r.Registry, hooks.Get(core.HookTrap), "the second install remembered the registry itself")
}

func TestGenerateReport_ManualContinues(t *testing.T) {
	r := newTestRegistry(t, Options{Provider: testutil.NewFakeProvider()})

	require.NoError(t, r.GenerateReport(nil))
	assert.Zero(t, r.exits.Load())

	dumps := testutil.FilesWithSuffix(t, r.Dir(), core.SnapshotExt)
	require.Len(t, dumps, 1)
	assert.Regexp(t, `^testapp_\d{8}-\d{6}\.dmp$`, dumps[0])

	reports := testutil.FilesWithSuffix(t, r.Dir(), core.ReportExt)
	require.Len(t, reports, 1)
	text := testutil.ReadFile(t, filepath.Join(r.Dir(), reports[0]))
	assert.Contains(t, text, "Manual: yes")
	assert.Contains(t, text, "Value: manual report")
	assert.Contains(t, text, "Snapshot: "+filepath.Join(r.Dir(), dumps[0]))
}

func TestDispatch_GuardSuppressesSecondAttempt(t *testing.T) {
	p := testutil.NewFakeProvider()
	r := newTestRegistry(t, Options{Provider: p})

	require.NoError(t, r.GenerateReport(nil))
	err := r.GenerateReport(nil)
	assert.ErrorIs(t, err, core.ErrSuppressed)
	assert.True(t, core.IsCategory(err, core.ErrCatPipelineFatal))

	assert.Equal(t, int64(2), r.Attempts())
	assert.Len(t, p.Requests(), 1, "the first artifact is left untouched")
	assert.Len(t, testutil.FilesWithSuffix(t, r.Dir(), core.SnapshotExt), 1)
}

func TestDispatch_GuardIsProcessWide(t *testing.T) {
	a := New(Options{Dir: t.TempDir()})
	b := New(Options{Dir: t.TempDir()})
	assert.Same(t, a.guard, b.guard)
}

func TestDispatch_TerminatesByDefault(t *testing.T) {
	r := newTestRegistry(t, Options{Provider: testutil.NewFakeProvider()})

	err := r.Dispatch(&core.Descriptor{Kind: core.KindUnhandled, Value: "boom"})
	assert.ErrorIs(t, err, core.ErrTerminated)
	assert.Equal(t, int32(1), r.exits.Load())
	assert.Equal(t, int32(1), r.exitCode.Load())
	assert.False(t, r.mu.TryLock(), "the lock stays held while the process exits")
}

func TestDispatch_ManualTerminate(t *testing.T) {
	r := newTestRegistry(t, Options{Provider: testutil.NewFakeProvider()})

	err := r.GenerateReport(&core.Descriptor{Kind: core.KindTrap, Terminate: true})
	assert.ErrorIs(t, err, core.ErrTerminated)
	assert.Equal(t, int32(1), r.exits.Load())
}

func TestDispatch_TrueFaultAfterManualReportTerminates(t *testing.T) {
	p := testutil.NewFakeProvider()
	r := newTestRegistry(t, Options{Provider: p})

	require.NoError(t, r.GenerateReport(nil))
	err := r.Dispatch(&core.Descriptor{Kind: core.KindTrap, Code: core.CodeAccessViolation})
	assert.ErrorIs(t, err, core.ErrTerminated)
	assert.Equal(t, int32(1), r.exits.Load())
	assert.Equal(t, int32(1), r.exitCode.Load())
	assert.False(t, r.mu.TryLock(), "the lock stays held while the process exits")

	assert.Len(t, p.Requests(), 1, "the second fault writes nothing")
	assert.Len(t, testutil.FilesWithSuffix(t, r.Dir(), core.SnapshotExt), 1)
}

func TestDispatch_ManualTerminateAfterGuardTerminates(t *testing.T) {
	r := newTestRegistry(t, Options{Provider: testutil.NewFakeProvider()})

	require.NoError(t, r.GenerateReport(nil))
	err := r.GenerateReport(&core.Descriptor{Kind: core.KindThrow, Terminate: true})
	assert.ErrorIs(t, err, core.ErrTerminated)
	assert.Equal(t, int32(1), r.exits.Load())
}

func TestDispatch_FaultInsideCallbackTerminates(t *testing.T) {
	var nested error
	var r *testRegistry
	r = newTestRegistry(t, Options{
		Provider: testutil.NewFakeProvider(),
		OnReport: func(*core.Artifact) {
			r.ContinueExecution()
			nested = r.Dispatch(&core.Descriptor{Kind: core.KindTrap, Code: core.CodeAccessViolation})
		},
	})

	done := make(chan error, 1)
	go func() { done <- r.GenerateReport(nil) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("a fault raised by the report callback deadlocked the dispatch")
	}
	assert.ErrorIs(t, nested, core.ErrTerminated)
	assert.Equal(t, int32(1), r.exits.Load())
}

func TestDispatch_ConcurrentFaultsSerialize(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	p := testutil.NewFakeProvider()
	p.SnapshotFunc = func(w io.Writer, req core.SnapshotRequest) error {
		close(entered)
		<-release
		_, err := w.Write([]byte("snapshot:" + req.ID))
		return err
	}
	r := newTestRegistry(t, Options{Provider: p})

	first := make(chan error, 1)
	go func() { first <- r.Dispatch(&core.Descriptor{Kind: core.KindTrap, Code: core.CodeAccessViolation}) }()
	<-entered

	second := make(chan error, 1)
	go func() { second <- r.Dispatch(&core.Descriptor{Kind: core.KindUnhandled, Value: "late"}) }()

	select {
	case err := <-second:
		t.Fatalf("second fault returned while the first was still writing: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Zero(t, r.exits.Load())

	close(release)
	select {
	case err := <-first:
		assert.ErrorIs(t, err, core.ErrTerminated)
	case <-time.After(5 * time.Second):
		t.Fatal("first fault never finished")
	}
	assert.Equal(t, int32(1), r.exits.Load())

	// The first dispatch keeps the lock, so the second stays parked.
	select {
	case err := <-second:
		t.Fatalf("second fault returned after termination: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	assert.Equal(t, int64(2), r.Attempts())
	assert.Len(t, p.Requests(), 1)
	assert.Len(t, testutil.FilesWithSuffix(t, r.Dir(), core.SnapshotExt), 1)
}

func TestDispatch_CallbackContinues(t *testing.T) {
	var got *core.Artifact
	var r *testRegistry
	r = newTestRegistry(t, Options{
		Provider: testutil.NewFakeProvider(),
		OnReport: func(a *core.Artifact) {
			got = a
			r.ContinueExecution()
		},
	})

	err := r.Dispatch(&core.Descriptor{Kind: core.KindSigTerm, Signal: "SIGTERM"})
	require.NoError(t, err)
	assert.Zero(t, r.exits.Load())
	require.NotNil(t, got)
	assert.Equal(t, core.KindSigTerm, got.Kind)
	assert.True(t, got.Complete())
	assert.NotEmpty(t, got.ID)
}

func TestDispatch_SynthesizesContext(t *testing.T) {
	d := &core.Descriptor{Kind: core.KindSigInt, Manual: true}
	r := newTestRegistry(t, Options{Provider: testutil.NewFakeProvider()})

	require.NoError(t, r.Dispatch(d))
	require.NotNil(t, d.Context)
	assert.NotEmpty(t, d.Context.PCs)
	assert.NotZero(t, d.Context.GoroutineID)
}

func TestDispatch_SnapshotFailureStillReports(t *testing.T) {
	p := testutil.NewFakeProvider()
	p.SnapshotFunc = func(_ io.Writer, _ core.SnapshotRequest) error {
		return testutil.ErrTest
	}
	r := newTestRegistry(t, Options{Provider: p})

	err := r.GenerateReport(nil)
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatDegraded))
	assert.Zero(t, r.exits.Load())

	assert.Empty(t, testutil.FilesWithSuffix(t, r.Dir(), core.SnapshotExt), "partial snapshots are removed")
	reports := testutil.FilesWithSuffix(t, r.Dir(), core.ReportExt)
	require.Len(t, reports, 1)
	text := testutil.ReadFile(t, filepath.Join(r.Dir(), reports[0]))
	assert.Contains(t, text, "snapshot: ")
	assert.Contains(t, text, "test error")
}

func TestDispatch_SymbolSessionFailureKeepsSnapshot(t *testing.T) {
	p := testutil.NewFakeProvider()
	p.InitErr = errors.New("no symbols")
	r := newTestRegistry(t, Options{Provider: p})

	err := r.Dispatch(&core.Descriptor{Kind: core.KindTrap})
	assert.ErrorIs(t, err, core.ErrTerminated, "the terminate decision is still honored")
	assert.Len(t, testutil.FilesWithSuffix(t, r.Dir(), core.SnapshotExt), 1)

	reports := testutil.FilesWithSuffix(t, r.Dir(), core.ReportExt)
	require.Len(t, reports, 1)
	text := testutil.ReadFile(t, filepath.Join(r.Dir(), reports[0]))
	assert.Contains(t, text, "Fault kind: hardware fault (trap)")
	assert.Contains(t, text, "symbols: no symbols")
	assert.NotContains(t, text, "Call stack:")
}

func TestDispatch_CallbackPanicIsContained(t *testing.T) {
	r := newTestRegistry(t, Options{
		Provider: testutil.NewFakeProvider(),
		OnReport: func(*core.Artifact) { panic("callback bug") },
	})
	assert.NotPanics(t, func() {
		assert.NoError(t, r.GenerateReport(nil))
	})
}

func TestDispatch_AppendMode(t *testing.T) {
	r := newTestRegistry(t, Options{Provider: testutil.NewFakeProvider(), ReportMode: report.ModeAppend})

	require.NoError(t, r.GenerateReport(nil))
	logs := testutil.FilesWithSuffix(t, r.Dir(), core.LogExt)
	require.Len(t, logs, 1)
	assert.Regexp(t, `^testapp_\d{4}-\d{2}-\d{2}\.log$`, logs[0])
}

func TestDispatch_StackOverflowRunsOnWorker(t *testing.T) {
	var workerGID, callerGID uint64
	var r *testRegistry
	r = newTestRegistry(t, Options{
		Provider: testutil.NewFakeProvider(),
		OnReport: func(*core.Artifact) {
			workerGID = fault.GoroutineID()
			r.ContinueExecution()
		},
	})

	done := make(chan error, 1)
	go func() {
		callerGID = fault.GoroutineID()
		done <- r.Dispatch(&core.Descriptor{Kind: core.KindStackOverflow, Code: core.CodeStackOverflow})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(30 * time.Second):
		t.Fatal("dispatch deadlocked")
	}
	assert.NotZero(t, workerGID)
	assert.NotEqual(t, callerGID, workerGID)
	assert.Len(t, testutil.FilesWithSuffix(t, r.Dir(), core.SnapshotExt), 1)
}

func TestDispatch_TrapInChildProcess(t *testing.T) {
	if runtime.GOOS == "js" || runtime.GOOS == "wasip1" {
		t.Skip("no subprocess support")
	}
	dir := t.TempDir()
	code := startChild(t, "trap", dir, 2*time.Minute)
	assert.Equal(t, 1, code)

	dumps := testutil.FilesWithSuffix(t, dir, core.SnapshotExt)
	require.Len(t, dumps, 1)
	assert.Regexp(t, `^`+childApp+`_\d{8}-\d{6}\.dmp$`, dumps[0])

	dump, err := snapshot.Open(filepath.Join(dir, dumps[0]))
	require.NoError(t, err)
	assert.Equal(t, core.KindTrap.String(), dump.Snapshot.Kind)
	assert.Equal(t, "write", dump.Snapshot.Access)

	reports := testutil.FilesWithSuffix(t, dir, core.ReportExt)
	require.Len(t, reports, 1)
	text := testutil.ReadFile(t, filepath.Join(dir, reports[0]))
	assert.Regexp(t, `Fault address: 0x[0-9A-F]+, Thread ID: \d+`, text)
	assert.Contains(t, text, "Failed to write address 0x0")
	assert.Contains(t, text, "Fault code: 0xC0000005 ACCESS_VIOLATION")
	assert.Contains(t, text, "nullWrite")
}

func TestDispatch_StackOverflowInChildProcess(t *testing.T) {
	if runtime.GOOS == "js" || runtime.GOOS == "wasip1" {
		t.Skip("no subprocess support")
	}
	dir := t.TempDir()
	code := startChild(t, "overflow", dir, 2*time.Minute)
	assert.Equal(t, 1, code)

	dumps := testutil.FilesWithSuffix(t, dir, core.SnapshotExt)
	require.Len(t, dumps, 1)
	dump, err := snapshot.Open(filepath.Join(dir, dumps[0]))
	require.NoError(t, err)
	assert.Equal(t, core.KindStackOverflow.String(), dump.Snapshot.Kind)

	reports := testutil.FilesWithSuffix(t, dir, core.ReportExt)
	require.Len(t, reports, 1)
	assert.Contains(t, testutil.ReadFile(t, filepath.Join(dir, reports[0])), "0xC00000FD STACK_OVERFLOW")
}

type captureHandler struct {
	got chan *core.Descriptor
}

func (h *captureHandler) HandleFault(d *core.Descriptor) error {
	h.got <- d
	return nil
}

func installHandler(t *testing.T, kind core.HookKind, h hooks.Handler) {
	t.Helper()
	prev, err := hooks.Set(kind, h)
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = hooks.Set(kind, prev) })
}

func TestFatalOutput_InstallAndUninstall(t *testing.T) {
	r := newTestRegistry(t, Options{Provider: testutil.NewFakeProvider(), FatalOutput: true})

	require.NoError(t, r.Install(core.Mask(core.HookUnhandled)))
	t.Cleanup(func() { _ = r.Uninstall() })
	assert.FileExists(t, FatalOutputPath(r.Dir(), r.App()))

	require.NoError(t, r.Uninstall())
	require.NoError(t, r.Uninstall(), "a second uninstall does nothing")
}

func TestDispatch_PublishesEvents(t *testing.T) {
	bus := events.New(10)
	defer bus.Close()
	ch := bus.Subscribe()

	r := newTestRegistry(t, Options{Provider: testutil.NewFakeProvider(), Events: bus})
	require.NoError(t, r.GenerateReport(&core.Descriptor{Kind: core.KindThrow, Value: "manual"}))
	assert.ErrorIs(t, r.GenerateReport(nil), core.ErrSuppressed)

	var got []events.Event
	for len(got) < 3 {
		select {
		case e := <-ch:
			got = append(got, e)
		case <-time.After(time.Second):
			t.Fatalf("received %d events, want 3", len(got))
		}
	}

	intercepted, ok := got[0].(events.FaultInterceptedEvent)
	require.True(t, ok, "first event is %T", got[0])
	assert.Equal(t, "testapp", intercepted.App())
	assert.Equal(t, "throw", intercepted.Kind)
	assert.True(t, intercepted.Manual)

	written, ok := got[1].(events.ArtifactWrittenEvent)
	require.True(t, ok, "second event is %T", got[1])
	assert.Equal(t, intercepted.ArtifactID, written.ArtifactID)
	assert.NotEmpty(t, written.SnapshotPath)
	assert.NotEmpty(t, written.ReportPath)
	assert.Empty(t, written.Errors)

	suppressed, ok := got[2].(events.FaultSuppressedEvent)
	require.True(t, ok, "third event is %T", got[2])
	assert.Equal(t, int64(2), suppressed.Attempt)
}
