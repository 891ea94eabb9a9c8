package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/events"
	"github.com/hugo-lorenzo-mato/crashguard/internal/fault"
	"github.com/hugo-lorenzo-mato/crashguard/internal/hooks"
	"github.com/hugo-lorenzo-mato/crashguard/internal/logging"
	"github.com/hugo-lorenzo-mato/crashguard/internal/report"
	"github.com/hugo-lorenzo-mato/crashguard/internal/snapshot"
	"github.com/hugo-lorenzo-mato/crashguard/internal/symbols"
	"github.com/hugo-lorenzo-mato/crashguard/internal/sysinfo"
)

// processGuard counts report generation attempts over the process lifetime.
// It is never reset.
var processGuard atomic.Int64

// Options configures a Registry.
type Options struct {
	App               string // default: executable base name
	Dir               string // default: "crashdumps"
	MaxFiles          int
	Detail            core.Detail
	ReportMode        report.Mode
	IncludeEnv        bool
	IncludeGoroutines bool
	FatalOutput       bool
	Report            report.Config

	Provider core.SymbolProvider // default: runtime symbols
	Probe    core.SystemProbe    // default: sysinfo probe when Report.SystemInfo is set
	Logger   *logging.Logger
	Events   *events.EventBus // optional; receives dispatch events

	// OnReport runs after the artifact is written and before the terminate
	// decision. It may call ContinueExecution.
	OnReport func(*core.Artifact)
}

// Registry is the process-scoped fault registry: the handlers it replaced
// at install time and the dispatch pipeline.
type Registry struct {
	app        string
	dir        string
	detail     core.Detail
	includeEnv bool
	fatalOut   bool
	onReport   func(*core.Artifact)
	logger     *logging.Logger
	events     *events.EventBus

	snapshots *snapshot.Writer
	assembler *report.Assembler
	sink      report.Sink

	guard *atomic.Int64
	exit  func(code int)
	now   func() time.Time

	mu     sync.Mutex    // held for the body of Dispatch
	owner  atomic.Uint64 // goroutine running the pipeline steps, 0 when idle
	resume atomic.Bool

	hookMu      sync.Mutex
	prev        map[core.HookKind]hooks.Handler
	fatalActive bool
}

var _ hooks.Handler = (*Registry)(nil)

// New creates a registry. Nothing is installed until Install.
func New(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.App == "" {
		opts.App = executableName()
	}
	if opts.Dir == "" {
		opts.Dir = "crashdumps"
	}
	if opts.Detail == "" {
		opts.Detail = core.DetailNormal
	}
	if opts.ReportMode == "" {
		opts.ReportMode = report.ModeAlongside
	}
	if opts.Provider == nil {
		opts.Provider = symbols.New(symbols.Options{
			Logger:            opts.Logger,
			IncludeGoroutines: opts.IncludeGoroutines,
		})
	}
	if opts.Probe == nil && opts.Report.SystemInfo {
		opts.Probe = sysinfo.New(opts.Logger)
	}

	logger := opts.Logger.WithComponent("dispatch")
	return &Registry{
		app:        opts.App,
		dir:        opts.Dir,
		detail:     opts.Detail,
		includeEnv: opts.IncludeEnv,
		fatalOut:   opts.FatalOutput,
		onReport:   opts.OnReport,
		logger:     logger,
		events:     opts.Events,
		snapshots: snapshot.NewWriter(snapshot.WriterConfig{
			Dir:      opts.Dir,
			MaxFiles: opts.MaxFiles,
		}, opts.Provider, opts.Logger),
		assembler: report.New(opts.Provider, opts.Probe, opts.Report, opts.Logger),
		sink:      report.Sink{Dir: opts.Dir, App: opts.App, Mode: opts.ReportMode},
		guard:     &processGuard,
		exit:      os.Exit,
		now:       time.Now,
		prev:      make(map[core.HookKind]hooks.Handler),
	}
}

// App returns the application name used in artifact names.
func (r *Registry) App() string {
	return r.app
}

// Dir returns the artifact directory.
func (r *Registry) Dir() string {
	return r.dir
}

// Install registers the registry for every hook selected by mask. A zero
// mask selects all hooks. The handler each hook held before is remembered;
// installing again without Uninstall replaces what was remembered. Bits
// outside core.MaskAll are rejected before anything is installed.
func (r *Registry) Install(mask core.Mask) error {
	if err := mask.Validate(); err != nil {
		return err
	}
	r.hookMu.Lock()
	defer r.hookMu.Unlock()

	var errs []error
	for _, kind := range mask.Hooks() {
		prev, err := hooks.Set(kind, r)
		if err != nil {
			errs = append(errs, fmt.Errorf("installing %s: %w", kind, err))
			continue
		}
		r.prev[kind] = prev
	}
	if r.fatalOut {
		if err := r.enableFatalOutput(); err != nil {
			errs = append(errs, err)
		} else {
			r.fatalActive = true
		}
	}

	r.logger.Debug("hooks installed", "mask", fmt.Sprintf("%#x", uint32(mask)), "count", len(r.prev))
	return errors.Join(errs...)
}

// Uninstall puts back the handlers remembered by Install. Calling it
// without a prior Install does nothing.
func (r *Registry) Uninstall() error {
	r.hookMu.Lock()
	defer r.hookMu.Unlock()

	var errs []error
	for kind, prev := range r.prev {
		if _, err := hooks.Set(kind, prev); err != nil {
			errs = append(errs, fmt.Errorf("restoring %s: %w", kind, err))
			continue
		}
		delete(r.prev, kind)
	}
	if r.fatalActive {
		if err := disableFatalOutput(); err != nil {
			errs = append(errs, err)
		}
		r.fatalActive = false
	}
	return errors.Join(errs...)
}

// Installed reports whether kind is currently held by this registry.
func (r *Registry) Installed(kind core.HookKind) bool {
	r.hookMu.Lock()
	defer r.hookMu.Unlock()
	_, ok := r.prev[kind]
	return ok
}

// HandleFault implements hooks.Handler.
func (r *Registry) HandleFault(d *core.Descriptor) error {
	return r.Dispatch(d)
}

// ContinueExecution asks the dispatch in progress to return to the faulting
// code instead of terminating. It only has an effect from OnReport.
func (r *Registry) ContinueExecution() {
	r.resume.Store(true)
}

// Attempts returns how many times report generation was entered.
func (r *Registry) Attempts() int64 {
	return r.guard.Load()
}

// GenerateReport dispatches a manual report. A nil descriptor captures the
// calling goroutine. The process keeps running unless d.Terminate is set.
func (r *Registry) GenerateReport(d *core.Descriptor) error {
	if d == nil {
		d = &core.Descriptor{Kind: core.KindUnknown, Value: "manual report"}
	}
	if d.Context == nil {
		d.Context = fault.Capture(1)
	}
	d.Manual = true
	return r.Dispatch(d)
}

// Dispatch runs the pipeline for one fault: guard, lock, capture, snapshot,
// report, decision. It returns only when execution continues; otherwise
// the process exits with the lock held. Once the guard has fired, only a
// manual report that continues gets ErrSuppressed back; anything else exits.
func (r *Registry) Dispatch(d *core.Descriptor) error {
	if d == nil {
		d = &core.Descriptor{Kind: core.KindUnknown}
	}
	if n := r.guard.Add(1); n != 1 {
		r.logger.Warn("fault suppressed", "kind", d.Kind.String(), "value", d.Value)
		r.events.Publish(events.NewFaultSuppressedEvent(r.app, d.Kind.String(), n))
		if d.Manual && !d.Terminate {
			return core.ErrSuppressed
		}
		return r.terminateSuppressed(d)
	}

	r.mu.Lock()
	r.resume.Store(d.Manual && !d.Terminate)

	if d.Context == nil {
		d.Context = fault.Capture(1)
	}

	var art *core.Artifact
	step := func() {
		r.owner.Store(fault.GoroutineID())
		defer r.owner.Store(0)
		art = r.generate(d)
		r.notify(art)
	}
	if d.Kind == core.KindStackOverflow {
		onFreshStack(step)
	} else {
		step()
	}

	if !r.resume.Load() {
		r.logger.Error("terminating after fault", "kind", d.Kind.String(), "snapshot", art.SnapshotPath, "report", art.ReportPath)
		r.exit(1)
		// Only reached when exit is stubbed.
		return core.ErrTerminated
	}

	r.mu.Unlock()
	return errors.Join(art.Errors...)
}

// terminateSuppressed ends the process for a fault that arrived after the
// guard fired. It waits behind a dispatch in progress unless the fault was
// raised by that dispatch itself, which would otherwise wait on its own lock.
func (r *Registry) terminateSuppressed(d *core.Descriptor) error {
	if owner := r.owner.Load(); owner == 0 || owner != fault.GoroutineID() {
		r.mu.Lock()
	}
	r.logger.Error("terminating after suppressed fault", "kind", d.Kind.String())
	r.exit(1)
	// Only reached when exit is stubbed.
	return core.ErrTerminated
}

// generate writes the snapshot and the report. Failures are recorded on the
// artifact and never stop the pipeline.
func (r *Registry) generate(d *core.Descriptor) *core.Artifact {
	at := r.now()
	art := core.NewArtifact(uuid.NewString(), r.app, d.Kind, at)
	logger := r.logger.WithArtifact(art.ID).WithKind(d.Kind.String())
	logger.Error("fault intercepted", "summary", d.Summary(), "thread", d.Context.ThreadID)
	r.events.Publish(events.NewFaultInterceptedEvent(r.app, art.ID, d.Kind.String(), d.Summary(), d.Manual))

	var notes []string
	r.step(logger, art, "snapshot", func() error {
		path, err := r.snapshots.Write(core.SnapshotRequest{
			ID:         art.ID,
			App:        r.app,
			Descriptor: d,
			Context:    d.Context,
			Detail:     r.detail,
			IncludeEnv: r.includeEnv,
			CreatedAt:  at,
		})
		if err != nil {
			notes = append(notes, "snapshot: "+snapshot.LastErrorText(err))
			return err
		}
		art.SnapshotPath = path
		notes = append(notes, "Snapshot: "+path)
		return nil
	})

	r.step(logger, art, "report", func() error {
		text, buildErr := r.assembler.Build(context.Background(), report.Input{
			Descriptor: d,
			CreatedAt:  at,
			Notes:      notes,
		})
		if text == "" {
			return buildErr
		}
		path, err := r.sink.Write(text, at)
		if err != nil {
			return errors.Join(buildErr, err)
		}
		art.ReportPath = path
		return buildErr
	})

	errs := make([]string, 0, len(art.Errors))
	for _, err := range art.Errors {
		errs = append(errs, err.Error())
	}
	r.events.Publish(events.NewArtifactWrittenEvent(r.app, art.ID, d.Kind.String(),
		art.SnapshotPath, art.ReportPath, r.now().Sub(at), errs))
	return art
}

// step runs one pipeline stage, turning a fault inside it into an error.
func (r *Registry) step(logger *logging.Logger, art *core.Artifact, name string, fn func() error) {
	err := func() (err error) {
		defer func() {
			if v := recover(); v != nil {
				err = core.ErrDegraded(core.CodeReportFailed, name+" faulted").WithDetail("panic", fmt.Sprint(v))
			}
		}()
		return fn()
	}()
	if err != nil {
		logger.Warn("pipeline step failed", "step", name, "error", snapshot.LastErrorText(err))
		art.AddError(fmt.Errorf("%s: %w", name, err))
	}
}

func (r *Registry) notify(art *core.Artifact) {
	if r.onReport == nil {
		return
	}
	defer func() {
		if v := recover(); v != nil {
			r.logger.Warn("report callback faulted", "panic", fmt.Sprint(v))
		}
	}()
	r.onReport(art)
}

func executableName() string {
	exe, err := os.Executable()
	if err != nil {
		return "app"
	}
	return filepath.Base(exe)
}
