package symbols

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/fault"
	"github.com/hugo-lorenzo-mato/crashguard/internal/snapshot"
	"github.com/hugo-lorenzo-mato/crashguard/internal/sysinfo"
)

const processProbeTimeout = 2 * time.Second

// WriteSnapshot collects process state for req and encodes it to w. Parts
// that cannot be collected are listed in the snapshot's Errors.
func (p *Provider) WriteSnapshot(w io.Writer, req core.SnapshotRequest) error {
	snap := p.buildSnapshot(req)

	var extra []snapshot.Entry
	if g := p.goroutineText(req.Context); len(g) > 0 {
		extra = append(extra, snapshot.Entry{Path: "goroutines.txt", Data: g})
	}
	if req.Detail == core.DetailFull {
		heap, err := heapDump()
		if err != nil {
			snap.Errors = append(snap.Errors, "heap dump: "+err.Error())
		} else {
			extra = append(extra, snapshot.Entry{Path: "heap.dump", Data: heap})
		}
	}

	if _, err := snapshot.Encode(w, snap, extra...); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return nil
}

func (p *Provider) buildSnapshot(req core.SnapshotRequest) *snapshot.Snapshot {
	snap := &snapshot.Snapshot{
		Version:   snapshot.FormatVersion,
		ID:        req.ID,
		App:       req.App,
		CreatedAt: req.CreatedAt,
		Detail:    string(req.Detail),
		PID:       os.Getpid(),
	}
	if d := req.Descriptor; d != nil {
		snap.Kind = d.Kind.String()
		snap.Code = uint32(d.Code)
		if d.Code != core.CodeNone {
			snap.CodeName = d.Code.Name()
		}
		if d.Kind == core.KindSigFPE || d.SubCode != core.FPEUnknown {
			snap.SubCode = d.SubCode.String()
		}
		snap.FaultAddr = uint64(d.FaultAddr)
		snap.HasAddr = d.HasAddr
		snap.Access = d.Access.String()
		snap.Signal = d.Signal
		snap.Value = d.Value
		snap.Manual = d.Manual
		if c := d.Contract; c != nil {
			snap.Contract = &snapshot.Contract{Expression: c.Expression, Function: c.Function, File: c.File, Line: c.Line}
		}
	}
	if ctx := req.Context; ctx != nil {
		snap.ThreadID = ctx.ThreadID
		snap.GoroutineID = ctx.GoroutineID
		snap.PCs = make([]uint64, len(ctx.PCs))
		for i, pc := range ctx.PCs {
			snap.PCs[i] = uint64(pc)
		}
		snap.Frames = symbolize(ctx.PCs)
	}

	snap.Modules = buildModules()
	if regions, err := Regions(); err != nil {
		snap.Errors = append(snap.Errors, "regions: "+err.Error())
	} else {
		for _, r := range regions {
			snap.Regions = append(snap.Regions, snapshot.Region{
				Start: uint64(r.Start), End: uint64(r.End), Perms: r.Perms, Path: r.Path,
			})
		}
	}

	snap.Runtime = snapshot.RuntimeInfo{
		GoVersion:    runtime.Version(),
		GOOS:         runtime.GOOS,
		GOARCH:       runtime.GOARCH,
		NumCPU:       runtime.NumCPU(),
		GOMAXPROCS:   runtime.GOMAXPROCS(0),
		NumGoroutine: runtime.NumGoroutine(),
	}
	if exe, err := os.Executable(); err == nil {
		snap.Runtime.Executable = exe
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	snap.Memory = snapshot.MemStats{
		HeapAlloc:    ms.HeapAlloc,
		HeapInuse:    ms.HeapInuse,
		HeapSys:      ms.HeapSys,
		StackInuse:   ms.StackInuse,
		Sys:          ms.Sys,
		NumGC:        ms.NumGC,
		PauseTotalNs: ms.PauseTotalNs,
	}
	snap.Resources.OpenFDs, snap.Resources.MaxFDs = sysinfo.CountFDs()

	pctx, cancel := context.WithTimeout(context.Background(), processProbeTimeout)
	defer cancel()
	proc, err := sysinfo.Self(pctx)
	if err != nil {
		snap.Errors = append(snap.Errors, "process: "+err.Error())
	}
	if proc != nil {
		snap.Process = &snapshot.ProcessInfo{
			Name:       proc.Name,
			Cmdline:    p.logger.Sanitize(proc.Cmdline),
			Cwd:        proc.Cwd,
			RSS:        proc.RSS,
			VMS:        proc.VMS,
			NumThreads: proc.NumThreads,
			CPUPercent: proc.CPUPercent,
			CreateTime: proc.CreateTime,
		}
	}

	if req.IncludeEnv {
		snap.Env = p.logger.Sanitizer().RedactEnv(os.Environ())
	}
	return snap
}

func symbolize(pcs []uintptr) []snapshot.Frame {
	if len(pcs) == 0 {
		return nil
	}
	out := make([]snapshot.Frame, 0, len(pcs))
	frames := runtime.CallersFrames(pcs)
	for {
		f, more := frames.Next()
		out = append(out, snapshot.Frame{
			PC:       uint64(f.PC),
			Function: f.Function,
			File:     f.File,
			Line:     f.Line,
		})
		if !more {
			break
		}
	}
	return out
}

func buildModules() []snapshot.Module {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	mods := []snapshot.Module{{Path: bi.Main.Path, Version: bi.Main.Version, Sum: bi.Main.Sum, Main: true}}
	for _, dep := range bi.Deps {
		m := dep
		if dep.Replace != nil {
			m = dep.Replace
		}
		mods = append(mods, snapshot.Module{Path: m.Path, Version: m.Version, Sum: m.Sum})
	}
	return mods
}

func (p *Provider) goroutineText(ctx *core.Context) []byte {
	if ctx != nil && len(ctx.Goroutines) > 0 {
		return ctx.Goroutines
	}
	if !p.includeGoroutines {
		return nil
	}
	return fault.AllGoroutines()
}

// heapDump writes the runtime heap dump to a temporary file and returns its
// contents.
func heapDump() ([]byte, error) {
	f, err := os.CreateTemp("", "crashguard-heap-*")
	if err != nil {
		return nil, err
	}
	defer os.Remove(f.Name())
	defer f.Close()

	debug.WriteHeapDump(f.Fd())
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(f)
}
