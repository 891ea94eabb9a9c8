// Package report assembles the human-readable fault report: a timestamp
// header, the fault summary, the symbolized call stack with locals and a
// description of the host.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/logging"
	"github.com/hugo-lorenzo-mato/crashguard/internal/stackwalk"
	"github.com/hugo-lorenzo-mato/crashguard/internal/sysinfo"
)

const (
	sectionRule = "==========================================================================="
	tableRule   = "---------------------------"

	defaultProbeTimeout = 5 * time.Second
)

// Config tunes report assembly.
type Config struct {
	MaxDepth     int  // frames emitted; 0 uses stackwalk.DefaultMaxDepth
	Skip         int  // leading frames unwound but not emitted
	SystemInfo   bool // include the hardware and OS sections
	ProbeTimeout time.Duration
	Now          func() time.Time
}

// Input is what one report describes.
type Input struct {
	Descriptor *core.Descriptor
	CreatedAt  time.Time
	Notes      []string // diagnostics annotations appended at the end
}

// Assembler builds reports through a symbol provider and a system probe.
type Assembler struct {
	provider core.SymbolProvider
	probe    core.SystemProbe
	logger   *logging.Logger
	cfg      Config
}

// New creates an assembler. probe may be nil.
func New(provider core.SymbolProvider, probe core.SystemProbe, cfg Config, logger *logging.Logger) *Assembler {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	return &Assembler{
		provider: provider,
		probe:    probe,
		logger:   logger.WithComponent("report"),
		cfg:      cfg,
	}
}

// Build renders the report for in. Optional information that cannot be
// resolved shortens the report instead of failing it. When the symbol
// session cannot be opened, Build returns the header and fault summary
// together with a degraded error.
func (a *Assembler) Build(ctx context.Context, in Input) (string, error) {
	d := in.Descriptor
	if d == nil {
		d = &core.Descriptor{Kind: core.KindUnknown}
	}
	at := in.CreatedAt
	if at.IsZero() {
		at = a.cfg.Now()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Fault report created at %s\n", at.Format(time.ANSIC))
	b.WriteString(sectionRule + "\n")
	a.safely("summary", func() { a.writeSummary(&b, d) })

	if err := a.provider.Initialize(); err != nil {
		a.logger.Warn("symbol session unavailable", "error", err)
		fmt.Fprintf(&b, "\n*** Diagnostics ***\nsymbols: %v\n", err)
		return b.String(), core.ErrDegraded(core.CodeSymbolsFailed, "initializing symbol session").WithCause(err)
	}
	defer func() {
		if err := a.provider.Cleanup(); err != nil {
			a.logger.Debug("symbol cleanup failed", "error", err)
		}
	}()

	a.safely("call stack", func() { a.writeStack(&b, d.Context) })

	var notes []string
	if a.cfg.SystemInfo && a.probe != nil {
		a.safely("system info", func() { notes = a.writeSystem(ctx, &b) })
	}

	notes = append(notes, in.Notes...)
	if len(notes) > 0 {
		b.WriteString("\n*** Diagnostics ***\n")
		for _, n := range notes {
			b.WriteString(n + "\n")
		}
	}
	return b.String(), nil
}

// safely runs one section, dropping it if it faults.
func (a *Assembler) safely(section string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("report section faulted", "section", section, "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

func (a *Assembler) writeSummary(b *strings.Builder, d *core.Descriptor) {
	pc := d.Context.PC()
	threadID := 0
	if d.Context != nil {
		threadID = d.Context.ThreadID
	}

	b.WriteString("*** Fault ***\n")
	module, err := a.provider.ModuleFromAddr(pc)
	if err != nil {
		a.logger.Debug("module lookup failed", "error", err)
		module = "<unknown>"
	}
	fmt.Fprintf(b, "Module: %s\n", module)
	fmt.Fprintf(b, "Fault address: 0x%X, Thread ID: %d\n", pc, threadID)
	if d.Code == core.CodeAccessViolation && d.HasAddr {
		fmt.Fprintf(b, "Failed to %s address 0x%X\n", d.Access, d.FaultAddr)
	}
	if d.Code != core.CodeNone {
		fmt.Fprintf(b, "Fault code: %s\n", d.Code)
	}
	fmt.Fprintf(b, "Fault kind: %s (%s)\n", d.Kind.Description(), d.Kind)
	if d.Signal != "" {
		fmt.Fprintf(b, "Signal: %s\n", d.Signal)
	}
	if d.Kind == core.KindSigFPE || d.SubCode != core.FPEUnknown {
		fmt.Fprintf(b, "FPE sub-code: %s\n", d.SubCode)
	}
	if c := d.Contract; c != nil {
		fmt.Fprintf(b, "Expression: %s\nFunction: %s\nFile: %s [%d]\n", c.Expression, c.Function, c.File, c.Line)
	}
	if d.Value != "" {
		fmt.Fprintf(b, "Value: %s\n", d.Value)
	}
	if d.Context != nil && d.Context.GoroutineID != 0 {
		fmt.Fprintf(b, "Goroutine: %d\n", d.Context.GoroutineID)
	}
	if d.Manual {
		b.WriteString("Manual: yes\n")
	}
}

func (a *Assembler) writeStack(b *strings.Builder, ctx *core.Context) {
	b.WriteString("\nCall stack:\n")
	b.WriteString(tableRule + "\n")
	b.WriteString("Level   Address   Function\tSourceFile\n")

	walker := stackwalk.New(a.provider, a.logger)
	level := 0
	for f := range walker.Frames(ctx, a.cfg.Skip, a.cfg.MaxDepth) {
		b.WriteString(FrameLine(level, f) + "\n")
		for _, l := range f.Locals {
			for _, line := range strings.Split(l.Text, "\n") {
				b.WriteString("\t" + line + "\n")
			}
		}
		level++
	}
}

// FrameLine renders one call-stack row. Missing symbol or line information
// shortens the row.
func FrameLine(level int, f core.StackFrame) string {
	line := fmt.Sprintf("%02d. (0x%X)", level, f.PC)
	if f.HasSymbol() {
		line += fmt.Sprintf(" %s+0x%X", f.Function, f.Offset)
	}
	if f.HasLine() {
		line += fmt.Sprintf("  %s [%d]", f.File, f.Line)
	}
	return line
}

// writeSystem renders the host sections and returns the probes that failed.
func (a *Assembler) writeSystem(ctx context.Context, b *strings.Builder) []string {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.ProbeTimeout)
	defer cancel()

	info, err := a.probe.Collect(ctx)
	if info == nil {
		info = &core.SystemInfo{}
	}
	var notes []string
	if err != nil && !errors.Is(err, context.Canceled) {
		notes = append(notes, fmt.Sprintf("system info: %v", err))
	}
	for _, e := range info.Errors {
		notes = append(notes, "probe "+e)
	}

	WriteSystemInfo(b, info)
	return notes
}

// WriteSystemInfo renders the hardware and operating system sections.
func WriteSystemInfo(w io.Writer, info *core.SystemInfo) {
	fmt.Fprint(w, "\n"+sectionRule+"\n")
	fmt.Fprint(w, "*** Hardware ***\n")
	processor := info.CPUModel
	if processor == "" {
		processor = "<unknown>"
	}
	fmt.Fprintf(w, "Processor: %s\n", processor)
	if info.PhysicalCores > 0 {
		fmt.Fprintf(w, "Number Of Processors: %d (%d physical cores)\n", info.CPUCount, info.PhysicalCores)
	} else {
		fmt.Fprintf(w, "Number Of Processors: %d\n", info.CPUCount)
	}
	fmt.Fprintf(w, "Physical Memory: %s (Available: %s)\n",
		sysinfo.FormatSize(info.TotalMemory), sysinfo.FormatSize(info.AvailableMemory))
	fmt.Fprintf(w, "Commit Charge Limit: %s\n", sysinfo.FormatSize(info.CommitLimit))
	if info.DiskTotal > 0 {
		fmt.Fprintf(w, "Disk (%s): %s (Free: %s)\n", info.DiskPath,
			sysinfo.FormatSize(info.DiskTotal), sysinfo.FormatSize(info.DiskFree))
	}
	if len(info.LoadAvg) == 3 {
		fmt.Fprintf(w, "Load Average: %.2f %.2f %.2f\n", info.LoadAvg[0], info.LoadAvg[1], info.LoadAvg[2])
	}

	fmt.Fprint(w, "\n*** Operating System ***\n")
	fmt.Fprint(w, sysinfo.OSVersion(info)+"\n")
}
