package sysinfo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"fortio.org/safecast"
	"github.com/shirou/gopsutil/v3/process"
)

// Process is what the OS reports about one process.
type Process struct {
	PID        int
	Name       string
	Cmdline    string
	Cwd        string
	RSS        uint64
	VMS        uint64
	NumThreads int32
	CPUPercent float64
	CreateTime int64 // unix milliseconds
}

// ReadProcess queries the OS for pid. Fields that cannot be read are left
// zero and reported in the joined error.
func ReadProcess(ctx context.Context, pid int) (*Process, error) {
	pid32, err := safecast.Conv[int32](pid)
	if err != nil {
		return nil, fmt.Errorf("pid %d: %w", pid, err)
	}
	p, err := process.NewProcessWithContext(ctx, pid32)
	if err != nil {
		return nil, fmt.Errorf("opening process %d: %w", pid, err)
	}

	out := &Process{PID: pid}
	var errs []error
	note := func(field string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		}
	}

	out.Name, err = p.NameWithContext(ctx)
	note("name", err)
	out.Cmdline, err = p.CmdlineWithContext(ctx)
	note("cmdline", err)
	out.Cwd, err = p.CwdWithContext(ctx)
	note("cwd", err)
	if mi, err := p.MemoryInfoWithContext(ctx); err == nil {
		out.RSS, out.VMS = mi.RSS, mi.VMS
	} else {
		note("memory", err)
	}
	out.NumThreads, err = p.NumThreadsWithContext(ctx)
	note("threads", err)
	out.CPUPercent, err = p.CPUPercentWithContext(ctx)
	note("cpu", err)
	out.CreateTime, err = p.CreateTimeWithContext(ctx)
	note("create_time", err)

	return out, errors.Join(errs...)
}

// Self reads the current process.
func Self(ctx context.Context) (*Process, error) {
	return ReadProcess(ctx, os.Getpid())
}

// Summary renders a one-line process description.
func (p *Process) Summary() string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "pid %d", p.PID)
	if p.Name != "" {
		fmt.Fprintf(&b, " (%s)", p.Name)
	}
	fmt.Fprintf(&b, ", rss %s, threads %d", FormatSize(p.RSS), p.NumThreads)
	return b.String()
}
