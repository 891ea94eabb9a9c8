package sysinfo

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/jaypipes/ghw"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"golang.org/x/sync/errgroup"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/logging"
)

// Probe collects host information through gopsutil, falling back to ghw for
// processor and memory data.
type Probe struct {
	logger   *logging.Logger
	diskPath string

	mu            sync.Mutex
	infoCollected bool
	cpuModel      string
	cpuCount      int
	physCores     int
}

// New creates a probe. The processor identity is cached after the first
// successful collection.
func New(logger *logging.Logger) *Probe {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Probe{
		logger:   logger.WithComponent("sysinfo"),
		diskPath: rootDiskPath(),
	}
}

var _ core.SystemProbe = (*Probe)(nil)

// Collect gathers processor, memory, disk, load and OS information
// concurrently.
func (p *Probe) Collect(ctx context.Context) (*core.SystemInfo, error) {
	info := &core.SystemInfo{
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
		CPUCount: runtime.NumCPU(),
		DiskPath: p.diskPath,
	}

	var errMu sync.Mutex
	fail := func(probe string, err error) error {
		errMu.Lock()
		info.Errors = append(info.Errors, fmt.Sprintf("%s: %v", probe, err))
		errMu.Unlock()
		p.logger.Debug("probe failed", "probe", probe, "error", err)
		return ctx.Err()
	}

	// Each probe writes a disjoint set of fields.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := p.collectCPU(gctx, info); err != nil {
			return fail("cpu", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := collectMemory(gctx, info); err != nil {
			return fail("memory", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := collectHost(gctx, info); err != nil {
			return fail("host", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := collectDisk(gctx, info); err != nil {
			return fail("disk", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := collectLoad(gctx, info); err != nil {
			return fail("load", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return info, err
	}
	return info, nil
}

func (p *Probe) collectCPU(ctx context.Context, info *core.SystemInfo) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.infoCollected {
		var errs []string
		if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
			p.cpuModel = strings.TrimSpace(infos[0].ModelName)
		} else if err != nil {
			errs = append(errs, err.Error())
		}
		if threads, err := cpu.CountsWithContext(ctx, true); err == nil && threads > 0 {
			p.cpuCount = threads
		}
		if cores, err := cpu.CountsWithContext(ctx, false); err == nil && cores > 0 {
			p.physCores = cores
		}

		if p.cpuModel == "" || p.physCores == 0 {
			if err := p.cpuFromGhw(); err != nil {
				errs = append(errs, "ghw: "+err.Error())
			}
		}
		if p.cpuModel == "" && len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		p.infoCollected = true
	}

	info.CPUModel = p.cpuModel
	if p.cpuCount > 0 {
		info.CPUCount = p.cpuCount
	}
	info.PhysicalCores = p.physCores
	return nil
}

func (p *Probe) cpuFromGhw() error {
	ci, err := ghw.CPU()
	if err != nil {
		return err
	}
	if p.cpuModel == "" && len(ci.Processors) > 0 {
		p.cpuModel = strings.TrimSpace(ci.Processors[0].Model)
	}
	if p.physCores == 0 && ci.TotalCores > 0 {
		p.physCores = int(ci.TotalCores)
	}
	return nil
}

func collectMemory(ctx context.Context, info *core.SystemInfo) error {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		mi, ghwErr := ghw.Memory()
		if ghwErr != nil || mi.TotalPhysicalBytes <= 0 {
			return err
		}
		info.TotalMemory = uint64(mi.TotalPhysicalBytes)
		return nil
	}

	info.TotalMemory = vm.Total
	info.AvailableMemory = vm.Available
	info.CommitLimit = vm.CommitLimit
	if info.CommitLimit == 0 {
		// Without an explicit limit, physical plus swap bounds committed memory.
		info.CommitLimit = vm.Total
		if sw, err := mem.SwapMemoryWithContext(ctx); err == nil {
			info.CommitLimit += sw.Total
		}
	}
	return nil
}

func collectHost(ctx context.Context, info *core.SystemInfo) error {
	hi, err := host.InfoWithContext(ctx)
	if err != nil {
		if name, herr := os.Hostname(); herr == nil {
			info.Hostname = name
		}
		return err
	}
	info.Platform = strings.TrimSpace(hi.Platform + " " + hi.PlatformVersion)
	info.KernelVersion = hi.KernelVersion
	info.Hostname = hi.Hostname
	if hi.KernelArch != "" {
		info.Arch = runtime.GOARCH + " (" + hi.KernelArch + ")"
	}
	return nil
}

func collectDisk(ctx context.Context, info *core.SystemInfo) error {
	usage, err := disk.UsageWithContext(ctx, info.DiskPath)
	if err != nil {
		return err
	}
	info.DiskTotal = usage.Total
	info.DiskFree = usage.Free
	return nil
}

func collectLoad(ctx context.Context, info *core.SystemInfo) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return err
	}
	info.LoadAvg = []float64{avg.Load1, avg.Load5, avg.Load15}
	return nil
}

// OSVersion renders the OS line of a report.
func OSVersion(info *core.SystemInfo) string {
	if info == nil {
		return "<unknown>"
	}
	parts := make([]string, 0, 3)
	if info.Platform != "" {
		parts = append(parts, info.Platform)
	} else if info.OS != "" {
		parts = append(parts, info.OS)
	}
	if info.KernelVersion != "" {
		parts = append(parts, "kernel "+info.KernelVersion)
	}
	if info.Arch != "" {
		parts = append(parts, info.Arch)
	}
	if len(parts) == 0 {
		return "<unknown>"
	}
	return strings.Join(parts, ", ")
}

func rootDiskPath() string {
	if runtime.GOOS == "windows" {
		drive := os.Getenv("SystemDrive")
		if drive == "" {
			drive = "C:"
		}
		return drive + "\\"
	}
	return "/"
}
