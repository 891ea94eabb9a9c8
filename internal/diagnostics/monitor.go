package diagnostics

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hugo-lorenzo-mato/crashguard/internal/logging"
	"github.com/hugo-lorenzo-mato/crashguard/internal/sysinfo"
)

// ProcessSample is one observation of a supervised process.
type ProcessSample struct {
	Timestamp  time.Time
	RSS        uint64
	NumThreads int32
	CPUPercent float64
}

// ResourceTrend summarizes how a supervised process grows over time.
type ResourceTrend struct {
	MemoryGrowthRate float64 // MB per hour
	ThreadGrowthRate float64 // threads per hour
	IsHealthy        bool
	Warnings         []string
}

// ProcessMonitor samples the resource use of one process.
type ProcessMonitor struct {
	pid         int
	interval    time.Duration
	historySize int
	logger      *logging.Logger
	read        func(ctx context.Context, pid int) (*sysinfo.Process, error)

	history []ProcessSample
	peak    ProcessSample
	mu      sync.RWMutex

	stopCh  chan struct{}
	done    chan struct{}
	stopped atomic.Bool
}

// NewProcessMonitor creates a monitor for pid.
func NewProcessMonitor(pid int, interval time.Duration, historySize int, logger *logging.Logger) *ProcessMonitor {
	if historySize <= 0 {
		historySize = 120
	}
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ProcessMonitor{
		pid:         pid,
		interval:    interval,
		historySize: historySize,
		logger:      logger.WithComponent("monitor"),
		read:        sysinfo.ReadProcess,
		history:     make([]ProcessSample, 0, historySize),
		stopCh:      make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start begins periodic sampling until ctx is done or Stop is called.
func (m *ProcessMonitor) Start(ctx context.Context) {
	go func() {
		defer close(m.done)
		m.sample(ctx)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.sample(ctx)
				if trend := m.GetTrend(); !trend.IsHealthy {
					for _, w := range trend.Warnings {
						m.logger.Warn("resource warning", "pid", m.pid, "message", w)
					}
				}
			}
		}
	}()
}

// Stop halts sampling and waits for the sampler to exit. Stop must only be
// called after Start.
func (m *ProcessMonitor) Stop() {
	if m.stopped.CompareAndSwap(false, true) {
		close(m.stopCh)
	}
	<-m.done
}

func (m *ProcessMonitor) sample(ctx context.Context) {
	p, err := m.read(ctx, m.pid)
	if p == nil {
		m.logger.Debug("process sample failed", "pid", m.pid, "error", err)
		return
	}
	m.record(ProcessSample{
		Timestamp:  time.Now(),
		RSS:        p.RSS,
		NumThreads: p.NumThreads,
		CPUPercent: p.CPUPercent,
	})
}

func (m *ProcessMonitor) record(s ProcessSample) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.history = append(m.history, s)
	if len(m.history) > m.historySize {
		m.history = m.history[len(m.history)-m.historySize:]
	}
	if s.RSS >= m.peak.RSS {
		m.peak = s
	}
}

// GetHistory returns the retained samples, oldest first.
func (m *ProcessMonitor) GetHistory() []ProcessSample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]ProcessSample, len(m.history))
	copy(result, m.history)
	return result
}

// Peak returns the sample with the highest resident set size.
func (m *ProcessMonitor) Peak() (ProcessSample, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.peak, !m.peak.Timestamp.IsZero()
}

// GetTrend analyzes the retained samples for steady growth.
func (m *ProcessMonitor) GetTrend() ResourceTrend {
	history := m.GetHistory()
	if len(history) < 2 {
		return ResourceTrend{IsHealthy: true}
	}

	first := history[0]
	last := history[len(history)-1]
	hours := last.Timestamp.Sub(first.Timestamp).Hours()
	if hours < 0.01 {
		return ResourceTrend{IsHealthy: true}
	}

	trend := ResourceTrend{
		MemoryGrowthRate: (float64(last.RSS) - float64(first.RSS)) / 1024 / 1024 / hours,
		ThreadGrowthRate: float64(last.NumThreads-first.NumThreads) / hours,
		IsHealthy:        true,
	}
	if trend.MemoryGrowthRate > 100 {
		trend.IsHealthy = false
		trend.Warnings = append(trend.Warnings,
			fmt.Sprintf("Memory growing at %.1f MB/hour", trend.MemoryGrowthRate))
	}
	if trend.ThreadGrowthRate > 100 {
		trend.IsHealthy = false
		trend.Warnings = append(trend.Warnings,
			fmt.Sprintf("Thread count growing at %.1f/hour (potential leak)", trend.ThreadGrowthRate))
	}
	return trend
}
