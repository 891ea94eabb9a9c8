package diagnostics

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/crashguard/internal/sysinfo"
)

func fakeReader(rss *atomic.Uint64) func(context.Context, int) (*sysinfo.Process, error) {
	return func(_ context.Context, pid int) (*sysinfo.Process, error) {
		return &sysinfo.Process{PID: pid, RSS: rss.Add(1 << 20), NumThreads: 4}, nil
	}
}

func TestProcessMonitor_StartStop(t *testing.T) {
	var rss atomic.Uint64
	m := NewProcessMonitor(42, 10*time.Millisecond, 5, nil)
	m.read = fakeReader(&rss)

	m.Start(t.Context())
	require.Eventually(t, func() bool { return len(m.GetHistory()) >= 3 }, 5*time.Second, 5*time.Millisecond)
	m.Stop()
	m.Stop()

	n := len(m.GetHistory())
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, m.GetHistory(), n, "no samples after Stop")
	assert.LessOrEqual(t, n, 5, "history is bounded")

	peak, ok := m.Peak()
	require.True(t, ok)
	history := m.GetHistory()
	assert.Equal(t, history[len(history)-1].RSS, peak.RSS)
}

func TestProcessMonitor_ReadFailure(t *testing.T) {
	m := NewProcessMonitor(42, time.Hour, 5, nil)
	m.read = func(context.Context, int) (*sysinfo.Process, error) {
		return nil, errors.New("gone")
	}
	m.Start(t.Context())
	m.Stop()

	assert.Empty(t, m.GetHistory())
	_, ok := m.Peak()
	assert.False(t, ok)
}

func TestProcessMonitor_Trend(t *testing.T) {
	m := NewProcessMonitor(42, time.Second, 10, nil)
	assert.True(t, m.GetTrend().IsHealthy, "too few samples")

	start := time.Now()
	m.record(ProcessSample{Timestamp: start, RSS: 100 << 20, NumThreads: 4})
	m.record(ProcessSample{Timestamp: start.Add(30 * time.Minute), RSS: 300 << 20, NumThreads: 4})

	trend := m.GetTrend()
	assert.False(t, trend.IsHealthy)
	assert.InDelta(t, 400.0, trend.MemoryGrowthRate, 0.01)
	require.Len(t, trend.Warnings, 1)
	assert.Contains(t, trend.Warnings[0], "Memory growing")
}

func TestProcessMonitor_ReadsRealProcess(t *testing.T) {
	m := NewProcessMonitor(os.Getpid(), time.Hour, 5, nil)
	m.Start(t.Context())
	m.Stop()

	if _, ok := m.Peak(); !ok {
		t.Skip("process information unavailable on this platform")
	}
	assert.NotEmpty(t, m.GetHistory())
}
