// Package observability aggregates process self-telemetry for the health
// endpoint and periodic logging.
package observability

import (
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/process"
)

// SelfStats is one sample of process-level metrics.
type SelfStats struct {
	RSSBytes    uint64    `json:"rss_bytes"`
	CPUPercent  float64   `json:"cpu_percent"`
	Goroutines  int       `json:"goroutines"`
	AllocMemMB  uint64    `json:"alloc_mem_mb"`
	NumGC       uint32    `json:"num_gc"`
	CollectedAt time.Time `json:"collected_at"`
}

// Monitor holds the latest sample behind a read lock for cheap reads on the
// health endpoint.
type Monitor struct {
	mu     sync.RWMutex
	proc   *process.Process
	latest SelfStats
}

func NewMonitor(pid int32) (*Monitor, error) {
	p, err := process.NewProcess(pid)
	if err != nil {
		return nil, err
	}
	return &Monitor{proc: p}, nil
}

// Collect samples the process and stores the result.
func (m *Monitor) Collect() (SelfStats, error) {
	memInfo, err := m.proc.MemoryInfo()
	if err != nil {
		return SelfStats{}, err
	}
	cpuPercent, err := m.proc.CPUPercent()
	if err != nil {
		return SelfStats{}, err
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := SelfStats{
		RSSBytes:    memInfo.RSS,
		CPUPercent:  cpuPercent,
		Goroutines:  runtime.NumGoroutine(),
		AllocMemMB:  ms.Alloc / 1024 / 1024,
		NumGC:       ms.NumGC,
		CollectedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	m.latest = stats
	m.mu.Unlock()
	return stats, nil
}

// Latest returns the most recent sample without touching the OS.
func (m *Monitor) Latest() SelfStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}
