package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/KorryKatti/Mirage/observability"
)

// SelfStatsWorker samples process health (RSS, CPU, goroutines) on a ticker
// and logs it. The latest sample is also what /api/health reports.
type SelfStatsWorker struct {
	log      *slog.Logger
	monitor  *observability.Monitor
	interval time.Duration
}

func NewSelfStatsWorker(log *slog.Logger, monitor *observability.Monitor,
	interval time.Duration) *SelfStatsWorker {
	return &SelfStatsWorker{log: log, monitor: monitor, interval: interval}
}

func (w *SelfStatsWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			stats, err := w.monitor.Collect()
			if err != nil {
				w.log.Warn("failed to collect self stats", "error", err)
				continue
			}
			w.log.Info("self stats",
				"rss_mb", stats.RSSBytes/1024/1024,
				"cpu_percent", stats.CPUPercent,
				"goroutines", stats.Goroutines,
				"num_gc", stats.NumGC)
		}
	}
}
