package workers

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/KorryKatti/Mirage/domain"
	"github.com/KorryKatti/Mirage/runtime"
)

// CheckpointWriter persists a snapshot of the ephemeral log.
type CheckpointWriter interface {
	Save(entries []domain.Message) error
}

// CheckpointWorker flushes the ephemeral log to the flat-file checkpoint.
// It doubles as a dispatcher sink: every accepted message marks the log
// dirty, and the ticker writes at most one snapshot per interval. The
// checkpoint is a cache, never a source of truth, so losing a flush is
// acceptable.
type CheckpointWorker struct {
	log      *slog.Logger
	history  *runtime.History
	store    CheckpointWriter
	interval time.Duration
	dirty    atomic.Bool
}

func NewCheckpointWorker(log *slog.Logger, history *runtime.History,
	store CheckpointWriter, interval time.Duration) *CheckpointWorker {
	return &CheckpointWorker{
		log:      log,
		history:  history,
		store:    store,
		interval: interval,
	}
}

// Consume implements runtime.MessageSink.
func (w *CheckpointWorker) Consume(domain.Message) error {
	w.dirty.Store(true)
	return nil
}

func (w *CheckpointWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final flush so a graceful shutdown keeps the latest entries.
			w.Flush()
			return ctx.Err()
		case <-ticker.C:
			w.Flush()
		}
	}
}

// Flush writes a snapshot if anything changed since the last write.
func (w *CheckpointWorker) Flush() {
	if !w.dirty.Swap(false) {
		return
	}
	if err := w.store.Save(w.history.Snapshot()); err != nil {
		w.log.Error("checkpoint flush failed", "error", err)
		w.dirty.Store(true)
	}
}
