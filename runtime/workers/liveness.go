package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/KorryKatti/Mirage/auth"
	"github.com/KorryKatti/Mirage/registry"
	"github.com/KorryKatti/Mirage/runtime"
)

// LivenessWorker sweeps idle sessions on a fixed period. A session whose
// last_seen exceeds the idle timeout is removed from every room it occupies,
// a departure broadcast is emitted per room, and the session is destroyed.
// Each session is handled log-and-continue so one bad entry never stalls the
// rest of the sweep.
type LivenessWorker struct {
	log        *slog.Logger
	tokens     *auth.TokenStore
	rooms      *registry.Registry
	dispatcher *runtime.Dispatcher
	interval   time.Duration
	idle       time.Duration
}

func NewLivenessWorker(log *slog.Logger, tokens *auth.TokenStore, rooms *registry.Registry,
	dispatcher *runtime.Dispatcher, interval, idle time.Duration) *LivenessWorker {
	return &LivenessWorker{
		log:        log,
		tokens:     tokens,
		rooms:      rooms,
		dispatcher: dispatcher,
		interval:   interval,
		idle:       idle,
	}
}

func (w *LivenessWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Sweep()
		}
	}
}

// Sweep runs one pass. Exported so tests can drive it without the ticker.
func (w *LivenessWorker) Sweep() {
	for _, session := range w.tokens.Idle(w.idle) {
		identity := session.Identity

		for _, room := range w.rooms.RoomsOf(identity) {
			if err := w.rooms.Leave(room.Name, identity); err != nil {
				w.log.Warn("failed to remove idle member",
					"identity", identity, "room", room.Name, "error", err)
				continue
			}
			w.dispatcher.System(room.ID,
				fmt.Sprintf("%s has disconnected (timeout)", identity))
		}

		w.tokens.RevokeIdentity(identity)
		w.dispatcher.Forget(identity)
		w.log.Info("idle session destroyed",
			"identity", identity, "last_seen", session.LastSeen)
	}
}
