// Package runtime hosts the hot path of the engine: the shared ephemeral
// log, per-session mailboxes, the broadcast dispatcher, and the slash
// command interpreter. It orchestrates without owning business rules.
package runtime

import (
	"sync"
	"time"

	"github.com/KorryKatti/Mirage/domain"
)

// History is the shared ephemeral log. It never exceeds maxEntries nor
// retains entries older than lifespan; both bounds are enforced on every
// append, so the log stays within limits even under bursty load.
type History struct {
	mu         sync.Mutex
	entries    []domain.Message
	maxEntries int
	lifespan   time.Duration
	seq        uint64
	now        func() time.Time
}

func NewHistory(maxEntries int, lifespan time.Duration) *History {
	return &History{
		maxEntries: maxEntries,
		lifespan:   lifespan,
		// Sequence numbers start at 1 so afterSeq 0 means "from the start".
		seq: 1,
		now: time.Now,
	}
}

// Seed restores checkpointed entries at startup. The retention pass runs
// immediately so a stale checkpoint cannot resurrect expired messages.
func (h *History) Seed(entries []domain.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries[:0], entries...)
	for _, m := range h.entries {
		if m.Seq >= h.seq {
			h.seq = m.Seq + 1
		}
	}
	h.evictLocked()
}

// Append stores the message, assigns its sequence number, and runs the dual
// eviction policy: entries past their lifespan go first regardless of
// position, then the oldest entries go until the count bound holds.
func (h *History) Append(m domain.Message) domain.Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	m.Seq = h.seq
	h.seq++
	h.entries = append(h.entries, m)
	h.evictLocked()
	return m
}

// Room returns the entries for one room with Seq greater than afterSeq,
// oldest first. afterSeq 0 returns everything retained.
func (h *History) Room(id domain.RoomID, afterSeq uint64) []domain.Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []domain.Message
	for _, m := range h.entries {
		if m.Room == id && m.Seq > afterSeq {
			out = append(out, m)
		}
	}
	return out
}

// Snapshot copies the full retained log, oldest first.
func (h *History) Snapshot() []domain.Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]domain.Message, len(h.entries))
	copy(out, h.entries)
	return out
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

func (h *History) evictLocked() {
	cutoff := h.now().Add(-h.lifespan)
	kept := h.entries[:0]
	for _, m := range h.entries {
		if m.CreatedAt.After(cutoff) {
			kept = append(kept, m)
		}
	}
	h.entries = kept

	if excess := len(h.entries) - h.maxEntries; excess > 0 {
		h.entries = append(h.entries[:0], h.entries[excess:]...)
	}
}
