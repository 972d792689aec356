package runtime

import "sync"

// Mailbox is the bounded FIFO of formatted lines awaiting delivery to one
// session. Polls drain it; overflow drops the oldest line so a client that
// never polls cannot grow the process.
type Mailbox struct {
	mu       sync.Mutex
	lines    []string
	capacity int
}

func NewMailbox(capacity int) *Mailbox {
	return &Mailbox{capacity: capacity}
}

func (m *Mailbox) Push(line string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.capacity > 0 && len(m.lines) >= m.capacity {
		m.lines = m.lines[1:]
	}
	m.lines = append(m.lines, line)
}

// Drain returns every queued line in FIFO order and empties the mailbox.
func (m *Mailbox) Drain() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.lines
	m.lines = nil
	return out
}

func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lines)
}
