package runtime

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"

	"github.com/KorryKatti/Mirage/domain"
	apperrors "github.com/KorryKatti/Mirage/errors"
	"github.com/KorryKatti/Mirage/moderation"
	"github.com/KorryKatti/Mirage/registry"
)

// Conn is a live push connection. WriteLine must honor the timeout; a
// failure marks the peer unreachable.
type Conn interface {
	WriteLine(line string, timeout time.Duration) error
	Close() error
}

// MessageSink observes every chat message accepted by the dispatcher, after
// moderation. Sinks feed the checkpoint and the search index; a sink error
// never fails the send.
type MessageSink interface {
	Consume(m domain.Message) error
}

// Dispatcher fans one message out to every current member of a room.
//
// Delivery is best-effort, at-most-once: members with a live connection get
// a direct write bounded by deliveryTimeout; on failure that one copy is
// dropped and the connection detached, and the member's mailbox takes over
// from the next message on. Members without a connection get the line queued in
// their mailbox for the next poll.
//
// Fan-out for one room runs under the dispatcher lock, so all members see
// sends in the order the dispatcher processed them. No cross-room ordering
// is guaranteed or needed.
type Dispatcher struct {
	mu        sync.Mutex
	mailboxes map[string]*Mailbox
	conns     map[string]Conn

	log             *slog.Logger
	rooms           *registry.Registry
	history         *History
	moderator       *moderation.Moderator
	sinks           []MessageSink
	deliveryTimeout time.Duration
	mailboxCap      int
	now             func() time.Time
}

func NewDispatcher(log *slog.Logger, rooms *registry.Registry, history *History,
	moderator *moderation.Moderator, deliveryTimeout time.Duration, mailboxCap int) *Dispatcher {
	return &Dispatcher{
		mailboxes:       make(map[string]*Mailbox),
		conns:           make(map[string]Conn),
		log:             log,
		rooms:           rooms,
		history:         history,
		moderator:       moderator,
		deliveryTimeout: deliveryTimeout,
		mailboxCap:      mailboxCap,
		now:             time.Now,
	}
}

// AddSinks registers observers for accepted messages. Not safe after the
// first Send; call during wiring.
func (d *Dispatcher) AddSinks(sinks ...MessageSink) {
	d.sinks = append(d.sinks, sinks...)
}

// Send authorizes, moderates, formats and fans out one chat line, then
// appends it to the shared ephemeral log. Returns the number of deliveries.
func (d *Dispatcher) Send(roomID domain.RoomID, author, body string) (int, error) {
	if _, ok := d.rooms.GetByID(roomID); !ok {
		return 0, apperrors.ErrRoomNotFound
	}
	if !d.rooms.IsMember(roomID, author) {
		return 0, apperrors.ErrNotAMember
	}

	masked, matched := d.moderator.Censor(body)
	if len(matched) > 0 {
		info := whatlanggo.Detect(body)
		d.log.Warn("message censored",
			"author", author,
			"room", roomID,
			"words", len(matched),
			"lang", info.Lang.Iso6391())
	}

	createdAt := d.now().UTC()
	line := formatChatLine(createdAt, author, masked)

	members, err := d.rooms.MembersByID(roomID)
	if err != nil {
		return 0, err
	}

	d.mu.Lock()
	deliveries := 0
	for _, member := range members {
		if d.deliverLocked(member, line) {
			deliveries++
		}
	}
	d.mu.Unlock()

	msg := d.history.Append(domain.Message{
		ID:        uuid.New(),
		Room:      roomID,
		Author:    author,
		Body:      masked,
		CreatedAt: createdAt,
	})

	for _, sink := range d.sinks {
		if err := sink.Consume(msg); err != nil {
			d.log.Error("message sink failed", "error", err)
		}
	}

	return deliveries, nil
}

// System broadcasts a "* text" line to every member of the room. System
// lines are delivery-only; they never enter the ephemeral log.
func (d *Dispatcher) System(roomID domain.RoomID, text string) int {
	members, err := d.rooms.MembersByID(roomID)
	if err != nil {
		return 0
	}
	line := formatSystemLine(d.now(), text)

	d.mu.Lock()
	defer d.mu.Unlock()

	deliveries := 0
	for _, member := range members {
		if d.deliverLocked(member, line) {
			deliveries++
		}
	}
	return deliveries
}

// SystemTo queues a private system line for a single identity.
func (d *Dispatcher) SystemTo(identity, text string) {
	line := formatSystemLine(d.now(), text)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deliverLocked(identity, line)
}

// Attach binds a live connection to the identity. Further deliveries go
// through it instead of the mailbox.
func (d *Dispatcher) Attach(identity string, c Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if old, ok := d.conns[identity]; ok {
		_ = old.Close()
	}
	d.conns[identity] = c
}

// Detach removes the live connection, if any. The mailbox keeps queuing.
func (d *Dispatcher) Detach(identity string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.conns, identity)
}

// Drain empties the identity's mailbox, creating it on first use.
func (d *Dispatcher) Drain(identity string) []string {
	d.mu.Lock()
	box := d.boxLocked(identity)
	d.mu.Unlock()
	return box.Drain()
}

// RenameIdentity carries the mailbox and live connection over to a new
// identity after /nick.
func (d *Dispatcher) RenameIdentity(old, new string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if box, ok := d.mailboxes[old]; ok {
		delete(d.mailboxes, old)
		d.mailboxes[new] = box
	}
	if c, ok := d.conns[old]; ok {
		delete(d.conns, old)
		d.conns[new] = c
	}
}

// Forget drops the identity's mailbox and closes its connection. Called when
// a session is destroyed.
func (d *Dispatcher) Forget(identity string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.mailboxes, identity)
	if c, ok := d.conns[identity]; ok {
		_ = c.Close()
		delete(d.conns, identity)
	}
}

// deliverLocked pushes one line to one member. Requires d.mu held.
func (d *Dispatcher) deliverLocked(identity, line string) bool {
	if c, ok := d.conns[identity]; ok {
		err := c.WriteLine(line, d.deliveryTimeout)
		if err == nil {
			return true
		}
		// Unreachable peer: drop this copy, detach, let the mailbox take
		// over from the next message. At-most-once, by contract.
		d.log.Debug("push write failed, dropping recipient copy",
			"identity", identity, "error", err)
		_ = c.Close()
		delete(d.conns, identity)
		return false
	}
	d.boxLocked(identity).Push(line)
	return true
}

func (d *Dispatcher) boxLocked(identity string) *Mailbox {
	box, ok := d.mailboxes[identity]
	if !ok {
		box = NewMailbox(d.mailboxCap)
		d.mailboxes[identity] = box
	}
	return box
}

func formatChatLine(at time.Time, author, body string) string {
	return fmt.Sprintf("[%s] <%s> %s", at.Format("15:04"), author, body)
}

func formatSystemLine(at time.Time, text string) string {
	return fmt.Sprintf("[%s] * %s", at.Format("15:04"), text)
}
