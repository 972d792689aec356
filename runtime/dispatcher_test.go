package runtime

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/KorryKatti/Mirage/domain"
	apperrors "github.com/KorryKatti/Mirage/errors"
	"github.com/KorryKatti/Mirage/moderation"
	"github.com/KorryKatti/Mirage/registry"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubConn struct {
	lines  []string
	fail   bool
	closed bool
}

func (c *stubConn) WriteLine(line string, _ time.Duration) error {
	if c.fail {
		return errors.New("broken pipe")
	}
	c.lines = append(c.lines, line)
	return nil
}

func (c *stubConn) Close() error {
	c.closed = true
	return nil
}

type recordingSink struct {
	seen []domain.Message
}

func (s *recordingSink) Consume(m domain.Message) error {
	s.seen = append(s.seen, m)
	return nil
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *registry.Registry, *History) {
	t.Helper()
	rooms := registry.New(5)
	history := NewHistory(100, time.Hour)
	moderator, err := moderation.NewModerator([]string{"darn"}, '*')
	require.NoError(t, err)
	d := NewDispatcher(newTestLogger(), rooms, history, moderator, time.Second, 8)
	return d, rooms, history
}

func TestDispatcher_Send(t *testing.T) {
	t.Run("should fan out to every member and append to the log", func(t *testing.T) {
		req := require.New(t)
		d, rooms, history := newTestDispatcher(t)
		room, err := rooms.Create("#lobby", "alice", false, "")
		req.NoError(err)
		_, err = rooms.Join("#lobby", "bob", "")
		req.NoError(err)

		delivered, err := d.Send(room.ID, "alice", "hello bob")

		req.NoError(err)
		req.Equal(2, delivered)
		for _, member := range []string{"alice", "bob"} {
			lines := d.Drain(member)
			req.Len(lines, 1)
			req.Contains(lines[0], "<alice> hello bob")
		}
		req.Equal(1, history.Len())
		req.Equal("hello bob", history.Snapshot()[0].Body)
	})

	t.Run("should reject a non-member without touching the log", func(t *testing.T) {
		req := require.New(t)
		d, rooms, history := newTestDispatcher(t)
		room, err := rooms.Create("#lobby", "alice", false, "")
		req.NoError(err)

		_, err = d.Send(room.ID, "mallory", "let me in")

		req.ErrorIs(err, apperrors.ErrNotAMember)
		req.Zero(history.Len())
		req.Empty(d.Drain("alice"))
	})

	t.Run("should reject an unknown room", func(t *testing.T) {
		req := require.New(t)
		d, _, _ := newTestDispatcher(t)

		_, err := d.Send(99, "alice", "hello")
		req.ErrorIs(err, apperrors.ErrRoomNotFound)
	})

	t.Run("should mask forbidden words before fan-out and storage", func(t *testing.T) {
		req := require.New(t)
		d, rooms, history := newTestDispatcher(t)
		room, err := rooms.Create("#lobby", "alice", false, "")
		req.NoError(err)

		_, err = d.Send(room.ID, "alice", "darn it")

		req.NoError(err)
		lines := d.Drain("alice")
		req.Len(lines, 1)
		req.Contains(lines[0], "**** it")
		req.NotContains(lines[0], "darn")
		req.Equal("**** it", history.Snapshot()[0].Body)
	})

	t.Run("should feed every accepted message to the sinks", func(t *testing.T) {
		req := require.New(t)
		d, rooms, _ := newTestDispatcher(t)
		room, err := rooms.Create("#lobby", "alice", false, "")
		req.NoError(err)
		sink := &recordingSink{}
		d.AddSinks(sink)

		_, err = d.Send(room.ID, "alice", "indexed")

		req.NoError(err)
		req.Len(sink.seen, 1)
		req.Equal("indexed", sink.seen[0].Body)
	})
}

func TestDispatcher_PushDelivery(t *testing.T) {
	t.Run("should prefer the live connection over the mailbox", func(t *testing.T) {
		req := require.New(t)
		d, rooms, _ := newTestDispatcher(t)
		room, err := rooms.Create("#lobby", "alice", false, "")
		req.NoError(err)
		conn := &stubConn{}
		d.Attach("alice", conn)

		_, err = d.Send(room.ID, "alice", "pushed")

		req.NoError(err)
		req.Len(conn.lines, 1)
		req.Empty(d.Drain("alice"))
	})

	t.Run("should drop the copy and detach on a write failure", func(t *testing.T) {
		req := require.New(t)
		d, rooms, _ := newTestDispatcher(t)
		room, err := rooms.Create("#lobby", "alice", false, "")
		req.NoError(err)
		conn := &stubConn{fail: true}
		d.Attach("alice", conn)

		// When the first write fails
		delivered, err := d.Send(room.ID, "alice", "lost")
		req.NoError(err)
		req.Zero(delivered)
		req.True(conn.closed)

		// Then the failed copy stays lost and the mailbox takes over
		delivered, err = d.Send(room.ID, "alice", "queued again")
		req.NoError(err)
		req.Equal(1, delivered)
		lines := d.Drain("alice")
		req.Len(lines, 1)
		req.Contains(lines[0], "queued again")
	})
}

func TestDispatcher_SystemLines(t *testing.T) {
	req := require.New(t)
	d, rooms, history := newTestDispatcher(t)
	room, err := rooms.Create("#lobby", "alice", false, "")
	req.NoError(err)
	_, err = rooms.Join("#lobby", "bob", "")
	req.NoError(err)

	delivered := d.System(room.ID, "bob has joined #lobby")

	req.Equal(2, delivered)
	lines := d.Drain("bob")
	req.Len(lines, 1)
	req.True(strings.Contains(lines[0], "] * bob has joined #lobby"))
	// System lines are delivery-only.
	req.Zero(history.Len())

	d.SystemTo("alice", "private notice")
	req.Len(d.Drain("alice"), 2)
	req.Empty(d.Drain("bob"))
}

func TestDispatcher_RenameIdentity(t *testing.T) {
	req := require.New(t)
	d, rooms, _ := newTestDispatcher(t)
	room, err := rooms.Create("#lobby", "alice", false, "")
	req.NoError(err)

	_, err = d.Send(room.ID, "alice", "before rename")
	req.NoError(err)

	rooms.Rename("alice", "alicia")
	d.RenameIdentity("alice", "alicia")

	// The queued line follows the identity.
	lines := d.Drain("alicia")
	req.Len(lines, 1)
	req.Contains(lines[0], "before rename")
}
