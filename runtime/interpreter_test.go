package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/KorryKatti/Mirage/auth"
	"github.com/KorryKatti/Mirage/domain"
	apperrors "github.com/KorryKatti/Mirage/errors"
	"github.com/KorryKatti/Mirage/moderation"
	"github.com/KorryKatti/Mirage/registry"
	"github.com/KorryKatti/Mirage/search"
)

type stubUsers struct {
	existing map[string]bool
	renames  [][2]string
}

func (s *stubUsers) Exists(username string) (bool, error) {
	return s.existing[username], nil
}

func (s *stubUsers) Rename(old, new string) error {
	s.renames = append(s.renames, [2]string{old, new})
	return nil
}

type stubRoomStore struct {
	saved []domain.Room
}

func (s *stubRoomStore) SaveRoom(room domain.Room) error {
	s.saved = append(s.saved, room)
	return nil
}

type interpreterFixture struct {
	interpreter *Interpreter
	dispatcher  *Dispatcher
	rooms       *registry.Registry
	tokens      *auth.TokenStore
	users       *stubUsers
	roomStore   *stubRoomStore
}

func newInterpreterFixture(t *testing.T) *interpreterFixture {
	t.Helper()
	log := newTestLogger()
	rooms := registry.New(5)
	history := NewHistory(100, time.Hour)
	moderator, err := moderation.NewModerator([]string{"darn"}, '*')
	require.NoError(t, err)
	dispatcher := NewDispatcher(log, rooms, history, moderator, time.Second, 8)
	tokens := auth.NewTokenStore([]byte("test-secret-key"), time.Hour)
	users := &stubUsers{existing: map[string]bool{}}
	roomStore := &stubRoomStore{}
	index, err := search.NewInMemoryIndex(log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	dispatcher.AddSinks(index)

	return &interpreterFixture{
		interpreter: NewInterpreter(log, rooms, tokens, users, roomStore, dispatcher, index),
		dispatcher:  dispatcher,
		rooms:       rooms,
		tokens:      tokens,
		users:       users,
		roomStore:   roomStore,
	}
}

func TestInterpreter_Join(t *testing.T) {
	t.Run("should join an existing room and announce it", func(t *testing.T) {
		req := require.New(t)
		f := newInterpreterFixture(t)
		_, err := f.rooms.Create("#lobby", "alice", false, "")
		req.NoError(err)

		channel, err := f.interpreter.Execute(context.Background(), "bob", "", "/join #lobby")

		req.NoError(err)
		req.Equal("#lobby", channel)
		req.True(f.rooms.IsMember(1, "bob"))
		lines := f.dispatcher.Drain("alice")
		req.Len(lines, 1)
		req.Contains(lines[0], "bob has joined #lobby")
	})

	t.Run("should create an unknown room on demand and persist it", func(t *testing.T) {
		req := require.New(t)
		f := newInterpreterFixture(t)

		channel, err := f.interpreter.Execute(context.Background(), "alice", "", "/join newplace")

		req.NoError(err)
		req.Equal("#newplace", channel)
		req.Len(f.roomStore.saved, 1)
		req.Equal("#newplace", f.roomStore.saved[0].Name)
		req.False(f.roomStore.saved[0].Private)
	})

	t.Run("should leave the previous channel when switching", func(t *testing.T) {
		req := require.New(t)
		f := newInterpreterFixture(t)
		_, err := f.rooms.Create("#old", "alice", false, "")
		req.NoError(err)
		_, err = f.rooms.Create("#new", "bob", false, "")
		req.NoError(err)

		channel, err := f.interpreter.Execute(context.Background(), "alice", "#old", "/join #new")

		req.NoError(err)
		req.Equal("#new", channel)
		req.False(f.rooms.IsMember(1, "alice"))
		req.True(f.rooms.IsMember(2, "alice"))
	})
}

func TestInterpreter_Part(t *testing.T) {
	req := require.New(t)
	f := newInterpreterFixture(t)
	_, err := f.rooms.Create("#lobby", "alice", false, "")
	req.NoError(err)
	_, err = f.rooms.Join("#lobby", "bob", "")
	req.NoError(err)

	channel, err := f.interpreter.Execute(context.Background(), "bob", "#lobby", "/part")

	req.NoError(err)
	req.Empty(channel)
	req.False(f.rooms.IsMember(1, "bob"))
	lines := f.dispatcher.Drain("alice")
	req.Len(lines, 1)
	req.Contains(lines[0], "bob has left #lobby")
}

func TestInterpreter_Nick(t *testing.T) {
	t.Run("should rename across sessions, rooms and deliveries", func(t *testing.T) {
		req := require.New(t)
		f := newInterpreterFixture(t)
		_, err := f.tokens.Issue("alice")
		req.NoError(err)
		_, err = f.rooms.Create("#lobby", "alice", false, "")
		req.NoError(err)
		_, err = f.rooms.Join("#lobby", "bob", "")
		req.NoError(err)

		_, err = f.interpreter.Execute(context.Background(), "alice", "#lobby", "/nick alicia")

		req.NoError(err)
		req.Equal([][2]string{{"alice", "alicia"}}, f.users.renames)
		req.True(f.tokens.Active("alicia"))
		req.False(f.tokens.Active("alice"))
		req.True(f.rooms.IsMember(1, "alicia"))
		lines := f.dispatcher.Drain("bob")
		req.Len(lines, 1)
		req.Contains(lines[0], "alice is now known as alicia")
	})

	t.Run("should refuse a nick with an account behind it", func(t *testing.T) {
		req := require.New(t)
		f := newInterpreterFixture(t)
		f.users.existing["taken"] = true

		_, err := f.interpreter.Execute(context.Background(), "alice", "", "/nick taken")

		req.ErrorIs(err, apperrors.ErrNickTaken)
		req.Empty(f.users.renames)
	})

	t.Run("should refuse a nick held by a live session", func(t *testing.T) {
		req := require.New(t)
		f := newInterpreterFixture(t)
		_, err := f.tokens.Issue("bob")
		req.NoError(err)

		_, err = f.interpreter.Execute(context.Background(), "alice", "", "/nick bob")
		req.ErrorIs(err, apperrors.ErrNickTaken)
	})
}

func TestInterpreter_Topic(t *testing.T) {
	req := require.New(t)
	f := newInterpreterFixture(t)
	_, err := f.rooms.Create("#lobby", "alice", false, "")
	req.NoError(err)

	// Non-members cannot touch the topic.
	_, err = f.interpreter.Execute(context.Background(), "mallory", "#lobby", "/topic hacked")
	req.ErrorIs(err, apperrors.ErrNotAMember)

	_, err = f.interpreter.Execute(context.Background(), "alice", "#lobby", "/topic fresh topic")
	req.NoError(err)

	room, ok := f.rooms.Get("#lobby")
	req.True(ok)
	req.Equal("fresh topic", room.Topic)
	lines := f.dispatcher.Drain("alice")
	req.Len(lines, 1)
	req.Contains(lines[0], "alice set the topic to: fresh topic")
}

func TestInterpreter_List(t *testing.T) {
	req := require.New(t)
	f := newInterpreterFixture(t)
	_, err := f.rooms.Create("#lobby", "alice", false, "")
	req.NoError(err)
	_, err = f.rooms.Create("#dev", "alice", false, "")
	req.NoError(err)

	_, err = f.interpreter.Execute(context.Background(), "bob", "", "/list")

	req.NoError(err)
	lines := f.dispatcher.Drain("bob")
	req.Len(lines, 3)
	req.Contains(lines[0], "2 rooms")
	req.Contains(lines[1], "#lobby (1 members)")
}

func TestInterpreter_Me(t *testing.T) {
	req := require.New(t)
	f := newInterpreterFixture(t)
	_, err := f.rooms.Create("#lobby", "alice", false, "")
	req.NoError(err)

	_, err = f.interpreter.Execute(context.Background(), "alice", "#lobby", "/me waves")
	req.NoError(err)

	lines := f.dispatcher.Drain("alice")
	req.Len(lines, 1)
	req.Contains(lines[0], "* alice waves")

	_, err = f.interpreter.Execute(context.Background(), "mallory", "#lobby", "/me lurks")
	req.ErrorIs(err, apperrors.ErrNotAMember)
}

func TestInterpreter_Find(t *testing.T) {
	req := require.New(t)
	f := newInterpreterFixture(t)
	room, err := f.rooms.Create("#lobby", "alice", false, "")
	req.NoError(err)
	_, err = f.dispatcher.Send(room.ID, "alice", "deployment finished")
	req.NoError(err)
	f.dispatcher.Drain("alice")

	_, err = f.interpreter.Execute(context.Background(), "alice", "#lobby", "/find deployment")

	req.NoError(err)
	lines := f.dispatcher.Drain("alice")
	req.Len(lines, 2)
	req.Contains(lines[0], "1 results")
	req.Contains(lines[1], "<alice> deployment finished")
}

func TestInterpreter_UnknownCommand(t *testing.T) {
	req := require.New(t)
	f := newInterpreterFixture(t)
	_, err := f.rooms.Create("#lobby", "alice", false, "")
	req.NoError(err)
	_, err = f.rooms.Join("#lobby", "bob", "")
	req.NoError(err)

	channel, err := f.interpreter.Execute(context.Background(), "alice", "#lobby", "/dance hard")

	// The issuer gets a private notice; nobody else sees anything.
	req.NoError(err)
	req.Equal("#lobby", channel)
	lines := f.dispatcher.Drain("alice")
	req.Len(lines, 1)
	req.Contains(lines[0], "unknown command /dance")
	req.Empty(f.dispatcher.Drain("bob"))
}
