package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/KorryKatti/Mirage/auth"
	"github.com/KorryKatti/Mirage/domain"
	"github.com/KorryKatti/Mirage/errors"
)

func TestRegistry_Create(t *testing.T) {
	t.Run("should normalize the name and auto-join the creator", func(t *testing.T) {
		req := require.New(t)
		r := New(5)

		room, err := r.Create("lobby", "alice", false, "")

		req.NoError(err)
		req.Equal("#lobby", room.Name)
		req.Equal(domain.RoomID(1), room.ID)

		members, err := r.Members("#lobby")
		req.NoError(err)
		req.Equal([]string{"alice"}, members)
	})

	t.Run("should reject a duplicate name", func(t *testing.T) {
		req := require.New(t)
		r := New(5)

		_, err := r.Create("#lobby", "alice", false, "")
		req.NoError(err)

		_, err = r.Create("lobby", "bob", false, "")
		req.ErrorIs(err, errors.ErrRoomAlreadyExists)
	})

	t.Run("should enforce the public room cap, privates excluded", func(t *testing.T) {
		req := require.New(t)
		r := New(2)

		_, err := r.Create("#one", "alice", false, "")
		req.NoError(err)
		_, err = r.Create("#two", "alice", false, "")
		req.NoError(err)

		_, err = r.Create("#three", "alice", false, "")
		req.ErrorIs(err, errors.ErrTooManyPublicRooms)

		// A private room does not count against the cap.
		_, err = r.Create("#secret", "alice", true, "hash")
		req.NoError(err)
	})
}

func TestRegistry_Join(t *testing.T) {
	t.Run("should be idempotent for an existing member", func(t *testing.T) {
		req := require.New(t)
		r := New(5)
		_, err := r.Create("#lobby", "alice", false, "")
		req.NoError(err)

		_, err = r.Join("#lobby", "bob", "")
		req.NoError(err)
		_, err = r.Join("#lobby", "bob", "")
		req.NoError(err)

		members, err := r.Members("#lobby")
		req.NoError(err)
		req.Equal([]string{"alice", "bob"}, members)
	})

	t.Run("should gate a private room behind its credential", func(t *testing.T) {
		req := require.New(t)
		r := New(5)
		hash, err := auth.HashSecret("hunter22")
		req.NoError(err)
		_, err = r.Create("#vault", "alice", true, hash)
		req.NoError(err)

		_, err = r.Join("#vault", "bob", "")
		req.ErrorIs(err, errors.ErrPasswordRequired)

		_, err = r.Join("#vault", "bob", "wrong")
		req.ErrorIs(err, errors.ErrWrongPassword)

		_, err = r.Join("#vault", "bob", "hunter22")
		req.NoError(err)
		req.True(r.IsMember(1, "bob"))
	})

	t.Run("should fail on an unknown room", func(t *testing.T) {
		req := require.New(t)
		r := New(5)

		_, err := r.Join("#nowhere", "bob", "")
		req.ErrorIs(err, errors.ErrRoomNotFound)
	})
}

func TestRegistry_Leave(t *testing.T) {
	req := require.New(t)
	r := New(5)
	_, err := r.Create("#lobby", "alice", false, "")
	req.NoError(err)

	// Leaving twice is harmless; the room survives with zero members.
	req.NoError(r.Leave("#lobby", "alice"))
	req.NoError(r.Leave("#lobby", "alice"))

	members, err := r.Members("#lobby")
	req.NoError(err)
	req.Empty(members)
	_, ok := r.Get("#lobby")
	req.True(ok)

	req.ErrorIs(r.Leave("#ghost", "alice"), errors.ErrRoomNotFound)
}

func TestRegistry_List(t *testing.T) {
	req := require.New(t)
	r := New(5)
	_, err := r.Create("#lobby", "alice", false, "")
	req.NoError(err)
	_, err = r.Create("#vault", "alice", true, "hash")
	req.NoError(err)

	// Given bob, outside the private room
	visible := r.List("bob")
	req.Len(visible, 1)
	req.Equal("#lobby", visible[0].Name)
	req.False(visible[0].Joined)

	// Given alice, member of both
	visible = r.List("alice")
	req.Len(visible, 2)
	req.True(visible[0].Joined)
	req.True(visible[1].Private)
}

func TestRegistry_SetTopic(t *testing.T) {
	req := require.New(t)
	r := New(5)
	_, err := r.Create("#lobby", "alice", false, "")
	req.NoError(err)

	_, err = r.SetTopic("#lobby", "bob", "intruder topic")
	req.ErrorIs(err, errors.ErrNotAMember)

	room, err := r.SetTopic("#lobby", "alice", "welcome")
	req.NoError(err)
	req.Equal("welcome", room.Topic)
}

func TestRegistry_Rename(t *testing.T) {
	req := require.New(t)
	r := New(5)
	_, err := r.Create("#lobby", "alice", false, "")
	req.NoError(err)
	_, err = r.Create("#dev", "alice", false, "")
	req.NoError(err)

	r.Rename("alice", "alicia")

	for _, name := range []string{"#lobby", "#dev"} {
		members, err := r.Members(name)
		req.NoError(err)
		req.Equal([]string{"alicia"}, members)
	}
}

func TestRegistry_Seed(t *testing.T) {
	req := require.New(t)
	r := New(5)

	r.Seed([]domain.Room{
		{ID: 7, Name: "#restored", CreatedAt: time.Now()},
	})

	// Seeded rooms start empty and the ID sequence continues past them.
	members, err := r.Members("#restored")
	req.NoError(err)
	req.Empty(members)

	room, err := r.Create("#fresh", "alice", false, "")
	req.NoError(err)
	req.Equal(domain.RoomID(8), room.ID)
}
