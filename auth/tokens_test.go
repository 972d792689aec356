package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/KorryKatti/Mirage/errors"
)

func TestTokenStore_IssueAndResolve(t *testing.T) {
	req := require.New(t)
	s := NewTokenStore([]byte("test-secret-key"), time.Hour)

	session, err := s.Issue("alice")
	req.NoError(err)
	req.NotEmpty(session.Token)

	identity, err := s.Resolve(session.Token)
	req.NoError(err)
	req.Equal("alice", identity)

	_, err = s.Resolve("garbage-token")
	req.ErrorIs(err, errors.ErrUnauthorized)
}

func TestTokenStore_ReissueInvalidatesOldToken(t *testing.T) {
	req := require.New(t)
	s := NewTokenStore([]byte("test-secret-key"), time.Hour)

	first, err := s.Issue("alice")
	req.NoError(err)
	second, err := s.Issue("alice")
	req.NoError(err)

	// The old token still carries a valid signature but the store no longer
	// honors it.
	_, err = s.Resolve(first.Token)
	req.ErrorIs(err, errors.ErrUnauthorized)

	identity, err := s.Resolve(second.Token)
	req.NoError(err)
	req.Equal("alice", identity)
}

func TestTokenStore_Revoke(t *testing.T) {
	req := require.New(t)
	s := NewTokenStore([]byte("test-secret-key"), time.Hour)

	session, err := s.Issue("alice")
	req.NoError(err)

	req.NoError(s.Revoke(session.Token))
	_, err = s.Resolve(session.Token)
	req.ErrorIs(err, errors.ErrUnauthorized)
	req.ErrorIs(s.Revoke(session.Token), errors.ErrUnauthorized)

	// RevokeIdentity takes the same path keyed by name.
	_, err = s.Issue("bob")
	req.NoError(err)
	s.RevokeIdentity("bob")
	req.False(s.Active("bob"))
}

func TestTokenStore_Rename(t *testing.T) {
	req := require.New(t)
	s := NewTokenStore([]byte("test-secret-key"), time.Hour)

	session, err := s.Issue("alice")
	req.NoError(err)

	s.Rename("alice", "alicia")

	identity, err := s.Resolve(session.Token)
	req.NoError(err)
	req.Equal("alicia", identity)
	req.True(s.Active("alicia"))
	req.False(s.Active("alice"))
}

func TestTokenStore_Idle(t *testing.T) {
	req := require.New(t)
	s := NewTokenStore([]byte("test-secret-key"), time.Hour)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	_, err := s.Issue("alice")
	req.NoError(err)
	bobSession, err := s.Issue("bob")
	req.NoError(err)

	// When bob refreshes 40s in and the sweep runs at +45s
	s.now = func() time.Time { return base.Add(40 * time.Second) }
	_, err = s.Resolve(bobSession.Token)
	req.NoError(err)

	s.now = func() time.Time { return base.Add(45 * time.Second) }
	idle := s.Idle(30 * time.Second)

	// Then only alice exceeded the 30s idle timeout
	req.Len(idle, 1)
	req.Equal("alice", idle[0].Identity)
}
