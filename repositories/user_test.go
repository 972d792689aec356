package repositories

import (
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"github.com/KorryKatti/Mirage/errors"
)

func newTestDB(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(newTestDB(t))

	id, err := repo.CreateUser("alice", "$argon2id$fakehash")
	req.NoError(err)
	req.NotEmpty(id)

	record, err := repo.GetUser("alice")
	req.NoError(err)
	req.Equal("alice", record.Username)
	req.Equal("$argon2id$fakehash", record.PasswordHash)
	req.Equal(id, record.ID)

	_, err = repo.GetUser("nobody")
	req.ErrorIs(err, errors.ErrUserNotFound)
}

func TestUserRepository_DuplicateUsername(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(newTestDB(t))

	_, err := repo.CreateUser("alice", "hash1")
	req.NoError(err)

	_, err = repo.CreateUser("alice", "hash2")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func TestUserRepository_Exists(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(newTestDB(t))

	ok, err := repo.Exists("alice")
	req.NoError(err)
	req.False(ok)

	_, err = repo.CreateUser("alice", "hash")
	req.NoError(err)

	ok, err = repo.Exists("alice")
	req.NoError(err)
	req.True(ok)
}

func TestUserRepository_Rename(t *testing.T) {
	t.Run("should move the record to the new name", func(t *testing.T) {
		req := require.New(t)
		repo := NewUserRepository(newTestDB(t))
		id, err := repo.CreateUser("alice", "hash")
		req.NoError(err)

		req.NoError(repo.Rename("alice", "alicia"))

		record, err := repo.GetUser("alicia")
		req.NoError(err)
		req.Equal("alicia", record.Username)
		req.Equal(id, record.ID)

		_, err = repo.GetUser("alice")
		req.ErrorIs(err, errors.ErrUserNotFound)
	})

	t.Run("should refuse to overwrite an existing account", func(t *testing.T) {
		req := require.New(t)
		repo := NewUserRepository(newTestDB(t))
		_, err := repo.CreateUser("alice", "hash")
		req.NoError(err)
		_, err = repo.CreateUser("bob", "hash")
		req.NoError(err)

		req.ErrorIs(repo.Rename("alice", "bob"), errors.ErrNickTaken)

		// Both records are untouched.
		_, err = repo.GetUser("alice")
		req.NoError(err)
		_, err = repo.GetUser("bob")
		req.NoError(err)
	})

	t.Run("should fail for an unknown source", func(t *testing.T) {
		req := require.New(t)
		repo := NewUserRepository(newTestDB(t))

		req.ErrorIs(repo.Rename("ghost", "somebody"), errors.ErrUserNotFound)
	})
}
