//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	apperrors "github.com/KorryKatti/Mirage/errors"
)

type IUserRepository interface {
	CreateUser(username, passwordHash string) (string, error)
	GetUser(username string) (User, error)
	Exists(username string) (bool, error)
	Rename(old, new string) error
}

// User is the durable account record. The engine only ever needs the name
// and the credential hash; everything else about accounts belongs to the
// surrounding CRUD application.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

func userKey(username string) []byte {
	return []byte("user:" + username)
}

// CreateUser persists the account, rejecting duplicates. Returns the new
// user ID.
func (u *UserRepository) CreateUser(username, passwordHash string) (string, error) {
	record := User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		key := userKey(username)
		if _, err := txn.Get(key); err == nil {
			return apperrors.ErrUserAlreadyExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return "", err
	}
	return record.ID, nil
}

func (u *UserRepository) GetUser(username string) (User, error) {
	var record User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(username))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return apperrors.ErrUserNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	return record, err
}

func (u *UserRepository) Exists(username string) (bool, error) {
	err := u.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(userKey(username))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Rename moves the record to the new username inside one transaction so a
// crash cannot leave both names claimed.
func (u *UserRepository) Rename(old, new string) error {
	return u.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(userKey(new)); err == nil {
			return apperrors.ErrNickTaken
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		item, err := txn.Get(userKey(old))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return apperrors.ErrUserNotFound
			}
			return err
		}

		var record User
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		}); err != nil {
			return err
		}
		record.Username = new

		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		if err := txn.Delete(userKey(old)); err != nil {
			return err
		}
		return txn.Set(userKey(new), data)
	})
}
