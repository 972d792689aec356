//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/KorryKatti/Mirage/domain"
	apperrors "github.com/KorryKatti/Mirage/errors"
)

type IRoomRepository interface {
	SaveRoom(room domain.Room) error
	GetRoom(name string) (domain.Room, error)
	ListRooms() ([]domain.Room, error)
}

// roomRecord is the durable shape of a room. Membership is deliberately not
// persisted; the live registry rebuilds it from joins after a restart.
type roomRecord struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Topic          string    `json:"topic"`
	Private        bool      `json:"private"`
	CredentialHash string    `json:"credential_hash,omitempty"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
}

type RoomRepository struct {
	db *badger.DB
}

func NewRoomRepository(db *badger.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

const roomPrefix = "room:"

// Room names are case-sensitive identities, so the key keeps the name as-is.
func roomKey(name string) []byte {
	return []byte(roomPrefix + name)
}

func (r *RoomRepository) SaveRoom(room domain.Room) error {
	record := roomRecord{
		ID:             int64(room.ID),
		Name:           room.Name,
		Topic:          room.Topic,
		Private:        room.Private,
		CredentialHash: room.CredentialHash,
		CreatedBy:      room.CreatedBy,
		CreatedAt:      room.CreatedAt,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(roomKey(room.Name), data)
	})
}

func (r *RoomRepository) GetRoom(name string) (domain.Room, error) {
	var record roomRecord
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(name))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return apperrors.ErrRoomNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if err != nil {
		return domain.Room{}, err
	}
	return record.toDomain(), nil
}

// ListRooms scans every persisted room, used once at startup to seed the
// live registry.
func (r *RoomRepository) ListRooms() ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(roomPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var record roomRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			})
			if err != nil {
				return err
			}
			rooms = append(rooms, record.toDomain())
		}
		return nil
	})
	return rooms, err
}

func (rec roomRecord) toDomain() domain.Room {
	return domain.Room{
		ID:             domain.RoomID(rec.ID),
		Name:           rec.Name,
		Topic:          rec.Topic,
		Private:        rec.Private,
		CredentialHash: rec.CredentialHash,
		CreatedBy:      rec.CreatedBy,
		CreatedAt:      rec.CreatedAt,
	}
}
