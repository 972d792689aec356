// Package registry owns the room directory: metadata and live member sets.
// It behaves as a single logical monitor; every mutation takes the write
// lock, lookups take the read lock. Chat traffic rates make simplicity the
// dominant concern here, not lock-free cleverness.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/KorryKatti/Mirage/auth"
	"github.com/KorryKatti/Mirage/domain"
	apperrors "github.com/KorryKatti/Mirage/errors"
)

type memberSet map[string]struct{}

type room struct {
	meta    domain.Room
	members memberSet
}

// Registry maps normalized room names to rooms. Rooms are never implicitly
// deleted: a room with zero members stays listed.
type Registry struct {
	mu             sync.RWMutex
	byName         map[string]*room
	byID           map[domain.RoomID]*room
	nextID         domain.RoomID
	maxPublicRooms int
	now            func() time.Time
}

func New(maxPublicRooms int) *Registry {
	return &Registry{
		byName:         make(map[string]*room),
		byID:           make(map[domain.RoomID]*room),
		nextID:         1,
		maxPublicRooms: maxPublicRooms,
		now:            time.Now,
	}
}

// Seed loads the durable room list at startup. Membership is not durable and
// is rebuilt from live joins.
func (r *Registry) Seed(rooms []domain.Room) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, meta := range rooms {
		if _, ok := r.byName[meta.Name]; ok {
			continue
		}
		entry := &room{meta: meta, members: make(memberSet)}
		r.byName[meta.Name] = entry
		r.byID[meta.ID] = entry
		if meta.ID >= r.nextID {
			r.nextID = meta.ID + 1
		}
	}
}

// Create registers a new room and auto-joins the creator. The credential
// arrives pre-hashed; the registry never sees plain private-room passwords.
func (r *Registry) Create(name, creator string, private bool, credentialHash string) (domain.Room, error) {
	name = domain.NormalizeRoomName(name)
	if name == "" {
		return domain.Room{}, apperrors.ErrInvalidRoomName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[name]; ok {
		return domain.Room{}, apperrors.ErrRoomAlreadyExists
	}
	if !private && r.maxPublicRooms > 0 && r.publicCountLocked() >= r.maxPublicRooms {
		return domain.Room{}, apperrors.ErrTooManyPublicRooms
	}

	meta := domain.Room{
		ID:             r.nextID,
		Name:           name,
		Private:        private,
		CredentialHash: credentialHash,
		CreatedBy:      creator,
		CreatedAt:      r.now().UTC(),
	}
	r.nextID++

	entry := &room{meta: meta, members: memberSet{creator: {}}}
	r.byName[name] = entry
	r.byID[meta.ID] = entry
	return meta, nil
}

// Join adds the identity to the room. Re-joining an already-joined room
// succeeds and refreshes membership rather than erroring, so reconnect races
// stay harmless. Private rooms require the matching credential.
func (r *Registry) Join(name, identity, credential string) (domain.Room, error) {
	name = domain.NormalizeRoomName(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byName[name]
	if !ok {
		return domain.Room{}, apperrors.ErrRoomNotFound
	}
	if entry.meta.Private {
		if credential == "" {
			return domain.Room{}, apperrors.ErrPasswordRequired
		}
		match, err := auth.VerifySecret(credential, entry.meta.CredentialHash)
		if err != nil || !match {
			return domain.Room{}, apperrors.ErrWrongPassword
		}
	}
	entry.members[identity] = struct{}{}
	return entry.meta, nil
}

// Leave removes the identity from the room's member set. Leaving a room you
// are not in is not an error.
func (r *Registry) Leave(name, identity string) error {
	name = domain.NormalizeRoomName(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byName[name]
	if !ok {
		return apperrors.ErrRoomNotFound
	}
	delete(entry.members, identity)
	return nil
}

func (r *Registry) Get(name string) (domain.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.byName[domain.NormalizeRoomName(name)]
	if !ok {
		return domain.Room{}, false
	}
	return entry.meta, true
}

func (r *Registry) GetByID(id domain.RoomID) (domain.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.byID[id]
	if !ok {
		return domain.Room{}, false
	}
	return entry.meta, true
}

// Members returns a sorted snapshot of the room's member set.
func (r *Registry) Members(name string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.byName[domain.NormalizeRoomName(name)]
	if !ok {
		return nil, apperrors.ErrRoomNotFound
	}
	members := lo.Keys(entry.members)
	sort.Strings(members)
	return members, nil
}

// MembersByID is the fan-out path: a snapshot keyed by room id.
func (r *Registry) MembersByID(id domain.RoomID) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.byID[id]
	if !ok {
		return nil, apperrors.ErrRoomNotFound
	}
	return lo.Keys(entry.members), nil
}

// IsMember reports membership of identity in the room with the given id.
func (r *Registry) IsMember(id domain.RoomID, identity string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.byID[id]
	if !ok {
		return false
	}
	_, member := entry.members[identity]
	return member
}

// List snapshots rooms visible to the identity: all public rooms plus the
// private rooms it belongs to.
func (r *Registry) List(identity string) []domain.RoomSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.RoomSummary
	for _, entry := range r.byName {
		_, joined := entry.members[identity]
		if entry.meta.Private && !joined {
			continue
		}
		out = append(out, domain.RoomSummary{
			ID:      entry.meta.ID,
			Name:    entry.meta.Name,
			Topic:   entry.meta.Topic,
			Members: len(entry.members),
			Private: entry.meta.Private,
			Joined:  joined,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RoomsOf returns the rooms the identity currently belongs to.
func (r *Registry) RoomsOf(identity string) []domain.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Room
	for _, entry := range r.byName {
		if _, ok := entry.members[identity]; ok {
			out = append(out, entry.meta)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetTopic updates room metadata; the actor must be a current member.
func (r *Registry) SetTopic(name, actor, topic string) (domain.Room, error) {
	name = domain.NormalizeRoomName(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byName[name]
	if !ok {
		return domain.Room{}, apperrors.ErrRoomNotFound
	}
	if _, member := entry.members[actor]; !member {
		return domain.Room{}, apperrors.ErrNotAMember
	}
	entry.meta.Topic = topic
	return entry.meta, nil
}

// Rename swaps an identity across every member set it appears in.
// Both membership views stay consistent because the swap happens under the
// single registry lock.
func (r *Registry) Rename(old, new string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entry := range r.byName {
		if _, ok := entry.members[old]; ok {
			delete(entry.members, old)
			entry.members[new] = struct{}{}
		}
	}
}

func (r *Registry) publicCountLocked() int {
	count := 0
	for _, entry := range r.byName {
		if !entry.meta.Private {
			count++
		}
	}
	return count
}
