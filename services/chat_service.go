package services

import (
	"context"
	"log/slog"

	"github.com/KorryKatti/Mirage/auth"
	"github.com/KorryKatti/Mirage/domain"
	apperrors "github.com/KorryKatti/Mirage/errors"
	"github.com/KorryKatti/Mirage/registry"
	"github.com/KorryKatti/Mirage/runtime"
	"github.com/KorryKatti/Mirage/search"
)

// RoomStore persists room metadata created through the service.
type RoomStore interface {
	SaveRoom(room domain.Room) error
}

// ChatService fronts rooms, messaging and the slash sub-protocol.
type ChatService struct {
	log           *slog.Logger
	rooms         *registry.Registry
	history       *runtime.History
	dispatcher    *runtime.Dispatcher
	interpreter   *runtime.Interpreter
	index         *search.Index
	roomStore     RoomStore
	maxContentLen int
}

func NewChatService(log *slog.Logger, rooms *registry.Registry, history *runtime.History,
	dispatcher *runtime.Dispatcher, interpreter *runtime.Interpreter, index *search.Index,
	roomStore RoomStore, maxContentLen int) *ChatService {
	return &ChatService{
		log:           log,
		rooms:         rooms,
		history:       history,
		dispatcher:    dispatcher,
		interpreter:   interpreter,
		index:         index,
		roomStore:     roomStore,
		maxContentLen: maxContentLen,
	}
}

// CreateRoom registers a room, hashing the credential for private rooms, and
// persists the metadata. The creator is auto-joined by the registry.
func (s *ChatService) CreateRoom(identity, name, topic string, private bool, credential string) (domain.Room, error) {
	if err := auth.ValidateRoomName(name); err != nil {
		return domain.Room{}, err
	}

	var credentialHash string
	if private {
		if credential == "" {
			return domain.Room{}, apperrors.ErrPasswordRequired
		}
		hash, err := auth.HashSecret(credential)
		if err != nil {
			return domain.Room{}, err
		}
		credentialHash = hash
	}

	room, err := s.rooms.Create(name, identity, private, credentialHash)
	if err != nil {
		return domain.Room{}, err
	}
	if topic != "" {
		if updated, err := s.rooms.SetTopic(room.Name, identity, topic); err == nil {
			room = updated
		}
	}

	if err := s.roomStore.SaveRoom(room); err != nil {
		s.log.Error("failed to persist room", "room", room.Name, "error", err)
	}
	s.log.Info("room created",
		"room", room.Name, "private", room.Private, "created_by", identity)
	return room, nil
}

// JoinRoom adds the identity to the room without any broadcast; the explicit
// announcement path is the /join command.
func (s *ChatService) JoinRoom(identity, name, credential string) (domain.Room, error) {
	return s.rooms.Join(name, identity, credential)
}

// SendMessage validates the body and hands it to the dispatcher. Returns the
// number of copies delivered.
func (s *ChatService) SendMessage(identity string, roomID domain.RoomID, body string) (int, error) {
	if err := auth.ValidateBody(body, s.maxContentLen); err != nil {
		return 0, err
	}
	return s.dispatcher.Send(roomID, identity, body)
}

// SendToRoom is SendMessage addressed by room name, for the line-oriented
// transports that track a current channel instead of a room id.
func (s *ChatService) SendToRoom(identity, name, body string) (int, error) {
	room, ok := s.rooms.Get(name)
	if !ok {
		return 0, apperrors.ErrRoomNotFound
	}
	return s.SendMessage(identity, room.ID, body)
}

// RoomMessages replays the retained log of one room for a member, entries
// with a sequence number above afterSeq only.
func (s *ChatService) RoomMessages(identity string, roomID domain.RoomID, afterSeq uint64) ([]domain.Message, error) {
	if _, ok := s.rooms.GetByID(roomID); !ok {
		return nil, apperrors.ErrRoomNotFound
	}
	if !s.rooms.IsMember(roomID, identity) {
		return nil, apperrors.ErrNotAMember
	}
	return s.history.Room(roomID, afterSeq), nil
}

// ListRooms snapshots the rooms visible to the identity.
func (s *ChatService) ListRooms(identity string) []domain.RoomSummary {
	return s.rooms.List(identity)
}

// RoomMembers lists the member set of a room. Private rooms only answer to
// their own members.
func (s *ChatService) RoomMembers(identity, name string) ([]string, error) {
	room, ok := s.rooms.Get(name)
	if !ok {
		return nil, apperrors.ErrRoomNotFound
	}
	if room.Private && !s.rooms.IsMember(room.ID, identity) {
		return nil, apperrors.ErrNotAMember
	}
	return s.rooms.Members(name)
}

// UserRooms returns the rooms the identity currently belongs to.
func (s *ChatService) UserRooms(identity string) []domain.Room {
	return s.rooms.RoomsOf(identity)
}

// PollResult is the pull-path response: the queued lines plus a membership
// snapshot of every joined room.
type PollResult struct {
	Messages []string            `json:"messages"`
	Users    map[string][]string `json:"users"`
}

// Poll drains the identity's mailbox. Draining empties the queue; a second
// poll returns nothing until new messages arrive.
func (s *ChatService) Poll(identity string) PollResult {
	result := PollResult{
		Messages: s.dispatcher.Drain(identity),
		Users:    make(map[string][]string),
	}
	for _, room := range s.rooms.RoomsOf(identity) {
		members, err := s.rooms.Members(room.Name)
		if err != nil {
			continue
		}
		result.Users[room.Name] = members
	}
	return result
}

// Command executes one slash line for the identity. channel is the session's
// current room; the returned name is the channel to carry forward.
func (s *ChatService) Command(ctx context.Context, identity, channel, line string) (string, error) {
	return s.interpreter.Execute(ctx, identity, channel, line)
}

// Search runs a full-text query over indexed messages. Private rooms only
// answer to their own members.
func (s *ChatService) Search(ctx context.Context, identity string, q search.Query) ([]search.Hit, error) {
	if q.Terms == "" {
		return nil, apperrors.ErrMissingFields
	}
	if q.Room != 0 {
		room, ok := s.rooms.GetByID(q.Room)
		if !ok {
			return nil, apperrors.ErrRoomNotFound
		}
		if room.Private && !s.rooms.IsMember(q.Room, identity) {
			return nil, apperrors.ErrNotAMember
		}
	}
	return s.index.Search(ctx, q)
}

// Attach binds a live push connection for the identity.
func (s *ChatService) Attach(identity string, c runtime.Conn) {
	s.dispatcher.Attach(identity, c)
}

// Detach removes the live push connection, if any.
func (s *ChatService) Detach(identity string) {
	s.dispatcher.Detach(identity)
}
