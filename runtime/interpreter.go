package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/KorryKatti/Mirage/auth"
	"github.com/KorryKatti/Mirage/domain"
	apperrors "github.com/KorryKatti/Mirage/errors"
	"github.com/KorryKatti/Mirage/registry"
	"github.com/KorryKatti/Mirage/search"
)

// UserDirectory is the slice of the durable account store the interpreter
// needs for /nick.
type UserDirectory interface {
	Exists(username string) (bool, error)
	Rename(old, new string) error
}

// RoomPersister records rooms created on the fly by /join.
type RoomPersister interface {
	SaveRoom(room domain.Room) error
}

// Interpreter executes the leading-slash sub-protocol. It is keyed on the
// first token of the line; the caller supplies the session's current room.
type Interpreter struct {
	log        *slog.Logger
	rooms      *registry.Registry
	tokens     *auth.TokenStore
	users      UserDirectory
	roomStore  RoomPersister
	dispatcher *Dispatcher
	index      *search.Index
}

func NewInterpreter(log *slog.Logger, rooms *registry.Registry, tokens *auth.TokenStore,
	users UserDirectory, roomStore RoomPersister, dispatcher *Dispatcher, index *search.Index) *Interpreter {
	return &Interpreter{
		log:        log,
		rooms:      rooms,
		tokens:     tokens,
		users:      users,
		roomStore:  roomStore,
		dispatcher: dispatcher,
		index:      index,
	}
}

// Execute runs one command line for the identity. channel is the session's
// current room name ("" if none). The returned room name is the channel the
// session should consider current afterwards.
func (i *Interpreter) Execute(ctx context.Context, identity, channel, line string) (string, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return channel, apperrors.ErrMissingFields
	}

	switch strings.ToLower(parts[0]) {
	case "/join":
		if len(parts) < 2 {
			return channel, apperrors.ErrMissingFields
		}
		return i.join(identity, channel, parts[1], strings.Join(parts[2:], " "))
	case "/part":
		return i.part(identity, channel)
	case "/nick":
		if len(parts) < 2 {
			return channel, apperrors.ErrMissingFields
		}
		return channel, i.nick(identity, parts[1])
	case "/topic":
		if len(parts) < 2 {
			return channel, apperrors.ErrMissingFields
		}
		return channel, i.topic(identity, channel, strings.Join(parts[1:], " "))
	case "/list":
		i.list(identity)
		return channel, nil
	case "/me":
		if len(parts) < 2 {
			return channel, apperrors.ErrMissingFields
		}
		return channel, i.me(identity, channel, strings.Join(parts[1:], " "))
	case "/find":
		return channel, i.find(ctx, identity, channel, line)
	default:
		// Hardened from the observed silent fallthrough: the issuer gets a
		// private notice, other members see nothing.
		i.dispatcher.SystemTo(identity, fmt.Sprintf("unknown command %s", parts[0]))
		i.log.Debug("unknown command ignored", "identity", identity, "command", parts[0])
		return channel, nil
	}
}

func (i *Interpreter) join(identity, channel, target, credential string) (string, error) {
	if err := auth.ValidateRoomName(target); err != nil {
		return channel, err
	}
	name := domain.NormalizeRoomName(target)

	room, err := i.rooms.Join(name, identity, credential)
	if err != nil {
		if !errors.Is(err, apperrors.ErrRoomNotFound) {
			return channel, err
		}
		// Bare /join of an unknown name creates the room on demand, public,
		// as the original interpreter did.
		room, err = i.rooms.Create(name, identity, false, "")
		if err != nil {
			return channel, err
		}
		if err := i.roomStore.SaveRoom(room); err != nil {
			i.log.Error("failed to persist room", "room", room.Name, "error", err)
		}
	}

	if channel != "" && channel != name {
		// One current room per session: joining implies leaving the old one.
		_ = i.rooms.Leave(channel, identity)
	}

	i.dispatcher.System(room.ID, fmt.Sprintf("%s has joined %s", identity, room.Name))
	return room.Name, nil
}

func (i *Interpreter) part(identity, channel string) (string, error) {
	if channel == "" {
		return channel, apperrors.ErrRoomNotFound
	}
	room, ok := i.rooms.Get(channel)
	if !ok {
		return channel, apperrors.ErrRoomNotFound
	}
	if err := i.rooms.Leave(channel, identity); err != nil {
		return channel, err
	}
	i.dispatcher.System(room.ID, fmt.Sprintf("%s has left %s", identity, room.Name))
	return "", nil
}

// nick renames the identity across the durable store, the token store and
// every member set. The stores are taken in a fixed order so a concurrent
// send observes either the old or the new name, never a mix.
func (i *Interpreter) nick(identity, newNick string) error {
	if err := auth.ValidateNick(newNick); err != nil {
		return err
	}
	if newNick == identity {
		return nil
	}

	taken, err := i.users.Exists(newNick)
	if err != nil {
		return err
	}
	if taken || i.tokens.Active(newNick) {
		return apperrors.ErrNickTaken
	}

	if err := i.users.Rename(identity, newNick); err != nil {
		return err
	}
	i.tokens.Rename(identity, newNick)
	i.rooms.Rename(identity, newNick)
	i.dispatcher.RenameIdentity(identity, newNick)

	for _, room := range i.rooms.RoomsOf(newNick) {
		i.dispatcher.System(room.ID, fmt.Sprintf("%s is now known as %s", identity, newNick))
	}
	return nil
}

func (i *Interpreter) topic(identity, channel, text string) error {
	if channel == "" {
		return apperrors.ErrRoomNotFound
	}
	room, err := i.rooms.SetTopic(channel, identity, text)
	if err != nil {
		return err
	}
	i.dispatcher.System(room.ID, fmt.Sprintf("%s set the topic to: %s", identity, text))
	return nil
}

func (i *Interpreter) list(identity string) {
	summaries := i.rooms.List(identity)
	i.dispatcher.SystemTo(identity, fmt.Sprintf("%d rooms", len(summaries)))
	for _, s := range summaries {
		text := fmt.Sprintf("%s (%d members)", s.Name, s.Members)
		if s.Topic != "" {
			text += ": " + s.Topic
		}
		i.dispatcher.SystemTo(identity, text)
	}
}

func (i *Interpreter) me(identity, channel, action string) error {
	if channel == "" {
		return apperrors.ErrRoomNotFound
	}
	room, ok := i.rooms.Get(channel)
	if !ok {
		return apperrors.ErrRoomNotFound
	}
	if !i.rooms.IsMember(room.ID, identity) {
		return apperrors.ErrNotAMember
	}
	i.dispatcher.System(room.ID, fmt.Sprintf("%s %s", identity, action))
	return nil
}

func (i *Interpreter) find(ctx context.Context, identity, channel, line string) error {
	query := search.ParseQuery(line)
	if query.Room == 0 && channel != "" {
		if room, ok := i.rooms.Get(channel); ok {
			query.Room = room.ID
		}
	}
	if query.Terms == "" {
		return apperrors.ErrMissingFields
	}

	hits, err := i.index.Search(ctx, query)
	if err != nil {
		return err
	}
	i.dispatcher.SystemTo(identity, fmt.Sprintf("%d results for %q", len(hits), query.Terms))
	for _, hit := range hits {
		i.dispatcher.SystemTo(identity, fmt.Sprintf("<%s> %s", hit.Author, hit.Body))
	}
	return nil
}
