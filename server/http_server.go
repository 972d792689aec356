// Package server exposes the engine over HTTP JSON and a websocket push
// transport. Handlers decode, authenticate, delegate to services and encode;
// no business rules live here.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/KorryKatti/Mirage/auth"
	"github.com/KorryKatti/Mirage/domain"
	apperrors "github.com/KorryKatti/Mirage/errors"
	"github.com/KorryKatti/Mirage/observability"
	"github.com/KorryKatti/Mirage/search"
	"github.com/KorryKatti/Mirage/services"
)

type Server struct {
	log            *slog.Logger
	authService    *services.AuthService
	chatService    *services.ChatService
	tokens         *auth.TokenStore
	monitor        *observability.Monitor
	defaultChannel string
}

func New(log *slog.Logger, authService *services.AuthService, chatService *services.ChatService,
	tokens *auth.TokenStore, monitor *observability.Monitor, defaultChannel string) *Server {
	return &Server{
		log:            log,
		authService:    authService,
		chatService:    chatService,
		tokens:         tokens,
		monitor:        monitor,
		defaultChannel: defaultChannel,
	}
}

// Routes builds the full route table.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/logout", s.authenticated(s.handleLogout))
	mux.HandleFunc("POST /api/create_room", s.authenticated(s.handleCreateRoom))
	mux.HandleFunc("POST /api/join_room", s.authenticated(s.handleJoinRoom))
	mux.HandleFunc("POST /api/send_room_message", s.authenticated(s.handleSendRoomMessage))
	mux.HandleFunc("GET /api/get_room_messages", s.authenticated(s.handleGetRoomMessages))
	mux.HandleFunc("GET /api/rooms", s.authenticated(s.handleRooms))
	mux.HandleFunc("GET /api/room_members/{room}", s.authenticated(s.handleRoomMembers))
	mux.HandleFunc("GET /api/user_rooms", s.authenticated(s.handleUserRooms))
	mux.HandleFunc("GET /api/poll", s.authenticated(s.handlePoll))
	mux.HandleFunc("POST /api/message", s.authenticated(s.handleMessage))
	mux.HandleFunc("GET /api/search_messages", s.authenticated(s.handleSearchMessages))
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	return mux
}

// authenticated resolves the Authorization token, refreshing the session's
// last_seen, and passes the identity through.
func (s *Server) authenticated(next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := s.tokens.Resolve(bearerToken(r))
		if err != nil {
			s.writeError(w, err)
			return
		}
		next(w, r, identity)
	}
}

func bearerToken(r *http.Request) string {
	raw := r.Header.Get("Authorization")
	return strings.TrimPrefix(raw, "Bearer ")
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.ErrMissingFields)
		return
	}
	id, err := s.authService.Register(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{
		"id":       id,
		"username": req.Username,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.ErrMissingFields)
		return
	}
	session, rooms, err := s.authService.Login(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"token":    session.Token,
		"username": session.Identity,
		"rooms":    rooms,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, _ string) {
	if err := s.authService.Logout(bearerToken(r)); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request, identity string) {
	var req struct {
		RoomName string `json:"room_name"`
		Topic    string `json:"topic"`
		Private  bool   `json:"is_private"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.ErrMissingFields)
		return
	}
	room, err := s.chatService.CreateRoom(identity, req.RoomName, req.Topic, req.Private, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"room_id":   room.ID,
		"room_name": room.Name,
	})
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request, identity string) {
	var req struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.ErrMissingFields)
		return
	}
	room, err := s.chatService.JoinRoom(identity, req.Name, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"room_id":   room.ID,
		"room_name": room.Name,
	})
}

func (s *Server) handleSendRoomMessage(w http.ResponseWriter, r *http.Request, identity string) {
	var req struct {
		RoomID  int64  `json:"room_id"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.ErrMissingFields)
		return
	}
	delivered, err := s.chatService.SendMessage(identity, domain.RoomID(req.RoomID), req.Message)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"delivered": delivered,
	})
}

func (s *Server) handleGetRoomMessages(w http.ResponseWriter, r *http.Request, identity string) {
	roomID, err := strconv.ParseInt(r.URL.Query().Get("room_id"), 10, 64)
	if err != nil {
		s.writeError(w, apperrors.ErrMissingFields)
		return
	}
	var since uint64
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			s.writeError(w, apperrors.ErrMissingFields)
			return
		}
	}

	messages, err := s.chatService.RoomMessages(identity, domain.RoomID(roomID), since)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (s *Server) handleRooms(w http.ResponseWriter, _ *http.Request, identity string) {
	rooms := s.chatService.ListRooms(identity)
	if rooms == nil {
		rooms = []domain.RoomSummary{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

func (s *Server) handleRoomMembers(w http.ResponseWriter, r *http.Request, identity string) {
	members, err := s.chatService.RoomMembers(identity, r.PathValue("room"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"room":    domain.NormalizeRoomName(r.PathValue("room")),
		"members": members,
	})
}

func (s *Server) handleUserRooms(w http.ResponseWriter, _ *http.Request, identity string) {
	names := []string{}
	for _, room := range s.chatService.UserRooms(identity) {
		names = append(names, room.Name)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"rooms": names})
}

func (s *Server) handlePoll(w http.ResponseWriter, _ *http.Request, identity string) {
	result := s.chatService.Poll(identity)
	if result.Messages == nil {
		result.Messages = []string{}
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleMessage is the line-oriented channel: chat lines and slash commands
// share one endpoint, distinguished by type.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request, identity string) {
	var req struct {
		Type    string `json:"type"`
		Content string `json:"content"`
		Channel string `json:"channel"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.ErrMissingFields)
		return
	}
	channel := req.Channel
	if channel == "" {
		channel = s.defaultChannel
	}

	switch req.Type {
	case "command":
		next, err := s.chatService.Command(r.Context(), identity, channel, req.Content)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"channel": next,
		})
	case "message":
		delivered, err := s.chatService.SendToRoom(identity, channel, req.Content)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"delivered": delivered,
		})
	default:
		s.writeError(w, fmt.Errorf("%w: unknown type %q", apperrors.ErrMissingFields, req.Type))
	}
}

func (s *Server) handleSearchMessages(w http.ResponseWriter, r *http.Request, identity string) {
	q := search.Query{Terms: r.URL.Query().Get("q")}
	if raw := r.URL.Query().Get("room_id"); raw != "" {
		roomID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.writeError(w, apperrors.ErrMissingFields)
			return
		}
		q.Room = domain.RoomID(roomID)
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, apperrors.ErrMissingFields)
			return
		}
		q.Limit = limit
	}

	hits, err := s.chatService.Search(r.Context(), identity, q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if hits == nil {
		hits = []search.Hit{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"results": hits})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
		"stats":  s.monitor.Latest(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := apperrors.MapToHTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
