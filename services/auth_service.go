// Package services composes the engine packages into the operations the
// transports expose. Services validate at the boundary, then delegate.
package services

import (
	"errors"
	"log/slog"

	"github.com/KorryKatti/Mirage/auth"
	"github.com/KorryKatti/Mirage/domain"
	apperrors "github.com/KorryKatti/Mirage/errors"
	"github.com/KorryKatti/Mirage/registry"
	"github.com/KorryKatti/Mirage/repositories"
)

// AuthService handles account lifecycle and session issuance.
type AuthService struct {
	log         *slog.Logger
	users       repositories.IUserRepository
	tokens      *auth.TokenStore
	rooms       *registry.Registry
	defaultRoom string
}

func NewAuthService(log *slog.Logger, users repositories.IUserRepository,
	tokens *auth.TokenStore, rooms *registry.Registry, defaultRoom string) *AuthService {
	return &AuthService{
		log:         log,
		users:       users,
		tokens:      tokens,
		rooms:       rooms,
		defaultRoom: defaultRoom,
	}
}

// Register creates the account. Returns the new user ID.
func (s *AuthService) Register(req auth.CredentialsRequest) (string, error) {
	if err := auth.ValidateCredentials(req); err != nil {
		return "", err
	}
	hash, err := auth.HashSecret(req.Password)
	if err != nil {
		return "", err
	}
	id, err := s.users.CreateUser(req.Username, hash)
	if err != nil {
		return "", err
	}
	s.log.Info("user registered", "username", req.Username)
	return id, nil
}

// Login verifies the credentials and issues a fresh session, silently
// invalidating any previous one. The identity is auto-joined to the default
// room so a new session always has somewhere to speak.
func (s *AuthService) Login(req auth.CredentialsRequest) (domain.Session, []string, error) {
	if err := auth.ValidateCredentials(req); err != nil {
		return domain.Session{}, nil, err
	}

	record, err := s.users.GetUser(req.Username)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			// Indistinguishable from a wrong password, on purpose.
			return domain.Session{}, nil, apperrors.ErrInvalidCredentials
		}
		return domain.Session{}, nil, err
	}

	match, err := auth.VerifySecret(req.Password, record.PasswordHash)
	if err != nil || !match {
		return domain.Session{}, nil, apperrors.ErrInvalidCredentials
	}

	session, err := s.tokens.Issue(req.Username)
	if err != nil {
		return domain.Session{}, nil, err
	}

	if _, err := s.rooms.Join(s.defaultRoom, req.Username, ""); err != nil {
		s.log.Warn("default room join failed",
			"username", req.Username, "room", s.defaultRoom, "error", err)
	}

	var joined []string
	for _, room := range s.rooms.RoomsOf(req.Username) {
		joined = append(joined, room.Name)
	}

	s.log.Info("user logged in", "username", req.Username)
	return session, joined, nil
}

// Logout destroys the session bound to the token.
func (s *AuthService) Logout(token string) error {
	return s.tokens.Revoke(token)
}
