package auth

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/KorryKatti/Mirage/domain"
	apperrors "github.com/KorryKatti/Mirage/errors"
)

// Claims is the payload minted into each session token.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenStore maps opaque session tokens to identities. Tokens are signed
// JWTs, but validity is decided by store membership: revoking a token or
// logging in again removes the old entry, so a stale holder is rejected even
// though its signature would still verify.
//
// Resolve runs on every inbound call and must stay safe under concurrent
// readers alongside writers.
type TokenStore struct {
	mu         sync.RWMutex
	byToken    map[string]*domain.Session
	byIdentity map[string]string

	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

func NewTokenStore(signingKey []byte, ttl time.Duration) *TokenStore {
	return &TokenStore{
		byToken:    make(map[string]*domain.Session),
		byIdentity: make(map[string]string),
		signingKey: signingKey,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Issue creates a session for the identity, overwriting any prior token.
// The concurrent holder of the old token is silently invalidated.
func (s *TokenStore) Issue(identity string) (domain.Session, error) {
	token, err := s.mint(identity)
	if err != nil {
		return domain.Session{}, apperrors.ErrTokenGeneration
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.byIdentity[identity]; ok {
		delete(s.byToken, old)
	}

	now := s.now().UTC()
	session := &domain.Session{
		Token:     token,
		Identity:  identity,
		CreatedAt: now,
		LastSeen:  now,
	}
	s.byToken[token] = session
	s.byIdentity[identity] = token
	return *session, nil
}

// Resolve returns the identity behind a token and refreshes its last_seen.
func (s *TokenStore) Resolve(token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.byToken[token]
	if !ok {
		return "", apperrors.ErrUnauthorized
	}
	session.LastSeen = s.now().UTC()
	return session.Identity, nil
}

// Revoke destroys the session bound to the token.
func (s *TokenStore) Revoke(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.byToken[token]
	if !ok {
		return apperrors.ErrUnauthorized
	}
	delete(s.byToken, token)
	delete(s.byIdentity, session.Identity)
	return nil
}

// RevokeIdentity destroys the active session of an identity, if any.
// Used by the liveness sweeper.
func (s *TokenStore) RevokeIdentity(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token, ok := s.byIdentity[identity]; ok {
		delete(s.byToken, token)
		delete(s.byIdentity, identity)
	}
}

// Rename rebinds the active session of old to the new identity.
func (s *TokenStore) Rename(old, new string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.byIdentity[old]
	if !ok {
		return
	}
	delete(s.byIdentity, old)
	s.byIdentity[new] = token
	s.byToken[token].Identity = new
}

// Active reports whether the identity currently holds a session.
func (s *TokenStore) Active(identity string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byIdentity[identity]
	return ok
}

// Idle returns a snapshot of sessions whose last_seen exceeds the timeout.
func (s *TokenStore) Idle(timeout time.Duration) []domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-timeout)
	var idle []domain.Session
	for _, session := range s.byToken {
		if session.LastSeen.Before(cutoff) {
			idle = append(idle, *session)
		}
	}
	return idle
}

func (s *TokenStore) mint(identity string) (string, error) {
	now := s.now()
	claims := &Claims{
		Username: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "mirage",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}
