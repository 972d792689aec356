// Package errors defines the sentinel errors shared across the engine and
// their mapping onto HTTP status codes at the transport boundary.
package errors

import (
	stderrors "errors"
	"net/http"
)

var (
	// Authentication: bad or missing token, never retried.
	ErrUnauthorized       = stderrors.New("unauthorized")
	ErrInvalidCredentials = stderrors.New("invalid credentials")
	ErrTokenGeneration    = stderrors.New("token generation failed")

	// Authorization: valid identity, wrong room.
	ErrNotAMember = stderrors.New("you are not in this room")

	// Not found.
	ErrRoomNotFound = stderrors.New("room not found")
	ErrUserNotFound = stderrors.New("user not found")

	// Validation: rejected before any mutation.
	ErrMissingFields      = stderrors.New("missing fields")
	ErrMessageTooLong     = stderrors.New("message too long")
	ErrInvalidRoomName    = stderrors.New("invalid room name")
	ErrInvalidCredential  = stderrors.New("invalid username or password format")
	ErrPasswordRequired   = stderrors.New("password required")
	ErrWrongPassword      = stderrors.New("wrong password")
	ErrRoomAlreadyExists  = stderrors.New("room already exists")
	ErrUserAlreadyExists  = stderrors.New("username already exists")
	ErrNickTaken          = stderrors.New("nickname already taken")
	ErrTooManyPublicRooms = stderrors.New("maximum number of public rooms reached")

	// Runtime.
	ErrWorkerPanic = stderrors.New("worker panic")
)

// MapToHTTPStatus translates a domain error into the status code the JSON
// API returns. Unknown errors become 500 so transient failures are never
// mistaken for client mistakes.
func MapToHTTPStatus(err error) int {
	switch {
	case stderrors.Is(err, ErrUnauthorized),
		stderrors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case stderrors.Is(err, ErrNotAMember),
		stderrors.Is(err, ErrPasswordRequired),
		stderrors.Is(err, ErrWrongPassword):
		return http.StatusForbidden
	case stderrors.Is(err, ErrRoomNotFound),
		stderrors.Is(err, ErrUserNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, ErrUserAlreadyExists),
		stderrors.Is(err, ErrNickTaken):
		return http.StatusConflict
	case stderrors.Is(err, ErrMissingFields),
		stderrors.Is(err, ErrMessageTooLong),
		stderrors.Is(err, ErrInvalidRoomName),
		stderrors.Is(err, ErrInvalidCredential),
		stderrors.Is(err, ErrRoomAlreadyExists),
		stderrors.Is(err, ErrTooManyPublicRooms):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
