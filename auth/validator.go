package auth

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/KorryKatti/Mirage/errors"
)

var validate = validator.New()

// CredentialsRequest is the shape accepted by register and login.
type CredentialsRequest struct {
	Username string `json:"username" validate:"required,min=2,max=32,excludesall=0x20/#"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

func ValidateCredentials(req CredentialsRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidCredential, err)
	}
	return nil
}

// ValidateNick applies the username rules alone, for /nick.
func ValidateNick(nick string) error {
	if err := validate.Var(nick, "required,min=2,max=32,excludesall=0x20/#"); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidCredential, err)
	}
	return nil
}

// ValidateRoomName checks the raw (pre-normalization) room name.
func ValidateRoomName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return apperrors.ErrInvalidRoomName
	}
	if err := validate.Var(trimmed, "max=48,excludesall=0x20"); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidRoomName, err)
	}
	return nil
}

// ValidateBody enforces the boundary cap on message bodies before anything
// reaches the dispatcher.
func ValidateBody(body string, maxLen int) error {
	if strings.TrimSpace(body) == "" {
		return apperrors.ErrMissingFields
	}
	if len([]rune(body)) > maxLen {
		return apperrors.ErrMessageTooLong
	}
	return nil
}
