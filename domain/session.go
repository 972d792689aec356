package domain

import "time"

// Session is the live binding between an opaque token and an Identity.
// One active token per identity: a new login overwrites the previous one.
type Session struct {
	Token     string
	Identity  string
	CreatedAt time.Time
	LastSeen  time.Time
}
