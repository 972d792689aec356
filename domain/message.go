package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable chat event. It lives solely in the shared
// ephemeral log and references a room that existed at creation time.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Room      RoomID    `json:"room_id"`
	Author    string    `json:"username"`
	Body      string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`

	// Seq is a process-wide monotonic counter assigned on append. Within one
	// room it fixes the delivery order observed by every member.
	Seq uint64 `json:"seq"`
}
