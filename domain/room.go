// Package domain contains the core concepts of the messaging engine.
// No runtime, network, or storage logic should be added here.
package domain

import (
	"strings"
	"time"
)

type RoomID int64

// Room is the metadata side of a broadcast group. The live member set is
// owned by the registry, not carried here.
type Room struct {
	ID             RoomID
	Name           string
	Topic          string
	Private        bool
	CredentialHash string
	CreatedBy      string
	CreatedAt      time.Time
}

// RoomSummary is the listing view exposed to clients.
type RoomSummary struct {
	ID      RoomID `json:"room_id"`
	Name    string `json:"name"`
	Topic   string `json:"topic,omitempty"`
	Members int    `json:"members"`
	Private bool   `json:"is_private"`
	Joined  bool   `json:"joined"`
}

// NormalizeRoomName applies the one-time normalization done at creation and
// join: bare "general" becomes "#general". Names stay case-sensitive and are
// never re-derived afterward.
func NormalizeRoomName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if !strings.HasPrefix(name, "#") {
		return "#" + name
	}
	return name
}
