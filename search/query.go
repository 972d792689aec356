// Package search maintains an in-memory full-text index over the ephemeral
// log and answers /find queries against it.
package search

import (
	"strconv"
	"strings"

	"github.com/KorryKatti/Mirage/domain"
)

const defaultLimit = 10

// Query decouples the raw /find input from the index engine.
type Query struct {
	Terms string
	Room  domain.RoomID // 0 means every room
	Limit int
}

// ParseQuery extracts command-line style arguments from a raw /find line.
// Example: /find invoice --room 12 --limit 5
func ParseQuery(input string) Query {
	query := Query{Limit: defaultLimit}

	parts := strings.Fields(input)
	var terms []string

	for i := 0; i < len(parts); i++ {
		part := parts[i]

		if strings.HasPrefix(part, "--") && i+1 < len(parts) {
			key := strings.TrimPrefix(part, "--")
			val := parts[i+1]
			switch key {
			case "room":
				if id, err := strconv.ParseInt(val, 10, 64); err == nil {
					query.Room = domain.RoomID(id)
				}
			case "limit":
				if n, err := strconv.Atoi(val); err == nil && n > 0 {
					query.Limit = n
				}
			}
			i++
			continue
		}

		if !strings.HasPrefix(part, "/") {
			terms = append(terms, part)
		}
	}

	query.Terms = strings.Join(terms, " ")
	return query
}
