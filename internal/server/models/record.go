// Package models defines the server-side rows behind the FlockSync API.
package models

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Record is a stored community record. The server keeps its own primary key
// and remembers the device-assigned id as ClientID; uploads are idempotent
// on it.
type Record struct {
	ID         uuid.UUID       `json:"id"`
	ClientID   string          `json:"client_id"`
	AuthorID   uuid.UUID       `json:"author_id"`
	AuthorName string          `json:"author_name"`
	ChurchID   string          `json:"church_id"`
	Kind       string          `json:"kind"`
	Visibility string          `json:"visibility"`
	Payload    json.RawMessage `json:"payload"`

	// CreatedAt and UpdatedAt carry the client clock in Unix milliseconds;
	// the feed orders by CreatedAt descending.
	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`

	// EngagementCount is denormalized; it is bumped in the same
	// transaction that inserts the engagement row, so reads serve it
	// without a join.
	EngagementCount int `json:"engagement_count"`
}

// Visibility values accepted from clients.
const (
	VisibilityPrivate = "private"
	VisibilityChurch  = "church"
	VisibilityPublic  = "public"
)
