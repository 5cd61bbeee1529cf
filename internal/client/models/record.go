// Package models defines client-side data models used by the FlockSync engine.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Visibility controls who may see a record once it reaches the server.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityChurch  Visibility = "church"
	VisibilityPublic  Visibility = "public"
)

// Record is the envelope persisted locally and synced with the server.
// The device-authored copy stays authoritative: once pushed, later local
// edits do not re-queue it for upload.
type Record struct {
	// ID is a globally unique identifier assigned on the device at creation.
	ID string `json:"id"`

	// AuthorID identifies the member that created the record.
	AuthorID string `json:"author_id"`

	// AuthorName is a denormalized display name so remote records render
	// without an extra lookup.
	AuthorName string `json:"author_name,omitempty"`

	// ChurchID scopes the record to one congregation.
	ChurchID string `json:"church_id"`

	// Kind classifies the payload (see Unwrap).
	Kind Kind `json:"kind"`

	// Visibility controls exposure after sync.
	Visibility Visibility `json:"visibility"`

	// Payload is the kind-specific body.
	Payload json.RawMessage `json:"payload"`

	// CreatedAt and UpdatedAt are client-clock Unix milliseconds.
	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`

	// EngagementCount is a server-maintained tally ("prayed", "amen").
	EngagementCount int `json:"engagement_count,omitempty"`

	// Synced reports whether the record has reached the server.
	Synced bool `json:"synced"`

	// RemoteID is the server-assigned identifier, set after a successful push.
	RemoteID string `json:"remote_id,omitempty"`
}

// NewRecord builds an unsynced record owned by the given author. The
// payload kind is taken from the typed value.
func NewRecord(authorID, authorName, churchID string, vis Visibility, v Typed) (*Record, error) {
	kind, payload, err := Wrap(v)
	if err != nil {
		return nil, err
	}
	now := time.Now().UnixMilli()
	return &Record{
		ID:         uuid.NewString(),
		AuthorID:   authorID,
		AuthorName: authorName,
		ChurchID:   churchID,
		Kind:       kind,
		Visibility: vis,
		Payload:    payload,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Touch bumps UpdatedAt to the current client clock.
func (r *Record) Touch() {
	r.UpdatedAt = time.Now().UnixMilli()
}

// Summary returns a one-line human preview for lists.
func (r Record) Summary() string {
	v, err := r.Unwrap()
	if err != nil {
		return string(r.Kind)
	}
	switch p := v.(type) {
	case Note:
		return p.Title
	case PrayerRequest:
		return firstLine(p.Text)
	case VerseAnnotation:
		return p.Reference()
	default:
		return string(r.Kind)
	}
}

func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' {
			return s[:i]
		}
	}
	return s
}
