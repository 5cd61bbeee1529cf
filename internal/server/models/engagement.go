package models

import "github.com/google/uuid"

// Engagement is an immutable interaction ("prayed", "amen") on a record.
// Insertion and the parent counter bump happen in one transaction.
type Engagement struct {
	ID        uuid.UUID `json:"id"`
	RecordID  uuid.UUID `json:"record_id"`
	UserID    uuid.UUID `json:"user_id"`
	Kind      string    `json:"kind"`
	CreatedAt int64     `json:"created_at"`
}
