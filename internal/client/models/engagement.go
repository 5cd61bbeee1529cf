package models

// EngagementKind classifies a lightweight interaction on a record.
const (
	EngagementPrayed = "prayed"
	EngagementAmen   = "amen"
)

// Engagement is an immutable child interaction attached to a record.
// The server inserts it and bumps the parent's denormalized count in the
// same transaction.
type Engagement struct {
	ID        string `json:"id,omitempty"`
	RecordID  string `json:"record_id"`
	UserID    string `json:"user_id"`
	Kind      string `json:"kind"`
	CreatedAt int64  `json:"created_at,omitempty"`
}
