package models

import "encoding/json"

// RecordView is the wire shape clients consume. The device-assigned id is
// presented as id and the server key as remote_id, matching what the sync
// engine stores locally after a push.
type RecordView struct {
	ID              string          `json:"id"`
	AuthorID        string          `json:"author_id"`
	AuthorName      string          `json:"author_name,omitempty"`
	ChurchID        string          `json:"church_id"`
	Kind            string          `json:"kind"`
	Visibility      string          `json:"visibility"`
	Payload         json.RawMessage `json:"payload"`
	CreatedAt       int64           `json:"created_at"`
	UpdatedAt       int64           `json:"updated_at"`
	EngagementCount int             `json:"engagement_count,omitempty"`
	Synced          bool            `json:"synced"`
	RemoteID        string          `json:"remote_id,omitempty"`
}

// NewRecordView converts a stored record to its client wire shape.
func NewRecordView(r Record) RecordView {
	return RecordView{
		ID:              r.ClientID,
		AuthorID:        r.AuthorID.String(),
		AuthorName:      r.AuthorName,
		ChurchID:        r.ChurchID,
		Kind:            r.Kind,
		Visibility:      r.Visibility,
		Payload:         r.Payload,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		EngagementCount: r.EngagementCount,
		Synced:          true,
		RemoteID:        r.ID.String(),
	}
}

// NewRecordViews converts a result set, preserving order.
func NewRecordViews(records []Record) []RecordView {
	views := make([]RecordView, len(records))
	for i, r := range records {
		views[i] = NewRecordView(r)
	}
	return views
}
