package models

// CalendarProvider identifies an external calendar backend.
type CalendarProvider string

const (
	ProviderGoogle  CalendarProvider = "google"
	ProviderOutlook CalendarProvider = "outlook"
	ProviderApple   CalendarProvider = "apple"
)

// CalendarSyncStatus tracks one event's lifecycle against one provider.
//
// Transitions: not_synced -> sync_pending -> synced | sync_failed.
// A synced event moves to removed after a successful delete; sync_failed
// may retry back through sync_pending.
type CalendarSyncStatus string

const (
	CalendarNotSynced   CalendarSyncStatus = "not_synced"
	CalendarSyncPending CalendarSyncStatus = "sync_pending"
	CalendarSynced      CalendarSyncStatus = "synced"
	CalendarSyncFailed  CalendarSyncStatus = "sync_failed"
	CalendarRemoved     CalendarSyncStatus = "removed"
)

// CalendarSyncState is the bookkeeping row kept per (event, user, provider).
type CalendarSyncState struct {
	EventID  string             `json:"event_id"`
	UserID   string             `json:"user_id"`
	Provider CalendarProvider   `json:"provider"`
	Status   CalendarSyncStatus `json:"status"`

	// ExternalID is the provider-assigned event identifier. Its presence
	// decides create vs update on the next sync.
	ExternalID string `json:"external_id,omitempty"`

	// LastSyncedAt is Unix milliseconds of the last successful operation.
	LastSyncedAt int64 `json:"last_synced_at,omitempty"`

	// LastError keeps the most recent failure for display.
	LastError string `json:"last_error,omitempty"`
}
