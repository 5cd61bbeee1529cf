package models

// ReminderSchedule records one event's local notification booking.
// Scheduling is bookkeeping separate from calendar provider sync.
type ReminderSchedule struct {
	EventID     string `json:"event_id"`
	LeadMinutes int    `json:"lead_minutes"`
	Enabled     bool   `json:"enabled"`

	// Handle identifies the live timer with the notifier; empty when
	// nothing is booked. At most one live handle exists per event.
	Handle string `json:"handle,omitempty"`

	// FireAt is the scheduled delivery instant in Unix milliseconds.
	FireAt int64 `json:"fire_at,omitempty"`

	// Payload is the notification text, kept so a restarted process can
	// re-book the delivery without the event at hand.
	Payload string `json:"payload,omitempty"`
}
