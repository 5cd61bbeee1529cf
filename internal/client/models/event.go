package models

import "time"

// Event describes a church event the member registered for. Events arrive
// from the server feed; the engine mirrors them into external calendars,
// local reminders and the artwork cache.
type Event struct {
	ID          string    `json:"id"`
	ChurchID    string    `json:"church_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`

	// ArtworkURL and ThumbURL point at downloadable renditions of the
	// event image. They are cached independently.
	ArtworkURL string `json:"artwork_url,omitempty"`
	ThumbURL   string `json:"thumb_url,omitempty"`
}

// Past reports whether the event start already elapsed at the given instant.
func (e Event) Past(now time.Time) bool {
	return e.StartsAt.Before(now)
}
