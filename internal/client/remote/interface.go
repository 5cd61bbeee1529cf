// Package remote talks to the FlockSync backend: record upload, feed
// queries and engagements. The realtime change feed lives in the realtime
// package; this one covers the request/response surface.
package remote

import (
	"context"

	"github.com/dmitrijs2005/flocksync/internal/client/models"
)

// Filter narrows a remote record query to one congregation's visible feed.
type Filter struct {
	// ChurchID selects records with church visibility for that
	// congregation; public records are always included.
	ChurchID string

	// PageSize caps the result set; zero means the server default.
	PageSize int
}

// Store is the remote document store the reconciler syncs against.
type Store interface {
	// CreateRecord uploads one record and returns the server-assigned id.
	CreateRecord(ctx context.Context, r models.Record) (string, error)

	// QueryRecords returns the newest visible records matching the
	// filter, ordered by creation time descending.
	QueryRecords(ctx context.Context, f Filter) ([]models.Record, error)

	// AddEngagement books an engagement against a remote record. The
	// server inserts the child row and bumps the parent's count in one
	// transaction; the engagement id is returned.
	AddEngagement(ctx context.Context, remoteRecordID string, e models.Engagement) (string, error)

	// Ping reports server reachability.
	Ping(ctx context.Context) error
}

// Session is the authenticated identity returned by login and register.
type Session struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	ChurchID string `json:"church_id"`
}
