// Package repositories implements Postgres persistence for the FlockSync
// server: member accounts, community records and their engagements.
package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/flocksync/internal/server/models"
)

// UserRepository stores member accounts.
type UserRepository interface {
	// Create inserts the account and fills user.ID and user.CreatedAt.
	// A taken email returns ErrDuplicateEmail.
	Create(ctx context.Context, user *models.User) error

	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// RecordRepository stores community records.
type RecordRepository interface {
	// Create inserts the record and fills rec.ID. When a record with the
	// same client id already exists the stored id is returned instead, so
	// retried uploads stay idempotent.
	Create(ctx context.Context, rec *models.Record) error

	GetByID(ctx context.Context, id uuid.UUID) (*models.Record, error)

	// ListFeed returns public records plus church-visible records for
	// churchID, newest first by client creation time.
	ListFeed(ctx context.Context, churchID string, limit int) ([]models.Record, error)
}

// EngagementRepository stores record interactions.
type EngagementRepository interface {
	// Add inserts the engagement and bumps the parent record's counter in
	// one transaction, filling e.ID. A missing record returns
	// common.ErrNotFound.
	Add(ctx context.Context, e *models.Engagement) error
}
