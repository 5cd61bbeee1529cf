package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrijs2005/flocksync/internal/common"
	"github.com/dmitrijs2005/flocksync/internal/server/models"
)

const pgForeignKeyViolation = "23503"

type PostgresEngagementRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresEngagementRepository(pool *pgxpool.Pool) *PostgresEngagementRepository {
	return &PostgresEngagementRepository{pool: pool}
}

// Add inserts the engagement row and bumps the parent's counter in one
// transaction, so the denormalized count never drifts from the rows.
func (r *PostgresEngagementRepository) Add(ctx context.Context, e *models.Engagement) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := `INSERT INTO engagements (record_id, user_id, kind, created_at)
               VALUES ($1, $2, $3, $4)
               RETURNING id`

	err = tx.QueryRow(ctx, insert, e.RecordID, e.UserID, e.Kind, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return common.ErrNotFound
		}
		return fmt.Errorf("failed to insert engagement: %w", err)
	}

	bump := `UPDATE records SET engagement_count = engagement_count + 1 WHERE id = $1`
	result, err := tx.Exec(ctx, bump, e.RecordID)
	if err != nil {
		return fmt.Errorf("failed to bump engagement count: %w", err)
	}
	if result.RowsAffected() == 0 {
		return common.ErrNotFound
	}

	return tx.Commit(ctx)
}
