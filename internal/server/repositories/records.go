package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrijs2005/flocksync/internal/common"
	"github.com/dmitrijs2005/flocksync/internal/server/models"
)

const (
	// DefaultFeedLimit applies when a query does not name a page size.
	DefaultFeedLimit = 50

	// MaxFeedLimit caps the page size a client may request.
	MaxFeedLimit = 200
)

const recordColumns = `id, client_id, author_id, author_name, church_id, kind,
              visibility, payload, created_at, updated_at, engagement_count`

type PostgresRecordRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRecordRepository(pool *pgxpool.Pool) *PostgresRecordRepository {
	return &PostgresRecordRepository{pool: pool}
}

func (r *PostgresRecordRepository) Create(ctx context.Context, rec *models.Record) error {
	insert := `INSERT INTO records (client_id, author_id, author_name, church_id,
                                    kind, visibility, payload, created_at, updated_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
               ON CONFLICT (client_id) DO NOTHING
               RETURNING id`

	err := r.pool.QueryRow(ctx, insert,
		rec.ClientID, rec.AuthorID, rec.AuthorName, rec.ChurchID,
		rec.Kind, rec.Visibility, rec.Payload, rec.CreatedAt, rec.UpdatedAt).
		Scan(&rec.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		// Same client id already uploaded; hand back the stored id so a
		// retried push resolves to the same record.
		err = r.pool.QueryRow(ctx,
			`SELECT id FROM records WHERE client_id = $1`, rec.ClientID).
			Scan(&rec.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to create record: %w", err)
	}
	return nil
}

func (r *PostgresRecordRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE id = $1`

	var rec models.Record
	err := r.pool.QueryRow(ctx, query, id).
		Scan(&rec.ID, &rec.ClientID, &rec.AuthorID, &rec.AuthorName,
			&rec.ChurchID, &rec.Kind, &rec.Visibility, &rec.Payload,
			&rec.CreatedAt, &rec.UpdatedAt, &rec.EngagementCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return &rec, nil
}

func (r *PostgresRecordRepository) ListFeed(ctx context.Context, churchID string, limit int) ([]models.Record, error) {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	if limit > MaxFeedLimit {
		limit = MaxFeedLimit
	}

	query := `SELECT ` + recordColumns + `
              FROM records
              WHERE visibility = 'public' OR (visibility = 'church' AND church_id = $1)
              ORDER BY created_at DESC
              LIMIT $2`

	rows, err := r.pool.Query(ctx, query, churchID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query feed: %w", err)
	}
	defer rows.Close()

	records := make([]models.Record, 0, limit)
	for rows.Next() {
		var rec models.Record
		if err := rows.Scan(&rec.ID, &rec.ClientID, &rec.AuthorID, &rec.AuthorName,
			&rec.ChurchID, &rec.Kind, &rec.Visibility, &rec.Payload,
			&rec.CreatedAt, &rec.UpdatedAt, &rec.EngagementCount); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}
	return records, nil
}
