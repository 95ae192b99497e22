package repository

import (
	"context"
	"fmt"

	"github.com/ad-tracker/engagement-exchange-go/internal/db"
	"github.com/ad-tracker/engagement-exchange-go/internal/db/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// VideoRepository defines operations for managing video listings.
type VideoRepository interface {
	// Create inserts an active video unless the owner already has maxActive
	// active videos, in which case db.ErrLimitReached is returned.
	Create(ctx context.Context, video *models.Video, maxActive int) error

	// GetByID retrieves a single video by ID.
	GetByID(ctx context.Context, id int64) (*models.Video, error)

	// ListActiveByOwner retrieves the owner's active videos, oldest first.
	ListActiveByOwner(ctx context.Context, ownerID int64) ([]*models.Video, error)

	// Deactivate marks a video inactive.
	Deactivate(ctx context.Context, id int64) error
}

type videoRepository struct {
	pool *pgxpool.Pool
}

// NewVideoRepository creates a new VideoRepository.
func NewVideoRepository(pool *pgxpool.Pool) VideoRepository {
	return &videoRepository{pool: pool}
}

const videoColumns = `id, owner_id, title, link, thumbnail_ref, duration, active, created_at`

func scanVideo(row pgx.Row) (*models.Video, error) {
	v := &models.Video{}
	err := row.Scan(&v.ID, &v.OwnerID, &v.Title, &v.Link, &v.ThumbnailRef, &v.Duration, &v.Active, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *videoRepository) Create(ctx context.Context, video *models.Video, maxActive int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // Rollback is safe to call even if committed

	// Lock the owner row so concurrent uploads count one at a time.
	var ownerID int64
	if err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, video.OwnerID).Scan(&ownerID); err != nil {
		return db.WrapError(err, "lock video owner")
	}

	var active int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM videos WHERE owner_id = $1 AND active`, video.OwnerID).Scan(&active); err != nil {
		return db.WrapError(err, "count active videos")
	}
	if active >= maxActive {
		return fmt.Errorf("create video: %w", db.ErrLimitReached)
	}

	query := `
		INSERT INTO videos (owner_id, title, link, thumbnail_ref, duration, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err = tx.QueryRow(ctx, query,
		video.OwnerID,
		video.Title,
		video.Link,
		video.ThumbnailRef,
		video.Duration,
		video.Active,
		video.CreatedAt,
	).Scan(&video.ID)
	if err != nil {
		return db.WrapError(err, "create video")
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *videoRepository) GetByID(ctx context.Context, id int64) (*models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE id = $1`

	video, err := scanVideo(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, db.WrapError(err, "get video by id")
	}
	return video, nil
}

func (r *videoRepository) ListActiveByOwner(ctx context.Context, ownerID int64) ([]*models.Video, error) {
	query := `
		SELECT ` + videoColumns + `
		FROM videos
		WHERE owner_id = $1 AND active
		ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, db.WrapError(err, "list active videos")
	}
	defer rows.Close()

	var videos []*models.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, video)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}
	return videos, nil
}

func (r *videoRepository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE videos SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return db.WrapError(err, "deactivate video")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deactivate video: %w", db.ErrNotFound)
	}
	return nil
}
