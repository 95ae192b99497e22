package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ad-tracker/engagement-exchange-go/internal/blob"
	"github.com/ad-tracker/engagement-exchange-go/internal/db"
	"github.com/ad-tracker/engagement-exchange-go/internal/db/models"
	"github.com/ad-tracker/engagement-exchange-go/internal/db/repository"
	"go.uber.org/zap"
)

// VideoInput holds the fields of a new listing.
type VideoInput struct {
	Title        string
	Link         string
	ThumbnailRef string
	Duration     int
}

// VideoCatalog owns the users' active video listings.
type VideoCatalog struct {
	videos    repository.VideoRepository
	users     repository.UserRepository
	thumbs    blob.Store
	maxActive int
	now       func() time.Time
	logger    *zap.Logger
}

// NewVideoCatalog creates a VideoCatalog.
func NewVideoCatalog(videos repository.VideoRepository, users repository.UserRepository, thumbs blob.Store, maxActive int, now func() time.Time, logger *zap.Logger) *VideoCatalog {
	return &VideoCatalog{
		videos:    videos,
		users:     users,
		thumbs:    thumbs,
		maxActive: maxActive,
		now:       now,
		logger:    logger,
	}
}

// Upload lists a new video for ownerID.
func (c *VideoCatalog) Upload(ctx context.Context, ownerID int64, in VideoInput) (*models.Video, error) {
	if _, err := c.users.GetByID(ctx, ownerID); err != nil {
		return nil, err
	}

	video := models.NewVideo(ownerID, in.Title, in.Link, in.ThumbnailRef, in.Duration)
	video.CreatedAt = c.now()
	if err := video.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	if err := c.videos.Create(ctx, video, c.maxActive); err != nil {
		if db.IsLimitReached(err) {
			return nil, fmt.Errorf("%w: at most %d active videos", ErrVideoLimit, c.maxActive)
		}
		return nil, err
	}

	c.logger.Info("video listed",
		zap.Int64("videoId", video.ID),
		zap.Int64("ownerId", ownerID),
		zap.Int("duration", video.Duration),
	)
	return video, nil
}

// UploadWithThumbnail stores the thumbnail image and lists the video. The
// image is removed again if the listing is refused.
func (c *VideoCatalog) UploadWithThumbnail(ctx context.Context, ownerID int64, in VideoInput, thumb io.Reader, ext string) (*models.Video, error) {
	if c.thumbs == nil {
		return nil, fmt.Errorf("thumbnail storage is not configured")
	}

	ref, err := c.thumbs.Put(ctx, thumb, ext)
	if err != nil {
		return nil, fmt.Errorf("storing thumbnail: %w", err)
	}
	in.ThumbnailRef = ref

	video, err := c.Upload(ctx, ownerID, in)
	if err != nil {
		if delErr := c.thumbs.Delete(ctx, ref); delErr != nil {
			c.logger.Warn("failed to delete orphaned thumbnail", zap.String("ref", ref), zap.Error(delErr))
		}
		return nil, err
	}
	return video, nil
}

// List returns the owner's active videos, oldest first.
func (c *VideoCatalog) List(ctx context.Context, ownerID int64) ([]*models.Video, error) {
	return c.videos.ListActiveByOwner(ctx, ownerID)
}

// Get returns one video.
func (c *VideoCatalog) Get(ctx context.Context, videoID int64) (*models.Video, error) {
	return c.videos.GetByID(ctx, videoID)
}

// Oldest returns the owner's oldest active video.
func (c *VideoCatalog) Oldest(ctx context.Context, ownerID int64) (*models.Video, error) {
	videos, err := c.videos.ListActiveByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(videos) == 0 {
		return nil, fmt.Errorf("oldest video of user %d: %w", ownerID, ErrNotFound)
	}
	return videos[0], nil
}

// Remove deactivates a video on behalf of its owner.
func (c *VideoCatalog) Remove(ctx context.Context, ownerID, videoID int64) error {
	video, err := c.videos.GetByID(ctx, videoID)
	if err != nil {
		return err
	}
	if video.OwnerID != ownerID {
		return fmt.Errorf("%w: video %d is not owned by user %d", ErrNotAuthorized, videoID, ownerID)
	}
	if !video.Active {
		return fmt.Errorf("video %d: %w", videoID, ErrNotFound)
	}
	return c.deactivate(ctx, video, "owner")
}

// Takedown deactivates a video as an admin action.
func (c *VideoCatalog) Takedown(ctx context.Context, videoID int64) error {
	video, err := c.videos.GetByID(ctx, videoID)
	if err != nil {
		return err
	}
	return c.deactivate(ctx, video, "admin")
}

func (c *VideoCatalog) deactivate(ctx context.Context, video *models.Video, by string) error {
	if err := c.videos.Deactivate(ctx, video.ID); err != nil {
		return err
	}
	c.logger.Info("video removed",
		zap.Int64("videoId", video.ID),
		zap.Int64("ownerId", video.OwnerID),
		zap.String("by", by),
	)
	return nil
}
