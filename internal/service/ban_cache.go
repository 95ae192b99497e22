package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ad-tracker/engagement-exchange-go/internal/db/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	bannedUsersSetKey = "banned_users:set"
)

// BanCache mirrors the banned user IDs into a Redis set so the transport can
// drop commands from banned users without a database round trip.
type BanCache struct {
	redisClient *redis.Client
	repo        repository.UserRepository
	logger      *zap.Logger
}

// NewBanCache creates a new BanCache.
func NewBanCache(redisClient *redis.Client, repo repository.UserRepository, logger *zap.Logger) *BanCache {
	return &BanCache{
		redisClient: redisClient,
		repo:        repo,
		logger:      logger,
	}
}

// LoadFromDB replaces the cached set with the banned users in the database.
// Call it on startup.
func (c *BanCache) LoadFromDB(ctx context.Context) error {
	ids, err := c.repo.ListBanned(ctx)
	if err != nil {
		return fmt.Errorf("failed to load banned users from database: %w", err)
	}

	pipe := c.redisClient.TxPipeline()
	pipe.Del(ctx, bannedUsersSetKey)
	if len(ids) > 0 {
		members := make([]interface{}, len(ids))
		for i, id := range ids {
			members[i] = strconv.FormatInt(id, 10)
		}
		pipe.SAdd(ctx, bannedUsersSetKey, members...)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to load banned users into Redis: %w", err)
	}

	c.logger.Info("loaded banned users into cache", zap.Int("count", len(ids)))
	return nil
}

// IsBanned checks the cached set.
func (c *BanCache) IsBanned(ctx context.Context, userID int64) (bool, error) {
	ok, err := c.redisClient.SIsMember(ctx, bannedUsersSetKey, strconv.FormatInt(userID, 10)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check ban cache: %w", err)
	}
	return ok, nil
}

// Count returns the size of the cached set.
func (c *BanCache) Count(ctx context.Context) (int64, error) {
	n, err := c.redisClient.SCard(ctx, bannedUsersSetKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count banned users: %w", err)
	}
	return n, nil
}

// BanChanged implements BanObserver.
func (c *BanCache) BanChanged(ctx context.Context, userID int64, banned bool) {
	member := strconv.FormatInt(userID, 10)

	var err error
	if banned {
		err = c.redisClient.SAdd(ctx, bannedUsersSetKey, member).Err()
	} else {
		err = c.redisClient.SRem(ctx, bannedUsersSetKey, member).Err()
	}
	if err != nil {
		c.logger.Warn("failed to update ban cache",
			zap.Int64("userId", userID),
			zap.Bool("banned", banned),
			zap.Error(err),
		)
	}
}
