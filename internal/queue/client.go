package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ad-tracker/engagement-exchange-go/internal/notify"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	deliverMaxRetry = 5
	deliverTimeout  = 30 * time.Second
	deliverRetain   = 24 * time.Hour
)

// Client enqueues notifications for the worker to deliver. It implements
// notify.Notifier.
type Client struct {
	asynqClient *asynq.Client
	logger      *zap.Logger
}

// NewClient creates a new queue client
func NewClient(redisAddr string, logger *zap.Logger) (*Client, error) {
	// Parse Redis URL to extract connection details (host, password, db, TLS)
	redisOpt, err := ParseRedisURL(redisAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		asynqClient: asynq.NewClient(redisOpt),
		logger:      logger,
	}, nil
}

// Close closes the client connection
func (c *Client) Close() error {
	return c.asynqClient.Close()
}

// Notify enqueues n. The notification ID doubles as the task ID so a
// notification is enqueued at most once while it is retained.
func (c *Client) Notify(ctx context.Context, n *notify.Notification) error {
	task, err := NewDeliverTask(n)
	if err != nil {
		return err
	}

	info, err := c.asynqClient.EnqueueContext(ctx, task,
		asynq.TaskID(n.ID),
		asynq.MaxRetry(deliverMaxRetry),
		asynq.Timeout(deliverTimeout),
		asynq.Retention(deliverRetain),
		asynq.Queue(QueueNotifications),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			c.logger.Debug("notification already enqueued", zap.String("id", n.ID))
			return nil
		}
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}

	c.logger.Debug("enqueued notification",
		zap.String("taskId", info.ID),
		zap.String("kind", string(n.Kind)),
		zap.Int64("userId", n.UserID),
	)
	return nil
}
