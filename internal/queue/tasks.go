package queue

import (
	"fmt"

	"github.com/ad-tracker/engagement-exchange-go/internal/notify"
	"github.com/hibiken/asynq"
)

// Task types
const (
	TypeDeliverNotification = "notification:deliver"
)

// Queue names
const (
	QueueNotifications = "notifications"
)

// NewDeliverTask wraps a notification in an asynq task.
func NewDeliverTask(n *notify.Notification) (*asynq.Task, error) {
	if n == nil {
		return nil, fmt.Errorf("notification is required")
	}
	if n.UserID == 0 {
		return nil, fmt.Errorf("notification recipient is required")
	}

	payload, err := n.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification: %w", err)
	}
	return asynq.NewTask(TypeDeliverNotification, payload), nil
}

// ParseDeliverTask extracts the notification from a delivery task.
func ParseDeliverTask(task *asynq.Task) (*notify.Notification, error) {
	if task.Type() != TypeDeliverNotification {
		return nil, fmt.Errorf("unexpected task type %q", task.Type())
	}
	return notify.Unmarshal(task.Payload())
}
