// Package notify delivers outbound user notifications to the chat transport.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind identifies an outbound notification.
type Kind string

// Notification kinds
const (
	KindPaired           Kind = "paired"
	KindProofReviewed    Kind = "proof_reviewed"
	KindTaskAutoResolved Kind = "task_auto_resolved"
	KindStrikeIssued     Kind = "strike_issued"
)

// Notification is a message for a single recipient.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Notification struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	UserID      int64     `json:"user_id"`
	TaskID      int64     `json:"task_id,omitempty"`
	PartnerID   int64     `json:"partner_id,omitempty"`
	Decision    string    `json:"decision,omitempty"`
	FavoredSide string    `json:"favored_side,omitempty"`
	Strikes     int       `json:"strikes,omitempty"`
	Banned      bool      `json:"banned,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func newNotification(kind Kind, userID int64) *Notification {
	return &Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		UserID:    userID,
		CreatedAt: time.Now(),
	}
}

// Paired tells userID that they were paired with partnerID on taskID.
func Paired(userID, partnerID, taskID int64) *Notification {
	n := newNotification(KindPaired, userID)
	n.PartnerID = partnerID
	n.TaskID = taskID
	return n
}

// ProofReviewed tells userID the verdict on their proof.
func ProofReviewed(userID, taskID int64, decision string) *Notification {
	n := newNotification(KindProofReviewed, userID)
	n.TaskID = taskID
	n.Decision = decision
	return n
}

// TaskAutoResolved tells userID that the sweep closed taskID.
func TaskAutoResolved(userID, taskID int64, favoredSide string) *Notification {
	n := newNotification(KindTaskAutoResolved, userID)
	n.TaskID = taskID
	n.FavoredSide = favoredSide
	return n
}

// StrikeIssued tells userID about a new strike.
func StrikeIssued(userID int64, strikes int, banned bool) *Notification {
	n := newNotification(KindStrikeIssued, userID)
	n.Strikes = strikes
	n.Banned = banned
	return n
}

// RoutingKey returns the broker routing key for the notification.
func (n *Notification) RoutingKey() string {
	return fmt.Sprintf("notification.%s", n.Kind)
}

// Marshal serializes the notification to JSON
func (n *Notification) Marshal() ([]byte, error) {
	return json.Marshal(n)
}

// Unmarshal deserializes a notification from JSON
func Unmarshal(data []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification: %w", err)
	}
	return &n, nil
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n *Notification) error
}

// Nop discards every notification.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, *Notification) error { return nil }
