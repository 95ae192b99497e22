package models

import "time"

// Complaint status constants
const (
	ComplaintOpen   = "open"
	ComplaintClosed = "closed"
)

// Complaint is a report filed by one task participant against the other.
type Complaint struct {
	ID            int64      `db:"id" json:"id"`
	ReporterID    int64      `db:"reporter_id" json:"reporter_id"`
	AccusedID     int64      `db:"accused_id" json:"accused_id"`
	TaskID        int64      `db:"task_id" json:"task_id"`
	Reason        string     `db:"reason" json:"reason"`
	ProofSnapshot *string    `db:"proof_snapshot" json:"proof_snapshot,omitempty"`
	Status        string     `db:"status" json:"status"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	ClosedAt      *time.Time `db:"closed_at" json:"closed_at,omitempty"`
}

// NewComplaint creates an open Complaint.
func NewComplaint(reporterID, accusedID, taskID int64, reason string, proofSnapshot *string) *Complaint {
	return &Complaint{
		ReporterID:    reporterID,
		AccusedID:     accusedID,
		TaskID:        taskID,
		Reason:        reason,
		ProofSnapshot: proofSnapshot,
		Status:        ComplaintOpen,
		CreatedAt:     time.Now(),
	}
}

// MarkClosed closes the complaint.
func (c *Complaint) MarkClosed() {
	now := time.Now()
	c.Status = ComplaintClosed
	c.ClosedAt = &now
}
