package models

import (
	"fmt"
	"time"
)

// TaskStatus is the state of a task.
type TaskStatus string

// TaskStatus constants. Resolved and AutoResolved are terminal.
const (
	TaskCreated              TaskStatus = "created"
	TaskProofPending         TaskStatus = "proof_pending"
	TaskAwaitingVerification TaskStatus = "awaiting_verification"
	TaskResolved             TaskStatus = "resolved"
	TaskAutoResolved         TaskStatus = "auto_resolved"
)

// Verdict is a reviewer's decision on a proof.
type Verdict string

// Verdict constants
const (
	VerdictNone     Verdict = "none"
	VerdictApproved Verdict = "approved"
	VerdictRejected Verdict = "rejected"
)

// ParseVerdict converts a decision string into a terminal verdict.
func ParseVerdict(s string) (Verdict, error) {
	switch Verdict(s) {
	case VerdictApproved, VerdictRejected:
		return Verdict(s), nil
	}
	return VerdictNone, fmt.Errorf("%w: %q", ErrInvalidVerdict, s)
}

// Side identifies one half of a task.
type Side string

// Side constants
const (
	SideA Side = "a"
	SideB Side = "b"
)

// Other returns the opposite side.
func (s Side) Other() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

// Task is a cross-review pairing of two users.
//
// VideoAID is reviewed by UserA and owned by UserB; VideoBID the reverse.
// VerifyA is UserB's verdict on ProofA, VerifyB is UserA's verdict on ProofB.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Task struct {
	ID          int64      `db:"id" json:"id"`
	UserA       int64      `db:"user_a" json:"user_a"`
	UserB       int64      `db:"user_b" json:"user_b"`
	VideoAID    int64      `db:"video_a_id" json:"video_a_id"`
	VideoBID    int64      `db:"video_b_id" json:"video_b_id"`
	ProofA      *string    `db:"proof_a" json:"proof_a,omitempty"`
	ProofB      *string    `db:"proof_b" json:"proof_b,omitempty"`
	VerifyA     Verdict    `db:"verify_a" json:"verify_a"`
	VerifyB     Verdict    `db:"verify_b" json:"verify_b"`
	Status      TaskStatus `db:"status" json:"status"`
	Resolution  Verdict    `db:"resolution" json:"resolution"`
	FavoredSide Side       `db:"favored_side" json:"favored_side,omitempty"`
	Disputed    bool       `db:"disputed" json:"disputed"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	ResolvedAt  *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}

// NewTask creates a task in the created state.
func NewTask(userA, userB, videoAID, videoBID int64, createdAt time.Time) *Task {
	return &Task{
		UserA:      userA,
		UserB:      userB,
		VideoAID:   videoAID,
		VideoBID:   videoBID,
		VerifyA:    VerdictNone,
		VerifyB:    VerdictNone,
		Status:     TaskCreated,
		Resolution: VerdictNone,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}

// TaskCursor is a position in the (created_at, id) ordering of tasks. The
// zero cursor sorts before every task.
type TaskCursor struct {
	CreatedAt time.Time
	ID        int64
}

// Cursor returns the position of t in the (created_at, id) ordering.
func (t *Task) Cursor() TaskCursor {
	return TaskCursor{CreatedAt: t.CreatedAt, ID: t.ID}
}

// After reports whether t sorts strictly after c.
func (t *Task) After(c TaskCursor) bool {
	if !t.CreatedAt.Equal(c.CreatedAt) {
		return t.CreatedAt.After(c.CreatedAt)
	}
	return t.ID > c.ID
}

// IsTerminal returns true once the task is resolved or auto-resolved.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskResolved || t.Status == TaskAutoResolved
}

// SideOf returns the side the user plays in this task.
func (t *Task) SideOf(userID int64) (Side, bool) {
	switch userID {
	case t.UserA:
		return SideA, true
	case t.UserB:
		return SideB, true
	}
	return "", false
}

// UserOn returns the user playing the given side.
func (t *Task) UserOn(side Side) int64 {
	if side == SideA {
		return t.UserA
	}
	return t.UserB
}

// Partner returns the other participant.
func (t *Task) Partner(userID int64) (int64, bool) {
	side, ok := t.SideOf(userID)
	if !ok {
		return 0, false
	}
	return t.UserOn(side.Other()), true
}

// AssignedVideo returns the video the user has to review.
func (t *Task) AssignedVideo(userID int64) (int64, bool) {
	switch userID {
	case t.UserA:
		return t.VideoAID, true
	case t.UserB:
		return t.VideoBID, true
	}
	return 0, false
}

// Proof returns the proof slot of a side.
func (t *Task) Proof(side Side) *string {
	if side == SideA {
		return t.ProofA
	}
	return t.ProofB
}

// Verdict returns the verdict on a side's proof.
func (t *Task) Verdict(side Side) Verdict {
	if side == SideA {
		return t.VerifyA
	}
	return t.VerifyB
}

// SubmitProof stores the user's proof and advances the state.
func (t *Task) SubmitProof(userID int64, ref string, now time.Time) error {
	side, ok := t.SideOf(userID)
	if !ok {
		return ErrNotParticipant
	}
	if t.IsTerminal() {
		return ErrTaskTerminal
	}
	if t.Proof(side) != nil {
		return ErrProofAlreadySubmitted
	}

	if side == SideA {
		t.ProofA = &ref
	} else {
		t.ProofB = &ref
	}

	if t.Proof(side.Other()) != nil {
		t.Status = TaskAwaitingVerification
	} else {
		t.Status = TaskProofPending
	}
	t.UpdatedAt = now
	return nil
}

// Verify records the reviewer's verdict on the partner's proof and returns the
// side that was judged. The task resolves once both verdicts are in.
func (t *Task) Verify(reviewerID int64, verdict Verdict, now time.Time) (Side, error) {
	reviewer, ok := t.SideOf(reviewerID)
	if !ok {
		return "", ErrNotParticipant
	}
	if verdict != VerdictApproved && verdict != VerdictRejected {
		return "", ErrInvalidVerdict
	}
	if t.IsTerminal() {
		return "", ErrTaskTerminal
	}

	judged := reviewer.Other()
	if t.Proof(judged) == nil {
		return "", ErrNoProof
	}
	if t.Verdict(judged) != VerdictNone {
		return "", ErrVerdictAlreadySubmitted
	}

	if judged == SideA {
		t.VerifyA = verdict
	} else {
		t.VerifyB = verdict
	}
	t.UpdatedAt = now

	if t.VerifyA != VerdictNone && t.VerifyB != VerdictNone {
		t.Status = TaskResolved
		t.Resolution = VerdictRejected
		if t.VerifyA == VerdictApproved && t.VerifyB == VerdictApproved {
			t.Resolution = VerdictApproved
		}
		t.ResolvedAt = &now
	}
	return judged, nil
}

// MarkDisputed flags the task for admin review. It never changes the state.
func (t *Task) MarkDisputed(now time.Time) {
	t.Disputed = true
	t.UpdatedAt = now
}

// Stalled reports whether the task has timed out with exactly one proof
// submitted and never reviewed. The returned side is the one that submitted.
func (t *Task) Stalled(now time.Time, timeout time.Duration) (Side, bool) {
	if t.IsTerminal() || now.Sub(t.CreatedAt) <= timeout {
		return "", false
	}

	hasA, hasB := t.ProofA != nil, t.ProofB != nil
	switch {
	case hasA && !hasB && t.VerifyA == VerdictNone:
		return SideA, true
	case hasB && !hasA && t.VerifyB == VerdictNone:
		return SideB, true
	}
	return "", false
}

// AutoResolve closes the task in favor of the given side.
func (t *Task) AutoResolve(favored Side, now time.Time) error {
	if t.IsTerminal() {
		return ErrTaskTerminal
	}
	t.Status = TaskAutoResolved
	t.FavoredSide = favored
	t.UpdatedAt = now
	t.ResolvedAt = &now
	return nil
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	if t.ProofA != nil {
		p := *t.ProofA
		c.ProofA = &p
	}
	if t.ProofB != nil {
		p := *t.ProofB
		c.ProofB = &p
	}
	if t.ResolvedAt != nil {
		r := *t.ResolvedAt
		c.ResolvedAt = &r
	}
	return &c
}
