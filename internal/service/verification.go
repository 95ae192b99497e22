package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ad-tracker/engagement-exchange-go/internal/blob"
	"github.com/ad-tracker/engagement-exchange-go/internal/db/models"
	"github.com/ad-tracker/engagement-exchange-go/internal/db/repository"
	"github.com/ad-tracker/engagement-exchange-go/internal/notify"
	"go.uber.org/zap"
)

// ReviewAction is a reviewer's choice on the partner's proof.
type ReviewAction string

// ReviewAction values
const (
	ActionApprove ReviewAction = "approve"
	ActionReject  ReviewAction = "reject"
	ActionReport  ReviewAction = "report"
)

// ReviewResult is returned by Review. Complaint is set for reports only.
type ReviewResult struct {
	Task      *models.Task      `json:"task,omitempty"`
	Complaint *models.Complaint `json:"complaint,omitempty"`
}

// VerificationWorkflow runs proof submission, verdicts and complaints
// against tasks.
type VerificationWorkflow struct {
	tasks      *TaskStore
	complaints repository.ComplaintRepository
	proofs     blob.Store
	notifier   notify.Notifier
	metrics    *Metrics
	now        func() time.Time
	logger     *zap.Logger
}

// NewVerificationWorkflow creates a VerificationWorkflow.
func NewVerificationWorkflow(tasks *TaskStore, complaints repository.ComplaintRepository, proofs blob.Store, notifier notify.Notifier, metrics *Metrics, now func() time.Time, logger *zap.Logger) *VerificationWorkflow {
	return &VerificationWorkflow{
		tasks:      tasks,
		complaints: complaints,
		proofs:     proofs,
		notifier:   notifier,
		metrics:    metrics,
		now:        now,
		logger:     logger,
	}
}

// SubmitProof stores userID's proof reference on the task. A proof slot is
// written once; resubmission fails with ErrAlreadySubmitted.
func (w *VerificationWorkflow) SubmitProof(ctx context.Context, taskID, userID int64, proofRef string) (*models.Task, error) {
	task, err := w.tasks.SubmitProof(ctx, taskID, userID, proofRef)
	if err != nil {
		return nil, err
	}

	w.metrics.Proofs.Inc()
	w.logger.Info("proof submitted",
		zap.Int64("taskId", taskID),
		zap.Int64("userId", userID),
		zap.String("status", string(task.Status)),
	)
	return task, nil
}

// UploadProof stores the proof image and submits its reference. The blob is
// removed again when the submission is refused.
func (w *VerificationWorkflow) UploadProof(ctx context.Context, taskID, userID int64, r io.Reader, ext string) (*models.Task, error) {
	ref, err := w.proofs.Put(ctx, r, ext)
	if err != nil {
		return nil, fmt.Errorf("storing proof: %w", err)
	}

	task, err := w.SubmitProof(ctx, taskID, userID, ref)
	if err != nil {
		if delErr := w.proofs.Delete(ctx, ref); delErr != nil {
			w.logger.Warn("failed to delete refused proof", zap.String("ref", ref), zap.Error(delErr))
		}
		return nil, err
	}
	return task, nil
}

// VerifyProof records reviewerID's verdict on the partner's proof and tells
// the partner.
func (w *VerificationWorkflow) VerifyProof(ctx context.Context, taskID, reviewerID int64, decision models.Verdict) (*models.Task, error) {
	task, judged, err := w.tasks.Verify(ctx, taskID, reviewerID, decision)
	if err != nil {
		return nil, err
	}

	reviewee := task.UserOn(judged)
	w.metrics.Verdicts.WithLabelValues(string(decision)).Inc()
	w.logger.Info("proof reviewed",
		zap.Int64("taskId", taskID),
		zap.Int64("reviewerId", reviewerID),
		zap.Int64("revieweeId", reviewee),
		zap.String("decision", string(decision)),
		zap.String("status", string(task.Status)),
	)

	if err := w.notifier.Notify(ctx, notify.ProofReviewed(reviewee, taskID, string(decision))); err != nil {
		w.logger.Warn("failed to queue review notification", zap.Int64("userId", reviewee), zap.Error(err))
	}
	return task, nil
}

// FileComplaint records a complaint against the reporter's partner with a
// snapshot of the partner's current proof and flags the task as disputed.
// Proof and verdict fields are left alone.
func (w *VerificationWorkflow) FileComplaint(ctx context.Context, reporterID, taskID int64, reason string) (*models.Complaint, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: a reason is required", ErrInvalidInput)
	}

	task, err := w.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	side, ok := task.SideOf(reporterID)
	if !ok {
		return nil, fmt.Errorf("%w: user %d is not part of task %d", ErrNotAuthorized, reporterID, taskID)
	}

	accusedSide := side.Other()
	var snapshot *string
	if p := task.Proof(accusedSide); p != nil {
		ref := *p
		snapshot = &ref
	}

	complaint := models.NewComplaint(reporterID, task.UserOn(accusedSide), taskID, reason, snapshot)
	complaint.CreatedAt = w.now()
	if err := w.complaints.Create(ctx, complaint); err != nil {
		return nil, err
	}
	if err := w.tasks.MarkDisputed(ctx, taskID); err != nil {
		return nil, err
	}

	w.metrics.Complaints.Inc()
	w.logger.Info("complaint filed",
		zap.Int64("complaintId", complaint.ID),
		zap.Int64("taskId", taskID),
		zap.Int64("reporterId", reporterID),
		zap.Int64("accusedId", complaint.AccusedID),
	)
	return complaint, nil
}

// Review dispatches a reviewer's approve, reject or report action.
func (w *VerificationWorkflow) Review(ctx context.Context, taskID, reviewerID int64, action ReviewAction, reason string) (*ReviewResult, error) {
	switch action {
	case ActionApprove, ActionReject:
		decision := models.VerdictApproved
		if action == ActionReject {
			decision = models.VerdictRejected
		}
		task, err := w.VerifyProof(ctx, taskID, reviewerID, decision)
		if err != nil {
			return nil, err
		}
		return &ReviewResult{Task: task}, nil
	case ActionReport:
		complaint, err := w.FileComplaint(ctx, reviewerID, taskID, reason)
		if err != nil {
			return nil, err
		}
		return &ReviewResult{Complaint: complaint}, nil
	default:
		return nil, fmt.Errorf("%w: unknown review action %q", ErrInvalidInput, action)
	}
}
