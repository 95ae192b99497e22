package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ad-tracker/engagement-exchange-go/internal/db/models"
	"github.com/ad-tracker/engagement-exchange-go/internal/db/repository"
	"go.uber.org/zap"
)

// TaskView is a task from one participant's point of view.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type TaskView struct {
	TaskID        int64             `json:"task_id"`
	Status        models.TaskStatus `json:"status"`
	Side          models.Side       `json:"side"`
	PartnerID     int64             `json:"partner_id"`
	AssignedVideo *models.Video     `json:"assigned_video,omitempty"`
	// MyProof is set once the viewer submitted proof.
	MyProof        *string        `json:"my_proof,omitempty"`
	MyProofVerdict models.Verdict `json:"my_proof_verdict"`
	// PartnerProof is the proof the viewer has to review.
	PartnerProof   *string        `json:"partner_proof,omitempty"`
	PartnerVerdict models.Verdict `json:"partner_verdict"`
	Disputed       bool           `json:"disputed"`
	CreatedAt      time.Time      `json:"created_at"`
}

// UserStatus summarizes a user's standing.
type UserStatus struct {
	User         *models.User `json:"user"`
	ActiveVideos int          `json:"active_videos"`
	TotalTasks   int          `json:"total_tasks"`
	Waiting      bool         `json:"waiting"`
	OpenTask     *TaskView    `json:"open_task,omitempty"`
}

// AccountService handles registration, pause and resume, and status queries.
type AccountService struct {
	users   repository.UserRepository
	tasks   *TaskStore
	catalog *VideoCatalog
	pairing *PairingEngine
	now     func() time.Time
	logger  *zap.Logger
}

// NewAccountService creates an AccountService.
func NewAccountService(users repository.UserRepository, tasks *TaskStore, catalog *VideoCatalog, pairing *PairingEngine, now func() time.Time, logger *zap.Logger) *AccountService {
	return &AccountService{
		users:   users,
		tasks:   tasks,
		catalog: catalog,
		pairing: pairing,
		now:     now,
		logger:  logger,
	}
}

// Register creates the user or refreshes their display name.
func (a *AccountService) Register(ctx context.Context, userID int64, displayName string) (*models.User, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id must be positive", ErrInvalidInput)
	}

	user := models.NewUser(userID, strings.TrimSpace(displayName))
	user.CreatedAt = a.now()
	user.UpdatedAt = user.CreatedAt
	if err := a.users.Upsert(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Pause marks the user paused and takes them out of the pool.
func (a *AccountService) Pause(ctx context.Context, userID int64) (*models.User, error) {
	user, err := a.users.SetPaused(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	left := a.pairing.Leave(userID)
	a.logger.Info("user paused", zap.Int64("userId", userID), zap.Bool("leftPool", left))
	return user, nil
}

// Resume clears the paused flag.
func (a *AccountService) Resume(ctx context.Context, userID int64) (*models.User, error) {
	user, err := a.users.SetPaused(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	a.logger.Info("user resumed", zap.Int64("userId", userID))
	return user, nil
}

// CurrentTask returns the user's open task as seen by them.
func (a *AccountService) CurrentTask(ctx context.Context, userID int64) (*TaskView, error) {
	task, err := a.tasks.CurrentFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return a.view(ctx, task, userID)
}

func (a *AccountService) view(ctx context.Context, task *models.Task, userID int64) (*TaskView, error) {
	side, ok := task.SideOf(userID)
	if !ok {
		return nil, fmt.Errorf("%w: user %d is not part of task %d", ErrNotAuthorized, userID, task.ID)
	}

	v := &TaskView{
		TaskID:         task.ID,
		Status:         task.Status,
		Side:           side,
		PartnerID:      task.UserOn(side.Other()),
		MyProof:        task.Proof(side),
		MyProofVerdict: task.Verdict(side),
		PartnerProof:   task.Proof(side.Other()),
		PartnerVerdict: task.Verdict(side.Other()),
		Disputed:       task.Disputed,
		CreatedAt:      task.CreatedAt,
	}

	videoID, _ := task.AssignedVideo(userID)
	video, err := a.catalog.Get(ctx, videoID)
	switch {
	case err == nil:
		v.AssignedVideo = video
	case errors.Is(err, ErrNotFound):
		a.logger.Warn("assigned video missing", zap.Int64("taskId", task.ID), zap.Int64("videoId", videoID))
	default:
		return nil, err
	}
	return v, nil
}

// Status returns the user's standing and open task.
func (a *AccountService) Status(ctx context.Context, userID int64) (*UserStatus, error) {
	user, err := a.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	videos, err := a.catalog.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	total, err := a.tasks.CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	status := &UserStatus{
		User:         user,
		ActiveVideos: len(videos),
		TotalTasks:   total,
		Waiting:      a.pairing.IsWaiting(userID),
	}

	view, err := a.CurrentTask(ctx, userID)
	switch {
	case err == nil:
		status.OpenTask = view
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}
	return status, nil
}
