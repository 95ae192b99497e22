package service

import (
	"context"

	"github.com/ad-tracker/engagement-exchange-go/internal/db/models"
	"github.com/ad-tracker/engagement-exchange-go/internal/db/repository"
	"go.uber.org/zap"
)

// Stats are the admin dashboard counters.
type Stats struct {
	UserCount         int `json:"user_count"`
	ActiveTasks       int `json:"active_tasks"`
	PendingComplaints int `json:"pending_complaints"`
	StrikesGiven      int `json:"strikes_given"`
	BannedCount       int `json:"banned_count"`
	Waiting           int `json:"waiting"`
}

// AdminService serves admin read models and complaint handling. Strike and
// ban overrides go through the ModerationLedger.
type AdminService struct {
	users      repository.UserRepository
	tasks      repository.TaskRepository
	complaints repository.ComplaintRepository
	pairing    *PairingEngine
	logger     *zap.Logger
}

// NewAdminService creates an AdminService.
func NewAdminService(users repository.UserRepository, tasks repository.TaskRepository, complaints repository.ComplaintRepository, pairing *PairingEngine, logger *zap.Logger) *AdminService {
	return &AdminService{
		users:      users,
		tasks:      tasks,
		complaints: complaints,
		pairing:    pairing,
		logger:     logger,
	}
}

// Stats collects the dashboard counters.
func (a *AdminService) Stats(ctx context.Context) (*Stats, error) {
	userStats, err := a.users.Stats(ctx)
	if err != nil {
		return nil, err
	}
	active, err := a.tasks.CountOpen(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := a.complaints.CountOpen(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		UserCount:         userStats.Users,
		ActiveTasks:       active,
		PendingComplaints: pending,
		StrikesGiven:      userStats.StrikesGiven,
		BannedCount:       userStats.Banned,
	}
	if a.pairing != nil {
		stats.Waiting = len(a.pairing.Waiting())
	}
	return stats, nil
}

// ListComplaints returns complaints, optionally filtered by status.
func (a *AdminService) ListComplaints(ctx context.Context, status string, limit, offset int) ([]*models.Complaint, error) {
	return a.complaints.List(ctx, status, limit, offset)
}

// CloseComplaint marks a complaint handled.
func (a *AdminService) CloseComplaint(ctx context.Context, id int64) (*models.Complaint, error) {
	c, err := a.complaints.Close(ctx, id)
	if err != nil {
		return nil, err
	}
	a.logger.Info("complaint closed", zap.Int64("complaintId", id), zap.Int64("taskId", c.TaskID))
	return c, nil
}

// ListUsers returns users ordered by ID.
func (a *AdminService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	return a.users.List(ctx, limit, offset)
}

// GetUser returns one user.
func (a *AdminService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return a.users.GetByID(ctx, id)
}

// GetTask returns any task, including terminal ones.
func (a *AdminService) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	return a.tasks.GetByID(ctx, id)
}
