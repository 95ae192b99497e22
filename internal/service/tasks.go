package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ad-tracker/engagement-exchange-go/internal/db/models"
	"github.com/ad-tracker/engagement-exchange-go/internal/db/repository"
	"go.uber.org/zap"
)

// TaskStore owns tasks and serializes every mutation of a task behind a
// per-task lock.
type TaskStore struct {
	repo   repository.TaskRepository
	locks  *keyedMutex
	now    func() time.Time
	logger *zap.Logger
}

// NewTaskStore creates a TaskStore.
func NewTaskStore(repo repository.TaskRepository, now func() time.Time, logger *zap.Logger) *TaskStore {
	return &TaskStore{
		repo:   repo,
		locks:  newKeyedMutex(),
		now:    now,
		logger: logger,
	}
}

// Open creates a task in the created state. userA is reviewed by userB and
// reviews videoAID.
func (s *TaskStore) Open(ctx context.Context, userA, userB, videoAID, videoBID int64) (*models.Task, error) {
	task := models.NewTask(userA, userB, videoAID, videoBID, s.now())
	if err := s.repo.Create(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// Get returns a task by ID.
func (s *TaskStore) Get(ctx context.Context, id int64) (*models.Task, error) {
	return s.repo.GetByID(ctx, id)
}

// CurrentFor returns the user's open task.
func (s *TaskStore) CurrentFor(ctx context.Context, userID int64) (*models.Task, error) {
	return s.repo.GetOpenByUser(ctx, userID)
}

// HasOpenTask reports whether the user takes part in an open task.
func (s *TaskStore) HasOpenTask(ctx context.Context, userID int64) (bool, error) {
	_, err := s.repo.GetOpenByUser(ctx, userID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// ListOpen returns up to limit open tasks, oldest first.
func (s *TaskStore) ListOpen(ctx context.Context, limit int) ([]*models.Task, error) {
	return s.repo.ListOpen(ctx, limit)
}

// ListOpenAfter returns the next page of open tasks after the cursor.
func (s *TaskStore) ListOpenAfter(ctx context.Context, after models.TaskCursor, limit int) ([]*models.Task, error) {
	return s.repo.ListOpenAfter(ctx, after, limit)
}

// CountByUser counts all tasks of a user.
func (s *TaskStore) CountByUser(ctx context.Context, userID int64) (int, error) {
	return s.repo.CountByUser(ctx, userID)
}

// mutate loads the task under its lock, applies fn and saves the result.
// Nothing is saved when fn fails.
func (s *TaskStore) mutate(ctx context.Context, id int64, fn func(t *models.Task, now time.Time) error) (*models.Task, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	task, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(task, s.now()); err != nil {
		return nil, translateTaskError(err)
	}
	if err := s.repo.Update(ctx, task); err != nil {
		return nil, translateTaskError(err)
	}
	return task, nil
}

// SubmitProof stores the user's proof reference.
func (s *TaskStore) SubmitProof(ctx context.Context, taskID, userID int64, ref string) (*models.Task, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: proof reference is required", ErrInvalidInput)
	}
	return s.mutate(ctx, taskID, func(t *models.Task, now time.Time) error {
		return t.SubmitProof(userID, ref, now)
	})
}

// Verify records the reviewer's verdict on the partner's proof and returns the
// judged side.
func (s *TaskStore) Verify(ctx context.Context, taskID, reviewerID int64, verdict models.Verdict) (*models.Task, models.Side, error) {
	var judged models.Side
	task, err := s.mutate(ctx, taskID, func(t *models.Task, now time.Time) error {
		var err error
		judged, err = t.Verify(reviewerID, verdict, now)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	return task, judged, nil
}

// AutoResolveIfStalled closes the task in favor of the submitting side when it
// is still stalled under the lock. ok is false when there was nothing to do.
func (s *TaskStore) AutoResolveIfStalled(ctx context.Context, taskID int64, timeout time.Duration) (task *models.Task, favored models.Side, ok bool, err error) {
	task, err = s.mutate(ctx, taskID, func(t *models.Task, now time.Time) error {
		side, stalled := t.Stalled(now, timeout)
		if !stalled {
			return errNotStalled
		}
		favored = side
		return t.AutoResolve(side, now)
	})
	if errors.Is(err, errNotStalled) {
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, err
	}
	return task, favored, true, nil
}

var errNotStalled = errors.New("task is not stalled")

// MarkDisputed flags the task for admin review.
func (s *TaskStore) MarkDisputed(ctx context.Context, taskID int64) error {
	unlock := s.locks.Lock(taskID)
	defer unlock()
	return s.repo.MarkDisputed(ctx, taskID)
}
