package service

import (
	"context"
	"errors"
	"sync"

	"github.com/ad-tracker/engagement-exchange-go/internal/db/models"
	"github.com/ad-tracker/engagement-exchange-go/internal/db/repository"
	"github.com/ad-tracker/engagement-exchange-go/internal/notify"
	"go.uber.org/zap"
)

// PairOutcome is the result kind of Ready.
type PairOutcome string

// PairOutcome values
const (
	OutcomePaired  PairOutcome = "paired"
	OutcomeWaiting PairOutcome = "waiting"
)

// PairResult is returned by Ready.
type PairResult struct {
	Outcome   PairOutcome  `json:"outcome"`
	PartnerID int64        `json:"partner_id,omitempty"`
	TaskID    int64        `json:"task_id,omitempty"`
	Task      *models.Task `json:"task,omitempty"`
}

// PairingEngine keeps the FIFO readiness pool. The pool check, the pop and
// the task creation run under one mutex, so concurrent Ready calls can never
// pair a user twice.
type PairingEngine struct {
	users    repository.UserRepository
	tasks    *TaskStore
	catalog  *VideoCatalog
	notifier notify.Notifier
	metrics  *Metrics
	logger   *zap.Logger

	mu     sync.Mutex
	queue  []int64
	queued map[int64]struct{}
}

// NewPairingEngine creates a PairingEngine with an empty pool.
func NewPairingEngine(users repository.UserRepository, tasks *TaskStore, catalog *VideoCatalog, notifier notify.Notifier, metrics *Metrics, logger *zap.Logger) *PairingEngine {
	return &PairingEngine{
		users:    users,
		tasks:    tasks,
		catalog:  catalog,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		queued:   make(map[int64]struct{}),
	}
}

// Ready pairs the user with the earliest eligible waiting user, or enqueues
// them. The waiting partner learns about the pairing through a notification
// sent after the pool is unlocked.
func (p *PairingEngine) Ready(ctx context.Context, userID int64) (*PairResult, error) {
	p.mu.Lock()
	result, err := p.readyLocked(ctx, userID)
	size := len(p.queue)
	p.mu.Unlock()

	p.metrics.PoolSize.Set(float64(size))
	if err != nil {
		return nil, err
	}

	if result.Outcome == OutcomePaired {
		p.metrics.Pairings.Inc()
		p.logger.Info("users paired",
			zap.Int64("taskId", result.TaskID),
			zap.Int64("userA", result.PartnerID),
			zap.Int64("userB", userID),
		)
		if err := p.notifier.Notify(ctx, notify.Paired(result.PartnerID, userID, result.TaskID)); err != nil {
			p.logger.Warn("failed to queue pairing notification",
				zap.Int64("userId", result.PartnerID),
				zap.Error(err),
			)
		}
	} else {
		p.logger.Debug("user waiting", zap.Int64("userId", userID), zap.Int("poolSize", size))
	}
	return result, nil
}

func (p *PairingEngine) readyLocked(ctx context.Context, userID int64) (*PairResult, error) {
	if _, ok := p.queued[userID]; ok {
		return nil, notEligible(userID, ReasonAlreadyActive)
	}
	callerVideo, err := p.eligibleVideo(ctx, userID)
	if err != nil {
		return nil, err
	}

	for len(p.queue) > 0 {
		candidate := p.pop()

		candidateVideo, err := p.eligibleVideo(ctx, candidate)
		if err != nil {
			if _, ineligible := IneligibilityReason(err); ineligible || errors.Is(err, ErrNotFound) {
				p.logger.Info("dropping ineligible user from pool",
					zap.Int64("userId", candidate),
					zap.Error(err),
				)
				continue
			}
			p.pushFront(candidate)
			return nil, err
		}

		task, err := p.tasks.Open(ctx, candidate, userID, callerVideo.ID, candidateVideo.ID)
		if err != nil {
			p.pushFront(candidate)
			return nil, err
		}
		return &PairResult{
			Outcome:   OutcomePaired,
			PartnerID: candidate,
			TaskID:    task.ID,
			Task:      task,
		}, nil
	}

	p.queue = append(p.queue, userID)
	p.queued[userID] = struct{}{}
	return &PairResult{Outcome: OutcomeWaiting}, nil
}

// eligibleVideo checks the pool preconditions other than pool membership and
// returns the user's oldest active video.
func (p *PairingEngine) eligibleVideo(ctx context.Context, userID int64) (*models.Video, error) {
	user, err := p.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	switch {
	case user.Banned:
		return nil, notEligible(userID, ReasonBanned)
	case user.Paused:
		return nil, notEligible(userID, ReasonPaused)
	}

	busy, err := p.tasks.HasOpenTask(ctx, userID)
	if err != nil {
		return nil, err
	}
	if busy {
		return nil, notEligible(userID, ReasonAlreadyActive)
	}

	video, err := p.catalog.Oldest(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, notEligible(userID, ReasonNoVideo)
	}
	return video, err
}

func (p *PairingEngine) pop() int64 {
	id := p.queue[0]
	p.queue = p.queue[1:]
	delete(p.queued, id)
	return id
}

func (p *PairingEngine) pushFront(id int64) {
	p.queue = append([]int64{id}, p.queue...)
	p.queued[id] = struct{}{}
}

// Leave removes the user from the pool and reports whether they were waiting.
func (p *PairingEngine) Leave(userID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.queued[userID]; !ok {
		return false
	}
	delete(p.queued, userID)
	for i, id := range p.queue {
		if id == userID {
			p.queue = append(p.queue[:i], p.queue[i+1:]...)
			break
		}
	}
	p.metrics.PoolSize.Set(float64(len(p.queue)))
	return true
}

// IsWaiting reports whether the user is in the pool.
func (p *PairingEngine) IsWaiting(userID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.queued[userID]
	return ok
}

// Waiting returns a snapshot of the pool in FIFO order.
func (p *PairingEngine) Waiting() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int64, len(p.queue))
	copy(out, p.queue)
	return out
}

// BanChanged implements BanObserver. Banned users leave the pool.
func (p *PairingEngine) BanChanged(_ context.Context, userID int64, banned bool) {
	if banned && p.Leave(userID) {
		p.logger.Info("banned user removed from pool", zap.Int64("userId", userID))
	}
}
