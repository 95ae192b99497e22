package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ad-tracker/engagement-exchange-go/internal/blob"
	"github.com/ad-tracker/engagement-exchange-go/internal/db/models"
	"github.com/ad-tracker/engagement-exchange-go/internal/notify"
	"go.uber.org/zap"
)

// SweepReport summarizes one sweep pass.
type SweepReport struct {
	Scanned      int `json:"scanned"`
	AutoResolved int `json:"auto_resolved"`
	Struck       int `json:"struck"`
	Skipped      int `json:"skipped"`
	ProofsPurged int `json:"proofs_purged"`
	ProofsKept   int `json:"proofs_kept"`

	// Unstruck lists stalling users whose task was auto-resolved but whose
	// strike could not be recorded. Re-issue these by hand.
	Unstruck []int64 `json:"unstruck,omitempty"`
}

// AntiCheatSweeper closes stalled tasks, strikes the stalling reviewer and
// purges proofs past the retention window.
type AntiCheatSweeper struct {
	tasks    *TaskStore
	ledger   *ModerationLedger
	proofs   blob.Store
	notifier notify.Notifier
	rules    Rules
	metrics  *Metrics
	now      func() time.Time
	logger   *zap.Logger
}

// NewAntiCheatSweeper creates an AntiCheatSweeper.
func NewAntiCheatSweeper(tasks *TaskStore, ledger *ModerationLedger, proofs blob.Store, notifier notify.Notifier, rules Rules, metrics *Metrics, now func() time.Time, logger *zap.Logger) *AntiCheatSweeper {
	return &AntiCheatSweeper{
		tasks:    tasks,
		ledger:   ledger,
		proofs:   proofs,
		notifier: notifier,
		rules:    rules,
		metrics:  metrics,
		now:      now,
		logger:   logger,
	}
}

// Sweep runs one pass over every open task, reading them in pages of
// SweepBatchSize. Errors on single records are logged and the record is
// skipped; only a failure to list open tasks aborts the pass.
func (s *AntiCheatSweeper) Sweep(ctx context.Context) (*SweepReport, error) {
	start := time.Now()
	defer func() { s.metrics.SweepDurations.Observe(time.Since(start).Seconds()) }()

	report := &SweepReport{}

	batchSize := s.rules.SweepBatchSize
	if batchSize <= 0 {
		batchSize = DefaultRules().SweepBatchSize
	}

	var cursor models.TaskCursor
	for {
		batch, err := s.tasks.ListOpenAfter(ctx, cursor, batchSize)
		if err != nil {
			return report, fmt.Errorf("listing open tasks: %w", err)
		}

		for _, task := range batch {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			report.Scanned++
			s.sweepTask(ctx, task, report)
		}

		if len(batch) < batchSize {
			break
		}
		cursor = batch[len(batch)-1].Cursor()
	}

	s.purgeProofs(ctx, report)

	s.logger.Info("sweep finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("autoResolved", report.AutoResolved),
		zap.Int("struck", report.Struck),
		zap.Int("skipped", report.Skipped),
		zap.Int("proofsPurged", report.ProofsPurged),
		zap.Int64s("unstruck", report.Unstruck),
	)
	return report, nil
}

func (s *AntiCheatSweeper) skip(report *SweepReport, task *models.Task, msg string, err error) {
	report.Skipped++
	s.metrics.SweepErrors.Inc()
	s.logger.Warn(msg, zap.Int64("taskId", task.ID), zap.Error(err))
}

func (s *AntiCheatSweeper) sweepTask(ctx context.Context, task *models.Task, report *SweepReport) {
	if task.CreatedAt.IsZero() {
		s.skip(report, task, "skipping task with malformed timestamp", nil)
		return
	}
	if _, stalled := task.Stalled(s.now(), s.rules.StallTimeout); !stalled {
		return
	}

	resolved, favored, ok, err := s.tasks.AutoResolveIfStalled(ctx, task.ID, s.rules.StallTimeout)
	if err != nil {
		s.skip(report, task, "failed to auto-resolve task", err)
		return
	}
	if !ok {
		return
	}
	report.AutoResolved++
	s.metrics.AutoResolved.Inc()

	// The task is terminal from here on, so later passes cannot strike again.
	staller := resolved.UserOn(favored.Other())
	if _, err := s.ledger.Strike(ctx, staller, SourceSweeper); err != nil {
		report.Skipped++
		report.Unstruck = append(report.Unstruck, staller)
		s.metrics.SweepErrors.Inc()
		s.logger.Error("failed to strike stalling user, strike must be re-issued manually",
			zap.Int64("taskId", resolved.ID),
			zap.Int64("stallingUser", staller),
			zap.String("favoredSide", string(favored)),
			zap.String("source", string(SourceSweeper)),
			zap.Error(err),
		)
	} else {
		report.Struck++
	}

	s.logger.Info("task auto-resolved",
		zap.Int64("taskId", resolved.ID),
		zap.String("favoredSide", string(favored)),
		zap.Int64("stallingUser", staller),
	)

	for _, uid := range []int64{resolved.UserA, resolved.UserB} {
		if err := s.notifier.Notify(ctx, notify.TaskAutoResolved(uid, resolved.ID, string(favored))); err != nil {
			s.logger.Warn("failed to queue auto-resolve notification", zap.Int64("userId", uid), zap.Error(err))
		}
	}
}

func (s *AntiCheatSweeper) purgeProofs(ctx context.Context, report *SweepReport) {
	if s.proofs == nil {
		return
	}

	infos, err := s.proofs.List(ctx)
	if err != nil {
		s.metrics.SweepErrors.Inc()
		s.logger.Warn("failed to list proofs", zap.Error(err))
		return
	}

	now := s.now()
	for _, info := range infos {
		if !blob.Expired(now, info.ModTime, s.rules.ProofRetention) {
			report.ProofsKept++
			continue
		}
		if err := s.proofs.Delete(ctx, info.Ref); err != nil {
			s.metrics.SweepErrors.Inc()
			s.logger.Warn("failed to delete expired proof", zap.String("ref", info.Ref), zap.Error(err))
			continue
		}
		report.ProofsPurged++
		s.metrics.ProofsPurged.Inc()
	}
}

// SweepRunner runs sweep passes on a ticker.
type SweepRunner struct {
	sweeper  *AntiCheatSweeper
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweepRunner creates a runner that sweeps every interval.
func NewSweepRunner(sweeper *AntiCheatSweeper, interval time.Duration, logger *zap.Logger) *SweepRunner {
	return &SweepRunner{
		sweeper:  sweeper,
		interval: interval,
		logger:   logger,
	}
}

// Start launches the loop. It is a no-op when already running.
func (r *SweepRunner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(ctx, r.done)

	r.logger.Info("sweeper started", zap.Duration("interval", r.interval))
}

func (r *SweepRunner) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// A pass in flight finishes even if Stop is called meanwhile.
			if _, err := r.sweeper.Sweep(context.WithoutCancel(ctx)); err != nil {
				r.logger.Error("sweep failed", zap.Error(err))
			}
		}
	}
}

// Stop ends the loop and waits for the current pass to finish.
func (r *SweepRunner) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	r.logger.Info("sweeper stopped")
}
