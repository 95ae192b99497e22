package service

import (
	"context"
	"sync"

	"github.com/ad-tracker/engagement-exchange-go/internal/db/models"
	"github.com/ad-tracker/engagement-exchange-go/internal/db/repository"
	"github.com/ad-tracker/engagement-exchange-go/internal/notify"
	"go.uber.org/zap"
)

// StrikeSource labels who issued a strike.
type StrikeSource string

// StrikeSource values
const (
	SourceSweeper StrikeSource = "sweeper"
	SourceAdmin   StrikeSource = "admin"
)

// BanObserver is told about ban flag changes after they are stored.
type BanObserver interface {
	BanChanged(ctx context.Context, userID int64, banned bool)
}

// ModerationLedger applies strikes and bans. Every write is a single atomic
// repository call, so sweeper and admin writers never lose an increment and a
// ban is only ever cleared by Unban.
type ModerationLedger struct {
	users     repository.UserRepository
	threshold int
	notifier  notify.Notifier
	metrics   *Metrics
	logger    *zap.Logger

	mu        sync.RWMutex
	observers []BanObserver
}

// NewModerationLedger creates a ModerationLedger.
func NewModerationLedger(users repository.UserRepository, threshold int, notifier notify.Notifier, metrics *Metrics, logger *zap.Logger) *ModerationLedger {
	return &ModerationLedger{
		users:     users,
		threshold: threshold,
		notifier:  notifier,
		metrics:   metrics,
		logger:    logger,
	}
}

// AddObserver registers o for ban changes.
func (l *ModerationLedger) AddObserver(o BanObserver) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, o)
}

func (l *ModerationLedger) banChanged(ctx context.Context, userID int64, banned bool) {
	l.mu.RLock()
	observers := make([]BanObserver, len(l.observers))
	copy(observers, l.observers)
	l.mu.RUnlock()

	for _, o := range observers {
		o.BanChanged(ctx, userID, banned)
	}
}

// Strike adds one strike and bans the user on reaching the threshold.
func (l *ModerationLedger) Strike(ctx context.Context, userID int64, source StrikeSource) (*models.User, error) {
	user, newlyBanned, err := l.users.AddStrike(ctx, userID, l.threshold)
	if err != nil {
		return nil, err
	}

	l.metrics.Strikes.WithLabelValues(string(source)).Inc()
	l.logger.Info("strike issued",
		zap.Int64("userId", userID),
		zap.Int("strikes", user.Strikes),
		zap.String("source", string(source)),
		zap.Bool("banned", user.Banned),
	)

	if newlyBanned {
		l.metrics.Bans.Inc()
		l.logger.Warn("user banned after reaching strike threshold",
			zap.Int64("userId", userID),
			zap.Int("threshold", l.threshold),
		)
		l.banChanged(ctx, userID, true)
	}

	if err := l.notifier.Notify(ctx, notify.StrikeIssued(userID, user.Strikes, user.Banned)); err != nil {
		l.logger.Warn("failed to queue strike notification", zap.Int64("userId", userID), zap.Error(err))
	}
	return user, nil
}

// RemoveStrike takes back one strike. It never lifts a ban.
func (l *ModerationLedger) RemoveStrike(ctx context.Context, userID int64) (*models.User, error) {
	user, err := l.users.RemoveStrike(ctx, userID)
	if err != nil {
		return nil, err
	}
	l.logger.Info("strike removed", zap.Int64("userId", userID), zap.Int("strikes", user.Strikes))
	return user, nil
}

// Ban sets the ban flag.
func (l *ModerationLedger) Ban(ctx context.Context, userID int64) (*models.User, error) {
	user, err := l.users.SetBanned(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	l.metrics.Bans.Inc()
	l.logger.Info("user banned", zap.Int64("userId", userID))
	l.banChanged(ctx, userID, true)
	return user, nil
}

// Unban clears the ban flag. Strikes are kept.
func (l *ModerationLedger) Unban(ctx context.Context, userID int64) (*models.User, error) {
	user, err := l.users.SetBanned(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	l.logger.Info("user unbanned", zap.Int64("userId", userID), zap.Int("strikes", user.Strikes))
	l.banChanged(ctx, userID, false)
	return user, nil
}
