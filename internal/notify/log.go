package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier writes notifications to the log. It is the fallback when no
// broker is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (l *LogNotifier) Notify(_ context.Context, n *Notification) error {
	l.logger.Info("notification",
		zap.String("id", n.ID),
		zap.String("kind", string(n.Kind)),
		zap.Int64("userId", n.UserID),
		zap.Int64("taskId", n.TaskID),
	)
	return nil
}
