package queue

import (
	"context"
	"fmt"

	"github.com/ad-tracker/engagement-exchange-go/internal/notify"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// DeliveryHandler relays queued notifications to a transport notifier.
type DeliveryHandler struct {
	next      notify.Notifier
	callbacks *CallbackManager
	logger    *zap.Logger
}

// NewDeliveryHandler creates a handler that relays to next.
func NewDeliveryHandler(next notify.Notifier, logger *zap.Logger) *DeliveryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeliveryHandler{
		next:      next,
		callbacks: NewCallbackManager(),
		logger:    logger,
	}
}

// SetCallbackManager replaces the delivery callbacks.
func (h *DeliveryHandler) SetCallbackManager(m *CallbackManager) {
	h.callbacks = m
}

// ProcessTask implements asynq.Handler. Malformed payloads are not retried.
func (h *DeliveryHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	n, err := ParseDeliverTask(task)
	if err != nil {
		h.logger.Error("dropping malformed notification task", zap.Error(err))
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	if err := h.next.Notify(ctx, n); err != nil {
		return fmt.Errorf("delivering notification %s: %w", n.ID, err)
	}

	h.logger.Debug("delivered notification",
		zap.String("id", n.ID),
		zap.String("kind", string(n.Kind)),
		zap.Int64("userId", n.UserID),
	)
	if h.callbacks != nil {
		h.callbacks.TriggerCallbacks(ctx, n)
	}
	return nil
}

// Server wraps the asynq server and its mux.
type Server struct {
	asynqServer *asynq.Server
	mux         *asynq.ServeMux
}

// NewServer creates a worker server that delivers notifications through
// handler.
func NewServer(redisAddr string, concurrency int, handler *DeliveryHandler) (*Server, error) {
	// Parse Redis URL to extract connection details (host, password, db, TLS)
	redisOpt, err := ParseRedisURL(redisAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	logger := handler.logger
	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				QueueNotifications: 10,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logger.Warn("task failed",
					zap.String("type", task.Type()),
					zap.Int("retry", retried),
					zap.Int("maxRetry", maxRetry),
					zap.Error(err),
				)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.Handle(TypeDeliverNotification, handler)

	return &Server{
		asynqServer: srv,
		mux:         mux,
	}, nil
}

// Run starts the server and blocks until it is shut down.
func (s *Server) Run() error {
	return s.asynqServer.Run(s.mux)
}

// Start starts the server without blocking.
func (s *Server) Start() error {
	return s.asynqServer.Start(s.mux)
}

// Stop gracefully stops the server
func (s *Server) Stop() {
	s.asynqServer.Shutdown()
}
