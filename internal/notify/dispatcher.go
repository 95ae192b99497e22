package notify

import (
	"context"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

const (
	defaultDeliveryTimeout = 10 * time.Second
	defaultQueueSize       = 1024
)

// Dispatcher delivers notifications asynchronously. Notify only enqueues; a
// feeder hands queued notifications to a bounded worker pool. When the queue
// is full the notification is dropped and logged.
type Dispatcher struct {
	next    Notifier
	logger  *zap.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan *Notification
	fed    chan struct{}
	pool   *pool.Pool
}

// NewDispatcher creates a Dispatcher with at most workers concurrent deliveries.
func NewDispatcher(next Notifier, workers int, logger *zap.Logger) *Dispatcher {
	return newDispatcher(next, workers, defaultQueueSize, logger)
}

func newDispatcher(next Notifier, workers, queueSize int, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	d := &Dispatcher{
		next:    next,
		logger:  logger,
		timeout: defaultDeliveryTimeout,
		queue:   make(chan *Notification, queueSize),
		fed:     make(chan struct{}),
		pool:    pool.New().WithMaxGoroutines(workers),
	}
	go d.feed()
	return d
}

func (d *Dispatcher) feed() {
	defer close(d.fed)
	for n := range d.queue {
		d.pool.Go(func() { d.deliver(n) })
	}
}

func (d *Dispatcher) deliver(n *Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.next.Notify(ctx, n); err != nil {
		d.logger.Error("failed to deliver notification",
			zap.Error(err),
			zap.String("id", n.ID),
			zap.String("kind", string(n.Kind)),
			zap.Int64("userId", n.UserID),
		)
	}
}

// Notify enqueues delivery and never blocks. Delivery runs detached from the
// caller's context.
func (d *Dispatcher) Notify(_ context.Context, n *Notification) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("dropping notification after close",
			zap.String("kind", string(n.Kind)),
			zap.Int64("userId", n.UserID),
		)
		return nil
	}

	select {
	case d.queue <- n:
	default:
		d.logger.Warn("dropping notification, delivery queue full",
			zap.String("id", n.ID),
			zap.String("kind", string(n.Kind)),
			zap.Int64("userId", n.UserID),
		)
	}
	return nil
}

// Close stops accepting notifications and waits for queued and in-flight
// deliveries.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	<-d.fed
	d.pool.Wait()
}
