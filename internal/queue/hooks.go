package queue

import (
	"context"
	"sync"

	"github.com/ad-tracker/engagement-exchange-go/internal/notify"
)

// DeliveryCallback runs after a notification has been handed to the
// transport.
type DeliveryCallback func(ctx context.Context, n *notify.Notification)

// CallbackManager holds delivery callbacks.
type CallbackManager struct {
	callbacks []DeliveryCallback
	mu        sync.RWMutex
}

// NewCallbackManager creates a new callback manager
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make([]DeliveryCallback, 0),
	}
}

// RegisterCallback appends cb.
func (m *CallbackManager) RegisterCallback(cb DeliveryCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

// TriggerCallbacks runs every callback in registration order.
func (m *CallbackManager) TriggerCallbacks(ctx context.Context, n *notify.Notification) {
	m.mu.RLock()
	callbacks := make([]DeliveryCallback, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.RUnlock()

	for _, cb := range callbacks {
		cb(ctx, n)
	}
}

// CallbackCount returns the number of registered callbacks
func (m *CallbackManager) CallbackCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.callbacks)
}
