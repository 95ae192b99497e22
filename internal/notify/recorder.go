package notify

import (
	"context"
	"sync"
)

// Recorder keeps every notification in memory. Tests use it to assert on
// outbound traffic.
type Recorder struct {
	mu   sync.Mutex
	sent []*Notification
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Notify implements Notifier.
func (r *Recorder) Notify(_ context.Context, n *Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

// Sent returns a copy of the recorded notifications.
func (r *Recorder) Sent() []*Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Notification, len(r.sent))
	copy(out, r.sent)
	return out
}

// ByKind returns the recorded notifications of one kind.
func (r *Recorder) ByKind(kind Kind) []*Notification {
	var out []*Notification
	for _, n := range r.Sent() {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}
