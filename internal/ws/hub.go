package ws

import (
	"sync"
	"time"

	"github.com/luminadash/backend/internal/events"
)

// JobUpdate is the wire form of a job lifecycle event pushed to clients.
type JobUpdate struct {
	Type      string `json:"type"`
	JobID     string `json:"job_id"`
	Kind      string `json:"kind"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Hub fans job lifecycle events out to connected WebSocket clients. It
// implements the queue's event sink, so it can be combined with the
// logging and metrics sinks via events.Multi.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan JobUpdate]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan JobUpdate]struct{})}
}

// Subscribe registers a new listener. The returned channel is buffered;
// events are dropped for listeners that fall behind rather than blocking
// the workers.
func (h *Hub) Subscribe() chan JobUpdate {
	ch := make(chan JobUpdate, 64)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener and closes its channel.
func (h *Hub) Unsubscribe(ch chan JobUpdate) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Subscribers returns the current listener count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// CallAttempt is ignored; only job events are streamed to clients.
func (h *Hub) CallAttempt(events.CallAttempt) {}

// BreakerTransition is ignored; only job events are streamed to clients.
func (h *Hub) BreakerTransition(events.BreakerTransition) {}

// JobLifecycle broadcasts a job transition to all listeners.
func (h *Hub) JobLifecycle(e events.JobEvent) {
	update := JobUpdate{
		Type:      "job_update",
		JobID:     e.JobID,
		Kind:      e.Kind,
		Status:    e.Status,
		Progress:  e.Progress,
		Timestamp: time.Now().Unix(),
	}
	if e.Err != nil {
		update.Error = e.Err.Error()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- update:
		default:
			// Slow listener: drop rather than stall the worker.
		}
	}
}
