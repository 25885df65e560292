package gateway

import (
	"sync"
)

// subscriberBuffer is the per-subscriber event queue depth. A watcher
// that falls this far behind is dropped rather than stalling the run.
const subscriberBuffer = 32

// Event is one progress update published while a run executes.
type Event struct {
	Type    string `json:"type"`
	RunID   string `json:"run_id"`
	Status  string `json:"status,omitempty"`
	Routine string `json:"routine,omitempty"`
	Done    int    `json:"done,omitempty"`
	Total   int    `json:"total,omitempty"`
	Message string `json:"message,omitempty"`
}

// Hub fans run events out to watchers. Each subscriber gets its own
// buffered channel; publishing never blocks on a slow consumer.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: map[string]map[chan Event]struct{}{}}
}

// Subscribe registers a watcher for a run. The cancel func is
// idempotent and safe to call after the hub closed the channel.
func (h *Hub) Subscribe(runID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	if h.subs[runID] == nil {
		h.subs[runID] = map[chan Event]struct{}{}
	}
	h.subs[runID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.subs[runID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber of the run. A
// subscriber with a full buffer is dropped and its channel closed.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[ev.RunID] {
		select {
		case ch <- ev:
		default:
			delete(h.subs[ev.RunID], ch)
			close(ch)
		}
	}
}

// CloseRun closes every subscriber channel once a run is finished.
func (h *Hub) CloseRun(runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[runID] {
		close(ch)
	}
	delete(h.subs, runID)
}

// Subscribers reports how many watchers a run currently has.
func (h *Hub) Subscribers(runID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[runID])
}
