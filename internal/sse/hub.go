// Package sse fans run progress events out to streaming subscribers.
package sse

import (
	"sync"

	"clearmark/internal/domain"
)

// Event is one progress snapshot pushed to subscribers of a run's stream.
type Event struct {
	RunID          string `json:"run_id"`
	Phase          string `json:"phase"`
	Message        string `json:"message"`
	Percent        int    `json:"percent"`
	Error          string `json:"error,omitempty"`
	ResultAssetID  string `json:"result_asset_id,omitempty"`
	AwaitingAccess bool   `json:"awaiting_access,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return domain.Phase(e.Phase).Terminal()
}

// EventFromRun flattens a stored run into its stream representation.
func EventFromRun(run domain.Run) Event {
	return Event{
		RunID:          run.ID,
		Phase:          string(run.Phase),
		Message:        run.Message,
		Percent:        run.Percent,
		Error:          run.ErrorMessage,
		ResultAssetID:  run.ResultAssetID,
		AwaitingAccess: run.AccessRequested,
	}
}

const subscriberBuffer = 16

// Hub routes events to per-run subscriber channels. Slow subscribers drop
// events rather than block the publisher; the stream handler re-reads the
// run on connect so a dropped intermediate update only delays, never loses,
// the final state.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe registers a listener for one run. The returned cancel function
// must be called when the listener goes away; it closes the channel.
func (h *Hub) Subscribe(runID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	set, ok := h.subs[runID]
	if !ok {
		set = make(map[chan Event]struct{})
		h.subs[runID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if set, ok := h.subs[runID]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(h.subs, runID)
				}
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber of its run without blocking.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[ev.RunID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers reports how many listeners a run currently has.
func (h *Hub) Subscribers(runID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[runID])
}
