package api

import (
	"sync"

	"github.com/die-net/tunnelcheck/internal/pipeline"
)

// hub records one batch's results and wakes streaming readers as they
// arrive. It is the pipeline.Observer for a batch submitted over the API.
type hub struct {
	id string

	mu      sync.Mutex
	events  []pipeline.Event
	summary *pipeline.Summary
	// changed is closed and replaced on every update.
	changed chan struct{}
}

func newHub() *hub {
	return &hub{changed: make(chan struct{})}
}

func (h *hub) OnResult(ev pipeline.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.events = append(h.events, ev)
	h.notifyLocked()
}

func (h *hub) OnDone(s pipeline.Summary) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.summary = &s
	h.notifyLocked()
}

func (h *hub) notifyLocked() {
	close(h.changed)
	h.changed = make(chan struct{})
}

// since returns the events recorded after the first n, the summary if the
// batch is done, and a channel closed on the next update.
func (h *hub) since(n int) ([]pipeline.Event, *pipeline.Summary, <-chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.events[n:len(h.events):len(h.events)], h.summary, h.changed
}
