// File: internal/session/highlight.go
package session

import (
	"sync"
	"time"

	"github.com/nexus-desktop/nexus-agent/api/schemas"
)

// Highlight tracks the coordinates the run is currently pointing at, for
// external observers (screen preview, realtime push). A highlight clears
// itself after its TTL even if no further run ever completes.
type Highlight struct {
	mu      sync.Mutex
	current *schemas.Coordinates
	timer   *time.Timer
	ttl     time.Duration
	onClear func()
}

// NewHighlight returns a beacon with the given auto-clear TTL.
func NewHighlight(ttl time.Duration) *Highlight {
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	return &Highlight{ttl: ttl}
}

// OnClear registers a callback fired whenever the highlight clears, by
// timeout or explicitly.
func (h *Highlight) OnClear(fn func()) {
	h.mu.Lock()
	h.onClear = fn
	h.mu.Unlock()
}

// Set points the beacon at c and re-arms the auto-clear timer.
func (h *Highlight) Set(c schemas.Coordinates) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = &c
	if h.timer != nil {
		h.timer.Stop()
	}
	h.timer = time.AfterFunc(h.ttl, h.Clear)
}

// Current returns the active coordinates, or nil.
func (h *Highlight) Current() *schemas.Coordinates {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return nil
	}
	c := *h.current
	return &c
}

// Clear drops the highlight and stops the pending timer.
func (h *Highlight) Clear() {
	h.mu.Lock()
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	cleared := h.current != nil
	h.current = nil
	fn := h.onClear
	h.mu.Unlock()

	if cleared && fn != nil {
		fn()
	}
}
