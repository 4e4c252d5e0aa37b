package monitor

import (
	"sync"
	"time"
)

// History is an in-memory ring of recent noise events serving the status API.
type History struct {
	mu      sync.RWMutex
	events  []NoiseEvent
	maxSize int
}

// NewHistory creates a history keeping at most maxSize events.
func NewHistory(maxSize int) *History {
	return &History{
		events:  make([]NoiseEvent, 0, maxSize),
		maxSize: maxSize,
	}
}

// Add stores a new event, evicting the oldest beyond capacity.
func (h *History) Add(ev NoiseEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.events = append(h.events, ev)
	if len(h.events) > h.maxSize {
		h.events = h.events[len(h.events)-h.maxSize:]
	}
}

// Recent returns events from the last N seconds, oldest first.
func (h *History) Recent(seconds int) []NoiseEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()

	cutoff := time.Now().Add(-time.Duration(seconds) * time.Second)
	var result []NoiseEvent
	for _, ev := range h.events {
		if !ev.Time.Before(cutoff) {
			result = append(result, ev)
		}
	}
	return result
}

// Last returns the most recent event, if any.
func (h *History) Last() (NoiseEvent, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.events) == 0 {
		return NoiseEvent{}, false
	}
	return h.events[len(h.events)-1], true
}

// Len returns the number of stored events.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.events)
}
