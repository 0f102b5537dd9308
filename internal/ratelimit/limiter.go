package ratelimit

import (
	"sync"
	"time"
)

// Window is a fixed-window counter: at most limit events per window, the
// count resetting when a new window starts. A window covers
// [start, start+window), so an event exactly one window after start opens
// the next one.
type Window struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	now    func() time.Time

	start time.Time
	count int
}

func NewWindow(limit int, window time.Duration) *Window {
	return &Window{limit: limit, window: window, now: time.Now}
}

// Allow records one event and reports whether it fits in the current window.
func (w *Window) Allow() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if w.start.IsZero() || now.Sub(w.start) >= w.window {
		w.start = now
		w.count = 0
	}
	if w.count >= w.limit {
		return false
	}
	w.count++
	return true
}
