package app

import (
	"sort"
	"sync"
	"time"

	"github.com/MeBadDev/GDWeb/internal/core"
)

// RateLimiter admits at most limit frames per session within any interval.
type RateLimiter struct {
	mu       sync.Mutex
	windows  map[core.SessionID]*window
	limit    int
	interval time.Duration
	now      func() time.Time
}

// window holds the admissions still inside the interval, oldest first.
type window struct {
	hits []time.Time
}

func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		windows:  make(map[core.SessionID]*window),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

// Allow admits one frame from sid. A refused frame comes with the wait until
// the oldest admission leaves the window.
func (rl *RateLimiter) Allow(sid core.SessionID) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[sid]
	if !ok {
		w = &window{hits: make([]time.Time, 0, rl.limit)}
		rl.windows[sid] = w
	}
	w.trim(now.Add(-rl.interval))

	if len(w.hits) >= rl.limit {
		return false, w.hits[0].Add(rl.interval).Sub(now)
	}
	w.hits = append(w.hits, now)
	return true, 0
}

// trim drops admissions at or before cutoff.
func (w *window) trim(cutoff time.Time) {
	i := sort.Search(len(w.hits), func(i int) bool { return w.hits[i].After(cutoff) })
	if i > 0 {
		w.hits = append(w.hits[:0], w.hits[i:]...)
	}
}

// Forget drops the window of a finished session.
func (rl *RateLimiter) Forget(sid core.SessionID) {
	rl.mu.Lock()
	delete(rl.windows, sid)
	rl.mu.Unlock()
}
