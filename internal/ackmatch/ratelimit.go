package ackmatch

import (
	"sync"
	"time"

	"github.com/unidroids/robotour/internal/timeutil"
)

// RateLimiter enforces a minimum spacing between sends, shared by every
// caller of AwaitSlot.
type RateLimiter struct {
	clock       timeutil.Clock
	minInterval time.Duration

	mu   sync.Mutex
	last time.Time
	set  bool
}

// NewRateLimiter returns a limiter enforcing at least minInterval between
// consecutive AwaitSlot returns.
func NewRateLimiter(clock timeutil.Clock, minInterval time.Duration) *RateLimiter {
	return &RateLimiter{clock: clock, minInterval: minInterval}
}

// AwaitSlot blocks, if necessary, until minInterval has elapsed since the
// previous call returned.
func (r *RateLimiter) AwaitSlot() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now()
	if r.set {
		wait := r.last.Add(r.minInterval).Sub(now)
		if wait > 0 {
			r.clock.Sleep(wait)
			now = r.clock.Now()
		}
	}
	r.last = now
	r.set = true
}
