package chat

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

// RateLimiter limits MESSAGE requests per user.
// The key is the user id, not the connection, so reconnecting does not reset it.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*userLimiter
	every    rate.Limit
	burst    int
	stop     chan struct{}
	once     sync.Once
}

type userLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perMinute messages per user per minute and starts the
// background eviction goroutine. A non-positive perMinute returns nil, which allows everything.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		return nil
	}
	rl := &RateLimiter{
		limiters: make(map[string]*userLimiter),
		every:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		stop:     make(chan struct{}),
	}
	go rl.evictLoop(time.Minute)
	return rl
}

// Allow reports whether the user may send another message now.
func (r *RateLimiter) Allow(userID string) bool {
	return r.allowAt(userID, time.Now())
}

func (r *RateLimiter) allowAt(userID string, now time.Time) bool {
	if r == nil {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	ul, ok := r.limiters[userID]
	if !ok {
		ul = &userLimiter{lim: rate.NewLimiter(r.every, r.burst)}
		r.limiters[userID] = ul
	}
	ul.lastSeen = now
	return ul.lim.AllowN(now, 1)
}

// Close stops the eviction goroutine.
func (r *RateLimiter) Close() {
	if r == nil {
		return
	}
	r.once.Do(func() { close(r.stop) })
}

func (r *RateLimiter) evictLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case now := <-ticker.C:
			r.evictIdle(now)
		}
	}
}

func (r *RateLimiter) evictIdle(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, ul := range r.limiters {
		if now.Sub(ul.lastSeen) > limiterIdleTTL {
			delete(r.limiters, key)
		}
	}
}

func (r *RateLimiter) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}
