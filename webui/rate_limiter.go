package webui

import (
	"math"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// DefaultAcquireBurst is how many acquisitions a session may start back to
// back before the per-minute rate applies.
const DefaultAcquireBurst = 2

// RateLimiter throttles image acquisitions per key (a session ID, or the
// client address for stateless calls). Idle limiters expire with the key.
type RateLimiter struct {
	limiters *cache.Cache
	limit    rate.Limit
	burst    int
}

// NewRateLimiter allows perMinute acquisitions per key with the given
// burst. perMinute <= 0 disables limiting.
func NewRateLimiter(perMinute, burst int, idle time.Duration) *RateLimiter {
	if burst < 1 {
		burst = DefaultAcquireBurst
	}
	if idle <= 0 {
		idle = time.Hour
	}
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &RateLimiter{
		limiters: cache.New(idle, idle),
		limit:    limit,
		burst:    burst,
	}
}

// Allow consumes a token for key. When it returns false, retryAfter is
// how long until the next token.
func (l *RateLimiter) Allow(key string) (ok bool, retryAfter time.Duration) {
	if l.limit == rate.Inf {
		return true, 0
	}
	lim := l.limiter(key)
	r := lim.Reserve()
	if delay := r.Delay(); delay > 0 {
		r.Cancel()
		return false, delay
	}
	return true, 0
}

func (l *RateLimiter) limiter(key string) *rate.Limiter {
	if x, found := l.limiters.Get(key); found {
		lim := x.(*rate.Limiter)
		l.limiters.Set(key, lim, cache.DefaultExpiration)
		return lim
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	if err := l.limiters.Add(key, lim, cache.DefaultExpiration); err != nil {
		// Lost a race with another request for the same key.
		if x, found := l.limiters.Get(key); found {
			return x.(*rate.Limiter)
		}
	}
	return lim
}

// Count is the number of keys with a live limiter.
func (l *RateLimiter) Count() int {
	return l.limiters.ItemCount()
}

func retryAfterSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
