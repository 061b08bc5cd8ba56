package service

import (
	"sync"

	"golang.org/x/time/rate"
)

// loginLimiter throttles login attempts per normalized username with a
// token bucket: 5 attempts up front, one more every 5 seconds.
type loginLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

func newLoginLimiter() *loginLimiter {
	return &loginLimiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   rate.Limit(0.2),
		burst:   5,
	}
}

func (l *loginLimiter) allow(key string) bool {
	l.mu.Lock()
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = rate.NewLimiter(l.limit, l.burst)
		l.buckets[key] = bucket
	}
	l.mu.Unlock()
	return bucket.Allow()
}
