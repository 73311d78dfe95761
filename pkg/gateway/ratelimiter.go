package gateway

import (
	"sync"
	"time"
)

// RateLimiter implements per-client sliding window rate limiting
type RateLimiter struct {
	mu                sync.Mutex
	limits            map[string][]time.Time
	maxRequestsPerMin int
	window            time.Duration
	stopCleanup       chan struct{}
	stopOnce          sync.Once
}

// NewRateLimiter creates a new rate limiter. A limit of zero or less allows everything.
func NewRateLimiter(maxRequestsPerMinute int) *RateLimiter {
	rl := &RateLimiter{
		limits:            make(map[string][]time.Time),
		maxRequestsPerMin: maxRequestsPerMinute,
		window:            time.Minute,
		stopCleanup:       make(chan struct{}),
	}

	go rl.startCleanup(5 * time.Minute)

	return rl
}

// Allow records a request from key and reports whether it is within the limit
func (rl *RateLimiter) Allow(key string) bool {
	if rl.maxRequestsPerMin <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	requests := prune(rl.limits[key], now.Add(-rl.window))

	if len(requests) >= rl.maxRequestsPerMin {
		rl.limits[key] = requests
		return false
	}

	rl.limits[key] = append(requests, now)
	return true
}

// RetryAfter returns the seconds until key may make another request
func (rl *RateLimiter) RetryAfter(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	requests := rl.limits[key]
	if len(requests) == 0 {
		return 0
	}

	wait := time.Until(requests[0].Add(rl.window))
	if wait <= 0 {
		return 0
	}
	return int(wait.Seconds()) + 1
}

// Stop stops the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

func (rl *RateLimiter) startCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.window)
	for key, requests := range rl.limits {
		requests = prune(requests, cutoff)
		if len(requests) == 0 {
			delete(rl.limits, key)
			continue
		}
		rl.limits[key] = requests
	}
}

func prune(requests []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(requests) && !requests[i].After(cutoff) {
		i++
	}
	return requests[i:]
}
