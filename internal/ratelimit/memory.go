package ratelimit

import (
	"sync"
	"time"
)

// entry tracks request timestamps for one rate-limit key.
type entry struct {
	requests []time.Time
	mu       sync.Mutex
}

// MemoryLimiter is a process-local sliding-window Limiter, suitable for a
// single instance. CleanupStale evicts keys with no request inside twice
// the window it is given.
type MemoryLimiter struct {
	entries sync.Map // map[string]*entry
}

// NewMemoryLimiter creates an empty in-process limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{}
}

// Check implements Limiter.
func (l *MemoryLimiter) Check(key string, limit int, window time.Duration) Result {
	now := time.Now()

	val, _ := l.entries.LoadOrStore(key, &entry{requests: make([]time.Time, 0, limit)})
	e := val.(*entry)

	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := now.Add(-window)
	valid := make([]time.Time, 0, len(e.requests))
	var oldest time.Time
	for _, req := range e.requests {
		if req.After(cutoff) {
			valid = append(valid, req)
			if oldest.IsZero() || req.Before(oldest) {
				oldest = req
			}
		}
	}
	e.requests = valid

	resetAt := now.Add(window)
	if !oldest.IsZero() {
		resetAt = oldest.Add(window)
	}

	if len(e.requests) >= limit {
		return Result{Allowed: false, Limit: limit, Remaining: 0, ResetAt: resetAt}
	}

	e.requests = append(e.requests, now)
	return Result{Allowed: true, Limit: limit, Remaining: limit - len(e.requests), ResetAt: resetAt}
}

// CleanupStale removes keys with no requests inside window*2.
// StartCleanupWorker runs it on an interval; without it, keys accumulate.
func (l *MemoryLimiter) CleanupStale(window time.Duration) {
	now := time.Now()
	cutoff := now.Add(-window * 2)

	l.entries.Range(func(key, value interface{}) bool {
		e := value.(*entry)
		e.mu.Lock()
		stale := true
		for _, req := range e.requests {
			if req.After(cutoff) {
				stale = false
				break
			}
		}
		e.mu.Unlock()

		if stale {
			l.entries.Delete(key)
		}
		return true
	})
}

// StartCleanupWorker runs CleanupStale every interval until stop is closed.
func (l *MemoryLimiter) StartCleanupWorker(interval, window time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.CleanupStale(window)
			case <-stop:
				return
			}
		}
	}()
}
