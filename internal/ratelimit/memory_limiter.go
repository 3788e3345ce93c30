package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryLimiter keeps sliding windows in process memory. Suitable for
// single-instance deployments and as the fallback limiter backend.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	log     *slog.Logger
}

func NewMemoryLimiter(log *slog.Logger) *MemoryLimiter {
	if log == nil {
		log = slog.Default()
	}
	return &MemoryLimiter{
		windows: make(map[string][]time.Time),
		log:     log,
	}
}

var _ Limiter = (*MemoryLimiter)(nil)

// Check records one hit for key and reports whether it stays within limit
// hits per window.
func (m *MemoryLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := time.Now()
	cutoff := now.Add(-window)

	m.mu.Lock()
	defer m.mu.Unlock()

	hits := trimBefore(m.windows[key], cutoff)

	allowed := len(hits) < limit
	if allowed {
		hits = append(hits, now)
	}
	m.windows[key] = hits

	remaining := limit - len(hits)
	if remaining < 0 {
		remaining = 0
	}

	res := &Result{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   now,
	}
	if !allowed {
		return res, ErrLimitExceeded
	}
	return res, nil
}

// Cleanup drops keys whose newest hit is older than maxAge. Called
// periodically by the Cleaner.
func (m *MemoryLimiter) Cleanup(maxAge time.Duration) {
	if maxAge <= 0 {
		return
	}
	stale := time.Now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, hits := range m.windows {
		if len(hits) == 0 || hits[len(hits)-1].Before(stale) {
			delete(m.windows, key)
		}
	}
}

// trimBefore drops hits older than cutoff, reusing the backing array.
func trimBefore(hits []time.Time, cutoff time.Time) []time.Time {
	drop := 0
	for drop < len(hits) && hits[drop].Before(cutoff) {
		drop++
	}
	switch {
	case drop == 0:
		return hits
	case drop == len(hits):
		return hits[:0]
	default:
		return hits[:copy(hits, hits[drop:])]
	}
}
